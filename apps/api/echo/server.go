package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/attendance"
	"github.com/Shukurulla/dogerek-tutor/core/club"
	"github.com/Shukurulla/dogerek-tutor/core/tutor"
)

type (
	ServerDeps struct {
		Addr           string
		DisableReqLogs bool

		Logger        core.Logger
		TutorSvc      tutor.ServiceInterface
		ClubSvc       club.ServiceInterface
		AttendanceSvc attendance.ServiceInterface
	}

	Server struct {
		deps       ServerDeps
		app        *echo.Echo
		errCh      chan error
		shutdownCh chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:       deps,
		app:        echo.New(),
		errCh:      make(chan error, 1),
		shutdownCh: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerTutorAPI(v1, jwt, s.deps.TutorSvc)
	registerClubAPI(v1, jwt, s.deps.ClubSvc)
	registerAttendanceAPI(v1, jwt, s.deps.AttendanceSvc, s.deps.ClubSvc)
}

func (s *Server) Start() {
	signal.Notify(s.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s.errCh <- s.app.Start(s.deps.Addr)
	}()
}

// Errors reports a fatal server error; the caller decides how to die.
func (s *Server) Errors() <-chan error { return s.errCh }

// ShutdownSignal fires on SIGINT/SIGTERM or on an integrity error caught by
// the error handler.
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdownCh }

func (s *Server) Shutdown(ctx context.Context) error { return s.app.Shutdown(ctx) }
func (s *Server) Close() error                       { return s.app.Close() }

func (s *Server) signalShutdown() {
	s.shutdownCh <- syscall.SIGTERM
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Dogerek Tutor API!")
}
