package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/Shukurulla/dogerek-tutor/apps/api/echo"
	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/attendance"
	"github.com/Shukurulla/dogerek-tutor/core/club"
	"github.com/Shukurulla/dogerek-tutor/core/tutor"
	emailsvc "github.com/Shukurulla/dogerek-tutor/services/email"
	logsvc "github.com/Shukurulla/dogerek-tutor/services/logger"
	"github.com/Shukurulla/dogerek-tutor/storage/cache"
	"github.com/Shukurulla/dogerek-tutor/storage/database"
	sqlxrepos "github.com/Shukurulla/dogerek-tutor/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if core.Conf.Debug {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	// set up DB
	db, err := setUpDB()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("failed to close DB", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	var statsCache attendance.StatsCache
	redisCache, err := cache.NewRedisStatsCache(core.Conf, logger)
	if err != nil {
		// the record store stays the source of truth; run uncached
		logger.Warn(fmt.Sprintf("stats cache unavailable: %v", err))
	} else {
		statsCache = redisCache
		defer redisCache.Close()
	}

	tutorSvc := tutor.NewService(sqlxrepos.NewTutorRepository(db), mailSvc)
	clubSvc := club.NewService(sqlxrepos.NewClubRepository(db))
	attendanceSvc := attendance.NewService(sqlxrepos.NewAttendanceRepository(db), clubSvc, statsCache, mailSvc)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Addr:          core.Conf.Server.Address(),
			Logger:        logger,
			TutorSvc:      tutorSvc,
			ClubSvc:       clubSvc,
			AttendanceSvc: attendanceSvc,
		},
	)
	server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), core.Conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB() (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(core.Conf); err != nil {
		return nil, err
	}

	db, err := database.Open(core.Conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}
