package echoapi

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/attendance"
	"github.com/Shukurulla/dogerek-tutor/core/club"
	"github.com/Shukurulla/dogerek-tutor/core/tutor"
	emailsvc "github.com/Shukurulla/dogerek-tutor/services/email"
	logsvc "github.com/Shukurulla/dogerek-tutor/services/logger"
	dummydb "github.com/Shukurulla/dogerek-tutor/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// fixtures holds a fully wired test server and the seams tests seed through.
type fixtures struct {
	server    *Server
	tutorRepo tutor.Repository
	clubRepo  interface {
		club.Repository
		AddClub(c club.Club)
		AddStudent(clubID string, s club.Student)
		AddApplication(app club.Application)
	}
	attRepo  attendance.Repository
	tutorSvc tutor.ServiceInterface
	clubSvc  club.ServiceInterface
	attSvc   attendance.ServiceInterface
}

func setup(t *testing.T) *fixtures {
	// prod-like error bodies; the debug branch returns raw error strings
	core.Conf.Debug = false
	core.Conf.TestMode = true

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	fx := &fixtures{
		tutorRepo: dummydb.NewTutorRepository(db),
		clubRepo:  dummydb.NewClubRepository(db),
		attRepo:   dummydb.NewAttendanceRepository(db),
	}
	mailSvc := emailsvc.NewConsoleServiceMock()
	fx.tutorSvc = tutor.NewService(fx.tutorRepo, mailSvc)
	fx.clubSvc = club.NewService(fx.clubRepo)
	fx.attSvc = attendance.NewService(fx.attRepo, fx.clubSvc, nil, mailSvc)

	fx.server = NewServer(ServerDeps{
		Addr:           "localhost:0",
		DisableReqLogs: true,
		Logger:         logsvc.NewStdLogger(log.New(os.Stderr, "", log.LstdFlags)),
		TutorSvc:       fx.tutorSvc,
		ClubSvc:        fx.clubSvc,
		AttendanceSvc:  fx.attSvc,
	})
	return fx
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func createTutor(t *testing.T, repo tutor.Repository, name, uname, email, pwd string, roles []string, isActive bool) tutor.Tutor {
	tstamp := time.Now().UTC()
	tut := tutor.Tutor{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := tut.SetPassword(pwd); err != nil {
			t.Fatalf("createTutor() failed: %v", err)
		}
	}
	tut, err := repo.CreateTutor(tut)
	if err != nil {
		t.Fatalf("createTutor() failed: %v", err)
	}
	return tut
}

func getToken(t *testing.T, tut tutor.Tutor) string {
	token, err := GenerateToken(GetTutorClaims(tut))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// seeding helpers

func seedClub(fx *fixtures, id, name, tutorID string, capacity int) club.Club {
	now := time.Now().UTC()
	c := club.Club{
		ID:       id,
		Name:     name,
		TutorID:  tutorID,
		Capacity: capacity,
		Schedule: club.Schedule{
			WeekDays:  []int{1, 3},
			StartTime: "15:00",
			EndTime:   "17:00",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	fx.clubRepo.AddClub(c)
	return c
}

func seedStudent(fx *fixtures, clubID, id, name, idNumber string) club.Student {
	s := club.Student{ID: id, FullName: name, StudentIDNumber: idNumber, Group: "101-22", Department: "CS"}
	fx.clubRepo.AddStudent(clubID, s)
	return s
}

func seedApplication(fx *fixtures, id, clubID string, s club.Student) club.Application {
	app := club.Application{
		ID:        id,
		ClubID:    clubID,
		Student:   s,
		Status:    club.ApplicationPending,
		AppliedAt: time.Now().UTC(),
	}
	fx.clubRepo.AddApplication(app)
	return app
}

func nullStr(s string) null.String { return null.StringFrom(s) }
