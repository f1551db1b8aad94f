package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/Shukurulla/dogerek-tutor/core/club"
	"github.com/Shukurulla/dogerek-tutor/core/tutor"
)

func Test_clubApi_query(t *testing.T) {
	fx := setup(t)
	tut := createTutor(t, fx.tutorRepo, "Aliya Tutor", "aliya", "aliya@dogerek.uz", "", nil, true)
	other := createTutor(t, fx.tutorRepo, "Bek Tutor", "bekzat", "bekzat@dogerek.uz", "", nil, true)

	chess := seedClub(fx, "c1", "Chess Club", tut.ID, 0)
	robotics := seedClub(fx, "c2", "Robotics Club", other.ID, 20)
	_ = robotics

	tests := []httpTest{
		{
			name:     "anonymous",
			token:    "",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "only own clubs",
			token:    getToken(t, tut),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []club.Club{chess}),
		},
		{
			name:     "no clubs",
			token:    getToken(t, createTutor(t, fx.tutorRepo, "New", "newbie", "new@dogerek.uz", "", nil, true)),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []club.Club{}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/clubs", tt.token)
			fx.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_clubApi_retrieve(t *testing.T) {
	fx := setup(t)
	tut := createTutor(t, fx.tutorRepo, "Aliya Tutor", "aliya", "aliya@dogerek.uz", "", nil, true)
	other := createTutor(t, fx.tutorRepo, "Bek Tutor", "bekzat", "bekzat@dogerek.uz", "", nil, true)
	admin := createTutor(t, fx.tutorRepo, "Admin", "daniyar", "daniyar@dogerek.uz", "", []string{tutor.RoleAdmin}, true)

	chess := seedClub(fx, "c1", "Chess Club", tut.ID, 0)

	notFound := marchallObj(t, httpErr{Error: "not found"})

	tests := []httpTest{
		{
			name:     "owner",
			path:     "/v1/clubs/c1",
			token:    getToken(t, tut),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, chess),
		},
		{
			name:     "another tutor's club is hidden",
			path:     "/v1/clubs/c1",
			token:    getToken(t, other),
			wantCode: http.StatusNotFound,
			wantData: notFound,
		},
		{
			name:     "admin sees any club",
			path:     "/v1/clubs/c1",
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, chess),
		},
		{
			name:     "unknown club",
			path:     "/v1/clubs/nope",
			token:    getToken(t, tut),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "club not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			fx.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_clubApi_update(t *testing.T) {
	fx := setup(t)
	tut := createTutor(t, fx.tutorRepo, "Aliya Tutor", "aliya", "aliya@dogerek.uz", "", nil, true)
	other := createTutor(t, fx.tutorRepo, "Bek Tutor", "bekzat", "bekzat@dogerek.uz", "", nil, true)
	seedClub(fx, "c1", "Chess Club", tut.ID, 0)

	capacity := 25

	tests := []httpTest{
		{
			name:     "another tutor cannot update",
			token:    getToken(t, other),
			body:     marchallObj(t, club.UpdateClub{Name: "Hijack"}),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "invalid time format",
			token:    getToken(t, tut),
			body:     marchallObj(t, club.UpdateClub{StartTime: "3pm"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "owner updates",
			token:    getToken(t, tut),
			body:     marchallObj(t, club.UpdateClub{Name: "Chess Masters", Capacity: &capacity, StartTime: "16:00"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, "/v1/clubs/c1", tt.token, tt.body)
			fx.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	c, err := fx.clubSvc.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if c.Name != "Chess Masters" || c.Capacity != 25 || c.Schedule.StartTime != "16:00" {
		t.Errorf("update not persisted: %+v", c)
	}
	if c.Schedule.EndTime != "17:00" {
		t.Errorf("unset fields must be preserved; EndTime = %v", c.Schedule.EndTime)
	}
}

func Test_clubApi_queryStudents(t *testing.T) {
	fx := setup(t)
	tut := createTutor(t, fx.tutorRepo, "Aliya Tutor", "aliya", "aliya@dogerek.uz", "", nil, true)
	seedClub(fx, "c1", "Chess Club", tut.ID, 0)
	s1 := seedStudent(fx, "c1", "s1", "Aigerim Bekova", "2023001")
	s2 := seedStudent(fx, "c1", "s2", "Bekzat Omarov", "2023002")
	s3 := seedStudent(fx, "c1", "s3", "Dana Serikova", "2024015")

	token := getToken(t, tut)
	tests := []httpTest{
		{
			name:     "all students in enrollment order",
			path:     "/v1/clubs/c1/students",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []club.Student{s1, s2, s3}),
		},
		{
			name:     "search by name is case-insensitive",
			path:     "/v1/clubs/c1/students?search=beK",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []club.Student{s1, s2}),
		},
		{
			name:     "search by id number",
			path:     "/v1/clubs/c1/students?search=2024",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []club.Student{s3}),
		},
		{
			name:     "no match",
			path:     "/v1/clubs/c1/students?search=zzz",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []club.Student{}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, token)
			fx.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_clubApi_removeStudent(t *testing.T) {
	fx := setup(t)
	tut := createTutor(t, fx.tutorRepo, "Aliya Tutor", "aliya", "aliya@dogerek.uz", "", nil, true)
	seedClub(fx, "c1", "Chess Club", tut.ID, 0)
	seedStudent(fx, "c1", "s1", "Aigerim Bekova", "2023001")

	token := getToken(t, tut)

	req, rec := newAuthRequest(http.MethodDelete, "/v1/clubs/c1/students/s1", token)
	fx.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("remove failed! code = %v", rec.Code)
	}

	req, rec = newAuthRequest(http.MethodDelete, "/v1/clubs/c1/students/s1", token)
	fx.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("removing a gone student; code = %v; want %v", rec.Code, http.StatusNotFound)
	}
}

func Test_clubApi_processApplication(t *testing.T) {
	fx := setup(t)
	tut := createTutor(t, fx.tutorRepo, "Aliya Tutor", "aliya", "aliya@dogerek.uz", "", nil, true)
	other := createTutor(t, fx.tutorRepo, "Bek Tutor", "bekzat", "bekzat@dogerek.uz", "", nil, true)
	seedClub(fx, "c1", "Chess Club", tut.ID, 1)

	aigerim := club.Student{ID: "s1", FullName: "Aigerim Bekova", StudentIDNumber: "2023001"}
	dana := club.Student{ID: "s3", FullName: "Dana Serikova", StudentIDNumber: "2024015"}
	seedApplication(fx, "a1", "c1", aigerim)
	seedApplication(fx, "a2", "c1", dana)

	approve := marchallObj(t, club.ProcessApplication{Action: "approve"})

	tests := []httpTest{
		{
			name:     "reject requires a reason",
			path:     "/v1/applications/a1/process",
			token:    getToken(t, tut),
			body:     marchallObj(t, club.ProcessApplication{Action: "reject"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "another tutor cannot process",
			path:     "/v1/applications/a1/process",
			token:    getToken(t, other),
			body:     approve,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "approve enrolls the student",
			path:     "/v1/applications/a1/process",
			token:    getToken(t, tut),
			body:     approve,
			wantCode: http.StatusOK,
		},
		{
			name:     "already processed",
			path:     "/v1/applications/a1/process",
			token:    getToken(t, tut),
			body:     approve,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "application already processed"}),
		},
		{
			name:     "club at capacity",
			path:     "/v1/applications/a2/process",
			token:    getToken(t, tut),
			body:     approve,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "club is at full capacity"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token, tt.body)
			fx.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	roster, err := fx.clubSvc.GetStudents(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetStudents() failed: %v", err)
	}
	if len(roster) != 1 || roster[0].ID != "s1" {
		t.Errorf("approve must enroll the applicant; roster = %+v", roster)
	}
}
