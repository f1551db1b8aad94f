package dummydb

import (
	"context"
	"sort"

	"github.com/Shukurulla/dogerek-tutor/core/club"
)

type clubRepository struct {
	db *clubTable
}

var _ club.Repository = (*clubRepository)(nil) // interface compliance check

// NewClubRepository returns the concrete type; tests seed it via AddClub and
// AddApplication.
func NewClubRepository(db *DB) *clubRepository {
	return &clubRepository{db: db.club}
}

// AddClub seeds a club; rosters and applications start empty.
// The admin surface and tests use it, regular flows never create clubs.
func (repo *clubRepository) AddClub(c club.Club) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.clubs[c.ID] = &c
}

// AddStudent seeds an enrollment directly, bypassing the application flow.
func (repo *clubRepository) AddStudent(clubID string, s club.Student) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.rosters[clubID] = append(repo.db.rosters[clubID], s)
}

// AddApplication seeds a pending application.
func (repo *clubRepository) AddApplication(app club.Application) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.applications[app.ID] = &app
}

func (repo *clubRepository) QueryClubsByTutor(ctx context.Context, tutorID string) ([]club.Club, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	clubs := make([]club.Club, 0)
	for _, c := range repo.db.clubs {
		if c.TutorID == tutorID {
			cc := *c
			cc.TotalStudents = len(repo.db.rosters[c.ID])
			clubs = append(clubs, cc)
		}
	}
	sort.Slice(clubs, func(i, j int) bool { return clubs[i].CreatedAt.Before(clubs[j].CreatedAt) })
	return clubs, nil
}

func (repo *clubRepository) GetClubByID(ctx context.Context, id string) (club.Club, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.clubs[id]; ok {
		cc := *c
		cc.TotalStudents = len(repo.db.rosters[id])
		return cc, nil
	}
	return club.Club{}, club.ErrNotFound
}

func (repo *clubRepository) UpdateClub(ctx context.Context, c club.Club) (club.Club, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.clubs[c.ID]; !ok {
		return club.Club{}, club.ErrNotFound
	}
	repo.db.clubs[c.ID] = &c
	return c, nil
}

func (repo *clubRepository) GetClubStudents(ctx context.Context, clubID string) ([]club.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if _, ok := repo.db.clubs[clubID]; !ok {
		return nil, club.ErrNotFound
	}
	roster := repo.db.rosters[clubID]
	out := make([]club.Student, len(roster))
	copy(out, roster)
	return out, nil
}

func (repo *clubRepository) EnrollStudent(ctx context.Context, clubID, studentID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.clubs[clubID]; !ok {
		return club.ErrNotFound
	}
	for _, s := range repo.db.rosters[clubID] {
		if s.ID == studentID {
			return nil // already enrolled
		}
	}

	// the student snapshot comes from the application, if any
	student := club.Student{ID: studentID}
	for _, app := range repo.db.applications {
		if app.Student.ID == studentID {
			student = app.Student
			break
		}
	}
	repo.db.rosters[clubID] = append(repo.db.rosters[clubID], student)
	return nil
}

func (repo *clubRepository) RemoveStudent(ctx context.Context, clubID, studentID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	roster := repo.db.rosters[clubID]
	for i, s := range roster {
		if s.ID == studentID {
			repo.db.rosters[clubID] = append(roster[:i], roster[i+1:]...)
			return nil
		}
	}
	return club.ErrStudentNotFound
}

func (repo *clubRepository) QueryApplications(ctx context.Context, tutorID, status string) ([]club.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	apps := make([]club.Application, 0)
	for _, app := range repo.db.applications {
		c, ok := repo.db.clubs[app.ClubID]
		if !ok || c.TutorID != tutorID {
			continue
		}
		if status != "" && app.Status != status {
			continue
		}
		apps = append(apps, *app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].AppliedAt.Before(apps[j].AppliedAt) })
	return apps, nil
}

func (repo *clubRepository) GetApplicationByID(ctx context.Context, id string) (club.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if app, ok := repo.db.applications[id]; ok {
		return *app, nil
	}
	return club.Application{}, club.ErrApplicationNotFound
}

func (repo *clubRepository) UpdateApplication(ctx context.Context, app club.Application) (club.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.applications[app.ID]; !ok {
		return club.Application{}, club.ErrApplicationNotFound
	}
	repo.db.applications[app.ID] = &app
	return app, nil
}
