package club

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrNotFound            = errors.New("club not found")
	ErrStudentNotFound     = errors.New("student not enrolled in this club")
	ErrApplicationNotFound = errors.New("application not found")
	ErrAlreadyProcessed    = errors.New("application already processed")
	ErrClubFull            = errors.New("club is at full capacity")
)

type (
	Repository interface {
		QueryClubsByTutor(ctx context.Context, tutorID string) ([]Club, error)
		GetClubByID(ctx context.Context, id string) (Club, error)
		UpdateClub(ctx context.Context, c Club) (Club, error)
		// GetClubStudents returns the current roster in enrollment order.
		GetClubStudents(ctx context.Context, clubID string) ([]Student, error)
		EnrollStudent(ctx context.Context, clubID, studentID string) error
		RemoveStudent(ctx context.Context, clubID, studentID string) error
		QueryApplications(ctx context.Context, tutorID, status string) ([]Application, error)
		GetApplicationByID(ctx context.Context, id string) (Application, error)
		UpdateApplication(ctx context.Context, app Application) (Application, error)
	}

	ServiceInterface interface {
		QueryByTutor(ctx context.Context, tutorID string) ([]Club, error)
		Get(ctx context.Context, id string) (Club, error)
		Update(ctx context.Context, id string, uc UpdateClub) (Club, error)
		GetStudents(ctx context.Context, clubID string) ([]Student, error)
		RemoveStudent(ctx context.Context, clubID, studentID string) error
		QueryApplications(ctx context.Context, tutorID, status string) ([]Application, error)
		GetApplication(ctx context.Context, id string) (Application, error)
		ProcessApplication(ctx context.Context, id string, pa ProcessApplication) (Application, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) QueryByTutor(ctx context.Context, tutorID string) ([]Club, error) {
	return svc.repo.QueryClubsByTutor(ctx, tutorID)
}

func (svc *Service) Get(ctx context.Context, id string) (Club, error) {
	return svc.repo.GetClubByID(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateClub) (Club, error) {
	c, err := svc.repo.GetClubByID(ctx, id)
	if err != nil {
		return Club{}, err
	}
	if uc.Name != "" {
		c.Name = uc.Name
	}
	if uc.Description != "" {
		c.Description = null.StringFrom(uc.Description)
	}
	if uc.Capacity != nil {
		c.Capacity = *uc.Capacity
	}
	if uc.StartTime != "" {
		c.Schedule.StartTime = uc.StartTime
	}
	if uc.EndTime != "" {
		c.Schedule.EndTime = uc.EndTime
	}
	if uc.WeekDays != nil {
		c.Schedule.WeekDays = uc.WeekDays
	}
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClub(ctx, c)
}

func (svc *Service) GetStudents(ctx context.Context, clubID string) ([]Student, error) {
	return svc.repo.GetClubStudents(ctx, clubID)
}

func (svc *Service) RemoveStudent(ctx context.Context, clubID, studentID string) error {
	return svc.repo.RemoveStudent(ctx, clubID, studentID)
}

func (svc *Service) QueryApplications(ctx context.Context, tutorID, status string) ([]Application, error) {
	return svc.repo.QueryApplications(ctx, tutorID, status)
}

func (svc *Service) GetApplication(ctx context.Context, id string) (Application, error) {
	return svc.repo.GetApplicationByID(ctx, id)
}

// ProcessApplication approves or rejects a pending application.
// Approval enrolls the student and fails with ErrClubFull when the club is
// at capacity; rejection records the reason.
func (svc *Service) ProcessApplication(ctx context.Context, id string, pa ProcessApplication) (Application, error) {
	app, err := svc.repo.GetApplicationByID(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.Status != ApplicationPending {
		return Application{}, ErrAlreadyProcessed
	}

	switch pa.Action {
	case ActionApprove:
		c, err := svc.repo.GetClubByID(ctx, app.ClubID)
		if err != nil {
			return Application{}, err
		}
		if c.Capacity > 0 {
			roster, err := svc.repo.GetClubStudents(ctx, app.ClubID)
			if err != nil {
				return Application{}, err
			}
			if len(roster) >= c.Capacity {
				return Application{}, ErrClubFull
			}
		}
		if err = svc.repo.EnrollStudent(ctx, app.ClubID, app.Student.ID); err != nil {
			return Application{}, err
		}
		app.Status = ApplicationApproved
	case ActionReject:
		app.Status = ApplicationRejected
		app.RejectionReason = null.StringFrom(pa.RejectionReason)
	}
	app.ProcessedAt = null.TimeFrom(time.Now().UTC())
	return svc.repo.UpdateApplication(ctx, app)
}
