package club

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/Shukurulla/dogerek-tutor/core"
)

// Application statuses
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"

	ActionApprove = "approve"
	ActionReject  = "reject"
)

type (
	// Schedule describes when a club meets: ISO weekday numbers (1=Monday)
	// plus a daily time range.
	Schedule struct {
		WeekDays  []int  `json:"week_days"`
		StartTime string `json:"start_time"` // "15:00"
		EndTime   string `json:"end_time"`   // "17:00"
	}

	Club struct {
		ID            string      `json:"id"`
		Name          string      `json:"name"`
		Description   null.String `json:"description"`
		TutorID       string      `json:"tutor_id"`
		Capacity      int         `json:"capacity"` // 0 = unlimited
		Schedule      Schedule    `json:"schedule"`
		TotalStudents int         `json:"total_students"`
		CreatedAt     time.Time   `json:"created_at"` // UTC
		UpdatedAt     time.Time   `json:"updated_at"` // UTC
	}

	// Student is owned by the university roster; this module never mutates it.
	Student struct {
		ID              string      `json:"id"`
		FullName        string      `json:"full_name"`
		StudentIDNumber string      `json:"student_id_number"`
		Group           string      `json:"group"`
		Department      string      `json:"department"`
		Image           null.String `json:"image"`
		Phone           string      `json:"phone,omitempty"`
		Email           string      `json:"email,omitempty"`
	}

	Application struct {
		ID              string      `json:"id"`
		ClubID          string      `json:"club_id"`
		Student         Student     `json:"student"`
		Status          string      `json:"status"`
		RejectionReason null.String `json:"rejection_reason"`
		AppliedAt       time.Time   `json:"applied_at"`   // UTC
		ProcessedAt     null.Time   `json:"processed_at"` // UTC
	}
)

// UpdateClub defines what information a tutor may modify on their club.
type UpdateClub struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Capacity    *int   `json:"capacity" validate:"omitempty,min=0"`
	StartTime   string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime     string `json:"end_time" validate:"omitempty,datetime=15:04"`
	WeekDays    []int  `json:"week_days" validate:"omitempty,dive,min=1,max=7"`
}

func (uc *UpdateClub) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	uc.Description = core.CleanString(uc.Description)
	return validate.Struct(uc)
}

// ProcessApplication carries a tutor's decision on a pending application.
type ProcessApplication struct {
	Action          string `json:"action" validate:"required,oneof=approve reject"`
	RejectionReason string `json:"rejection_reason" validate:"required_if=Action reject"`
}

func (pa *ProcessApplication) Validate(validate *validator.Validate) error {
	pa.Action = core.CleanString(pa.Action, true /* lower */)
	pa.RejectionReason = core.CleanString(pa.RejectionReason)
	return validate.Struct(pa)
}
