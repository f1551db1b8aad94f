package tutor

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/Shukurulla/dogerek-tutor/core"
)

var (
	// errors
	ErrNotFound       = errors.New("tutor not found")
	ErrEmailExists    = errors.New("a tutor with this email already exists")
	ErrUsernameExists = errors.New("a tutor with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(username, email string, excluded ...Tutor) error
		CreateTutor(t Tutor) (Tutor, error)
		QueryAllTutors() ([]Tutor, error)
		GetTutorByID(id string) (Tutor, error)
		GetTutorByUsername(username string) (Tutor, error)
		GetTutorByEmail(email string) (Tutor, error)
		GetTutorByUsernameOrEmail(username string) (Tutor, error)
		// FilterTutors applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Tutor.Name,
		// Tutor.Username or Tutor.Email.
		FilterTutors(filter QueryFilter) ([]Tutor, error)
		UpdateTutor(t Tutor, isActive *bool) (Tutor, error)
		SetLastLogin(id string, at time.Time) error
		DeleteTutorsByID(ids ...string) error
	}

	ServiceInterface interface {
		CheckUniqueness(uname, email string, excluded ...Tutor) error
		Create(nt NewTutor) (Tutor, error)
		QueryAll() ([]Tutor, error)
		GetByID(id string) (Tutor, error)
		GetByUsername(uname string) (Tutor, error)
		GetByEmail(email string) (Tutor, error)
		GetByUsernameOrEmail(uname string) (Tutor, error)
		Filter(filter QueryFilter) ([]Tutor, error)
		Update(id string, ut UpdateTutor) (Tutor, error)
		SetLastLogin(t Tutor) error
		RequestPasswordReset(email string) error
		ResetPassword(rp ResetTutorPassword) (Tutor, error)
		Delete(ids ...string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, mailSvc: mailSvc}
}

func (svc *Service) CheckUniqueness(uname, email string, excluded ...Tutor) error {
	if err := svc.repo.CheckUsernameUniqueness(uname, email, excluded...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(nt NewTutor) (Tutor, error) {
	now := time.Now().UTC()
	roles := nt.Roles
	if len(roles) == 0 {
		roles = []string{RoleTutor}
	}
	t := Tutor{
		ID:        uuid.NewString(),
		Name:      nt.Name,
		Username:  nt.Username,
		Email:     nt.Email,
		Phone:     nt.Phone,
		IsActive:  true,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.SetPassword(nt.Password); err != nil {
		return Tutor{}, err
	}
	return svc.repo.CreateTutor(t)
}

func (svc *Service) QueryAll() ([]Tutor, error) {
	return svc.repo.QueryAllTutors()
}

func (svc *Service) GetByID(id string) (Tutor, error) {
	return svc.repo.GetTutorByID(id)
}

func (svc *Service) GetByUsername(uname string) (Tutor, error) {
	return svc.repo.GetTutorByUsername(core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByEmail(email string) (Tutor, error) {
	return svc.repo.GetTutorByEmail(core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(uname string) (Tutor, error) {
	return svc.repo.GetTutorByUsernameOrEmail(core.CleanString(uname, true /* lower */))
}

func (svc *Service) Filter(filter QueryFilter) ([]Tutor, error) {
	return svc.repo.FilterTutors(filter)
}

func (svc *Service) Update(id string, ut UpdateTutor) (Tutor, error) {
	t := Tutor{
		ID:        id,
		Name:      ut.Name,
		Username:  ut.Username,
		Email:     ut.Email,
		Phone:     ut.Phone,
		Roles:     ut.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	if ut.Password != "" {
		if err := t.SetPassword(ut.Password); err != nil {
			return Tutor{}, err
		}
	}
	return svc.repo.UpdateTutor(t, ut.IsActive)
}

func (svc *Service) SetLastLogin(t Tutor) error {
	return svc.repo.SetLastLogin(t.ID, time.Now().UTC())
}

// RequestPasswordReset emails a reset link to the account with this email.
// An unknown email is reported to the caller; handlers decide whether to
// reveal that to the requester.
func (svc *Service) RequestPasswordReset(email string) error {
	t, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	token, err := MakeToken(t)
	if err != nil {
		return err
	}

	if svc.mailSvc != nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: t.Name, Address: t.Email}},
			Subject:      fmt.Sprintf("Password reset on %s", core.Conf.AppName),
			TemplateName: "password-reset",
			TemplateData: struct {
				Tutor Tutor
				UID   string
				Token string
			}{t, EncodeUID(t), token},
		})
	}
	return nil
}

// ResetPassword verifies the token and sets the new password.
func (svc *Service) ResetPassword(rp ResetTutorPassword) (Tutor, error) {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return Tutor{}, core.NewValidationError(errInvalidToken, core.FieldError{Field: "uid", Error: errInvalidToken.Error()})
	}
	t, err := svc.GetByID(id)
	if err != nil {
		return Tutor{}, err
	}
	if err = verifyToken(t, rp.Token); err != nil {
		return Tutor{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if err = t.SetPassword(rp.Password); err != nil {
		return Tutor{}, err
	}
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTutor(t, nil)
}

func (svc *Service) Delete(ids ...string) error {
	return svc.repo.DeleteTutorsByID(ids...)
}
