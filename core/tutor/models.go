package tutor

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Shukurulla/dogerek-tutor/core"
)

// Roles
const (
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	RoleTutor = "tutor:"
)

var (
	AdminRoles = []string{RoleAdmin, RoleAdminOwner}
	TutorRoles = []string{RoleTutor}
	AllRoles   = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner: 30,
		RoleAdmin:      21,

		// Tutors: 20 - 1
		RoleTutor: 1,
	}

	Roles = []Role{
		{Name: "Tutor", Value: RoleTutor},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 3)
	all = append(all, AdminRoles...)
	all = append(all, TutorRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Tutor struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (t *Tutor) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	t.PasswordHash = hash
	return nil
}

func (t *Tutor) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(t.PasswordHash, []byte(pwd))
}

func (t *Tutor) RoleStartsWith(prefix string) bool {
	for _, role := range t.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (t *Tutor) IsAdmin() bool {
	return t.RoleStartsWith(RoleAdmin)
}

func (t *Tutor) IsTutor() bool {
	return t.RoleStartsWith(RoleTutor)
}

// NewTutor contains information needed to create a new Tutor.
type NewTutor struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Phone           string   `json:"phone"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nt *NewTutor) Validate(svc ServiceInterface) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Username = core.CleanString(nt.Username, true /* lower */)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Phone = core.CleanString(nt.Phone)

	if err := core.Validate.Struct(nt); err != nil {
		return err
	}
	return svc.CheckUniqueness(nt.Username, nt.Email)
}

// UpdateTutor defines what information may be provided to modify an existing Tutor.
type UpdateTutor struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Phone           string   `json:"phone"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (ut *UpdateTutor) Validate(orig Tutor, svc ServiceInterface) error {
	name := core.CleanString(ut.Name)
	if name != "" {
		ut.Name = name
	} else {
		ut.Name = orig.Name
	}

	uname := core.CleanString(ut.Username, true /* lower */)
	if uname != "" {
		ut.Username = uname
	} else {
		ut.Username = orig.Username
	}

	email := core.CleanString(ut.Email, true /* lower */)
	if email != "" {
		ut.Email = email
	} else {
		ut.Email = orig.Email
	}

	if err := core.Validate.Struct(ut); err != nil {
		return err
	}
	return svc.CheckUniqueness(ut.Username, ut.Email, orig)
}

type ResetTutorPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetTutorPassword) Validate() error { return core.Validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
