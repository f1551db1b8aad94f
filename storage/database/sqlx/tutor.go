package sqlxrepos

import (
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Shukurulla/dogerek-tutor/core/tutor"
)

type tutorRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	Phone        string         `db:"phone"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r tutorRow) toCore() tutor.Tutor {
	return tutor.Tutor{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		Phone:        r.Phone,
		IsActive:     r.IsActive,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

type tutorRepository struct {
	db *sqlx.DB
}

var _ tutor.Repository = (*tutorRepository)(nil)

func NewTutorRepository(db *sqlx.DB) *tutorRepository {
	return &tutorRepository{db: db}
}

func (repo *tutorRepository) CheckUsernameUniqueness(username, email string, excluded ...tutor.Tutor) error {
	exclIDs := make([]string, 0, len(excluded))
	for _, t := range excluded {
		exclIDs = append(exclIDs, t.ID)
	}

	const q = `
		SELECT username, email FROM tutor
		WHERE (username = $1 OR email = $2) AND NOT (id = ANY($3))`
	rows, err := repo.db.Queryx(q, username, email, pq.Array(exclIDs))
	if err != nil {
		return errors.Wrap(err, "checking tutor uniqueness")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var uname, mail string
		if err = rows.Scan(&uname, &mail); err != nil {
			return errors.Wrap(err, "checking tutor uniqueness")
		}
		if uname == username {
			return tutor.ErrUsernameExists
		}
		if mail == email {
			return tutor.ErrEmailExists
		}
	}
	return errors.Wrap(rows.Err(), "checking tutor uniqueness")
}

func (repo *tutorRepository) CreateTutor(t tutor.Tutor) (tutor.Tutor, error) {
	const q = `
		INSERT INTO tutor (id, name, username, email, phone, is_active, roles, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.Exec(q,
		t.ID, t.Name, t.Username, t.Email, t.Phone, t.IsActive,
		pq.StringArray(t.Roles), t.PasswordHash, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return tutor.Tutor{}, errors.Wrap(err, "creating tutor")
	}
	return t, nil
}

func (repo *tutorRepository) QueryAllTutors() ([]tutor.Tutor, error) {
	var rows []tutorRow
	if err := repo.db.Select(&rows, `SELECT * FROM tutor ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying tutors")
	}
	return rowsToTutors(rows), nil
}

func (repo *tutorRepository) GetTutorByID(id string) (tutor.Tutor, error) {
	return repo.get(`SELECT * FROM tutor WHERE id = $1`, id)
}

func (repo *tutorRepository) GetTutorByUsername(username string) (tutor.Tutor, error) {
	return repo.get(`SELECT * FROM tutor WHERE username = $1`, username)
}

func (repo *tutorRepository) GetTutorByEmail(email string) (tutor.Tutor, error) {
	return repo.get(`SELECT * FROM tutor WHERE email = $1`, email)
}

func (repo *tutorRepository) GetTutorByUsernameOrEmail(username string) (tutor.Tutor, error) {
	return repo.get(`SELECT * FROM tutor WHERE username = $1 OR email = $1`, username)
}

func (repo *tutorRepository) get(q string, args ...interface{}) (tutor.Tutor, error) {
	var row tutorRow
	if err := repo.db.Get(&row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return tutor.Tutor{}, tutor.ErrNotFound
		}
		return tutor.Tutor{}, errors.Wrap(err, "getting tutor")
	}
	return row.toCore(), nil
}

func (repo *tutorRepository) FilterTutors(filter tutor.QueryFilter) ([]tutor.Tutor, error) {
	q := `SELECT * FROM tutor WHERE 1=1`
	args := make([]interface{}, 0, 5)

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		q += ` AND (lower(name) LIKE $1 OR lower(username) LIKE $1 OR lower(email) LIKE $1)`
	}
	if len(filter.Roles) > 0 {
		prefixes := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			prefixes = append(prefixes, r+"%")
		}
		args = append(args, pq.Array(prefixes))
		q += ` AND EXISTS (SELECT 1 FROM unnest(roles) role WHERE role LIKE ANY($` + itoa(len(args)) + `))`
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		q += ` AND is_active = $` + itoa(len(args))
	}
	if !filter.CreatedFrom.IsZero() {
		args = append(args, filter.CreatedFrom.UTC())
		q += ` AND created_at >= $` + itoa(len(args))
	}
	if !filter.CreatedTo.IsZero() {
		args = append(args, filter.CreatedTo.UTC())
		q += ` AND created_at <= $` + itoa(len(args))
	}
	q += ` ORDER BY created_at`

	var rows []tutorRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering tutors")
	}
	return rowsToTutors(rows), nil
}

func (repo *tutorRepository) UpdateTutor(t tutor.Tutor, isActive *bool) (tutor.Tutor, error) {
	orig, err := repo.GetTutorByID(t.ID)
	if err != nil {
		return tutor.Tutor{}, err
	}

	// only save set fields
	if t.Roles != nil {
		orig.Roles = t.Roles
	}
	if t.PasswordHash != nil {
		orig.PasswordHash = t.PasswordHash
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	if t.Name != "" {
		orig.Name = t.Name
	}
	if t.Username != "" {
		orig.Username = t.Username
	}
	if t.Email != "" {
		orig.Email = t.Email
	}
	if t.Phone != "" {
		orig.Phone = t.Phone
	}
	orig.UpdatedAt = t.UpdatedAt

	const q = `
		UPDATE tutor
		SET name = $2, username = $3, email = $4, phone = $5, is_active = $6,
		    roles = $7, password_hash = $8, updated_at = $9
		WHERE id = $1`
	_, err = repo.db.Exec(q,
		orig.ID, orig.Name, orig.Username, orig.Email, orig.Phone, orig.IsActive,
		pq.StringArray(orig.Roles), orig.PasswordHash, orig.UpdatedAt)
	if err != nil {
		return tutor.Tutor{}, errors.Wrap(err, "updating tutor")
	}
	return orig, nil
}

func (repo *tutorRepository) SetLastLogin(id string, at time.Time) error {
	_, err := repo.db.Exec(`UPDATE tutor SET last_login = $2 WHERE id = $1`, id, at)
	return errors.Wrap(err, "setting last login")
}

func (repo *tutorRepository) DeleteTutorsByID(ids ...string) error {
	_, err := repo.db.Exec(`DELETE FROM tutor WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting tutors")
}

func rowsToTutors(rows []tutorRow) []tutor.Tutor {
	tutors := make([]tutor.Tutor, 0, len(rows))
	for _, r := range rows {
		tutors = append(tutors, r.toCore())
	}
	return tutors
}
