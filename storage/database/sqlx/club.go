package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Shukurulla/dogerek-tutor/core/club"
)

func itoa(n int) string { return strconv.Itoa(n) }

type clubRow struct {
	ID            string        `db:"id"`
	Name          string        `db:"name"`
	Description   null.String   `db:"description"`
	TutorID       string        `db:"tutor_id"`
	Capacity      int           `db:"capacity"`
	WeekDays      pq.Int64Array `db:"week_days"`
	StartTime     string        `db:"start_time"`
	EndTime       string        `db:"end_time"`
	TotalStudents int           `db:"total_students"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

func (r clubRow) toCore() club.Club {
	days := make([]int, 0, len(r.WeekDays))
	for _, d := range r.WeekDays {
		days = append(days, int(d))
	}
	return club.Club{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		TutorID:     r.TutorID,
		Capacity:    r.Capacity,
		Schedule: club.Schedule{
			WeekDays:  days,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
		},
		TotalStudents: r.TotalStudents,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type studentRow struct {
	ID              string      `db:"id"`
	FullName        string      `db:"full_name"`
	StudentIDNumber string      `db:"student_id_number"`
	Group           string      `db:"group"`
	Department      string      `db:"department"`
	Image           null.String `db:"image"`
	Phone           string      `db:"phone"`
	Email           string      `db:"email"`
}

func (r studentRow) toCore() club.Student {
	return club.Student{
		ID:              r.ID,
		FullName:        r.FullName,
		StudentIDNumber: r.StudentIDNumber,
		Group:           r.Group,
		Department:      r.Department,
		Image:           r.Image,
		Phone:           r.Phone,
		Email:           r.Email,
	}
}

type applicationRow struct {
	ID              string      `db:"id"`
	ClubID          string      `db:"club_id"`
	Status          string      `db:"status"`
	RejectionReason null.String `db:"rejection_reason"`
	AppliedAt       time.Time   `db:"applied_at"`
	ProcessedAt     null.Time   `db:"processed_at"`

	studentRow `db:"student"`
}

const clubColumns = `
	c.id, c.name, c.description, c.tutor_id, c.capacity, c.week_days,
	c.start_time, c.end_time, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM enrollment e WHERE e.club_id = c.id) AS total_students`

type clubRepository struct {
	db *sqlx.DB
}

var _ club.Repository = (*clubRepository)(nil)

func NewClubRepository(db *sqlx.DB) *clubRepository {
	return &clubRepository{db: db}
}

func (repo *clubRepository) QueryClubsByTutor(ctx context.Context, tutorID string) ([]club.Club, error) {
	var rows []clubRow
	q := `SELECT ` + clubColumns + ` FROM club c WHERE c.tutor_id = $1 ORDER BY c.created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, tutorID); err != nil {
		return nil, errors.Wrap(err, "querying clubs")
	}
	clubs := make([]club.Club, 0, len(rows))
	for _, r := range rows {
		clubs = append(clubs, r.toCore())
	}
	return clubs, nil
}

func (repo *clubRepository) GetClubByID(ctx context.Context, id string) (club.Club, error) {
	var row clubRow
	q := `SELECT ` + clubColumns + ` FROM club c WHERE c.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return club.Club{}, club.ErrNotFound
		}
		return club.Club{}, errors.Wrap(err, "getting club")
	}
	return row.toCore(), nil
}

func (repo *clubRepository) UpdateClub(ctx context.Context, c club.Club) (club.Club, error) {
	days := make(pq.Int64Array, 0, len(c.Schedule.WeekDays))
	for _, d := range c.Schedule.WeekDays {
		days = append(days, int64(d))
	}
	const q = `
		UPDATE club
		SET name = $2, description = $3, capacity = $4, week_days = $5,
		    start_time = $6, end_time = $7, updated_at = $8
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		c.ID, c.Name, c.Description, c.Capacity, days,
		c.Schedule.StartTime, c.Schedule.EndTime, c.UpdatedAt)
	if err != nil {
		return club.Club{}, errors.Wrap(err, "updating club")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return club.Club{}, club.ErrNotFound
	}
	return repo.GetClubByID(ctx, c.ID)
}

func (repo *clubRepository) GetClubStudents(ctx context.Context, clubID string) ([]club.Student, error) {
	// clubs must exist even when empty
	if _, err := repo.GetClubByID(ctx, clubID); err != nil {
		return nil, err
	}

	var rows []studentRow
	const q = `
		SELECT s.id, s.full_name, s.student_id_number, s."group", s.department, s.image, s.phone, s.email
		FROM student s
		JOIN enrollment e ON e.student_id = s.id
		WHERE e.club_id = $1
		ORDER BY e.created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, clubID); err != nil {
		return nil, errors.Wrap(err, "querying club students")
	}
	students := make([]club.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.toCore())
	}
	return students, nil
}

func (repo *clubRepository) EnrollStudent(ctx context.Context, clubID, studentID string) error {
	const q = `
		INSERT INTO enrollment (club_id, student_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`
	_, err := repo.db.ExecContext(ctx, q, clubID, studentID, time.Now().UTC())
	return errors.Wrap(err, "enrolling student")
}

func (repo *clubRepository) RemoveStudent(ctx context.Context, clubID, studentID string) error {
	res, err := repo.db.ExecContext(ctx,
		`DELETE FROM enrollment WHERE club_id = $1 AND student_id = $2`, clubID, studentID)
	if err != nil {
		return errors.Wrap(err, "removing student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return club.ErrStudentNotFound
	}
	return nil
}

const applicationColumns = `
	a.id, a.club_id, a.status, a.rejection_reason, a.applied_at, a.processed_at,
	s.id AS "student.id", s.full_name AS "student.full_name",
	s.student_id_number AS "student.student_id_number", s."group" AS "student.group",
	s.department AS "student.department", s.image AS "student.image",
	s.phone AS "student.phone", s.email AS "student.email"`

func (repo *clubRepository) QueryApplications(ctx context.Context, tutorID, status string) ([]club.Application, error) {
	q := `
		SELECT ` + applicationColumns + `
		FROM application a
		JOIN student s ON s.id = a.student_id
		JOIN club c ON c.id = a.club_id
		WHERE c.tutor_id = $1`
	args := []interface{}{tutorID}
	if status != "" {
		args = append(args, status)
		q += ` AND a.status = $2`
	}
	q += ` ORDER BY a.applied_at`

	var rows []applicationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	apps := make([]club.Application, 0, len(rows))
	for _, r := range rows {
		apps = append(apps, appRowToCore(r))
	}
	return apps, nil
}

func (repo *clubRepository) GetApplicationByID(ctx context.Context, id string) (club.Application, error) {
	q := `
		SELECT ` + applicationColumns + `
		FROM application a
		JOIN student s ON s.id = a.student_id
		WHERE a.id = $1`
	var row applicationRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return club.Application{}, club.ErrApplicationNotFound
		}
		return club.Application{}, errors.Wrap(err, "getting application")
	}
	return appRowToCore(row), nil
}

func (repo *clubRepository) UpdateApplication(ctx context.Context, app club.Application) (club.Application, error) {
	const q = `
		UPDATE application
		SET status = $2, rejection_reason = $3, processed_at = $4
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, app.ID, app.Status, app.RejectionReason, app.ProcessedAt)
	if err != nil {
		return club.Application{}, errors.Wrap(err, "updating application")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return club.Application{}, club.ErrApplicationNotFound
	}
	return app, nil
}

func appRowToCore(r applicationRow) club.Application {
	return club.Application{
		ID:              r.ID,
		ClubID:          r.ClubID,
		Student:         r.studentRow.toCore(),
		Status:          r.Status,
		RejectionReason: r.RejectionReason,
		AppliedAt:       r.AppliedAt,
		ProcessedAt:     r.ProcessedAt,
	}
}
