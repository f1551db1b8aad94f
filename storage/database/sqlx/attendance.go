package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Shukurulla/dogerek-tutor/core/attendance"
)

const pqUniqueViolation = "23505"

type recordRow struct {
	ID               string      `db:"id"`
	ClubID           string      `db:"club_id"`
	SessionDate      time.Time   `db:"session_date"`
	Notes            null.String `db:"notes"`
	TelegramPostLink null.String `db:"telegram_post_link"`
	Editable         bool        `db:"editable"`
	CreatedAt        time.Time   `db:"created_at"`
}

func (r recordRow) toCore(entries []attendance.Entry) attendance.Record {
	return attendance.Record{
		ID:               r.ID,
		ClubID:           r.ClubID,
		Date:             attendance.NewSessionDate(r.SessionDate),
		Entries:          entries,
		Notes:            r.Notes,
		TelegramPostLink: r.TelegramPostLink,
		Editable:         r.Editable,
		CreatedAt:        r.CreatedAt,
	}
}

type entryRow struct {
	RecordID  string      `db:"record_id"`
	StudentID string      `db:"student_id"`
	Position  int         `db:"position"`
	Present   bool        `db:"present"`
	Reason    null.String `db:"reason"`
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, clubID string, date attendance.SessionDate) (attendance.Record, bool, error) {
	var row recordRow
	const q = `SELECT * FROM attendance_record WHERE club_id = $1 AND session_date = $2`
	if err := repo.db.GetContext(ctx, &row, q, clubID, date.Parsed); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Record{}, false, nil
		}
		return attendance.Record{}, false, errors.Wrap(err, "getting attendance record")
	}

	entries, err := repo.entries(ctx, row.ID)
	if err != nil {
		return attendance.Record{}, false, err
	}
	return row.toCore(entries), true, nil
}

func (repo *attendanceRepository) entries(ctx context.Context, recordID string) ([]attendance.Entry, error) {
	var rows []entryRow
	const q = `SELECT * FROM attendance_entry WHERE record_id = $1 ORDER BY position`
	if err := repo.db.SelectContext(ctx, &rows, q, recordID); err != nil {
		return nil, errors.Wrap(err, "querying attendance entries")
	}
	entries := make([]attendance.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, attendance.Entry{StudentID: r.StudentID, Present: r.Present, Reason: r.Reason})
	}
	return entries, nil
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, nr attendance.NewRecord) (attendance.Record, error) {
	date, err := attendance.ParseSessionDate(nr.Date)
	if err != nil {
		return attendance.Record{}, err
	}

	row := recordRow{
		ID:               uuid.NewString(),
		ClubID:           nr.ClubID,
		SessionDate:      date.Parsed,
		Notes:            nr.Notes,
		TelegramPostLink: nr.TelegramPostLink,
		Editable:         false, // submitted records lock immediately
		CreatedAt:        time.Now().UTC(),
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO attendance_record (id, club_id, session_date, notes, telegram_post_link, editable, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.ExecContext(ctx, q,
		row.ID, row.ClubID, row.SessionDate, row.Notes, row.TelegramPostLink, row.Editable, row.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
			return attendance.Record{}, attendance.ErrConflict
		}
		return attendance.Record{}, errors.Wrap(err, "creating attendance record")
	}

	entries, err := insertEntries(ctx, tx, row.ID, nr.Students)
	if err != nil {
		return attendance.Record{}, err
	}
	if err = tx.Commit(); err != nil {
		return attendance.Record{}, errors.Wrap(err, "committing tx")
	}
	return row.toCore(entries), nil
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, recordID string, nr attendance.NewRecord) (attendance.Record, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	const q = `UPDATE attendance_record SET notes = $2, telegram_post_link = $3, editable = false WHERE id = $1`
	res, err := tx.ExecContext(ctx, q, recordID, nr.Notes, nr.TelegramPostLink)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "updating attendance record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.Record{}, attendance.ErrMissingTarget
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM attendance_entry WHERE record_id = $1`, recordID); err != nil {
		return attendance.Record{}, errors.Wrap(err, "clearing attendance entries")
	}
	if _, err = insertEntries(ctx, tx, recordID, nr.Students); err != nil {
		return attendance.Record{}, err
	}
	if err = tx.Commit(); err != nil {
		return attendance.Record{}, errors.Wrap(err, "committing tx")
	}
	return repo.getByID(ctx, recordID)
}

func (repo *attendanceRepository) QueryHistory(ctx context.Context, clubID string, from, to attendance.SessionDate) ([]attendance.Record, error) {
	q := `SELECT * FROM attendance_record WHERE club_id = $1`
	args := []interface{}{clubID}
	if from.Valid() {
		args = append(args, from.Parsed)
		q += ` AND session_date >= $` + itoa(len(args))
	}
	if to.Valid() {
		args = append(args, to.Parsed)
		q += ` AND session_date <= $` + itoa(len(args))
	}

	var rows []recordRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance history")
	}

	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		entries, err := repo.entries(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		records = append(records, row.toCore(entries))
	}
	return records, nil
}

func (repo *attendanceRepository) AttachTelegramPost(ctx context.Context, recordID, link string) (attendance.Record, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE attendance_record SET telegram_post_link = $2 WHERE id = $1`, recordID, link)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "attaching telegram post")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.Record{}, attendance.ErrMissingTarget
	}
	return repo.getByID(ctx, recordID)
}

func (repo *attendanceRepository) SetEditable(ctx context.Context, recordID string, editable bool) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE attendance_record SET editable = $2 WHERE id = $1`, recordID, editable)
	if err != nil {
		return errors.Wrap(err, "setting record editability")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.ErrMissingTarget
	}
	return nil
}

func (repo *attendanceRepository) getByID(ctx context.Context, recordID string) (attendance.Record, error) {
	var row recordRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM attendance_record WHERE id = $1`, recordID); err != nil {
		return attendance.Record{}, errors.Wrap(err, "getting attendance record")
	}
	entries, err := repo.entries(ctx, row.ID)
	if err != nil {
		return attendance.Record{}, err
	}
	return row.toCore(entries), nil
}

func insertEntries(ctx context.Context, tx *sqlx.Tx, recordID string, students []attendance.NewEntry) ([]attendance.Entry, error) {
	const q = `
		INSERT INTO attendance_entry (record_id, student_id, position, present, reason)
		VALUES (:record_id, :student_id, :position, :present, :reason)`

	entries := make([]attendance.Entry, 0, len(students))
	rows := make([]entryRow, 0, len(students))
	for i, s := range students {
		rows = append(rows, entryRow{
			RecordID:  recordID,
			StudentID: s.Student,
			Position:  i,
			Present:   s.Present,
			Reason:    s.Reason,
		})
		entries = append(entries, attendance.Entry{StudentID: s.Student, Present: s.Present, Reason: s.Reason})
	}
	if len(rows) > 0 {
		if _, err := tx.NamedExecContext(ctx, q, rows); err != nil {
			return nil, errors.Wrap(err, "inserting attendance entries")
		}
	}
	return entries, nil
}
