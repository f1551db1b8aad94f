package dummydb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/Shukurulla/dogerek-tutor/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, clubID string, date attendance.SessionDate) (attendance.Record, bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rec := range repo.db.records {
		if rec.ClubID == clubID && rec.Date.Equal(date) {
			return *rec, true, nil
		}
	}
	return attendance.Record{}, false, nil
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, nr attendance.NewRecord) (attendance.Record, error) {
	date, err := attendance.ParseSessionDate(nr.Date)
	if err != nil {
		return attendance.Record{}, err
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	// at most one record per (club, date)
	for _, rec := range repo.db.records {
		if rec.ClubID == nr.ClubID && rec.Date.Equal(date) {
			return attendance.Record{}, attendance.ErrConflict
		}
	}

	rec := attendance.Record{
		ID:               uuid.NewString(),
		ClubID:           nr.ClubID,
		Date:             date,
		Entries:          entriesFromPayload(nr),
		Notes:            nr.Notes,
		TelegramPostLink: nr.TelegramPostLink,
		Editable:         false, // submitted records lock immediately
		CreatedAt:        time.Now().UTC(),
	}
	repo.db.records[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, recordID string, nr attendance.NewRecord) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec, ok := repo.db.records[recordID]
	if !ok {
		return attendance.Record{}, attendance.ErrMissingTarget
	}
	rec.Entries = entriesFromPayload(nr)
	rec.Notes = nr.Notes
	rec.TelegramPostLink = nr.TelegramPostLink
	rec.Editable = false // amended records lock again
	return *rec, nil
}

func (repo *attendanceRepository) QueryHistory(ctx context.Context, clubID string, from, to attendance.SessionDate) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	// map iteration order; callers sort
	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.records {
		if rec.ClubID != clubID {
			continue
		}
		if from.Valid() && rec.Date.Before(from) {
			continue
		}
		if to.Valid() && to.Before(rec.Date) {
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (repo *attendanceRepository) AttachTelegramPost(ctx context.Context, recordID, link string) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec, ok := repo.db.records[recordID]
	if !ok {
		return attendance.Record{}, attendance.ErrMissingTarget
	}
	rec.TelegramPostLink = null.StringFrom(link)
	return *rec, nil
}

func (repo *attendanceRepository) SetEditable(ctx context.Context, recordID string, editable bool) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec, ok := repo.db.records[recordID]
	if !ok {
		return attendance.ErrMissingTarget
	}
	rec.Editable = editable
	return nil
}

func entriesFromPayload(nr attendance.NewRecord) []attendance.Entry {
	entries := make([]attendance.Entry, 0, len(nr.Students))
	for _, s := range nr.Students {
		entries = append(entries, attendance.Entry{StudentID: s.Student, Present: s.Present, Reason: s.Reason})
	}
	return entries
}
