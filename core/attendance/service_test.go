package attendance

import (
	"bytes"
	"context"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/club"
)

type fakeRepo struct {
	records map[string]Record // keyed by clubID + "|" + date
	creates int
	updates int
}

func newFakeRepo() *fakeRepo { return &fakeRepo{records: make(map[string]Record)} }

func (r *fakeRepo) key(clubID string, date SessionDate) string { return clubID + "|" + date.String() }

func (r *fakeRepo) GetRecord(ctx context.Context, clubID string, date SessionDate) (Record, bool, error) {
	rec, ok := r.records[r.key(clubID, date)]
	return rec, ok, nil
}

func (r *fakeRepo) CreateRecord(ctx context.Context, nr NewRecord) (Record, error) {
	date, _ := ParseSessionDate(nr.Date)
	if _, ok := r.records[r.key(nr.ClubID, date)]; ok {
		return Record{}, ErrConflict
	}
	r.creates++
	rec := Record{ID: "r1", ClubID: nr.ClubID, Date: date, Notes: nr.Notes, TelegramPostLink: nr.TelegramPostLink}
	for _, e := range nr.Students {
		rec.Entries = append(rec.Entries, Entry{StudentID: e.Student, Present: e.Present, Reason: e.Reason})
	}
	r.records[r.key(nr.ClubID, date)] = rec
	return rec, nil
}

func (r *fakeRepo) UpdateRecord(ctx context.Context, recordID string, nr NewRecord) (Record, error) {
	r.updates++
	date, _ := ParseSessionDate(nr.Date)
	rec := r.records[r.key(nr.ClubID, date)]
	rec.Notes = nr.Notes
	rec.Entries = nil
	for _, e := range nr.Students {
		rec.Entries = append(rec.Entries, Entry{StudentID: e.Student, Present: e.Present, Reason: e.Reason})
	}
	r.records[r.key(nr.ClubID, date)] = rec
	return rec, nil
}

func (r *fakeRepo) QueryHistory(ctx context.Context, clubID string, from, to SessionDate) ([]Record, error) {
	var out []Record
	for _, rec := range r.records {
		if rec.ClubID == clubID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) AttachTelegramPost(ctx context.Context, recordID, link string) (Record, error) {
	for k, rec := range r.records {
		if rec.ID == recordID {
			rec.TelegramPostLink = null.StringFrom(link)
			r.records[k] = rec
			return rec, nil
		}
	}
	return Record{}, ErrMissingTarget
}

func (r *fakeRepo) SetEditable(ctx context.Context, recordID string, editable bool) error {
	for k, rec := range r.records {
		if rec.ID == recordID {
			rec.Editable = editable
			r.records[k] = rec
			return nil
		}
	}
	return nil
}

type fakeRosters struct{ roster []club.Student }

func (f *fakeRosters) GetStudents(ctx context.Context, clubID string) ([]club.Student, error) {
	return f.roster, nil
}

type fakeCache struct {
	store         map[string]ClubStatistics
	invalidations int
}

func newFakeCache() *fakeCache { return &fakeCache{store: make(map[string]ClubStatistics)} }

func (c *fakeCache) Get(ctx context.Context, key string) (ClubStatistics, bool) {
	s, ok := c.store[key]
	return s, ok
}
func (c *fakeCache) Set(ctx context.Context, key string, stats ClubStatistics) { c.store[key] = stats }
func (c *fakeCache) InvalidateClub(ctx context.Context, clubID string) {
	c.invalidations++
	for k := range c.store {
		delete(c.store, k)
	}
}

func testService(t *testing.T) (*Service, *fakeRepo, *fakeCache) {
	t.Helper()
	repo := newFakeRepo()
	cache := newFakeCache()
	return NewService(repo, &fakeRosters{roster: testRoster}, cache, nil), repo, cache
}

func submitPayload() NewRecord {
	return NewRecord{
		ClubID: "c1",
		Date:   "2026-03-15",
		Students: []NewEntry{
			{Student: "s1", Present: true},
			{Student: "s2", Present: false, Reason: null.StringFrom("sick")},
		},
	}
}

func TestServiceSubmitCreates(t *testing.T) {
	svc, repo, cache := testService(t)

	rec, err := svc.Submit(context.Background(), submitPayload())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if repo.creates != 1 || repo.updates != 0 {
		t.Errorf("creates/updates = %d/%d, want 1/0", repo.creates, repo.updates)
	}
	// roster members absent from the payload default to present
	if len(rec.Entries) != len(testRoster) {
		t.Fatalf("len(Entries) = %d, want %d", len(rec.Entries), len(testRoster))
	}
	for _, e := range rec.Entries {
		switch e.StudentID {
		case "s2":
			if e.Present || e.Reason.String != "sick" {
				t.Errorf("s2 entry = %+v", e)
			}
		default:
			if !e.Present {
				t.Errorf("%s entry = %+v, want default present", e.StudentID, e)
			}
		}
	}
	if cache.invalidations != 1 {
		t.Errorf("invalidations = %d, want 1", cache.invalidations)
	}
}

func TestServiceSubmitMissingTarget(t *testing.T) {
	svc, repo, _ := testService(t)

	nr := submitPayload()
	nr.ClubID = ""
	if _, err := svc.Submit(context.Background(), nr); err != ErrMissingTarget {
		t.Errorf("Submit() error = %v, want %v", err, ErrMissingTarget)
	}

	nr = submitPayload()
	nr.Date = "  "
	if _, err := svc.Submit(context.Background(), nr); err != ErrMissingTarget {
		t.Errorf("Submit() error = %v, want %v", err, ErrMissingTarget)
	}

	nr = submitPayload()
	nr.Date = "not-a-date"
	if _, err := svc.Submit(context.Background(), nr); !core.IsValidationError(err) {
		t.Errorf("Submit() error = %v, want validation error", err)
	}

	if repo.creates != 0 {
		t.Errorf("creates = %d, want 0; preconditions fail before any write", repo.creates)
	}
}

func TestServiceSubmitLockedRecord(t *testing.T) {
	svc, repo, _ := testService(t)

	if _, err := svc.Submit(context.Background(), submitPayload()); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	// persisted records are locked until the backend reopens them
	if _, err := svc.Submit(context.Background(), submitPayload()); err != ErrAlreadyFinalized {
		t.Fatalf("second Submit() error = %v, want %v", err, ErrAlreadyFinalized)
	}
	if repo.creates != 1 {
		t.Errorf("creates = %d, want 1; locked records fail before the write", repo.creates)
	}
}

func TestServiceSubmitAmendsReopened(t *testing.T) {
	svc, repo, _ := testService(t)

	rec, err := svc.Submit(context.Background(), submitPayload())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err = svc.Reopen(context.Background(), rec.ID); err != nil {
		t.Fatalf("Reopen() error = %v", err)
	}

	nr := submitPayload()
	nr.Students[1].Present = true
	nr.Students[1].Reason = null.String{}
	updated, err := svc.Submit(context.Background(), nr)
	if err != nil {
		t.Fatalf("amend Submit() error = %v", err)
	}
	if repo.creates != 1 || repo.updates != 1 {
		t.Errorf("creates/updates = %d/%d, want 1/1", repo.creates, repo.updates)
	}
	for _, e := range updated.Entries {
		if e.StudentID == "s2" && !e.Present {
			t.Errorf("s2 still absent after amendment: %+v", e)
		}
	}
}

func TestServiceEditContext(t *testing.T) {
	svc, _, _ := testService(t)

	ec, err := svc.EditContext(context.Background(), "c1", "15.03.2026")
	if err != nil {
		t.Fatalf("EditContext() error = %v", err)
	}
	if ec.Existing != nil {
		t.Errorf("Existing = %+v, want nil", ec.Existing)
	}
	if !ec.Editable {
		t.Errorf("Editable = false for a fresh target")
	}
	if len(ec.Draft.Entries) != len(testRoster) {
		t.Errorf("draft entries = %d, want %d", len(ec.Draft.Entries), len(testRoster))
	}

	if _, err = svc.EditContext(context.Background(), "c1", "garbage"); !core.IsValidationError(err) {
		t.Errorf("EditContext() error = %v, want validation error", err)
	}
}

func TestServiceClubStatisticsCaches(t *testing.T) {
	svc, _, cache := testService(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, submitPayload()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	from := NewSessionDate(mustDate(t, "2026-03-01"))
	to := NewSessionDate(mustDate(t, "2026-03-31"))
	stats, err := svc.ClubStatistics(ctx, "c1", from, to)
	if err != nil {
		t.Fatalf("ClubStatistics() error = %v", err)
	}
	if stats.Statistics.TotalSessions != 1 {
		t.Errorf("TotalSessions = %d, want 1", stats.Statistics.TotalSessions)
	}
	if len(cache.store) != 1 {
		t.Errorf("cache entries = %d, want 1", len(cache.store))
	}

	// a new submission invalidates the cached copy
	nr := submitPayload()
	nr.Date = "2026-03-16"
	if _, err = svc.Submit(ctx, nr); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(cache.store) != 0 {
		t.Errorf("cache entries = %d after submit, want 0", len(cache.store))
	}
}

func TestServiceAbsentStudents(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	rows, err := svc.AbsentStudents(ctx, "c1", "2026-03-15")
	if err != nil {
		t.Fatalf("AbsentStudents() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %+v for a date with no record, want empty", rows)
	}

	if _, err = svc.Submit(ctx, submitPayload()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	rows, err = svc.AbsentStudents(ctx, "c1", "15.03.2026")
	if err != nil {
		t.Fatalf("AbsentStudents() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Student.ID != "s2" {
		t.Errorf("rows = %+v, want only s2", rows)
	}
}

func TestServiceAttachTelegramPost(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	rec, err := svc.Submit(ctx, submitPayload())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if _, err = svc.AttachTelegramPost(ctx, rec.ID, "   "); !core.IsValidationError(err) {
		t.Errorf("AttachTelegramPost() error = %v, want validation error", err)
	}

	updated, err := svc.AttachTelegramPost(ctx, rec.ID, "https://t.me/club/7")
	if err != nil {
		t.Fatalf("AttachTelegramPost() error = %v", err)
	}
	if updated.TelegramPostLink.String != "https://t.me/club/7" {
		t.Errorf("TelegramPostLink = %q", updated.TelegramPostLink.String)
	}
}

type fakeMail struct{ sent []*core.EmailMessage }

func (f *fakeMail) SendMessages(messages ...*core.EmailMessage) {
	f.sent = append(f.sent, messages...)
}

func TestServiceNotifyWarnings(t *testing.T) {
	ctx := context.Background()
	to := mail.Address{Name: "aliya", Address: "aliya@dogerek.uz"}
	rows := []WarningRow{{
		Student: club.Student{ID: "s2", FullName: "Botagoz Serik", StudentIDNumber: "2023002"},
		Summary: StudentSummary{StudentID: "s2", Sessions: 3, Attended: 1, Percentage: 33.3, Band: BandLow},
	}}

	t.Run("sends list with report attached", func(t *testing.T) {
		mailSvc := &fakeMail{}
		svc := NewService(newFakeRepo(), &fakeRosters{}, nil, mailSvc)

		svc.NotifyWarnings(ctx, "Chess Club", to, rows, bytes.NewBufferString("workbook"))
		if len(mailSvc.sent) != 1 {
			t.Fatalf("sent %d messages, want 1", len(mailSvc.sent))
		}
		msg := mailSvc.sent[0]
		if msg.Subject != "Attendance warnings: Chess Club" {
			t.Errorf("Subject = %q", msg.Subject)
		}
		if !strings.Contains(msg.BodyStr, "Botagoz Serik (2023002)") {
			t.Errorf("BodyStr = %q, want student line", msg.BodyStr)
		}
		if len(msg.Attachments) != 1 {
			t.Fatalf("attachments = %d, want 1", len(msg.Attachments))
		}
		at := msg.Attachments[0]
		if at.Filename != "attendance-report.xlsx" || at.ContentType != ReportContentType {
			t.Errorf("attachment = %q (%s)", at.Filename, at.ContentType)
		}
	})

	t.Run("no report still sends", func(t *testing.T) {
		mailSvc := &fakeMail{}
		svc := NewService(newFakeRepo(), &fakeRosters{}, nil, mailSvc)

		svc.NotifyWarnings(ctx, "Chess Club", to, rows, nil)
		if len(mailSvc.sent) != 1 {
			t.Fatalf("sent %d messages, want 1", len(mailSvc.sent))
		}
		if len(mailSvc.sent[0].Attachments) != 0 {
			t.Errorf("attachments = %d, want none", len(mailSvc.sent[0].Attachments))
		}
	})

	t.Run("nothing to report", func(t *testing.T) {
		mailSvc := &fakeMail{}
		svc := NewService(newFakeRepo(), &fakeRosters{}, nil, mailSvc)

		svc.NotifyWarnings(ctx, "Chess Club", to, nil, nil)
		if len(mailSvc.sent) != 0 {
			t.Errorf("sent %d messages, want none", len(mailSvc.sent))
		}
	})

	t.Run("no mail service wired", func(t *testing.T) {
		svc := NewService(newFakeRepo(), &fakeRosters{}, nil, nil)
		svc.NotifyWarnings(ctx, "Chess Club", to, rows, nil)
	})
}

func mustDate(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := ParseSessionDate(raw)
	if err != nil {
		t.Fatalf("ParseSessionDate(%q) error = %v", raw, err)
	}
	return d.Parsed
}
