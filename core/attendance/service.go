package attendance

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pkg/errors"

	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/club"
)

type (
	// Repository persists attendance records. GetRecord reports absence as
	// (zero, false, nil); no record yet is not an error. QueryHistory makes
	// no ordering guarantee; callers sort defensively.
	Repository interface {
		GetRecord(ctx context.Context, clubID string, date SessionDate) (Record, bool, error)
		CreateRecord(ctx context.Context, nr NewRecord) (Record, error)
		UpdateRecord(ctx context.Context, recordID string, nr NewRecord) (Record, error)
		QueryHistory(ctx context.Context, clubID string, from, to SessionDate) ([]Record, error)
		AttachTelegramPost(ctx context.Context, recordID, link string) (Record, error)
		SetEditable(ctx context.Context, recordID string, editable bool) error
	}

	// RosterProvider yields a club's enrolled students; club.ErrNotFound for
	// an unknown club.
	RosterProvider interface {
		GetStudents(ctx context.Context, clubID string) ([]club.Student, error)
	}

	// StatsCache holds computed club statistics between dashboard loads.
	StatsCache interface {
		Get(ctx context.Context, key string) (ClubStatistics, bool)
		Set(ctx context.Context, key string, stats ClubStatistics)
		InvalidateClub(ctx context.Context, clubID string)
	}

	// EditContext is everything an editing session needs: the roster, the
	// record that may already exist, and the reconciled draft.
	EditContext struct {
		Roster   []club.Student `json:"roster"`
		Existing *Record        `json:"existing"`
		Draft    *Draft         `json:"draft"`
		Editable bool           `json:"editable"`
	}

	// HistoryPage is a club's records, newest first, with their aggregate.
	HistoryPage struct {
		Records    []Record   `json:"records"`
		Statistics Statistics `json:"statistics"`
	}

	// ClubStatistics is the dashboard view over a history range. The
	// server-held record store is the source of truth; these are
	// display-layer computations over it and a cached copy wins until the
	// next submission invalidates it.
	ClubStatistics struct {
		Statistics Statistics       `json:"statistics"`
		Students   []StudentSummary `json:"students"`
		Trend      []TrendPoint     `json:"trend"`
	}

	// WarningRow joins a low-attendance summary with the student it concerns.
	WarningRow struct {
		Student club.Student   `json:"student"`
		Summary StudentSummary `json:"summary"`
	}

	ServiceInterface interface {
		EditContext(ctx context.Context, clubID, rawDate string) (EditContext, error)
		Submit(ctx context.Context, nr NewRecord) (Record, error)
		History(ctx context.Context, clubID string, from, to SessionDate) (HistoryPage, error)
		ClubStatistics(ctx context.Context, clubID string, from, to SessionDate) (ClubStatistics, error)
		Warnings(ctx context.Context, clubID string, from, to SessionDate, threshold float64) ([]WarningRow, error)
		NotifyWarnings(ctx context.Context, clubName string, to mail.Address, rows []WarningRow, report *bytes.Buffer)
		AbsentStudents(ctx context.Context, clubID, rawDate string) ([]Row, error)
		AttachTelegramPost(ctx context.Context, recordID, link string) (Record, error)
		Reopen(ctx context.Context, recordID string) error
		ExportReport(ctx context.Context, clubName, clubID string, from, to SessionDate) (*bytes.Buffer, error)
	}

	Service struct {
		repo    Repository
		rosters RosterProvider
		cache   StatsCache
		mailSvc core.EmailService
	}
)

var _ ServiceInterface = (*Service)(nil)

// NewService wires the attendance workflows. cache and mailSvc are optional;
// nil disables caching and warning emails respectively.
func NewService(repo Repository, rosters RosterProvider, cache StatsCache, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, rosters: rosters, cache: cache, mailSvc: mailSvc}
}

func parseTargetDate(rawDate string) (SessionDate, error) {
	date, err := ParseSessionDate(rawDate)
	if err != nil {
		return SessionDate{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: err.Error()})
	}
	return date, nil
}

// EditContext builds what an editing session sees for a (club, date) target.
func (svc *Service) EditContext(ctx context.Context, clubID, rawDate string) (EditContext, error) {
	date, err := parseTargetDate(rawDate)
	if err != nil {
		return EditContext{}, err
	}

	roster, err := svc.rosters.GetStudents(ctx, clubID)
	if err != nil {
		return EditContext{}, errors.Wrap(err, "fetching roster")
	}

	var existing *Record
	rec, found, err := svc.repo.GetRecord(ctx, clubID, date)
	if err != nil {
		return EditContext{}, errors.Wrap(err, "fetching existing record")
	}
	if found {
		existing = &rec
	}

	return EditContext{
		Roster:   roster,
		Existing: existing,
		Draft:    BuildDraft(clubID, date, roster, existing),
		Editable: IsEditable(existing),
	}, nil
}

// Submit reconciles the payload against the current roster and server state,
// then persists it: one create when no record exists, one update when the
// backend explicitly reopened the record. A locked record fails fast with
// ErrAlreadyFinalized before any write is attempted.
func (svc *Service) Submit(ctx context.Context, nr NewRecord) (Record, error) {
	if nr.ClubID == "" || strings.TrimSpace(nr.Date) == "" {
		return Record{}, ErrMissingTarget
	}
	date, err := parseTargetDate(nr.Date)
	if err != nil {
		return Record{}, err
	}

	roster, err := svc.rosters.GetStudents(ctx, nr.ClubID)
	if err != nil {
		return Record{}, errors.Wrap(err, "fetching roster")
	}

	var existing *Record
	rec, found, err := svc.repo.GetRecord(ctx, nr.ClubID, date)
	if err != nil {
		return Record{}, errors.Wrap(err, "fetching existing record")
	}
	if found {
		existing = &rec
	}

	draft := BuildDraft(nr.ClubID, date, roster, existing)
	applyPayload(draft, nr)

	if existing != nil && existing.Editable {
		// out-of-band reopen: amend in place instead of creating
		updated, err := svc.repo.UpdateRecord(ctx, existing.ID, draft.Payload())
		if err != nil {
			return Record{}, errors.Wrap(err, "updating record")
		}
		svc.invalidateStats(ctx, nr.ClubID)
		return updated, nil
	}

	coord := NewCoordinator(svc.repo)
	coord.Begin(draft)
	persisted, err := coord.Submit(ctx, draft)
	if err != nil {
		return Record{}, err
	}
	svc.invalidateStats(ctx, nr.ClubID)
	return persisted, nil
}

// applyPayload lays the caller's entries over a reconciled draft. Entries
// for students no longer enrolled are dropped, same policy as BuildDraft.
func applyPayload(d *Draft, nr NewRecord) {
	for _, e := range nr.Students {
		if !d.SetPresence(e.Student, e.Present) {
			continue
		}
		if !e.Present {
			d.SetReason(e.Student, e.Reason.String)
		}
	}
	d.Notes = nr.Notes.String
	d.TelegramPostLink = nr.TelegramPostLink.String
}

// History returns a club's records newest first, with their aggregate.
// Records with unparseable dates are kept (raw date preserved) but sorted
// last; one bad record never aborts the list.
func (svc *Service) History(ctx context.Context, clubID string, from, to SessionDate) (HistoryPage, error) {
	records, err := svc.repo.QueryHistory(ctx, clubID, from, to)
	if err != nil {
		return HistoryPage{}, errors.Wrap(err, "querying history")
	}
	sorted := SortMostRecentFirst(records)
	return HistoryPage{Records: sorted, Statistics: Aggregate(sorted)}, nil
}

// ClubStatistics computes (or serves from cache) the dashboard statistics
// for a club over a date range.
func (svc *Service) ClubStatistics(ctx context.Context, clubID string, from, to SessionDate) (ClubStatistics, error) {
	key := statsKey(clubID, from, to)
	if svc.cache != nil {
		if stats, ok := svc.cache.Get(ctx, key); ok {
			return stats, nil
		}
	}

	records, err := svc.repo.QueryHistory(ctx, clubID, from, to)
	if err != nil {
		return ClubStatistics{}, errors.Wrap(err, "querying history")
	}
	sorted := SortMostRecentFirst(records)
	stats := ClubStatistics{
		Statistics: Aggregate(sorted),
		Students:   SummarizeStudents(sorted),
		Trend:      Trend(sorted),
	}
	if svc.cache != nil {
		svc.cache.Set(ctx, key, stats)
	}
	return stats, nil
}

// Warnings lists enrolled students whose attendance over the range falls
// below the threshold (default 75).
func (svc *Service) Warnings(ctx context.Context, clubID string, from, to SessionDate, threshold float64) ([]WarningRow, error) {
	records, err := svc.repo.QueryHistory(ctx, clubID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	roster, err := svc.rosters.GetStudents(ctx, clubID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching roster")
	}
	byID := make(map[string]club.Student, len(roster))
	for _, s := range roster {
		byID[s.ID] = s
	}

	rows := make([]WarningRow, 0)
	for _, sum := range Warnings(SummarizeStudents(records), threshold) {
		if s, ok := byID[sum.StudentID]; ok {
			rows = append(rows, WarningRow{Student: s, Summary: sum})
		}
	}
	return rows, nil
}

// NotifyWarnings emails the warning list to the tutor, with the xlsx report
// attached when one is given. No-op when no mail service is wired or there is
// nothing to report.
func (svc *Service) NotifyWarnings(ctx context.Context, clubName string, to mail.Address, rows []WarningRow, report *bytes.Buffer) {
	if svc.mailSvc == nil || len(rows) == 0 {
		return
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Students with low attendance in %s:\n\n", clubName)
	for _, row := range rows {
		fmt.Fprintf(&body, "- %s (%s): %.1f%% over %d sessions\n",
			row.Student.FullName, row.Student.StudentIDNumber, row.Summary.Percentage, row.Summary.Sessions)
	}

	msg := &core.EmailMessage{
		To:      []mail.Address{to},
		Subject: fmt.Sprintf("Attendance warnings: %s", clubName),
		BodyStr: body.String(),
	}
	if report != nil {
		// reads from an in-memory buffer cannot fail
		_ = msg.Attach(report, "attendance-report.xlsx", ReportContentType)
	}
	svc.mailSvc.SendMessages(msg)
}

// AbsentStudents lists who missed the session on a given date, with reasons.
func (svc *Service) AbsentStudents(ctx context.Context, clubID, rawDate string) ([]Row, error) {
	date, err := parseTargetDate(rawDate)
	if err != nil {
		return nil, err
	}
	rec, found, err := svc.repo.GetRecord(ctx, clubID, date)
	if err != nil {
		return nil, errors.Wrap(err, "fetching record")
	}
	if !found {
		return []Row{}, nil
	}
	roster, err := svc.rosters.GetStudents(ctx, clubID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching roster")
	}
	return AbsentStudents(rec, roster), nil
}

// AttachTelegramPost links the session's announcement post to a record.
func (svc *Service) AttachTelegramPost(ctx context.Context, recordID, link string) (Record, error) {
	link = core.CleanString(link)
	if link == "" {
		return Record{}, core.NewValidationError(nil, core.FieldError{Field: "link", Error: "this field is required"})
	}
	return svc.repo.AttachTelegramPost(ctx, recordID, link)
}

// Reopen is the out-of-band unlock: it marks a persisted record editable
// again so the next submission amends it instead of conflicting.
func (svc *Service) Reopen(ctx context.Context, recordID string) error {
	return svc.repo.SetEditable(ctx, recordID, true)
}

func (svc *Service) invalidateStats(ctx context.Context, clubID string) {
	if svc.cache != nil {
		svc.cache.InvalidateClub(ctx, clubID)
	}
}

func statsKey(clubID string, from, to SessionDate) string {
	return fmt.Sprintf("stats:%s:%s:%s", clubID, from.String(), to.String())
}
