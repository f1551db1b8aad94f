package attendance

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/club"
)

type (
	// Entry records one student's presence for one session.
	// Reason is meaningful only when Present is false.
	Entry struct {
		StudentID string      `json:"student"`
		Present   bool        `json:"present"`
		Reason    null.String `json:"reason"`
	}

	// Record is one session's attendance for one club on one calendar date.
	// Once persisted, the (ClubID, Date) pair is immutable unless the backend
	// marked the record editable.
	Record struct {
		ID               string      `json:"id"`
		ClubID           string      `json:"club_id"`
		Date             SessionDate `json:"date"`
		Entries          []Entry     `json:"students"` // student insertion order
		Notes            null.String `json:"notes"`
		TelegramPostLink null.String `json:"telegram_post_link"`
		Editable         bool        `json:"editable"`
		CreatedAt        time.Time   `json:"created_at"` // UTC
	}

	// NewRecord is the submission payload: all entries at once, blanks
	// normalized to null before transmission.
	NewRecord struct {
		ClubID           string      `json:"club_id" validate:"required"`
		Date             string      `json:"date" validate:"required"`
		Students         []NewEntry  `json:"students" validate:"required,dive"`
		Notes            null.String `json:"notes"`
		TelegramPostLink null.String `json:"telegram_post_link" validate:"omitempty,url"`
	}

	NewEntry struct {
		Student string      `json:"student" validate:"required"`
		Present bool        `json:"present"`
		Reason  null.String `json:"reason"`
	}

	// Draft is a mutable, not-yet-submitted record owned by one editing
	// session. Entries and Roster are parallel, in roster order.
	Draft struct {
		ClubID           string         `json:"club_id"`
		Date             SessionDate    `json:"date"`
		Roster           []club.Student `json:"roster"`
		Entries          []Entry        `json:"entries"`
		Notes            string         `json:"notes"`
		TelegramPostLink string         `json:"telegram_post_link"`

		// finalized marks a draft reconciled from a locked record; the
		// coordinator refuses to submit it.
		finalized bool
	}

	// Row pairs a roster student with their draft entry, the shape an
	// editing surface renders.
	Row struct {
		Student club.Student `json:"student"`
		Entry   Entry        `json:"entry"`
	}
)

func (nr *NewRecord) Validate() error {
	nr.ClubID = core.CleanString(nr.ClubID)
	nr.Date = core.CleanString(nr.Date)
	nr.Notes = nullFromBlank(nr.Notes.String)
	nr.TelegramPostLink = nullFromBlank(nr.TelegramPostLink.String)
	return core.Validate.Struct(nr)
}

func (r Record) PresentCount() int {
	var n int
	for _, e := range r.Entries {
		if e.Present {
			n++
		}
	}
	return n
}

func (r Record) AbsentCount() int { return len(r.Entries) - r.PresentCount() }

// Finalized reports whether this draft was built from a locked record.
func (d *Draft) Finalized() bool { return d.finalized }

func (d *Draft) entryIndex(studentID string) int {
	for i := range d.Entries {
		if d.Entries[i].StudentID == studentID {
			return i
		}
	}
	return -1
}

func (d *Draft) Entry(studentID string) (Entry, bool) {
	if i := d.entryIndex(studentID); i >= 0 {
		return d.Entries[i], true
	}
	return Entry{}, false
}

// SetPresence marks a student present or absent. Marking present clears the
// reason in the same update; presence and reason are not independently
// settable.
func (d *Draft) SetPresence(studentID string, present bool) bool {
	i := d.entryIndex(studentID)
	if i < 0 {
		return false
	}
	d.Entries[i].Present = present
	if present {
		d.Entries[i].Reason = null.String{}
	}
	return true
}

// SetReason records why a student was absent. Permitted regardless of
// presence; statistics disregard reasons attached to present entries.
func (d *Draft) SetReason(studentID, reason string) bool {
	i := d.entryIndex(studentID)
	if i < 0 {
		return false
	}
	reason = core.CleanString(reason)
	if reason == "" {
		d.Entries[i].Reason = null.String{}
	} else {
		d.Entries[i].Reason = null.StringFrom(reason)
	}
	return true
}

func (d *Draft) Rows() []Row {
	rows := make([]Row, 0, len(d.Entries))
	for i, e := range d.Entries {
		rows = append(rows, Row{Student: d.Roster[i], Entry: e})
	}
	return rows
}

// Payload serializes the draft's current state to a submission payload.
// Blank notes, link and reasons become null, not empty string.
func (d *Draft) Payload() NewRecord {
	students := make([]NewEntry, 0, len(d.Entries))
	for _, e := range d.Entries {
		reason := e.Reason
		if e.Present || core.CleanString(reason.String) == "" {
			reason = null.String{}
		}
		students = append(students, NewEntry{
			Student: e.StudentID,
			Present: e.Present,
			Reason:  reason,
		})
	}
	return NewRecord{
		ClubID:           d.ClubID,
		Date:             d.Date.String(),
		Students:         students,
		Notes:            nullFromBlank(d.Notes),
		TelegramPostLink: nullFromBlank(d.TelegramPostLink),
	}
}

func nullFromBlank(s string) null.String {
	if s = core.CleanString(s); s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}
