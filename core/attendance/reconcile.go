package attendance

import (
	"strings"

	"github.com/Shukurulla/dogerek-tutor/core/club"
)

// BuildDraft merges the current roster with a possibly-existing record into
// an editable draft. The roster is authoritative for who is listed; the
// existing record is authoritative for per-student status. Roster students
// with no prior entry default to present with no reason, which favors the
// common case of fast data entry. Students present in the record
// but no longer enrolled are dropped; the submission payload may only carry
// enrolled students, and history endpoints still expose the original record.
func BuildDraft(clubID string, date SessionDate, roster []club.Student, existing *Record) *Draft {
	d := &Draft{
		ClubID:  clubID,
		Date:    date,
		Roster:  roster,
		Entries: make([]Entry, 0, len(roster)),
	}

	var prior map[string]Entry
	if existing != nil {
		prior = make(map[string]Entry, len(existing.Entries))
		for _, e := range existing.Entries {
			prior[e.StudentID] = e
		}
		d.Notes = existing.Notes.String
		d.TelegramPostLink = existing.TelegramPostLink.String
		d.finalized = !existing.Editable
	}

	for _, s := range roster {
		if e, ok := prior[s.ID]; ok {
			d.Entries = append(d.Entries, Entry{StudentID: s.ID, Present: e.Present, Reason: e.Reason})
			continue
		}
		d.Entries = append(d.Entries, Entry{StudentID: s.ID, Present: true})
	}
	return d
}

// IsEditable reports whether a (club, date) target is open for submission.
// No record yet means a fresh draft, always editable; an existing record is
// editable only when the backend marked it so.
func IsEditable(existing *Record) bool {
	if existing == nil {
		return true
	}
	return existing.Editable
}

// FilterBySearch returns the draft rows whose student matches the query:
// case-insensitive substring on the full name, or substring on the external
// id number. Pure; roster order preserved; empty query returns all rows.
func FilterBySearch(d *Draft, query string) []Row {
	rows := d.Rows()
	query = strings.TrimSpace(query)
	if query == "" {
		return rows
	}
	lq := strings.ToLower(query)

	matched := make([]Row, 0, len(rows))
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Student.FullName), lq) ||
			strings.Contains(row.Student.StudentIDNumber, query) {
			matched = append(matched, row)
		}
	}
	return matched
}
