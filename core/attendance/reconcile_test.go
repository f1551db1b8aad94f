package attendance

import (
	"testing"

	"github.com/volatiletech/null/v8"

	"github.com/Shukurulla/dogerek-tutor/core/club"
)

var testRoster = []club.Student{
	{ID: "s1", FullName: "Aigerim Bekova", StudentIDNumber: "2023001"},
	{ID: "s2", FullName: "Bekzat Omarov", StudentIDNumber: "2023002"},
	{ID: "s3", FullName: "Dana Serikova", StudentIDNumber: "2024015"},
}

func TestBuildDraftFresh(t *testing.T) {
	date, _ := ParseSessionDate("2026-03-15")
	d := BuildDraft("c1", date, testRoster, nil)

	if len(d.Entries) != len(testRoster) {
		t.Fatalf("len(Entries) = %d, want %d", len(d.Entries), len(testRoster))
	}
	for i, e := range d.Entries {
		if e.StudentID != testRoster[i].ID {
			t.Errorf("Entries[%d].StudentID = %q, want roster order %q", i, e.StudentID, testRoster[i].ID)
		}
		if !e.Present {
			t.Errorf("Entries[%d].Present = false, want default present", i)
		}
		if e.Reason.Valid {
			t.Errorf("Entries[%d].Reason = %v, want null", i, e.Reason)
		}
	}
	if d.Finalized() {
		t.Errorf("Finalized() = true for a fresh draft")
	}
}

func TestBuildDraftMergesExisting(t *testing.T) {
	date, _ := ParseSessionDate("2026-03-15")
	existing := &Record{
		ID:     "r1",
		ClubID: "c1",
		Date:   date,
		Entries: []Entry{
			{StudentID: "s2", Present: false, Reason: null.StringFrom("sick")},
			{StudentID: "gone", Present: false, Reason: null.StringFrom("left school")},
		},
		Notes:            null.StringFrom("rainy day"),
		TelegramPostLink: null.StringFrom("https://t.me/club/42"),
		Editable:         true,
	}

	d := BuildDraft("c1", date, testRoster, existing)

	if len(d.Entries) != len(testRoster) {
		t.Fatalf("len(Entries) = %d, want %d (disenrolled dropped)", len(d.Entries), len(testRoster))
	}
	if _, ok := d.Entry("gone"); ok {
		t.Errorf("disenrolled student kept in draft")
	}
	if e, _ := d.Entry("s2"); e.Present || e.Reason.String != "sick" {
		t.Errorf("prior entry not carried: %+v", e)
	}
	if e, _ := d.Entry("s1"); !e.Present {
		t.Errorf("new roster member should default present")
	}
	if d.Notes != "rainy day" || d.TelegramPostLink != "https://t.me/club/42" {
		t.Errorf("notes/link not carried: %q / %q", d.Notes, d.TelegramPostLink)
	}
	if d.Finalized() {
		t.Errorf("Finalized() = true for an editable record")
	}
}

func TestBuildDraftLockedRecord(t *testing.T) {
	date, _ := ParseSessionDate("2026-03-15")
	existing := &Record{ID: "r1", ClubID: "c1", Date: date, Editable: false}
	d := BuildDraft("c1", date, testRoster, existing)
	if !d.Finalized() {
		t.Errorf("Finalized() = false for a locked record")
	}
}

func TestIsEditable(t *testing.T) {
	tests := []struct {
		name     string
		existing *Record
		want     bool
	}{
		{name: "no record yet", existing: nil, want: true},
		{name: "reopened record", existing: &Record{Editable: true}, want: true},
		{name: "locked record", existing: &Record{Editable: false}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEditable(tt.existing); got != tt.want {
				t.Errorf("IsEditable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetPresenceClearsReason(t *testing.T) {
	date, _ := ParseSessionDate("2026-03-15")
	d := BuildDraft("c1", date, testRoster, nil)

	d.SetPresence("s1", false)
	d.SetReason("s1", "  family emergency ")
	if e, _ := d.Entry("s1"); e.Present || e.Reason.String != "family emergency" {
		t.Fatalf("entry after absence = %+v", e)
	}

	d.SetPresence("s1", true)
	if e, _ := d.Entry("s1"); !e.Present || e.Reason.Valid {
		t.Errorf("marking present must clear the reason, got %+v", e)
	}

	if d.SetPresence("unknown", false) {
		t.Errorf("SetPresence() = true for a student not in the draft")
	}
}

func TestPayloadNormalizesBlanks(t *testing.T) {
	date, _ := ParseSessionDate("2026-03-15")
	d := BuildDraft("c1", date, testRoster, nil)
	d.SetPresence("s2", false)
	d.SetReason("s2", "")
	d.Notes = "   "
	d.TelegramPostLink = ""

	nr := d.Payload()
	if nr.ClubID != "c1" || nr.Date != "2026-03-15" {
		t.Errorf("payload target = %q %q", nr.ClubID, nr.Date)
	}
	if nr.Notes.Valid || nr.TelegramPostLink.Valid {
		t.Errorf("blank notes/link must serialize as null, got %+v / %+v", nr.Notes, nr.TelegramPostLink)
	}
	for _, e := range nr.Students {
		if e.Reason.Valid {
			t.Errorf("entry %q: blank reason must serialize as null, got %+v", e.Student, e.Reason)
		}
	}
}

func TestPayloadDropsReasonOnPresent(t *testing.T) {
	date, _ := ParseSessionDate("2026-03-15")
	d := BuildDraft("c1", date, testRoster, nil)
	// reason on a present entry is tolerated in the draft but never transmitted
	d.SetReason("s3", "was late")

	nr := d.Payload()
	for _, e := range nr.Students {
		if e.Student == "s3" && e.Reason.Valid {
			t.Errorf("reason on a present entry leaked into the payload: %+v", e)
		}
	}
}

func TestFilterBySearch(t *testing.T) {
	date, _ := ParseSessionDate("2026-03-15")
	d := BuildDraft("c1", date, testRoster, nil)

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{name: "empty query returns all", query: "", wantIDs: []string{"s1", "s2", "s3"}},
		{name: "blank query returns all", query: "   ", wantIDs: []string{"s1", "s2", "s3"}},
		{name: "name substring case-insensitive", query: "beK", wantIDs: []string{"s1", "s2"}},
		{name: "id number substring", query: "2023", wantIDs: []string{"s1", "s2"}},
		{name: "exact id number", query: "2024015", wantIDs: []string{"s3"}},
		{name: "no match", query: "zzz", wantIDs: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := FilterBySearch(d, tt.query)
			if len(rows) != len(tt.wantIDs) {
				t.Fatalf("len(rows) = %d, want %d", len(rows), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if rows[i].Student.ID != id {
					t.Errorf("rows[%d].Student.ID = %q, want %q", i, rows[i].Student.ID, id)
				}
			}
		})
	}
}
