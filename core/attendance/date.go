package attendance

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Session dates come back from the backend in two shapes: the API form
// ("2006-01-02", sometimes with a time component) and the display form
// ("02.01.2006"). A SessionDate keeps both the raw string and the parsed
// value so an unparseable date can still be displayed.
const (
	DateKindISO     = "iso"
	DateKindDisplay = "display"

	apiDateLayout     = "2006-01-02"
	displayDateLayout = "02.01.2006"
)

var ErrBadDateFormat = errors.New("unrecognized date format")

type SessionDate struct {
	Kind   string
	Raw    string
	Parsed time.Time
}

// ParseSessionDate detects which of the two known shapes `raw` is in.
// Dot separators mean the display form; otherwise the API form is tried,
// with and without a time component. On failure the raw string is retained
// in the returned value and ErrBadDateFormat is reported.
func ParseSessionDate(raw string) (SessionDate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SessionDate{}, ErrBadDateFormat
	}

	if strings.Contains(raw, ".") {
		if t, err := time.Parse(displayDateLayout, raw); err == nil {
			return SessionDate{Kind: DateKindDisplay, Raw: raw, Parsed: t}, nil
		}
		return SessionDate{Raw: raw}, ErrBadDateFormat
	}

	if t, err := time.Parse(apiDateLayout, raw); err == nil {
		return SessionDate{Kind: DateKindISO, Raw: raw, Parsed: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return SessionDate{Kind: DateKindISO, Raw: raw, Parsed: t}, nil
	}
	return SessionDate{Raw: raw}, ErrBadDateFormat
}

// NewSessionDate builds a SessionDate from a known-good calendar value.
// The time component is dropped; sessions have day granularity.
func NewSessionDate(t time.Time) SessionDate {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return SessionDate{Kind: DateKindISO, Raw: t.Format(apiDateLayout), Parsed: t}
}

// Valid reports whether the date was parsed; invalid dates are excluded
// from any date-ordered computation but kept for display.
func (d SessionDate) Valid() bool { return !d.Parsed.IsZero() }

func (d SessionDate) IsZero() bool { return d.Raw == "" && d.Parsed.IsZero() }

// String returns the API form, or the raw string when unparseable.
func (d SessionDate) String() string {
	if !d.Valid() {
		return d.Raw
	}
	return d.Parsed.Format(apiDateLayout)
}

// Display returns the DD.MM.YYYY form, or the raw string when unparseable.
func (d SessionDate) Display() string {
	if !d.Valid() {
		return d.Raw
	}
	return d.Parsed.Format(displayDateLayout)
}

func (d SessionDate) Equal(other SessionDate) bool {
	if !d.Valid() || !other.Valid() {
		return d.Raw == other.Raw
	}
	return d.Parsed.Equal(other.Parsed)
}

func (d SessionDate) Before(other SessionDate) bool {
	return d.Parsed.Before(other.Parsed)
}

// MarshalJSON emits the API form; an unparseable raw string round-trips as is.
func (d SessionDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON never fails on a bad date: the raw string is retained so a
// single malformed record cannot abort decoding of a whole history list.
func (d *SessionDate) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "null" || raw == "" {
		*d = SessionDate{}
		return nil
	}
	parsed, err := ParseSessionDate(raw)
	if err != nil {
		*d = SessionDate{Raw: raw}
		return nil
	}
	*d = parsed
	return nil
}
