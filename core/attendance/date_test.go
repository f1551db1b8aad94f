package attendance

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseSessionDate(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind string
		wantISO  string
		wantDisp string
		wantErr  error
	}{
		{name: "api form", raw: "2026-03-15", wantKind: DateKindISO, wantISO: "2026-03-15", wantDisp: "15.03.2026"},
		{name: "api form with time", raw: "2026-03-15T10:30:00Z", wantKind: DateKindISO, wantISO: "2026-03-15", wantDisp: "15.03.2026"},
		{name: "display form", raw: "15.03.2026", wantKind: DateKindDisplay, wantISO: "2026-03-15", wantDisp: "15.03.2026"},
		{name: "padded", raw: "  2026-03-15 ", wantKind: DateKindISO, wantISO: "2026-03-15", wantDisp: "15.03.2026"},
		{name: "empty", raw: "", wantErr: ErrBadDateFormat},
		{name: "garbage", raw: "not-a-date", wantErr: ErrBadDateFormat},
		{name: "dotted garbage", raw: "99.99.9999", wantErr: ErrBadDateFormat},
		{name: "wrong separator", raw: "15/03/2026", wantErr: ErrBadDateFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseSessionDate(tt.raw)
			if err != tt.wantErr {
				t.Fatalf("ParseSessionDate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if d.Valid() {
					t.Errorf("ParseSessionDate() valid on error, raw %q", tt.raw)
				}
				return
			}
			if d.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", d.Kind, tt.wantKind)
			}
			if d.String() != tt.wantISO {
				t.Errorf("String() = %q, want %q", d.String(), tt.wantISO)
			}
			if d.Display() != tt.wantDisp {
				t.Errorf("Display() = %q, want %q", d.Display(), tt.wantDisp)
			}
		})
	}
}

func TestParseSessionDateRetainsRaw(t *testing.T) {
	d, err := ParseSessionDate("bogus")
	if err != ErrBadDateFormat {
		t.Fatalf("error = %v, want %v", err, ErrBadDateFormat)
	}
	if d.Raw != "bogus" {
		t.Errorf("Raw = %q, want %q", d.Raw, "bogus")
	}
	if d.String() != "bogus" || d.Display() != "bogus" {
		t.Errorf("String()/Display() = %q/%q, want raw passthrough", d.String(), d.Display())
	}
}

func TestSessionDateEqualAcrossForms(t *testing.T) {
	iso, _ := ParseSessionDate("2026-03-15")
	disp, _ := ParseSessionDate("15.03.2026")
	if !iso.Equal(disp) {
		t.Errorf("Equal() = false for same calendar day in both forms")
	}
	other, _ := ParseSessionDate("2026-03-16")
	if iso.Equal(other) {
		t.Errorf("Equal() = true for different days")
	}
	if !iso.Before(other) {
		t.Errorf("Before() = false, want true")
	}
}

func TestSessionDateUnmarshalNeverFails(t *testing.T) {
	var d SessionDate
	if err := d.UnmarshalJSON([]byte(`"still.not.a.date"`)); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v, want nil", err)
	}
	if d.Valid() {
		t.Errorf("Valid() = true for unparseable date")
	}
	if d.Raw != "still.not.a.date" {
		t.Errorf("Raw = %q, want original string", d.Raw)
	}
}

func TestSessionDateMarshalEscapesRaw(t *testing.T) {
	d := SessionDate{Raw: `he said "today" \ maybe`}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v, want nil", err)
	}
	var got string
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v, want valid JSON", b, err)
	}
	if got != d.Raw {
		t.Errorf("round trip = %q, want %q", got, d.Raw)
	}

	parsed, _ := ParseSessionDate("15.03.2026")
	b, err = json.Marshal(parsed)
	if err != nil {
		t.Fatalf("Marshal() error = %v, want nil", err)
	}
	if string(b) != `"2026-03-15"` {
		t.Errorf("Marshal() = %s, want %q", b, `"2026-03-15"`)
	}
}

func TestNewSessionDateDropsTime(t *testing.T) {
	d := NewSessionDate(time.Date(2026, 3, 15, 18, 45, 12, 0, time.UTC))
	if d.String() != "2026-03-15" {
		t.Errorf("String() = %q, want %q", d.String(), "2026-03-15")
	}
	if !d.Parsed.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Parsed = %v, want midnight UTC", d.Parsed)
	}
}
