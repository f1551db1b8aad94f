package attendance

import (
	"math"
	"sort"

	"github.com/Shukurulla/dogerek-tutor/core/club"
)

// Banding thresholds; lower bounds inclusive.
const (
	BandHigh   = "high"   // >= 90
	BandMedium = "medium" // >= 75
	BandLow    = "low"

	highThreshold   = 90.0
	mediumThreshold = 75.0

	// DefaultWarningThreshold is the percentage below which a student is
	// surfaced in attendance warnings.
	DefaultWarningThreshold = 75.0
)

type (
	// Statistics is derived and read-only, recomputed on demand; never
	// persisted.
	Statistics struct {
		TotalSessions     int     `json:"total_sessions"`
		PresentTotal      int     `json:"present_total"`
		PossibleTotal     int     `json:"possible_total"`
		AveragePercentage float64 `json:"average_percentage"`
		BestSession       *Record `json:"best_session"`
		WorstSession      *Record `json:"worst_session"`
	}

	// StudentSummary aggregates one student's attendance over a history range.
	StudentSummary struct {
		StudentID  string  `json:"student_id"`
		Sessions   int     `json:"sessions"`
		Attended   int     `json:"attended"`
		Percentage float64 `json:"percentage"`
		Band       string  `json:"band"`
	}

	// TrendPoint is one session's percentage, used for dashboard charts.
	TrendPoint struct {
		Date       SessionDate `json:"date"`
		Percentage float64     `json:"percentage"`
	}
)

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Percentage computes a record's attendance rate, rounded to one decimal.
// An empty record yields 0, never a division by zero.
func Percentage(r Record) float64 {
	if len(r.Entries) == 0 {
		return 0
	}
	return round1(float64(r.PresentCount()) / float64(len(r.Entries)) * 100)
}

// Band classifies a percentage for urgency display.
func Band(pct float64) string {
	switch {
	case pct >= highThreshold:
		return BandHigh
	case pct >= mediumThreshold:
		return BandMedium
	default:
		return BandLow
	}
}

// Aggregate folds a history of records into overall statistics.
// Best and worst session use strictly-greater/strictly-less comparisons on a
// stable scan, so the first record encountered in input order wins ties;
// callers rely on this to decide which of equally-ranked sessions is shown.
func Aggregate(records []Record) Statistics {
	stats := Statistics{TotalSessions: len(records)}
	if len(records) == 0 {
		return stats
	}

	bestIdx, worstIdx := 0, 0
	bestPct, worstPct := Percentage(records[0]), Percentage(records[0])
	for i, r := range records {
		stats.PresentTotal += r.PresentCount()
		stats.PossibleTotal += len(r.Entries)

		pct := Percentage(r)
		if pct > bestPct {
			bestPct, bestIdx = pct, i
		}
		if pct < worstPct {
			worstPct, worstIdx = pct, i
		}
	}
	if stats.PossibleTotal > 0 {
		stats.AveragePercentage = round1(float64(stats.PresentTotal) / float64(stats.PossibleTotal) * 100)
	}
	stats.BestSession = &records[bestIdx]
	stats.WorstSession = &records[worstIdx]
	return stats
}

// SortMostRecentFirst returns a copy ordered newest first. Providers do not
// guarantee ordering, so callers needing it must sort defensively; records
// with unparseable dates sink to the end in their original relative order.
func SortMostRecentFirst(records []Record) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i].Date, sorted[j].Date
		if di.Valid() != dj.Valid() {
			return di.Valid()
		}
		return dj.Before(di)
	})
	return sorted
}

// Trend lists per-session percentages in date order, skipping records whose
// date could not be parsed.
func Trend(records []Record) []TrendPoint {
	dated := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Date.Valid() {
			dated = append(dated, r)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Date.Before(dated[j].Date) })

	points := make([]TrendPoint, 0, len(dated))
	for _, r := range dated {
		points = append(points, TrendPoint{Date: r.Date, Percentage: Percentage(r)})
	}
	return points
}

// SummarizeStudents computes per-student attendance over a history range,
// keyed by student and ordered by first appearance.
func SummarizeStudents(records []Record) []StudentSummary {
	byStudent := make(map[string]*StudentSummary)
	order := make([]string, 0)

	for _, r := range records {
		for _, e := range r.Entries {
			sum, ok := byStudent[e.StudentID]
			if !ok {
				sum = &StudentSummary{StudentID: e.StudentID}
				byStudent[e.StudentID] = sum
				order = append(order, e.StudentID)
			}
			sum.Sessions++
			if e.Present {
				sum.Attended++
			}
		}
	}

	summaries := make([]StudentSummary, 0, len(order))
	for _, id := range order {
		sum := byStudent[id]
		if sum.Sessions > 0 {
			sum.Percentage = round1(float64(sum.Attended) / float64(sum.Sessions) * 100)
		}
		sum.Band = Band(sum.Percentage)
		summaries = append(summaries, *sum)
	}
	return summaries
}

// Warnings filters summaries below the threshold (default 75).
func Warnings(summaries []StudentSummary, threshold float64) []StudentSummary {
	if threshold <= 0 {
		threshold = DefaultWarningThreshold
	}
	low := make([]StudentSummary, 0)
	for _, s := range summaries {
		if s.Percentage < threshold {
			low = append(low, s)
		}
	}
	return low
}

// AbsentStudents maps a record's absent entries back onto the roster.
// Roster students without an entry are not reported; reasons on present
// entries are disregarded even if a caller managed to set one.
func AbsentStudents(r Record, roster []club.Student) []Row {
	byID := make(map[string]club.Student, len(roster))
	for _, s := range roster {
		byID[s.ID] = s
	}
	absent := make([]Row, 0)
	for _, e := range r.Entries {
		if e.Present {
			continue
		}
		if s, ok := byID[e.StudentID]; ok {
			absent = append(absent, Row{Student: s, Entry: e})
		}
	}
	return absent
}
