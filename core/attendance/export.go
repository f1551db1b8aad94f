package attendance

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/Shukurulla/dogerek-tutor/core/club"
)

const (
	exportSheet = "Attendance"

	// ReportContentType is the MIME type of the workbooks ExportReport produces.
	ReportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportReport renders a club's attendance history over a date range as an
// xlsx workbook: one summary row per session plus a per-student sheet.
func (svc *Service) ExportReport(ctx context.Context, clubName, clubID string, from, to SessionDate) (*bytes.Buffer, error) {
	page, err := svc.History(ctx, clubID, from, to)
	if err != nil {
		return nil, err
	}
	roster, err := svc.rosters.GetStudents(ctx, clubID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching roster")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, errors.Wrap(err, "creating sheet")
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	// sessions, newest first
	headers := []interface{}{"Date", "Present", "Absent", "Percentage", "Notes"}
	if err = f.SetSheetRow(exportSheet, "A1", &headers); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}
	for i, rec := range page.Records {
		row := []interface{}{
			rec.Date.Display(),
			rec.PresentCount(),
			rec.AbsentCount(),
			Percentage(rec),
			rec.Notes.String,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err = f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, errors.Wrap(err, "writing session row")
		}
	}

	// per-student summary
	const studentSheet = "Students"
	if _, err = f.NewSheet(studentSheet); err != nil {
		return nil, errors.Wrap(err, "creating students sheet")
	}
	byID := make(map[string]club.Student, len(roster))
	for _, s := range roster {
		byID[s.ID] = s
	}
	sheaders := []interface{}{"Student", "ID number", "Sessions", "Attended", "Percentage", "Band"}
	if err = f.SetSheetRow(studentSheet, "A1", &sheaders); err != nil {
		return nil, errors.Wrap(err, "writing students header")
	}
	srow := 2
	for _, sum := range SummarizeStudents(page.Records) {
		name, idNumber := sum.StudentID, ""
		if s, ok := byID[sum.StudentID]; ok {
			name, idNumber = s.FullName, s.StudentIDNumber
		}
		row := []interface{}{name, idNumber, sum.Sessions, sum.Attended, sum.Percentage, sum.Band}
		if err = f.SetSheetRow(studentSheet, fmt.Sprintf("A%d", srow), &row); err != nil {
			return nil, errors.Wrap(err, "writing student row")
		}
		srow++
	}

	// title metadata
	f.SetDefinedName(&excelize.DefinedName{
		Name:     "report",
		RefersTo: fmt.Sprintf("'%s'!$A$1", exportSheet),
		Comment:  fmt.Sprintf("%s %s - %s", clubName, from.Display(), to.Display()),
	})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf, nil
}
