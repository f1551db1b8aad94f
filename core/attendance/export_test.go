package attendance

import (
	"bytes"
	"context"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Shukurulla/dogerek-tutor/core/club"
)

func TestExportReport(t *testing.T) {
	repo := newFakeRepo()
	rosters := &fakeRosters{roster: []club.Student{
		{ID: "s1", FullName: "Aigerim Bekova", StudentIDNumber: "2023001"},
		{ID: "s2", FullName: "Bekzat Omarov", StudentIDNumber: "2023002"},
	}}
	svc := NewService(repo, rosters, nil, nil)
	ctx := context.Background()

	submit := func(date string, s2Present bool) {
		_, err := svc.Submit(ctx, NewRecord{
			ClubID: "c1",
			Date:   date,
			Students: []NewEntry{
				{Student: "s1", Present: true},
				{Student: "s2", Present: s2Present},
			},
		})
		if err != nil {
			t.Fatalf("Submit(%s) failed: %v", date, err)
		}
	}
	submit("2026-03-02", true)
	submit("2026-03-04", false)

	buf, err := svc.ExportReport(ctx, "Chess Club", "c1", SessionDate{}, SessionDate{})
	if err != nil {
		t.Fatalf("ExportReport() failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("ExportReport() returned an empty buffer")
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("opening exported workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := map[string]bool{"Attendance": false, "Students": false}
	for _, s := range sheets {
		if _, ok := want[s]; ok {
			want[s] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing sheet %q; got %v", name, sheets)
		}
	}

	rows, err := f.GetRows("Attendance")
	if err != nil {
		t.Fatalf("GetRows() failed: %v", err)
	}
	// header + one row per session
	if len(rows) != 3 {
		t.Errorf("Attendance rows = %d, want 3", len(rows))
	}

	students, err := f.GetRows("Students")
	if err != nil {
		t.Fatalf("GetRows() failed: %v", err)
	}
	if len(students) != 3 {
		t.Errorf("Students rows = %d, want 3", len(students))
	}
}
