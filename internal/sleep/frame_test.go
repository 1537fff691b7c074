package sleep

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(offset int, hr, rr, dur, score, tnt *float64) Day {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return Day{
		Date:               base.AddDate(0, 0, offset),
		HeartRateAvg:       hr,
		RespRateAvg:        rr,
		SleepDurationHours: dur,
		SleepScore:         score,
		TossAndTurnCount:   tnt,
	}
}

func fullDay(offset int) Day {
	return day(offset, Float(60), Float(15), Float(7.5), Float(85), Float(12))
}

func TestBuildFrameDropsIncompleteRows(t *testing.T) {
	days := []Day{
		fullDay(0),
		day(1, nil, Float(15), Float(7.5), Float(85), Float(12)), // missing hr
		fullDay(2),
	}
	f, err := BuildFrame(days)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	if len(f.Days) != 2 {
		t.Fatalf("rows = %d, want 2", len(f.Days))
	}
	if len(f.Columns) != 5 {
		t.Fatalf("columns = %v, want all 5", f.Columns)
	}
}

func TestBuildFrameSortsByDate(t *testing.T) {
	days := []Day{fullDay(5), fullDay(1), fullDay(3)}
	f, err := BuildFrame(days)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	for i := 1; i < len(f.Days); i++ {
		if !f.Days[i-1].Date.Before(f.Days[i].Date) {
			t.Fatalf("rows not sorted ascending: %s >= %s",
				f.Days[i-1].DateString(), f.Days[i].DateString())
		}
	}
}

func TestBuildFrameDropsAllNullColumn(t *testing.T) {
	days := []Day{
		day(0, Float(60), Float(15), Float(7.5), Float(85), nil),
		day(1, Float(61), Float(14), Float(7.0), Float(80), nil),
	}
	f, err := BuildFrame(days)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	for _, c := range f.Columns {
		if c == FeatureTossTurn {
			t.Fatalf("all-null column %s not excluded", FeatureTossTurn)
		}
	}
	if len(f.Columns) != 4 {
		t.Fatalf("columns = %v, want 4", f.Columns)
	}
}

func TestBuildFrameZeroRows(t *testing.T) {
	days := []Day{
		day(0, nil, Float(15), Float(7.5), Float(85), nil),
	}
	_, err := BuildFrame(days)
	var ide *InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
}

func TestMatrixMarksAbsentOptionalCells(t *testing.T) {
	days := []Day{
		fullDay(0),
		day(1, Float(61), Float(14), Float(7.0), Float(80), nil), // tnt absent
	}
	f, err := BuildFrame(days)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	m := f.Matrix()
	tntIdx := -1
	for j, c := range f.Columns {
		if c == FeatureTossTurn {
			tntIdx = j
		}
	}
	if tntIdx < 0 {
		t.Fatalf("tnt column missing from %v", f.Columns)
	}
	if !math.IsNaN(m[1][tntIdx]) {
		t.Fatalf("absent cell = %v, want NaN", m[1][tntIdx])
	}
	if m[0][tntIdx] != 12 {
		t.Fatalf("present cell = %v, want 12", m[0][tntIdx])
	}
}

func TestIndexOfDate(t *testing.T) {
	f, err := BuildFrame([]Day{fullDay(0), fullDay(1), fullDay(2)})
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	if i := f.IndexOfDate("2025-03-02"); i != 1 {
		t.Fatalf("IndexOfDate = %d, want 1", i)
	}
	if i := f.IndexOfDate("1999-01-01"); i != -1 {
		t.Fatalf("IndexOfDate missing = %d, want -1", i)
	}
}
