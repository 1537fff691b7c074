package pipeline

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/sleepsift/sleepsift-cli/internal/sleep"
)

var windowStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// steadyWindow builds n days of unremarkable metrics.
func steadyWindow(n int) []sleep.Day {
	rng := rand.New(rand.NewSource(11))
	days := make([]sleep.Day, n)
	for i := 0; i < n; i++ {
		days[i] = sleep.Day{
			Date:               windowStart.AddDate(0, 0, i),
			HeartRateAvg:       sleep.Float(58 + rng.Float64()*14),
			RespRateAvg:        sleep.Float(14 + rng.Float64()*4),
			SleepDurationHours: sleep.Float(7 + rng.Float64()*1.5),
			SleepScore:         sleep.Float(75 + rng.Float64()*20),
			TossAndTurnCount:   sleep.Float(5 + rng.Float64()*15),
		}
	}
	return days
}

func TestRunFlagsPlantedOutlier(t *testing.T) {
	days := steadyWindow(90)
	last := &days[89]
	last.HeartRateAvg = sleep.Float(110)
	last.RespRateAvg = sleep.Float(28)
	last.SleepDurationHours = sleep.Float(3.5)
	last.SleepScore = sleep.Float(25)

	res, err := Run(days, Params{Contamination: 0.05})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stage != StageDecided {
		t.Fatalf("stage = %s, want decided", res.Stage)
	}
	if !res.Decision.LatestIsOutlier {
		t.Fatalf("planted latest day not flagged; score %g", res.Decision.Latest.OutlierScore)
	}
	flagged := len(res.Frame.Outliers())
	if flagged < 2 || flagged > 9 {
		t.Fatalf("flagged %d of 90 at contamination=0.05", flagged)
	}
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	days := steadyWindow(60)
	r1, err := Run(days, Params{Contamination: 0.05})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	r2, err := Run(days, Params{Contamination: 0.05})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := range r1.Frame.Days {
		a, b := r1.Frame.Days[i], r2.Frame.Days[i]
		if a.OutlierScore != b.OutlierScore || a.IsOutlier != b.IsOutlier {
			t.Fatalf("day %s differs across identical runs", a.DateString())
		}
	}
}

func TestRunInsufficientRows(t *testing.T) {
	_, err := Run(steadyWindow(5), Params{Contamination: 0.05})
	var ide *sleep.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
}

func TestRunExactlyTenRows(t *testing.T) {
	if _, err := Run(steadyWindow(10), Params{Contamination: 0.1}); err != nil {
		t.Fatalf("Run on 10 rows: %v", err)
	}
}

func TestRunForcedOutlierOverride(t *testing.T) {
	days := steadyWindow(60)
	force := days[9].Date.Format(sleep.DateLayout)

	res, err := Run(days, Params{Contamination: 0.05, ForceOutlierDate: force})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Decision.ForcedApplied || res.Decision.ForcedMiss {
		t.Fatalf("override outcome = %+v, want applied", res.Decision)
	}
	i := res.Frame.IndexOfDate(force)
	d := res.Frame.Days[i]
	if !d.IsOutlier {
		t.Fatalf("forced day not flagged")
	}
	if d.OutlierScore != ForcedOutlierScore {
		t.Fatalf("forced score = %g, want %g", d.OutlierScore, ForcedOutlierScore)
	}
}

func TestRunForcedOutlierMiss(t *testing.T) {
	res, err := Run(steadyWindow(30), Params{Contamination: 0.05, ForceOutlierDate: "1999-01-01"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Decision.ForcedMiss || res.Decision.ForcedApplied {
		t.Fatalf("override outcome = %+v, want miss", res.Decision)
	}
}

func TestRunPriorOutlierNeverLatest(t *testing.T) {
	days := steadyWindow(60)
	// Make both an earlier day and the latest day extreme.
	for _, i := range []int{30, 59} {
		days[i].HeartRateAvg = sleep.Float(115)
		days[i].RespRateAvg = sleep.Float(30)
		days[i].SleepDurationHours = sleep.Float(3)
		days[i].SleepScore = sleep.Float(20)
	}
	res, err := Run(days, Params{Contamination: 0.05})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Decision.LatestIsOutlier {
		t.Fatalf("latest extreme day not flagged")
	}
	if res.Decision.PriorOutlier == nil {
		t.Fatalf("no prior outlier found")
	}
	if sleep.SameDate(res.Decision.PriorOutlier.Date, res.Decision.Latest.Date) {
		t.Fatalf("prior outlier equals latest day")
	}
}

func TestRunEntirelyNullColumnReducesSchema(t *testing.T) {
	days := steadyWindow(60)
	for i := range days {
		days[i].TossAndTurnCount = nil
	}
	res, err := Run(days, Params{Contamination: 0.05})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Frame.Columns) != 4 {
		t.Fatalf("columns = %v, want the 4 mandatory features", res.Frame.Columns)
	}
}

func TestRunAssignsRunID(t *testing.T) {
	res, err := Run(steadyWindow(20), Params{Contamination: 0.05})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID == "" {
		t.Fatalf("empty run id")
	}
}
