package pipeline

import "github.com/sleepsift/sleepsift-cli/internal/sleep"

// ForcedOutlierScore is the sentinel written to a forced-outlier day,
// clearly more anomalous than typical model output.
const ForcedOutlierScore = -0.5

// Decision is the per-run outcome consumed by the reporting layer.
type Decision struct {
	// Latest is the last row in date order, the day eligible for alerting.
	Latest          *sleep.Day
	LatestIsOutlier bool
	// PriorOutlier is the most recent flagged day strictly before Latest,
	// the candidate for supplementary analysis. Nil when none exists.
	PriorOutlier *sleep.Day
	// ForcedApplied and ForcedMiss report the manual override outcome.
	// A miss is informational, never an error.
	ForcedApplied bool
	ForcedMiss    bool
}

// decide maps raw model output onto the frame's derived fields, applies the
// forced-outlier override, and picks the alerting and supplementary-analysis
// candidates.
func decide(f *sleep.Frame, labels []int, scores []float64, forceDate string) Decision {
	for i := range f.Days {
		f.Days[i].IsOutlier = labels[i] == -1
		f.Days[i].OutlierScore = scores[i]
	}

	var d Decision
	if forceDate != "" {
		if i := f.IndexOfDate(forceDate); i >= 0 {
			f.Days[i].IsOutlier = true
			f.Days[i].OutlierScore = ForcedOutlierScore
			d.ForcedApplied = true
		} else {
			d.ForcedMiss = true
		}
	}

	d.Latest = f.Latest()
	d.LatestIsOutlier = d.Latest.IsOutlier
	for i := len(f.Days) - 2; i >= 0; i-- {
		if f.Days[i].IsOutlier {
			d.PriorOutlier = &f.Days[i]
			break
		}
	}
	return d
}
