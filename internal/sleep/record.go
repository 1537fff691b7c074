package sleep

import "time"

// Feature column names, in canonical order.
const (
	FeatureHeartRate = "heart_rate_avg"
	FeatureRespRate  = "respiratory_rate_avg"
	FeatureSleepDur  = "sleep_duration_hours"
	FeatureScore     = "sleep_score"
	FeatureTossTurn  = "toss_and_turn_count"
)

// Features lists every known feature column in canonical order.
var Features = []string{
	FeatureHeartRate,
	FeatureRespRate,
	FeatureSleepDur,
	FeatureScore,
	FeatureTossTurn,
}

// MandatoryFeatures must all be present on a day for it to enter the frame.
var MandatoryFeatures = []string{
	FeatureHeartRate,
	FeatureRespRate,
	FeatureSleepDur,
	FeatureScore,
}

// DateLayout is the canonical calendar-date format used throughout.
const DateLayout = "2006-01-02"

// Day is one calendar date's metrics for one device. Observation fields are
// pointers so an absent measurement is distinguishable from zero. IsOutlier
// and OutlierScore are written by the decision layer after scoring.
type Day struct {
	Date               time.Time
	HeartRateAvg       *float64
	RespRateAvg        *float64
	SleepDurationHours *float64
	SleepScore         *float64
	TossAndTurnCount   *float64

	IsOutlier    bool
	OutlierScore float64
}

// Feature returns the named observation, or nil if absent.
func (d *Day) Feature(name string) *float64 {
	switch name {
	case FeatureHeartRate:
		return d.HeartRateAvg
	case FeatureRespRate:
		return d.RespRateAvg
	case FeatureSleepDur:
		return d.SleepDurationHours
	case FeatureScore:
		return d.SleepScore
	case FeatureTossTurn:
		return d.TossAndTurnCount
	}
	return nil
}

// DateString formats the day's date as YYYY-MM-DD.
func (d *Day) DateString() string {
	return d.Date.Format(DateLayout)
}

// SameDate reports whether two timestamps fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	return a.Format(DateLayout) == b.Format(DateLayout)
}

// Float returns a pointer to v, for building Day literals.
func Float(v float64) *float64 { return &v }
