package tracker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/sleepsift/sleepsift-cli/internal/cache"
	"github.com/sleepsift/sleepsift-cli/internal/sleep"
)

// FetchReport accounts for what happened during a window fetch.
type FetchReport struct {
	CacheHits       int
	CacheMisses     int
	FailedDates     []string
	IncompleteDates []string
}

// fetchDay retrieves one date's raw vendor payload. A (nil, nil) return
// means the vendor has no data for that date.
type fetchDay func(ctx context.Context, date string) ([]byte, error)

// parseDay maps a raw vendor payload onto a day record. A (nil, nil) return
// means the payload holds no usable day.
type parseDay func(date string, raw []byte) (*sleep.Day, error)

// fetchWindow runs the shared per-day loop: consult the cache, fall back to
// the vendor API under the rate limiter, cache successful responses, parse,
// and keep only days whose essential measurements are present and positive.
// Fails with an insufficient-data error when no usable day survives.
func fetchWindow(
	ctx context.Context,
	c *cache.Cache,
	limiter *rate.Limiter,
	deviceID string,
	start, end time.Time,
	fetch fetchDay,
	parse parseDay,
) ([]sleep.Day, *FetchReport, error) {
	var days []sleep.Day
	rep := &FetchReport{}

	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		date := cur.Format(sleep.DateLayout)

		var raw []byte
		if c != nil {
			if hit, ok := c.Get(deviceID, date); ok {
				raw = hit
				rep.CacheHits++
			}
		}
		if raw == nil {
			rep.CacheMisses++
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return nil, nil, err
				}
			}
			fetched, err := fetch(ctx, date)
			if err != nil {
				rep.FailedDates = append(rep.FailedDates, date)
				continue
			}
			if fetched == nil {
				rep.FailedDates = append(rep.FailedDates, date)
				continue
			}
			raw = fetched
			if c != nil {
				_ = c.Set(deviceID, date, raw)
			}
		}

		day, err := parse(date, raw)
		if err != nil || day == nil {
			rep.FailedDates = append(rep.FailedDates, date)
			continue
		}
		if !usable(day) {
			rep.IncompleteDates = append(rep.IncompleteDates, date)
			continue
		}
		days = append(days, *day)
	}

	if len(days) == 0 {
		return nil, rep, &sleep.InsufficientDataError{
			Reason: fmt.Sprintf("no valid sleep data for %s to %s",
				start.Format(sleep.DateLayout), end.Format(sleep.DateLayout)),
		}
	}
	return days, rep, nil
}

// usable requires the essential measurements to be present and positive.
func usable(d *sleep.Day) bool {
	for _, v := range []*float64{d.HeartRateAvg, d.RespRateAvg, d.SleepDurationHours} {
		if v == nil || *v <= 0 {
			return false
		}
	}
	return d.SleepScore != nil
}
