// Package report renders run results for the terminal.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/sleepsift/sleepsift-cli/internal/cache"
	"github.com/sleepsift/sleepsift-cli/internal/pipeline"
	"github.com/sleepsift/sleepsift-cli/internal/sleep"
	"github.com/sleepsift/sleepsift-cli/internal/tracker"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	alertColor  = color.New(color.FgRed, color.Bold)
	okColor     = color.New(color.FgGreen, color.Bold)
	dimColor    = color.New(color.Faint)
	warnColor   = color.New(color.FgYellow)
)

// Options controls what the renderer includes.
type Options struct {
	// ShowN caps how many recent flagged days are listed.
	ShowN int
	// Narrative, when non-empty, is printed under the alert panel.
	Narrative string
}

// Render writes the full run report: per-metric summary statistics, recent
// flagged days, and the latest-day verdict.
func Render(w io.Writer, device tracker.Device, res *pipeline.Result, fetch *tracker.FetchReport, opts Options) {
	headerColor.Fprintf(w, "Sleep analysis for %s\n", device.Name)
	first := res.Frame.Days[0].DateString()
	last := res.Frame.Days[len(res.Frame.Days)-1].DateString()
	dimColor.Fprintf(w, "%d nights, %s to %s\n\n", len(res.Frame.Days), first, last)

	renderSummary(w, res.Frame)
	renderFetch(w, fetch)
	renderOutliers(w, res.Frame, opts.ShowN)
	renderVerdict(w, res, opts)
}

func renderSummary(w io.Writer, frame *sleep.Frame) {
	headerColor.Fprintln(w, "Window statistics")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "metric\tmean\tmin\tmax\tsd")
	for _, col := range frame.Columns {
		vals := columnValues(frame, col)
		if len(vals) == 0 {
			continue
		}
		mean, std := meanStd(vals)
		sort.Float64s(vals)
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\n", col, mean, vals[0], vals[len(vals)-1], std)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func renderFetch(w io.Writer, fetch *tracker.FetchReport) {
	if fetch == nil {
		return
	}
	dimColor.Fprintf(w, "Fetched %d days from API, %d from cache\n", fetch.CacheMisses, fetch.CacheHits)
	if n := len(fetch.FailedDates); n > 0 {
		warnColor.Fprintf(w, "%d dates could not be fetched\n", n)
	}
	if n := len(fetch.IncompleteDates); n > 0 {
		warnColor.Fprintf(w, "%d dates had incomplete data and were skipped\n", n)
	}
	fmt.Fprintln(w)
}

func renderOutliers(w io.Writer, frame *sleep.Frame, showN int) {
	outliers := frame.Outliers()
	if len(outliers) == 0 {
		okColor.Fprintln(w, "No anomalous nights in the window")
		fmt.Fprintln(w)
		return
	}
	if showN <= 0 {
		showN = 5
	}
	if len(outliers) > showN {
		outliers = outliers[len(outliers)-showN:]
	}
	headerColor.Fprintf(w, "Recent anomalous nights (showing %d)\n", len(outliers))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "date\toutlier\thr\trr\thours\tquality")
	for _, d := range outliers {
		fmt.Fprintf(tw, "%s\t%.3f\t%s\t%s\t%s\t%s\n",
			d.DateString(), d.OutlierScore,
			fmtObs(d.HeartRateAvg), fmtObs(d.RespRateAvg),
			fmtObs(d.SleepDurationHours), fmtObs(d.SleepScore))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func renderVerdict(w io.Writer, res *pipeline.Result, opts Options) {
	d := res.Decision
	if d.ForcedMiss {
		warnColor.Fprintln(w, "Forced outlier date not found in the window; ignored")
	}
	if d.ForcedApplied {
		dimColor.Fprintln(w, "A manual outlier override was applied")
	}
	if d.LatestIsOutlier {
		alertColor.Fprintf(w, "ALERT: last night (%s) was anomalous (score %.3f)\n",
			d.Latest.DateString(), d.Latest.OutlierScore)
	} else {
		okColor.Fprintf(w, "All clear: last night (%s) looks normal (score %.3f)\n",
			d.Latest.DateString(), d.Latest.OutlierScore)
		if d.PriorOutlier != nil {
			dimColor.Fprintf(w, "Most recent anomalous night was %s\n", d.PriorOutlier.DateString())
		}
	}
	if opts.Narrative != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, opts.Narrative)
	}
}

// RenderCacheStats prints a one-line cache summary.
func RenderCacheStats(w io.Writer, s cache.Stats) {
	fmt.Fprintf(w, "cache: %d files (%d valid, %d expired)\n", s.TotalFiles, s.ValidFiles, s.ExpiredFiles)
}

func fmtObs(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func columnValues(frame *sleep.Frame, col string) []float64 {
	var vals []float64
	for i := range frame.Days {
		if v := frame.Days[i].Feature(col); v != nil && !math.IsNaN(*v) {
			vals = append(vals, *v)
		}
	}
	return vals
}

func meanStd(vals []float64) (mean, std float64) {
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	for _, v := range vals {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(vals)))
	return mean, std
}
