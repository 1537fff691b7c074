package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sleepsift/sleepsift-cli/internal/ai"
	"github.com/sleepsift/sleepsift-cli/internal/cache"
	"github.com/sleepsift/sleepsift-cli/internal/config"
	"github.com/sleepsift/sleepsift-cli/internal/history"
	"github.com/sleepsift/sleepsift-cli/internal/notify"
	"github.com/sleepsift/sleepsift-cli/internal/pipeline"
	"github.com/sleepsift/sleepsift-cli/internal/report"
	"github.com/sleepsift/sleepsift-cli/internal/sleep"
	"github.com/sleepsift/sleepsift-cli/internal/tracker"
	"github.com/sleepsift/sleepsift-cli/internal/utils"
)

var (
	flagTrackerName   string
	flagTrainDays     int
	flagContamination float64
	flagShowN         int
	flagAlert         bool
	flagExplain       bool
	flagForceOutlier  string
	flagManualDevices bool
	flagNoCache       bool
	flagClearCache    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch recent sleep data and flag anomalous nights",
	Long: `Run fetches the training window of daily sleep metrics for every device
on the account, trains an isolation forest, and reports which nights look
anomalous. Each device is analyzed independently; one device failing does
not stop the others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return errors.New("configuration could not be loaded; run 'sleepsift config set' first")
		}
		applyRunFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		if flagForceOutlier != "" {
			if _, err := time.Parse(sleep.DateLayout, flagForceOutlier); err != nil {
				return &config.ValidationError{
					Field:  "force-outlier",
					Reason: fmt.Sprintf("must be YYYY-MM-DD, got %q", flagForceOutlier),
				}
			}
		}
		return runDetection(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVar(&flagTrackerName, "tracker", "", "tracker vendor to use (overrides config)")
	runCmd.Flags().IntVar(&flagTrainDays, "train-days", 0, "training window in days (overrides config)")
	runCmd.Flags().Float64Var(&flagContamination, "contamination", 0, "expected anomaly fraction, 0 < f < 1 (overrides config)")
	runCmd.Flags().IntVar(&flagShowN, "show-n", 0, "how many recent anomalous nights to list (overrides config)")
	runCmd.Flags().BoolVar(&flagAlert, "alert", false, "send a push notification if last night is anomalous")
	runCmd.Flags().BoolVar(&flagExplain, "explain", false, "ask the analysis model to explain a flagged night")
	runCmd.Flags().StringVar(&flagForceOutlier, "force-outlier", "", "treat this date (YYYY-MM-DD) as anomalous regardless of the model")
	runCmd.Flags().BoolVar(&flagManualDevices, "manual-devices", false, "skip device auto-discovery, use configured device IDs")
	runCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "bypass the response cache for this run")
	runCmd.Flags().BoolVar(&flagClearCache, "clear-cache", false, "clear the response cache before fetching")
	rootCmd.AddCommand(runCmd)
}

func applyRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("tracker") && flagTrackerName != "" {
		cfg.Tracker = flagTrackerName
	}
	if f.Changed("train-days") && flagTrainDays > 0 {
		cfg.TrainWindowDays = flagTrainDays
	}
	if f.Changed("contamination") && flagContamination > 0 {
		cfg.Contamination = flagContamination
	}
	if f.Changed("show-n") && flagShowN > 0 {
		cfg.ShowN = flagShowN
	}
}

func runDetection(ctx context.Context) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	if flagClearCache && c != nil {
		removed := c.Clear()
		fmt.Printf("Cleared %d cached responses\n", removed)
	}

	trk, err := tracker.New(cfg.Tracker, cfg, c)
	if err != nil {
		return err
	}
	if err := trk.Authenticate(ctx); err != nil {
		return err
	}
	devices, err := trk.Devices(ctx, !flagManualDevices)
	if err != nil {
		return err
	}
	debugf("analyzing %d device(s) with tracker %s", len(devices), trk.Name())

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -(cfg.TrainWindowDays - 1))

	var hist *history.Store
	if cfg.HistoryEnabled {
		hist, err = history.Open(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer hist.Close()
		if err := hist.Init(ctx); err != nil {
			return fmt.Errorf("init history: %w", err)
		}
	}

	var failures int
	for _, dev := range devices {
		if err := analyzeDevice(ctx, trk, dev, c, hist, start, end); err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "⚠ %s: %v\n", dev.Name, err)
		}
	}
	if failures == len(devices) {
		return fmt.Errorf("all %d device(s) failed", len(devices))
	}
	return nil
}

func analyzeDevice(ctx context.Context, trk tracker.Tracker, dev tracker.Device, c *cache.Cache, hist *history.Store, start, end time.Time) error {
	days, fetchRep, err := trk.FetchDays(ctx, dev.ID, start, end)
	if err != nil {
		return err
	}
	res, err := pipeline.Run(days, pipeline.Params{
		Contamination:    cfg.Contamination,
		ForceOutlierDate: flagForceOutlier,
	})
	if err != nil {
		return err
	}
	if debug {
		if b, err := utils.PrettyJSON(fetchRep); err == nil {
			debugf("fetch report for %s: %s", dev.ID, b)
		}
	}

	opts := report.Options{ShowN: cfg.ShowN}
	// A flagged latest night is explained automatically when an API key is
	// configured; --explain extends this to the most recent prior anomaly.
	if res.Decision.LatestIsOutlier || flagExplain {
		if cfg.APIKey == "" {
			if flagExplain {
				fmt.Fprintln(os.Stderr, "⚠ Warning: api_key not configured, skipping explanation")
			}
		} else if n, err := explainNight(ctx, res); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: explanation unavailable: %v\n", err)
		} else if n != "" {
			opts.Narrative = n
		}
	}
	report.Render(os.Stdout, dev, res, fetchRep, opts)

	if flagAlert && res.Decision.LatestIsOutlier {
		if err := sendAlert(ctx, trk, dev, res); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: notification failed: %v\n", err)
		}
	}
	if hist != nil {
		if err := hist.SaveRun(ctx, trk.Name(), dev.ID, dev.Name, res, cfg.Contamination); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: history not saved: %v\n", err)
		}
	}
	return nil
}

// explainNight asks the analysis model about the alerting candidate, or the
// most recent prior anomaly when last night was clean.
func explainNight(ctx context.Context, res *pipeline.Result) (string, error) {
	day := res.Decision.Latest
	if !res.Decision.LatestIsOutlier {
		if res.Decision.PriorOutlier == nil {
			return "", nil
		}
		day = res.Decision.PriorOutlier
	}
	client := ai.NewClientWithBaseURL(
		cfg.APIKey,
		time.Duration(cfg.HTTPTimeoutSec)*time.Second,
		cfg.RetryMaxAttempts,
		time.Duration(cfg.RetryBaseDelayMs)*time.Millisecond,
		time.Duration(cfg.RetryMaxDelayMs)*time.Millisecond,
		cfg.APIBaseURL,
	)
	return client.ExplainAnomaly(ctx, ai.NarrativeRequest{
		Frame:       res.Frame,
		Day:         day,
		Model:       cfg.AnalysisModel,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
}

func sendAlert(ctx context.Context, trk tracker.Tracker, dev tracker.Device, res *pipeline.Result) error {
	p := notify.NewPushover(cfg.PushoverToken, cfg.PushoverUser)
	msg := fmt.Sprintf("%s: %s was anomalous (score %.3f)",
		dev.Name, res.Decision.Latest.DateString(), res.Decision.Latest.OutlierScore)
	err := p.Send(ctx, trk.NotificationTitle(), msg)
	if errors.Is(err, notify.ErrNotConfigured) {
		fmt.Fprintln(os.Stderr, "⚠ Warning: pushover not configured, skipping notification")
		return nil
	}
	return err
}

func openCache() (*cache.Cache, error) {
	if flagNoCache || !cfg.CacheEnabled {
		return nil, nil
	}
	return cache.New(cfg.CacheDir, cfg.CacheTTLHours)
}
