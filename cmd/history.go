package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sleepsift/sleepsift-cli/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse archived runs and flagged nights",
}

var historyRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openHistory()
		if err != nil {
			return err
		}
		defer s.Close()
		runs, err := s.RecentRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No archived runs")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "executed\tdevice\ttracker\twindow\toutliers\tlatest")
		for _, r := range runs {
			latest := "clean"
			if r.LatestFlagged {
				latest = "FLAGGED"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%dd\t%d\t%s\n",
				r.ExecutedAt.Format(time.RFC3339), r.DeviceName, r.Tracker, r.WindowDays, r.OutlierCount, latest)
		}
		return tw.Flush()
	},
}

var historyDeviceID string

var historyOutliersCmd = &cobra.Command{
	Use:   "outliers",
	Short: "List archived anomalous nights for a device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyDeviceID == "" {
			return errors.New("--device is required")
		}
		s, err := openHistory()
		if err != nil {
			return err
		}
		defer s.Close()
		nights, err := s.OutlierNights(cmd.Context(), historyDeviceID, historyLimit)
		if err != nil {
			return err
		}
		if len(nights) == 0 {
			fmt.Println("No archived anomalous nights")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "date\tscore\thr\trr\thours\tquality")
		for _, n := range nights {
			fmt.Fprintf(tw, "%s\t%.3f\t%s\t%s\t%s\t%s\n",
				n.Date, n.Score,
				fmtNull(n.HeartRate), fmtNull(n.RespRate), fmtNull(n.SleepHours), fmtNull(n.SleepQuality))
		}
		return tw.Flush()
	},
}

func openHistory() (*history.Store, error) {
	if cfg == nil {
		return nil, errors.New("configuration could not be loaded")
	}
	s, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return nil, err
	}
	if err := s.Init(context.Background()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func fmtNull(v sql.NullFloat64) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%.1f", v.Float64)
}

func init() {
	historyCmd.PersistentFlags().IntVar(&historyLimit, "limit", 10, "max rows to show")
	historyOutliersCmd.Flags().StringVar(&historyDeviceID, "device", "", "device ID to filter on")
	historyCmd.AddCommand(historyRunsCmd)
	historyCmd.AddCommand(historyOutliersCmd)
	rootCmd.AddCommand(historyCmd)
}
