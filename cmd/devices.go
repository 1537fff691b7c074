package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sleepsift/sleepsift-cli/internal/tracker"
)

var devicesManual bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices on the configured tracker account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return errors.New("configuration could not be loaded")
		}
		c, err := openCache()
		if err != nil {
			return err
		}
		trk, err := tracker.New(cfg.Tracker, cfg, c)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := trk.Authenticate(ctx); err != nil {
			return err
		}
		devices, err := trk.Devices(ctx, !devicesManual)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "id\tname")
		for _, d := range devices {
			fmt.Fprintf(tw, "%s\t%s\n", d.ID, d.Name)
		}
		return tw.Flush()
	},
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesManual, "manual", false, "skip auto-discovery, list configured device IDs")
	rootCmd.AddCommand(devicesCmd)
}
