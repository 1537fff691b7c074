package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sleepsift/sleepsift-cli/internal/tracker"
)

var trackersCmd = &cobra.Command{
	Use:   "trackers",
	Short: "List supported sleep tracker vendors",
	Run: func(cmd *cobra.Command, args []string) {
		current := ""
		if cfg != nil {
			current = cfg.Tracker
		}
		for _, name := range tracker.Names() {
			if name == current {
				fmt.Printf("%s (configured)\n", name)
			} else {
				fmt.Println(name)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(trackersCmd)
}
