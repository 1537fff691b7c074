package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sleepsift/sleepsift-cli/internal/cache"
	"github.com/sleepsift/sleepsift-cli/internal/report"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the API response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache file counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireCache()
		if err != nil {
			return err
		}
		report.RenderCacheStats(os.Stdout, c.GetStats())
		return nil
	},
}

var cacheClearExpired bool

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireCache()
		if err != nil {
			return err
		}
		var removed int
		if cacheClearExpired {
			removed = c.ClearExpired()
		} else {
			removed = c.Clear()
		}
		fmt.Printf("Removed %d cached responses\n", removed)
		return nil
	},
}

func requireCache() (*cache.Cache, error) {
	if cfg == nil {
		return nil, errors.New("configuration could not be loaded")
	}
	return cache.New(cfg.CacheDir, cfg.CacheTTLHours)
}

func init() {
	cacheClearCmd.Flags().BoolVar(&cacheClearExpired, "expired", false, "remove only expired entries")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
