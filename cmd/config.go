package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/sleepsift/sleepsift-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set SleepSift configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("tracker: %s\n", cfg.Tracker)
		fmt.Printf("contamination: %.3f\n", cfg.Contamination)
		fmt.Printf("train_window_days: %d\n", cfg.TrainWindowDays)
		fmt.Printf("show_n: %d\n", cfg.ShowN)
		fmt.Printf("cache_enabled: %t\n", cfg.CacheEnabled)
		fmt.Printf("cache_dir: %s\n", cfg.CacheDir)
		fmt.Printf("cache_ttl_hours: %d\n", cfg.CacheTTLHours)
		if cfg.EmfitToken != "" {
			fmt.Printf("emfit_token: %s\n", mask(cfg.EmfitToken))
		}
		if cfg.EmfitUsername != "" {
			fmt.Printf("emfit_username: %s\n", cfg.EmfitUsername)
		}
		if cfg.EmfitDeviceID != "" {
			fmt.Printf("emfit_device_id: %s\n", cfg.EmfitDeviceID)
		}
		if cfg.EmfitDeviceIDs != "" {
			fmt.Printf("emfit_device_ids: %s\n", cfg.EmfitDeviceIDs)
		}
		if cfg.OuraAPIToken != "" {
			fmt.Printf("oura_api_token: %s\n", mask(cfg.OuraAPIToken))
		}
		if cfg.EightEmail != "" {
			fmt.Printf("eight_email: %s\n", cfg.EightEmail)
		}
		if cfg.PushoverToken != "" {
			fmt.Printf("pushover_token: %s\n", mask(cfg.PushoverToken))
		}
		if cfg.PushoverUser != "" {
			fmt.Printf("pushover_user: %s\n", mask(cfg.PushoverUser))
		}
		fmt.Printf("api_key: %s\n", mask(cfg.APIKey))
		fmt.Printf("api_base_url: %s\n", cfg.APIBaseURL)
		fmt.Printf("analysis_model: %s\n", cfg.AnalysisModel)
		fmt.Printf("max_tokens: %d\n", cfg.MaxTokens)
		fmt.Printf("temperature: %.3f\n", cfg.Temperature)
		fmt.Printf("history_enabled: %t\n", cfg.HistoryEnabled)
		fmt.Printf("history_db: %s\n", cfg.HistoryDB)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigKey(cfg, key, val); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func setConfigKey(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "tracker":
		c.Tracker = val
	case "contamination":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for contamination: %w", err)
		}
		c.Contamination = f
	case "train_window_days":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for train_window_days: %w", err)
		}
		c.TrainWindowDays = i
	case "show_n":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for show_n: %w", err)
		}
		c.ShowN = i
	case "cache_enabled":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for cache_enabled: %w", err)
		}
		c.CacheEnabled = b
	case "cache_dir":
		c.CacheDir = val
	case "cache_ttl_hours":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for cache_ttl_hours: %w", err)
		}
		c.CacheTTLHours = i
	case "emfit_username":
		c.EmfitUsername = val
	case "emfit_password":
		c.EmfitPassword = val
	case "emfit_token":
		c.EmfitToken = val
	case "emfit_device_id":
		c.EmfitDeviceID = val
	case "emfit_device_ids":
		c.EmfitDeviceIDs = val
	case "oura_api_token":
		c.OuraAPIToken = val
	case "oura_device_id":
		c.OuraDeviceID = val
	case "eight_email":
		c.EightEmail = val
	case "eight_password":
		c.EightPassword = val
	case "eight_device_id":
		c.EightDeviceID = val
	case "pushover_token":
		c.PushoverToken = val
	case "pushover_user":
		c.PushoverUser = val
	case "api_key":
		c.APIKey = val
	case "api_base_url":
		c.APIBaseURL = val
	case "analysis_model":
		c.AnalysisModel = val
	case "max_tokens":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for max_tokens: %w", err)
		}
		c.MaxTokens = i
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for temperature: %w", err)
		}
		c.Temperature = f
	case "history_enabled":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for history_enabled: %w", err)
		}
		c.HistoryEnabled = b
	case "history_db":
		c.HistoryDB = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
