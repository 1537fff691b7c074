package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ValidationError reports an invalid configuration value. Validation runs
// eagerly, before any data is fetched; a validation failure is fatal to the
// run and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// Global configuration structure.
type Global struct {
	// Detection parameters
	Tracker         string  `mapstructure:"tracker" yaml:"tracker"`
	Contamination   float64 `mapstructure:"contamination" yaml:"contamination"`
	TrainWindowDays int     `mapstructure:"train_window_days" yaml:"train_window_days"`
	ShowN           int     `mapstructure:"show_n" yaml:"show_n"`

	// Cache
	CacheDir      string `mapstructure:"cache_dir" yaml:"cache_dir"`
	CacheEnabled  bool   `mapstructure:"cache_enabled" yaml:"cache_enabled"`
	CacheTTLHours int    `mapstructure:"cache_ttl_hours" yaml:"cache_ttl_hours"`

	// Emfit credentials
	EmfitUsername  string `mapstructure:"emfit_username" yaml:"emfit_username"`
	EmfitPassword  string `mapstructure:"emfit_password" yaml:"emfit_password"`
	EmfitToken     string `mapstructure:"emfit_token" yaml:"emfit_token"`
	EmfitDeviceID  string `mapstructure:"emfit_device_id" yaml:"emfit_device_id"`
	EmfitDeviceIDs string `mapstructure:"emfit_device_ids" yaml:"emfit_device_ids"`

	// Oura credentials
	OuraAPIToken string `mapstructure:"oura_api_token" yaml:"oura_api_token"`
	OuraDeviceID string `mapstructure:"oura_device_id" yaml:"oura_device_id"`

	// Eight Sleep credentials
	EightEmail    string `mapstructure:"eight_email" yaml:"eight_email"`
	EightPassword string `mapstructure:"eight_password" yaml:"eight_password"`
	EightDeviceID string `mapstructure:"eight_device_id" yaml:"eight_device_id"`

	// Pushover
	PushoverToken string `mapstructure:"pushover_token" yaml:"pushover_token"`
	PushoverUser  string `mapstructure:"pushover_user" yaml:"pushover_user"`

	// Narrative analysis
	APIKey        string  `mapstructure:"api_key" yaml:"api_key"`
	APIBaseURL    string  `mapstructure:"api_base_url" yaml:"api_base_url"`
	AnalysisModel string  `mapstructure:"analysis_model" yaml:"analysis_model"`
	MaxTokens     int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature   float64 `mapstructure:"temperature" yaml:"temperature"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int     `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int     `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int     `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int     `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	APIRateLimit     float64 `mapstructure:"api_rate_limit" yaml:"api_rate_limit"`

	// History archive
	HistoryDB      string `mapstructure:"history_db" yaml:"history_db"`
	HistoryEnabled bool   `mapstructure:"history_enabled" yaml:"history_enabled"`
}

// Validate checks the detection parameters. It runs before any data is
// touched so a bad value never costs an API round-trip.
func (c *Global) Validate() error {
	if c.Contamination <= 0 || c.Contamination >= 1 {
		return &ValidationError{Field: "contamination", Reason: fmt.Sprintf("must be between 0 and 1, got %g", c.Contamination)}
	}
	if c.TrainWindowDays < 7 {
		return &ValidationError{Field: "train_window_days", Reason: fmt.Sprintf("must be at least 7 days, got %d", c.TrainWindowDays)}
	}
	if c.ShowN < 1 {
		return &ValidationError{Field: "show_n", Reason: fmt.Sprintf("must be at least 1, got %d", c.ShowN)}
	}
	if c.CacheTTLHours < 1 {
		return &ValidationError{Field: "cache_ttl_hours", Reason: fmt.Sprintf("must be at least 1, got %d", c.CacheTTLHours)}
	}
	if c.APIRateLimit <= 0 {
		return &ValidationError{Field: "api_rate_limit", Reason: fmt.Sprintf("must be positive, got %g", c.APIRateLimit)}
	}
	return nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is
// empty, it writes to ~/.sleepsift/config.yaml, creating the directory if
// necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".sleepsift")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SLEEPSIFT")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("tracker", "emfit")
	v.SetDefault("contamination", 0.05)
	v.SetDefault("train_window_days", 90)
	v.SetDefault("show_n", 5)
	v.SetDefault("cache_enabled", true)
	v.SetDefault("cache_ttl_hours", 24)
	v.SetDefault("analysis_model", "gpt-4o-mini")
	v.SetDefault("api_base_url", "https://api.openai.com/v1")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.3)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("api_rate_limit", 4.0)
	// History defaults
	v.SetDefault("history_enabled", false)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".sleepsift")
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve path defaults under the config dir.
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(home, ".sleepsift", "cache")
	}
	if c.HistoryDB == "" {
		c.HistoryDB = filepath.Join(home, ".sleepsift", "history.db")
	}
	return &c, nil
}
