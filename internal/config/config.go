package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the quote board.
type Config struct {
	// Batch pacing
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RequestDelay    time.Duration `mapstructure:"request_delay"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	SourceRateLimit float64       `mapstructure:"source_rate_limit"`

	// Base URLs for the quote endpoints (configurable for testing)
	ChartBaseURL   string `mapstructure:"chart_base_url"`
	SummaryBaseURL string `mapstructure:"summary_base_url"`
	BatchBaseURL   string `mapstructure:"batch_base_url"`

	// Optional relay prefixes, one per endpoint
	ChartRelay   string `mapstructure:"chart_relay"`
	SummaryRelay string `mapstructure:"summary_relay"`
	BatchRelay   string `mapstructure:"batch_relay"`

	// HTTP API; empty disables it
	ListenAddr string `mapstructure:"listen_addr"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"refresh_interval":  "REFRESH_INTERVAL",
	"request_delay":     "REQUEST_DELAY",
	"request_timeout":   "REQUEST_TIMEOUT",
	"source_rate_limit": "SOURCE_RATE_LIMIT",
	"chart_base_url":    "CHART_BASE_URL",
	"summary_base_url":  "SUMMARY_BASE_URL",
	"batch_base_url":    "BATCH_BASE_URL",
	"chart_relay":       "CHART_RELAY",
	"summary_relay":     "SUMMARY_RELAY",
	"batch_relay":       "BATCH_RELAY",
	"listen_addr":       "LISTEN_ADDR",
	"log_level":         "LOG_LEVEL",
	"log_format":        "LOG_FORMAT",
}

// Load reads configuration from environment variables and optional config file.
// Environment variables take precedence over config file values.
//
// Every setting has a default; see envBindings for the variable names.
func Load() (*Config, error) {
	v := viper.New()

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	v.SetDefault("refresh_interval", 5*time.Minute)
	v.SetDefault("request_delay", 300*time.Millisecond)
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("source_rate_limit", 5.0)
	v.SetDefault("chart_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("summary_base_url", "https://query2.finance.yahoo.com")
	v.SetDefault("batch_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("chart_relay", "")
	v.SetDefault("summary_relay", "")
	v.SetDefault("batch_relay", "")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.mervalboard")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.RefreshInterval <= 0 {
		problems = append(problems, "REFRESH_INTERVAL must be positive")
	}
	if c.RequestDelay < 0 {
		problems = append(problems, "REQUEST_DELAY must not be negative")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "REQUEST_TIMEOUT must be positive")
	}
	if c.SourceRateLimit < 0 {
		problems = append(problems, "SOURCE_RATE_LIMIT must not be negative")
	}
	if c.ChartBaseURL == "" {
		problems = append(problems, "CHART_BASE_URL is empty")
	}
	if c.SummaryBaseURL == "" {
		problems = append(problems, "SUMMARY_BASE_URL is empty")
	}
	if c.BatchBaseURL == "" {
		problems = append(problems, "BATCH_BASE_URL is empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("LOG_FORMAT %q is not text or json", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}
