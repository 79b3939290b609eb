package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	YouTube  YouTubeConfig  `yaml:"youtube"`
	Database DatabaseConfig `yaml:"database"`
	History  HistoryConfig  `yaml:"history"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Watch    WatchConfig    `yaml:"watch"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

// YouTubeConfig configures the YouTube Data API client.
type YouTubeConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	RequestTimeout    string  `yaml:"request_timeout"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxPages          int     `yaml:"max_pages"`        // 0 = unlimited
	BreakerFailures   uint32  `yaml:"breaker_failures"` // 0 = no circuit breaker
	BreakerCooldown   string  `yaml:"breaker_cooldown"`
}

// ParseRequestTimeout returns the per-call timeout as time.Duration.
func (y YouTubeConfig) ParseRequestTimeout() time.Duration {
	d, err := time.ParseDuration(y.RequestTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// ParseBreakerCooldown returns how long the circuit breaker stays open.
func (y YouTubeConfig) ParseBreakerCooldown() time.Duration {
	d, err := time.ParseDuration(y.BreakerCooldown)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig toggles recording of finished analyses.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int    `yaml:"port"`
	AnalysisTimeout string `yaml:"analysis_timeout"`
}

// ParseAnalysisTimeout returns the whole-request deadline for one rating.
func (s ServerConfig) ParseAnalysisTimeout() time.Duration {
	d, err := time.ParseDuration(s.AnalysisTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// WatchConfig configures the periodic re-rating daemon.
type WatchConfig struct {
	Interval   string   `yaml:"interval"`
	Videos     []string `yaml:"videos"`
	AlertBelow float64  `yaml:"alert_below"`
}

// ParseInterval returns the watch interval as time.Duration.
func (w WatchConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(w.Interval)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		YouTube: YouTubeConfig{
			RequestTimeout:    "15s",
			RequestsPerSecond: 5,
			Burst:             5,
			BreakerFailures:   5,
			BreakerCooldown:   "30s",
		},
		Database: DatabaseConfig{Path: "./tuberate.db"},
		History:  HistoryConfig{Enabled: true},
		Server:   ServerConfig{Port: 8080, AnalysisTimeout: "2m"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Watch: WatchConfig{
			Interval:   "6h",
			AlertBelow: 2.5,
		},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks the settings needed to talk to YouTube.
func (c *Config) Validate() error {
	var errs []error
	if c.YouTube.APIKey == "" {
		errs = append(errs, errors.New("youtube.api_key is required (or set YOUTUBE_API_KEY)"))
	}
	if c.YouTube.MaxPages < 0 {
		errs = append(errs, errors.New("youtube.max_pages must not be negative"))
	}
	if c.Watch.AlertBelow < 0 || c.Watch.AlertBelow > 5 {
		errs = append(errs, fmt.Errorf("watch.alert_below must be within [0, 5], got %v", c.Watch.AlertBelow))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.YouTube.APIKey = v
	}
	if v := os.Getenv("TUBERATE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TUBERATE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TUBERATE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}
