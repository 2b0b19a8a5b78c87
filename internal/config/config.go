package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/linewatch/internal/detector"
	"github.com/rewired-gh/linewatch/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	BetsAPI  BetsAPIConfig  `mapstructure:"betsapi"`
	Poll     PollConfig     `mapstructure:"poll"`
	Detector DetectorConfig `mapstructure:"detector"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BetsAPIConfig holds data source configuration
type BetsAPIConfig struct {
	EventsURL      string        `mapstructure:"events_url"`
	OddsURL        string        `mapstructure:"odds_url"`
	Token          string        `mapstructure:"token"`
	SportID        int           `mapstructure:"sport_id"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// PollConfig controls the loop cadence. The delay after a cycle is
// (processed/rate_divisor + 1) * unit.
type PollConfig struct {
	RateDivisor  int           `mapstructure:"rate_divisor"`
	Unit         time.Duration `mapstructure:"unit"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
}

// DetectorConfig holds line-movement detection parameters
type DetectorConfig struct {
	SoftThreshold      float64       `mapstructure:"soft_threshold"`
	MediumThreshold    float64       `mapstructure:"medium_threshold"`
	HardThreshold      float64       `mapstructure:"hard_threshold"`
	Lookback           time.Duration `mapstructure:"lookback"`
	Buffer             time.Duration `mapstructure:"buffer"`
	ExcludedCategories []string      `mapstructure:"excluded_categories"`
	VenueBaseURL       string        `mapstructure:"venue_base_url"`
}

// AlertsConfig maps severities to destination channels
type AlertsConfig struct {
	SoftChannel    string `mapstructure:"soft_channel"`
	MediumChannel  string `mapstructure:"medium_channel"`
	HardChannel    string `mapstructure:"hard_channel"`
	DefaultChannel string `mapstructure:"default_channel"`
	NoticeChannel  string `mapstructure:"notice_channel"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	Enabled        bool          `mapstructure:"enabled"`
	AdminIDs       []int64       `mapstructure:"admin_ids"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds blacklist persistence configuration
type StorageConfig struct {
	DBPath        string `mapstructure:"db_path"`
	BlacklistFile string `mapstructure:"blacklist_file"` // JSON array imported on startup
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// LINEWATCH_BETSAPI_TOKEN overrides betsapi.token
	v.SetEnvPrefix("LINEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("betsapi.events_url", "https://api.b365api.com/v3/events/inplay")
	v.SetDefault("betsapi.odds_url", "https://api.b365api.com/v2/event/odds")
	v.SetDefault("betsapi.token", "")
	v.SetDefault("betsapi.sport_id", 1)
	v.SetDefault("betsapi.timeout", "15s")
	v.SetDefault("betsapi.max_retries", 2)
	v.SetDefault("betsapi.retry_delay_base", "1s")

	// 54 odds requests per second stays under the plan's rate limit
	v.SetDefault("poll.rate_divisor", 54)
	v.SetDefault("poll.unit", "1s")
	v.SetDefault("poll.error_backoff", "10s")

	v.SetDefault("detector.soft_threshold", 0.5)
	v.SetDefault("detector.medium_threshold", 0.75)
	v.SetDefault("detector.hard_threshold", 1.0)
	v.SetDefault("detector.lookback", "150s")
	v.SetDefault("detector.buffer", "150s")
	v.SetDefault("detector.excluded_categories", []string{"esoccer"})
	v.SetDefault("detector.venue_base_url", "https://betsapi.com/rs/bet365")

	v.SetDefault("alerts.soft_channel", "")
	v.SetDefault("alerts.medium_channel", "")
	v.SetDefault("alerts.hard_channel", "")
	v.SetDefault("alerts.default_channel", "")
	v.SetDefault("alerts.notice_channel", "")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.admin_ids", []int64{})
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "./data/linewatch.db")
	v.SetDefault("storage.blacklist_file", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9100")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate BetsAPI config
	if c.BetsAPI.EventsURL == "" {
		return fmt.Errorf("betsapi.events_url is required")
	}
	if c.BetsAPI.OddsURL == "" {
		return fmt.Errorf("betsapi.odds_url is required")
	}
	if c.BetsAPI.Token == "" {
		return fmt.Errorf("betsapi.token is required")
	}
	if c.BetsAPI.Timeout <= 0 {
		return fmt.Errorf("betsapi.timeout must be positive")
	}
	if c.BetsAPI.MaxRetries < 0 {
		return fmt.Errorf("betsapi.max_retries must not be negative")
	}

	// Validate Poll config
	if c.Poll.RateDivisor < 1 {
		return fmt.Errorf("poll.rate_divisor must be at least 1")
	}
	if c.Poll.Unit <= 0 {
		return fmt.Errorf("poll.unit must be positive")
	}
	if c.Poll.ErrorBackoff <= 0 {
		return fmt.Errorf("poll.error_backoff must be positive")
	}

	// Validate Detector config
	d := c.Detector
	if d.SoftThreshold <= 0 {
		return fmt.Errorf("detector.soft_threshold must be positive")
	}
	if d.MediumThreshold < d.SoftThreshold || d.HardThreshold < d.MediumThreshold {
		return fmt.Errorf("detector thresholds must satisfy soft <= medium <= hard")
	}
	if d.Lookback < time.Second {
		return fmt.Errorf("detector.lookback must be at least 1 second")
	}
	if d.Buffer < 0 {
		return fmt.Errorf("detector.buffer must not be negative")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		a := c.Alerts
		if a.DefaultChannel == "" && (a.SoftChannel == "" || a.MediumChannel == "" || a.HardChannel == "") {
			return fmt.Errorf("alerts.default_channel is required unless every severity has a channel")
		}
	}

	// Validate Metrics config
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// MonitorConfig converts the detector and alerts sections into the
// detector's runtime configuration.
func (c *Config) MonitorConfig() detector.Config {
	channels := map[models.Severity]string{}
	for sev, ch := range map[models.Severity]string{
		models.Soft:   c.Alerts.SoftChannel,
		models.Medium: c.Alerts.MediumChannel,
		models.Hard:   c.Alerts.HardChannel,
	} {
		if ch != "" {
			channels[sev] = ch
		}
	}

	return detector.Config{
		SoftThreshold:      c.Detector.SoftThreshold,
		MediumThreshold:    c.Detector.MediumThreshold,
		HardThreshold:      c.Detector.HardThreshold,
		Lookback:           c.Detector.Lookback,
		Buffer:             c.Detector.Buffer,
		Channels:           channels,
		DefaultChannel:     c.Alerts.DefaultChannel,
		NoticeChannel:      c.Alerts.NoticeChannel,
		ExcludedCategories: c.Detector.ExcludedCategories,
		VenueBaseURL:       c.Detector.VenueBaseURL,
	}
}

// PollDelay returns the wait before the next poll after processing n events.
func (c *Config) PollDelay(processed int) time.Duration {
	return detector.PollDelay(processed, c.Poll.RateDivisor, c.Poll.Unit)
}
