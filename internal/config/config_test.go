package config

import (
	"os"
	"testing"
	"time"

	"github.com/rewired-gh/linewatch/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
betsapi:
  token: "file_token"
  timeout: 5s

poll:
  rate_divisor: 30

detector:
  medium_threshold: 0.8
  lookback: 120s
  excluded_categories:
    - esoccer
    - ebasketball

alerts:
  soft_channel: "-1001"
  medium_channel: "-1002"
  hard_channel: "-1003"
  notice_channel: "-1004"

telegram:
  bot_token: "test_token"
  enabled: true
  admin_ids: [11, 22]

logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BetsAPI.Token != "file_token" || cfg.BetsAPI.Timeout != 5*time.Second {
		t.Errorf("Unexpected betsapi config: %+v", cfg.BetsAPI)
	}
	if cfg.BetsAPI.EventsURL == "" || cfg.BetsAPI.SportID != 1 {
		t.Errorf("Defaults not applied: %+v", cfg.BetsAPI)
	}
	if cfg.Poll.RateDivisor != 30 || cfg.Poll.Unit != time.Second {
		t.Errorf("Unexpected poll config: %+v", cfg.Poll)
	}
	if cfg.Detector.MediumThreshold != 0.8 || cfg.Detector.SoftThreshold != 0.5 {
		t.Errorf("Unexpected thresholds: %+v", cfg.Detector)
	}
	if cfg.Detector.Lookback != 120*time.Second || cfg.Detector.Buffer != 150*time.Second {
		t.Errorf("Unexpected windows: %v %v", cfg.Detector.Lookback, cfg.Detector.Buffer)
	}
	if len(cfg.Detector.ExcludedCategories) != 2 {
		t.Errorf("Expected 2 excluded categories, got %d", len(cfg.Detector.ExcludedCategories))
	}
	if len(cfg.Telegram.AdminIDs) != 2 || cfg.Telegram.AdminIDs[1] != 22 {
		t.Errorf("Unexpected admin ids: %v", cfg.Telegram.AdminIDs)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "betsapi:\n  token: file_token\n")
	t.Setenv("LINEWATCH_BETSAPI_TOKEN", "env_token")
	t.Setenv("LINEWATCH_DETECTOR_HARD_THRESHOLD", "1.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BetsAPI.Token != "env_token" {
		t.Errorf("token = %q, want env override", cfg.BetsAPI.Token)
	}
	if cfg.Detector.HardThreshold != 1.5 {
		t.Errorf("hard threshold = %v, want 1.5", cfg.Detector.HardThreshold)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/linewatch.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.BetsAPI.Token = "token"
	return cfg
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults with token", func(c *Config) {}, false},
		{"missing token", func(c *Config) { c.BetsAPI.Token = "" }, true},
		{"zero rate divisor", func(c *Config) { c.Poll.RateDivisor = 0 }, true},
		{"non-positive soft", func(c *Config) { c.Detector.SoftThreshold = 0 }, true},
		{"medium below soft", func(c *Config) { c.Detector.MediumThreshold = 0.4 }, true},
		{"hard below medium", func(c *Config) { c.Detector.HardThreshold = 0.6 }, true},
		{"sub-second lookback", func(c *Config) { c.Detector.Lookback = 500 * time.Millisecond }, true},
		{"negative buffer", func(c *Config) { c.Detector.Buffer = -time.Second }, true},
		{
			name: "missing telegram token when enabled",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Alerts.DefaultChannel = "-1"
			},
			wantErr: true,
		},
		{
			name: "telegram enabled without channels",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Telegram.BotToken = "bot"
			},
			wantErr: true,
		},
		{
			name: "telegram with default channel",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Telegram.BotToken = "bot"
				c.Alerts.DefaultChannel = "-1"
			},
			wantErr: false,
		},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMonitorConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Alerts.HardChannel = "-3"
	cfg.Alerts.DefaultChannel = "-9"
	cfg.Alerts.NoticeChannel = "-7"

	mc := cfg.MonitorConfig()
	if mc.Lookback != 150*time.Second || mc.SoftThreshold != 0.5 || mc.HardThreshold != 1.0 {
		t.Errorf("Unexpected detector config: %+v", mc)
	}
	if len(mc.Channels) != 1 || mc.Channels[models.Hard] != "-3" {
		t.Errorf("Channels = %v, want only HARD mapped", mc.Channels)
	}
	if mc.DefaultChannel != "-9" || mc.NoticeChannel != "-7" {
		t.Errorf("Unexpected fallback channels: %+v", mc)
	}
	if len(mc.ExcludedCategories) != 1 || mc.ExcludedCategories[0] != "esoccer" {
		t.Errorf("ExcludedCategories = %v", mc.ExcludedCategories)
	}
}

func TestPollDelay(t *testing.T) {
	cfg := validConfig(t)
	tests := []struct {
		processed int
		want      time.Duration
	}{
		{0, time.Second},
		{53, time.Second},
		{54, 2 * time.Second},
		{120, 3 * time.Second},
	}
	for _, tt := range tests {
		if got := cfg.PollDelay(tt.processed); got != tt.want {
			t.Errorf("PollDelay(%d) = %v, want %v", tt.processed, got, tt.want)
		}
	}
}
