package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds configuration for the activity engine
type Config struct {
	// WebSocket endpoint delivering recent-activity snapshots
	PushURL string `mapstructure:"push_url"`

	// HTTP endpoint polled when the push channel is unavailable
	PollURL string `mapstructure:"poll_url"`

	// Fallback polling interval in seconds
	PollInterval int `mapstructure:"poll_interval"`

	// How long an unresolved push dial may hang before polling is
	// force-started, in seconds
	GracePeriod int `mapstructure:"grace_period"`

	// Rows per dashboard page; also the snapshot size requested on polls
	PageSize int `mapstructure:"page_size"`

	// How long a high severity alert stays up, in seconds
	AlertDuration int `mapstructure:"alert_duration"`

	// Path to the SQLite activity archive used as seed data (optional)
	ArchivePath string `mapstructure:"archive_path"`

	// IANA timezone name for exported dates (empty = system local)
	Timezone string `mapstructure:"timezone"`

	// Listen address for the Prometheus /metrics endpoint (optional)
	MetricsListen string `mapstructure:"metrics_listen"`

	// Log level (debug, info, warn, error)
	LogLevel string `mapstructure:"log_level"`
}

// LoadConfig loads configuration from file and environment variables.
// Environment variables have the TV_ prefix (e.g., TV_PUSH_URL).
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("poll_interval", 10)
	v.SetDefault("grace_period", 2)
	v.SetDefault("page_size", 5)
	v.SetDefault("alert_duration", 4)
	v.SetDefault("log_level", "info")

	// Load from config file if it exists
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Environment variables override config file
	v.SetEnvPrefix("TV") // ThreatView
	v.AutomaticEnv()

	// Bind specific environment variables (errors are intentionally ignored as BindEnv only fails for empty keys)
	_ = v.BindEnv("push_url")
	_ = v.BindEnv("poll_url")
	_ = v.BindEnv("poll_interval")
	_ = v.BindEnv("grace_period")
	_ = v.BindEnv("page_size")
	_ = v.BindEnv("alert_duration")
	_ = v.BindEnv("archive_path")
	_ = v.BindEnv("timezone")
	_ = v.BindEnv("metrics_listen")
	_ = v.BindEnv("log_level")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if config.PushURL == "" {
		return nil, fmt.Errorf("push_url is required")
	}
	if config.PollURL == "" {
		return nil, fmt.Errorf("poll_url is required")
	}

	return &config, nil
}

// GetLogger creates a logger based on the log level in config
// Output is JSON format with timestamp as the first field
func (c *Config) GetLogger() *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Use JSON handler for structured logging
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler)
}

// Location resolves the configured export timezone. An empty value means
// the system local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
