package app

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/costlens/internal/analytics"
	"github.com/odyssey-erp/costlens/internal/fx"
	"github.com/odyssey-erp/costlens/internal/ingest"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// RedisAddr may be empty to run without the view cache.
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	RatesFile      string  `envconfig:"RATES_FILE"`
	StatusFilter   bool    `envconfig:"STATUS_FILTER" default:"true"`
	TopN           int     `envconfig:"TOP_N" default:"10"`
	TableN         int     `envconfig:"TABLE_N" default:"15"`
	StatusTopN     int     `envconfig:"STATUS_TOP_N" default:"8"`
	MarginFloor    float64 `envconfig:"MARGIN_FLOOR" default:"0"`
	MaxUploadBytes int64   `envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`

	RefreshSource string `envconfig:"REFRESH_SOURCE"`
	RefreshCron   string `envconfig:"REFRESH_CRON"`
}

// LoadConfig reads an optional .env file, then configuration from
// environment variables. Variables already set win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.RefreshCron != "" && cfg.RefreshSource == "" {
		return nil, errors.New("refresh cron requires REFRESH_SOURCE")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, errors.New("max upload bytes must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// LoadRates reads the configured rate file, falling back to the built-in
// table when none is set.
func (c *Config) LoadRates() (*fx.RateTable, error) {
	return fx.LoadRateFile(c.RatesFile)
}

// AnalyticsOptions builds the view options from configuration.
func (c *Config) AnalyticsOptions(rates *fx.RateTable) analytics.Options {
	return analytics.Options{
		StatusFilter: c.StatusFilter,
		Rates:        rates,
		TopN:         c.TopN,
		TableN:       c.TableN,
		StatusTopN:   c.StatusTopN,
		MarginFloor:  c.MarginFloor,
	}
}

// IngestOptions builds the normalization options from configuration.
func (c *Config) IngestOptions(rates *fx.RateTable) ingest.Options {
	return ingest.Options{StatusFilter: c.StatusFilter, Rates: rates}
}
