package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Search     SearchConfig     `yaml:"search"`
	Feed       FeedConfig       `yaml:"feed"`
	Jobs       JobsConfig       `yaml:"jobs"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Logging    LoggingConfig    `yaml:"logging"`
	Timezone   string           `yaml:"timezone"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// FeedConfig contains settings for the external mileage feed
type FeedConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	MaxRetries        int    `yaml:"max_retries"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds"`
}

// JobsConfig contains background job settings
type JobsConfig struct {
	DailySyncEnabled  bool   `yaml:"daily_sync_enabled"`
	DailySyncTime     string `yaml:"daily_sync_time"`
	NightlyRecalcTime string `yaml:"nightly_recalc_time"`
	AlertScanTime     string `yaml:"alert_scan_time"`
	RecalcWindowDays  int    `yaml:"recalc_window_days"`
	WorkerPollSeconds int    `yaml:"worker_poll_seconds"`
	WorkerMaxAttempts int    `yaml:"worker_max_attempts"`
}

// RateLimitConfig contains rate limiting settings for expensive endpoints
// (Excel import, bulk recalculation)
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
}

// ThresholdsConfig contains the maintenance limit and indicator tables.
// All maintenance constants live here so the calculator never hardcodes them.
type ThresholdsConfig struct {
	ServiceLimits      map[string]int64 `yaml:"service_limits"`
	DefaultLimit       int64            `yaml:"default_limit"`
	ForecastLimit      int64            `yaml:"forecast_limit"`
	MileageWarn        int64            `yaml:"mileage_warn"`
	MileageMax         int64            `yaml:"mileage_max"`
	DaysWarn           int              `yaml:"days_warn"`
	DaysMax            int              `yaml:"days_max"`
	BlockIntervalDays  int              `yaml:"block_interval_days"`
	KPIntervalDays     int              `yaml:"kp_interval_days"`
	AvgWindowDays      int              `yaml:"avg_window_days"`
	ServiceLLimit      int64            `yaml:"service_l_limit"`
	ServiceNLimit      int64            `yaml:"service_n_limit"`
	AvgCacheTTLMinutes int              `yaml:"avg_cache_ttl_minutes"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level        string `yaml:"level"`
	LogRequests  bool   `yaml:"log_requests"`
	LogResponses bool   `yaml:"log_responses"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			TimeoutSeconds:    30,
			MaxRetries:        5,
			RetryDelaySeconds: 60,
		},
		Jobs: JobsConfig{
			DailySyncEnabled:  false,
			DailySyncTime:     "05:00",
			NightlyRecalcTime: "02:00",
			AlertScanTime:     "06:00",
			RecalcWindowDays:  90,
			WorkerPollSeconds: 30,
			WorkerMaxAttempts: 5,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 10,
			RequestsPerHour:   120,
		},
		Thresholds: ThresholdsConfig{
			ServiceLimits: map[string]int64{
				"Ласточка": 15000,
				"Финист":   20000,
				"Сапсан":   25000,
			},
			DefaultLimit:       15000,
			ForecastLimit:      25000,
			MileageWarn:        23000,
			MileageMax:         25000,
			DaysWarn:           45,
			DaysMax:            55,
			BlockIntervalDays:  45,
			KPIntervalDays:     30,
			AvgWindowDays:      90,
			ServiceLLimit:      120000,
			ServiceNLimit:      240000,
			AvgCacheTTLMinutes: 60,
		},
		Logging: LoggingConfig{
			Level:        "info",
			LogRequests:  true,
			LogResponses: false,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	// Read file
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// GetTimeout returns the feed timeout as a duration
func (c *FeedConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetRetryDelay returns the feed retry delay as a duration
func (c *FeedConfig) GetRetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// GetWorkerPollInterval returns the queue worker poll interval as a duration
func (c *JobsConfig) GetWorkerPollInterval() time.Duration {
	return time.Duration(c.WorkerPollSeconds) * time.Second
}

// GetAvgCacheTTL returns the rolling-average cache TTL as a duration
func (t *ThresholdsConfig) GetAvgCacheTTL() time.Duration {
	return time.Duration(t.AvgCacheTTLMinutes) * time.Minute
}

// ServiceLimitFor resolves the mileage limit for a train type.
// Unknown types fall back to DefaultLimit.
func (t *ThresholdsConfig) ServiceLimitFor(trainType string) int64 {
	if limit, ok := t.ServiceLimits[trainType]; ok {
		return limit
	}
	return t.DefaultLimit
}
