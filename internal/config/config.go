package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/ga4-insight-engine/internal/analytics"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AnalysisConfig holds the engine settings: which metrics and dimensions
// to analyze, the date range, and the classification thresholds.
type AnalysisConfig struct {
	PropertyID   string `yaml:"property_id"`
	PropertyName string `yaml:"property_name"`

	Metrics     []string `yaml:"metrics"`
	Dimensions  []string `yaml:"dimensions"`
	RateMetrics []string `yaml:"rate_metrics"`
	URLs        []string `yaml:"urls"`

	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`

	// RowsPath points at the exported report rows the engine analyzes.
	RowsPath string `yaml:"rows_path"`

	TrafficSourceDimension   string          `yaml:"traffic_source_dimension"`
	DeviceDimension          string          `yaml:"device_dimension"`
	ComparisonThresholds     ThresholdConfig `yaml:"comparison_thresholds"`
	TrafficCloseSecondPoints float64         `yaml:"traffic_close_second_points"`

	MaxConcurrentFetches int `yaml:"max_concurrent_fetches"`
	URLTimeoutSeconds    int `yaml:"url_timeout_seconds"`
}

// ThresholdConfig holds the performance band cutoffs for URL comparison.
type ThresholdConfig struct {
	High float64 `yaml:"high"`
	Low  float64 `yaml:"low"`
}

// Thresholds converts the configured cutoffs to the classifier's type.
func (t ThresholdConfig) Thresholds() analytics.ComparisonThresholds {
	return analytics.ComparisonThresholds{High: t.High, Low: t.Low}
}

// StorageConfig holds result archive settings
type StorageConfig struct {
	Type       string `yaml:"type"` // "local" or "s3"
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	AWSProfile string `yaml:"aws_profile"`
}

// DatabaseConfig holds the optional run-history database settings
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the optional raw-row cache settings
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// TTL returns the cache entry lifetime.
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLMinutes) * time.Minute
}

// URLTimeout returns the per-URL analysis deadline.
func (a AnalysisConfig) URLTimeout() time.Duration {
	return time.Duration(a.URLTimeoutSeconds) * time.Second
}

// DateRange parses the configured start/end dates.
func (a AnalysisConfig) DateRange() (analytics.DateRange, error) {
	start, err := analytics.ParseDate(a.StartDate)
	if err != nil {
		return analytics.DateRange{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := analytics.ParseDate(a.EndDate)
	if err != nil {
		return analytics.DateRange{}, fmt.Errorf("end_date: %w", err)
	}
	dr := analytics.DateRange{Start: start, End: end}
	if err := dr.Validate(); err != nil {
		return analytics.DateRange{}, err
	}
	return dr, nil
}

// RateMetricSet returns the rate metric names as a lookup set.
func (a AnalysisConfig) RateMetricSet() map[string]bool {
	set := make(map[string]bool, len(a.RateMetrics))
	for _, m := range a.RateMetrics {
		set[m] = true
	}
	return set
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads the YAML file and then applies environment overrides.
// A .env file is honored when present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		cfg.Storage.Type = "s3"
		cfg.Storage.S3Bucket = bucket
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if propertyID := os.Getenv("GA4_PROPERTY_ID"); propertyID != "" {
		cfg.Analysis.PropertyID = propertyID
	}
	if rowsPath := os.Getenv("GA4_ROWS_PATH"); rowsPath != "" {
		cfg.Analysis.RowsPath = rowsPath
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if len(c.Analysis.Metrics) == 0 {
		c.Analysis.Metrics = []string{
			"sessions", "activeUsers", "screenPageViews",
			"engagedSessions", "eventCount", "keyEvents",
		}
	}
	if len(c.Analysis.Dimensions) == 0 {
		c.Analysis.Dimensions = []string{"date", "sessionSource", "deviceCategory"}
	}
	if c.Analysis.TrafficSourceDimension == "" {
		c.Analysis.TrafficSourceDimension = "sessionSource"
	}
	if c.Analysis.ComparisonThresholds.High == 0 {
		c.Analysis.ComparisonThresholds.High = 1.5
	}
	if c.Analysis.ComparisonThresholds.Low == 0 {
		c.Analysis.ComparisonThresholds.Low = 0.5
	}
	if c.Analysis.TrafficCloseSecondPoints == 0 {
		c.Analysis.TrafficCloseSecondPoints = 5.0
	}
	if c.Analysis.MaxConcurrentFetches == 0 {
		c.Analysis.MaxConcurrentFetches = 4
	}
	if c.Analysis.URLTimeoutSeconds == 0 {
		c.Analysis.URLTimeoutSeconds = 30
	}
	if c.Analysis.RowsPath == "" {
		c.Analysis.RowsPath = "./data/rows.json"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.LocalPath == "" {
		c.Storage.LocalPath = "./data"
	}
	if c.Redis.TTLMinutes == 0 {
		c.Redis.TTLMinutes = 60
	}
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	t := c.Analysis.ComparisonThresholds
	if t.Low <= 0 || t.High <= 0 {
		return fmt.Errorf("comparison thresholds must be positive (high=%v low=%v)", t.High, t.Low)
	}
	if t.Low >= t.High {
		return fmt.Errorf("comparison threshold low (%v) must be below high (%v)", t.Low, t.High)
	}
	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3Bucket == "" {
		return fmt.Errorf("storage type s3 requires s3_bucket")
	}
	if c.Analysis.StartDate != "" || c.Analysis.EndDate != "" {
		if _, err := c.Analysis.DateRange(); err != nil {
			return err
		}
	}
	return nil
}
