package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service. Every knob has a
// compiled-in default so the service runs with no config file at all, the
// same way the firmware ran from constants.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sensor    SensorConfig    `mapstructure:"sensor"`
	Retention RetentionConfig `mapstructure:"retention"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	CacheSize      int     `mapstructure:"cache_size"`
}

type SensorConfig struct {
	Driver              string `mapstructure:"driver"` // "sim" or "iio"
	TemperaturePath     string `mapstructure:"temperature_path"`
	HumidityPath        string `mapstructure:"humidity_path"`
	SamplePeriodSeconds int    `mapstructure:"sample_period_seconds"`
}

type RetentionConfig struct {
	DetailedWindowSeconds      int `mapstructure:"detailed_window_seconds"`
	BucketSeconds              int `mapstructure:"bucket_seconds"`
	MaxAggregateSamples        int `mapstructure:"max_aggregate_samples"`
	DedupToleranceSeconds      int `mapstructure:"dedup_tolerance_seconds"`
	AggregationIntervalSeconds int `mapstructure:"aggregation_interval_seconds"`
	FlushIntervalSeconds       int `mapstructure:"flush_interval_seconds"`
}

type MemoryConfig struct {
	HighThresholdPercent     float64 `mapstructure:"high_threshold_percent"`
	CriticalThresholdPercent float64 `mapstructure:"critical_threshold_percent"`
	HeapLimitBytes           uint64  `mapstructure:"heap_limit_bytes"`
	CheckIntervalSeconds     int     `mapstructure:"check_interval_seconds"`
}

type AlertsConfig struct {
	TemperatureThreshold float64 `mapstructure:"temperature_threshold"`
	HumidityThreshold    float64 `mapstructure:"humidity_threshold"`
}

type StorageConfig struct {
	DataDir       string         `mapstructure:"data_dir"`
	RetentionDays int            `mapstructure:"retention_days"`
	Postgres      PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig describes the optional archive database. Disabled by
// default; the file store is always active.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// ConnString builds a lib/pq connection string from the postgres section.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Name, p.SSLMode,
	)
}

// Load reads configuration from the given YAML file and environment
// variables. Environment references in the file ($VAR) are expanded before
// parsing. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var config Config
			if err := v.Unmarshal(&config); err != nil {
				return nil, fmt.Errorf("failed to unmarshal defaults: %w", err)
			}
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.cache_size", 128)

	v.SetDefault("sensor.driver", "sim")
	v.SetDefault("sensor.temperature_path", "/sys/bus/iio/devices/iio:device0/in_temp_input")
	v.SetDefault("sensor.humidity_path", "/sys/bus/iio/devices/iio:device0/in_humidityrelative_input")
	v.SetDefault("sensor.sample_period_seconds", 30)

	v.SetDefault("retention.detailed_window_seconds", 1800)
	v.SetDefault("retention.bucket_seconds", 300)
	v.SetDefault("retention.max_aggregate_samples", 288)
	v.SetDefault("retention.dedup_tolerance_seconds", 60)
	v.SetDefault("retention.aggregation_interval_seconds", 300)
	v.SetDefault("retention.flush_interval_seconds", 3600)

	v.SetDefault("memory.high_threshold_percent", 80.0)
	v.SetDefault("memory.critical_threshold_percent", 90.0)
	v.SetDefault("memory.heap_limit_bytes", uint64(64<<20))
	v.SetDefault("memory.check_interval_seconds", 30)

	v.SetDefault("alerts.temperature_threshold", 35.0)
	v.SetDefault("alerts.humidity_threshold", 70.0)

	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.retention_days", 7)
	v.SetDefault("storage.postgres.enabled", false)
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.ssl_mode", "disable")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 20)
	v.SetDefault("logging.max_backups", 3)
}
