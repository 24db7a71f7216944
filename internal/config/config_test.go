package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "127.0.0.1"

sensor:
  driver: "iio"
  sample_period_seconds: 60

retention:
  detailed_window_seconds: 600
  bucket_seconds: 120

logging:
  level: "debug"
  format: "text"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	assert.NoError(t, err)

	config, err := Load(configPath)
	assert.NoError(t, err)
	assert.NotNil(t, config)

	// Verify loaded values
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, "iio", config.Sensor.Driver)
	assert.Equal(t, 60, config.Sensor.SamplePeriodSeconds)
	assert.Equal(t, 600, config.Retention.DetailedWindowSeconds)
	assert.Equal(t, 120, config.Retention.BucketSeconds)
	assert.Equal(t, "debug", config.Logging.Level)

	// Untouched sections keep their defaults
	assert.Equal(t, 288, config.Retention.MaxAggregateSamples)
	assert.Equal(t, 90.0, config.Memory.CriticalThresholdPercent)
	assert.Equal(t, 35.0, config.Alerts.TemperatureThreshold)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.NoError(t, err)
	assert.NotNil(t, config)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 30, config.Sensor.SamplePeriodSeconds)
	assert.Equal(t, 1800, config.Retention.DetailedWindowSeconds)
	assert.Equal(t, 300, config.Retention.BucketSeconds)
	assert.Equal(t, 60, config.Retention.DedupToleranceSeconds)
	assert.Equal(t, 3600, config.Retention.FlushIntervalSeconds)
	assert.Equal(t, 80.0, config.Memory.HighThresholdPercent)
	assert.Equal(t, 7, config.Storage.RetentionDays)
	assert.False(t, config.Storage.Postgres.Enabled)
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("APP_DATA_DIR", "/var/lib/thermolog")
	t.Setenv("APP_PG_PASSWORD", "sekret")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
storage:
  data_dir: $APP_DATA_DIR
  postgres:
    enabled: true
    password: $APP_PG_PASSWORD
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	assert.NoError(t, err)

	config, err := Load(configPath)
	assert.NoError(t, err)

	assert.Equal(t, "/var/lib/thermolog", config.Storage.DataDir)
	assert.True(t, config.Storage.Postgres.Enabled)
	assert.Equal(t, "sekret", config.Storage.Postgres.Password)
}

func TestPostgresConnString(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5432, Name: "thermolog",
		User: "app", Password: "pw", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=app password=pw dbname=thermolog sslmode=disable",
		p.ConnString())
}
