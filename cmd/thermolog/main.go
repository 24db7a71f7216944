package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"thermolog/internal/alerts"
	"thermolog/internal/clock"
	"thermolog/internal/config"
	"thermolog/internal/memguard"
	"thermolog/internal/models"
	"thermolog/internal/retention"
	"thermolog/internal/scheduler"
	"thermolog/internal/sensor"
	"thermolog/internal/storage"
	"thermolog/internal/web"
)

// Command thermolog runs the temperature/humidity retention service.
//
// The service:
//   - samples a DHT-class sensor on a fixed period
//   - keeps a 30-minute full-resolution window plus a day of 5-minute
//     bucket means in memory
//   - guards its heap budget with emergency compaction
//   - persists the aggregated data and alert settings to JSON files,
//     optionally mirroring readings to Postgres
//   - serves the data, alerts and a dashboard over HTTP
//
// Usage:
//
//	thermolog [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Load .env if present; the config file can reference its variables.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"port":   cfg.Server.Port,
		"driver": cfg.Sensor.Driver,
	}).Info("Starting thermolog")

	clk := clock.NewSystem()

	store := retention.New(clk, logger, retention.Options{
		DetailedWindow:      int64(cfg.Retention.DetailedWindowSeconds),
		SamplePeriod:        int64(cfg.Sensor.SamplePeriodSeconds),
		BucketWidth:         int64(cfg.Retention.BucketSeconds),
		MaxAggregate:        cfg.Retention.MaxAggregateSamples,
		DedupTolerance:      int64(cfg.Retention.DedupToleranceSeconds),
		AggregationInterval: int64(cfg.Retention.AggregationIntervalSeconds),
		FlushInterval:       int64(cfg.Retention.FlushIntervalSeconds),
	})

	guardian := memguard.New(store, logger, memguard.Options{
		HighThreshold:     cfg.Memory.HighThresholdPercent,
		CriticalThreshold: cfg.Memory.CriticalThresholdPercent,
		HeapLimitBytes:    cfg.Memory.HeapLimitBytes,
	})
	store.SetEmergencyFunc(guardian.Emergency)

	manager := storage.NewManager(
		storage.NewFileStore(cfg.Storage.DataDir, clk, logger, cfg.Storage.RetentionDays),
		newArchive(cfg.Storage.Postgres, logger),
		logger,
	)
	defer manager.Close()

	// Restore what survives a restart: aggregated data and thresholds.
	entries, thresholds, err := manager.Load()
	if err == nil && len(entries) > 0 {
		store.SeedAggregated(entries)
	}
	temperatureThreshold := cfg.Alerts.TemperatureThreshold
	humidityThreshold := cfg.Alerts.HumidityThreshold
	if thresholds != nil {
		temperatureThreshold = thresholds.Temperature
		humidityThreshold = thresholds.Humidity
	}

	engine := alerts.NewEngine(logger, temperatureThreshold, humidityThreshold)
	engine.SetPersistFunc(func() {
		// Best effort; a failed settings save retries with the next flush.
		_ = manager.SaveSettings()
	})
	manager.SetThresholdsFunc(func() storage.Thresholds {
		return storage.Thresholds{
			Temperature: engine.Temperature.Threshold(),
			Humidity:    engine.Humidity.Threshold(),
		}
	})
	store.SetFlushFunc(func(entries []models.Reading) {
		// Errors are logged by the manager and retried next interval.
		_, _ = manager.Flush(entries)
	})

	sched := scheduler.New(
		newGateway(cfg.Sensor), store, engine, guardian, clk, logger,
		time.Duration(cfg.Sensor.SamplePeriodSeconds)*time.Second,
		time.Duration(cfg.Memory.CheckIntervalSeconds)*time.Second,
	)
	if err := sched.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	router, err := web.NewRouter(store, engine, guardian, manager, logger, web.Config{
		RateLimit:      cfg.Server.RateLimit,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		CacheSize:      cfg.Server.CacheSize,
	})
	if err != nil {
		logger.Fatalf("Failed to setup router: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-errChan:
		logger.WithError(err).Error("Service error, shutting down")
	}

	sched.Stop()

	// One last flush so a clean shutdown loses nothing aggregated.
	if _, err := manager.Flush(store.SnapshotAggregated()); err != nil {
		logger.WithError(err).Warn("Final flush failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("HTTP shutdown failed")
	}
	logger.Info("Stopped")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File != "" {
		logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}))
	}
	return logger
}

func newGateway(cfg config.SensorConfig) sensor.Gateway {
	if cfg.Driver == "iio" {
		return sensor.NewIIO(cfg.TemperaturePath, cfg.HumidityPath)
	}
	return sensor.NewSim(time.Now().UnixNano())
}

func newArchive(cfg config.PostgresConfig, logger *logrus.Logger) storage.Archiver {
	if !cfg.Enabled {
		return nil
	}
	archive, err := storage.NewPostgresArchive(cfg.ConnString())
	if err != nil {
		// Archive is a mirror; run without it rather than refuse to start.
		logger.WithError(err).Warn("Postgres archive unavailable, continuing without it")
		return nil
	}
	return archive
}
