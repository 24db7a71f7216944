// Package scheduler drives the sampling loop: read the sensor, record,
// evaluate alerts, check memory. All writes to the retention store flow
// through here, keeping the single-writer discipline in one place.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"thermolog/internal/alerts"
	"thermolog/internal/clock"
	"thermolog/internal/memguard"
	"thermolog/internal/models"
	"thermolog/internal/retention"
	"thermolog/internal/sensor"
)

const readTimeout = 10 * time.Second

type Scheduler struct {
	gateway  sensor.Gateway
	store    *retention.Store
	engine   *alerts.Engine
	guardian *memguard.Guardian
	clk      clock.Clock
	logger   *logrus.Logger
	cron     *cron.Cron

	samplePeriod  time.Duration
	checkInterval time.Duration
}

func New(
	gateway sensor.Gateway,
	store *retention.Store,
	engine *alerts.Engine,
	guardian *memguard.Guardian,
	clk clock.Clock,
	logger *logrus.Logger,
	samplePeriod, checkInterval time.Duration,
) *Scheduler {
	return &Scheduler{
		gateway:       gateway,
		store:         store,
		engine:        engine,
		guardian:      guardian,
		clk:           clk,
		logger:        logger,
		cron:          cron.New(),
		samplePeriod:  samplePeriod,
		checkInterval: checkInterval,
	}
}

// Start takes one immediate sample, then schedules the periodic jobs.
func (s *Scheduler) Start() error {
	s.Sample()

	if _, err := s.cron.AddFunc(every(s.samplePeriod), s.Sample); err != nil {
		return fmt.Errorf("schedule sampling: %w", err)
	}
	if _, err := s.cron.AddFunc(every(s.checkInterval), s.guardian.CheckUsage); err != nil {
		return fmt.Errorf("schedule memory sweep: %w", err)
	}
	s.cron.Start()

	s.logger.WithFields(logrus.Fields{
		"sample_period":  s.samplePeriod.String(),
		"check_interval": s.checkInterval.String(),
	}).Info("Scheduler started")
	return nil
}

// Stop halts the cron loop. Jobs already running finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Sample runs one acquisition cycle. A failed read is logged and the
// cycle ends: no buffer mutation, no alert evaluation.
func (s *Scheduler) Sample() {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	temperature, humidity, err := s.gateway.Read(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Sensor read failed")
		return
	}

	r := models.NewReading(s.clk.Now(), temperature, humidity)
	if err := s.store.Record(r); err != nil {
		// Implausible reading, already logged by the store.
		return
	}

	s.engine.Evaluate(temperature, humidity)
	s.guardian.CheckUsage()
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
