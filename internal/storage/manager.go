package storage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"thermolog/internal/models"
)

const archiveTimeout = 10 * time.Second

// Manager fronts the file store and the optional archive with one save
// path. Storage failures are never fatal: they are logged, the healthy
// flag drops, and the next flush retries.
type Manager struct {
	file    *FileStore
	archive Archiver // nil when archiving is disabled
	logger  *logrus.Logger

	// thresholds supplies the current alert configuration at save time.
	thresholds func() Thresholds

	healthy atomic.Bool
}

func NewManager(file *FileStore, archive Archiver, logger *logrus.Logger) *Manager {
	m := &Manager{
		file:       file,
		archive:    archive,
		logger:     logger,
		thresholds: func() Thresholds { return Thresholds{} },
	}
	m.healthy.Store(true)
	return m
}

// SetThresholdsFunc wires the alert engine's current thresholds into the
// save path.
func (m *Manager) SetThresholdsFunc(fn func() Thresholds) {
	if fn != nil {
		m.thresholds = fn
	}
}

// Flush persists the aggregated entries and current thresholds. Returns
// the number of entries written to the file store.
func (m *Manager) Flush(entries []models.Reading) (int, error) {
	written, err := m.file.Save(entries, m.thresholds())
	if err != nil {
		m.healthy.Store(false)
		m.logger.WithError(err).Error("Persistence flush failed")
		return 0, err
	}
	m.healthy.Store(true)

	if m.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := m.archive.ArchiveReadings(ctx, entries); err != nil {
			// The file save already succeeded; archive lag is tolerable.
			m.logger.WithError(err).Warn("Archive mirror failed")
		}
	}

	m.logger.WithField("records", written).Info("Persistence flush complete")
	return written, nil
}

// SaveSettings persists only the alert configuration.
func (m *Manager) SaveSettings() error {
	if err := m.file.SaveSettings(m.thresholds()); err != nil {
		m.healthy.Store(false)
		m.logger.WithError(err).Error("Settings save failed")
		return err
	}
	m.healthy.Store(true)
	return nil
}

// Load restores the aggregated tier and thresholds. Missing files yield
// empty entries and nil thresholds; read errors additionally mark storage
// unhealthy. Either way the caller continues with in-memory defaults.
func (m *Manager) Load() ([]models.Reading, *Thresholds, error) {
	entries, thresholds, err := m.file.Load()
	if err != nil {
		m.healthy.Store(false)
		m.logger.WithError(err).Error("Persistence load failed, starting empty")
		return nil, nil, err
	}
	m.healthy.Store(true)
	return entries, thresholds, nil
}

// Healthy reports whether the most recent storage operation succeeded.
func (m *Manager) Healthy() bool {
	return m.healthy.Load()
}

// Close releases the archive connection, if any.
func (m *Manager) Close() error {
	if m.archive != nil {
		return m.archive.Close()
	}
	return nil
}
