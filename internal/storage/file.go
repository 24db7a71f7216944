// Package storage persists the aggregated tier and alert settings. The
// primary backend is two whole-file JSON documents on local flash; an
// optional Postgres archive mirrors aggregated readings off-device.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"thermolog/internal/clock"
	"thermolog/internal/models"
)

const (
	dataFileName     = "data.json"
	settingsFileName = "settings.json"
	fileVersion      = 1
)

// Thresholds is the persisted slice of alert configuration. Active and
// acknowledged flags deliberately do not survive a restart.
type Thresholds struct {
	Temperature float64
	Humidity    float64
}

// persistedReading is the on-disk reading shape: the wire triple plus a
// human-readable datetime, for anyone poking at the file directly.
type persistedReading struct {
	TS int64   `json:"ts"`
	T  float64 `json:"t"`
	H  float64 `json:"h"`
	DT string  `json:"dt"`
}

type dataDocument struct {
	AggregatedData []persistedReading `json:"aggregated_data"`
	LastSave       int64              `json:"last_save"`
	Version        int                `json:"version"`
	TotalRecords   int                `json:"total_records"`
}

type settingsDocument struct {
	AlertThreshold         float64 `json:"alert_threshold"`
	HumidityAlertThreshold float64 `json:"humidity_alert_threshold"`
	LastSave               int64   `json:"last_save"`
	Version                int     `json:"version"`
}

// FileStore reads and writes the two JSON documents under a data
// directory. Saves are whole-file overwrites through a rename, so a crash
// mid-write leaves the previous document intact.
type FileStore struct {
	dir           string
	clk           clock.Clock
	logger        *logrus.Logger
	retentionDays int
}

func NewFileStore(dir string, clk clock.Clock, logger *logrus.Logger, retentionDays int) *FileStore {
	return &FileStore{
		dir:           dir,
		clk:           clk,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

// Save overwrites both documents. Returns the number of aggregated
// entries written.
func (f *FileStore) Save(entries []models.Reading, thresholds Thresholds) (int, error) {
	now := f.clk.Now()

	persisted := make([]persistedReading, len(entries))
	for i, r := range entries {
		persisted[i] = persistedReading{TS: r.TS, T: r.T, H: r.H, DT: r.Datetime()}
	}

	doc := dataDocument{
		AggregatedData: persisted,
		LastSave:       now,
		Version:        fileVersion,
		TotalRecords:   len(persisted),
	}
	if err := f.writeFile(dataFileName, doc); err != nil {
		return 0, err
	}
	if err := f.SaveSettings(thresholds); err != nil {
		return 0, err
	}
	return len(persisted), nil
}

// SaveSettings overwrites only the settings document. Used when a
// threshold changes between full flushes.
func (f *FileStore) SaveSettings(thresholds Thresholds) error {
	doc := settingsDocument{
		AlertThreshold:         thresholds.Temperature,
		HumidityAlertThreshold: thresholds.Humidity,
		LastSave:               f.clk.Now(),
		Version:                fileVersion,
	}
	return f.writeFile(settingsFileName, doc)
}

// Load reads both documents. A missing file is not an error: the entries
// come back empty and the thresholds nil, meaning "use defaults". Entries
// older than the retention horizon relative to now are dropped.
func (f *FileStore) Load() ([]models.Reading, *Thresholds, error) {
	entries, err := f.loadData()
	if err != nil {
		return nil, nil, err
	}
	thresholds, err := f.loadSettings()
	if err != nil {
		return nil, nil, err
	}
	return entries, thresholds, nil
}

func (f *FileStore) loadData() ([]models.Reading, error) {
	var doc dataDocument
	found, err := f.readFile(dataFileName, &doc)
	if err != nil || !found {
		return nil, err
	}

	horizon := f.clk.Now() - int64(f.retentionDays)*24*3600
	entries := make([]models.Reading, 0, len(doc.AggregatedData))
	stale := 0
	for _, p := range doc.AggregatedData {
		if p.TS < horizon {
			stale++
			continue
		}
		entries = append(entries, models.Reading{TS: p.TS, T: p.T, H: p.H})
	}

	f.logger.WithFields(logrus.Fields{
		"loaded": len(entries),
		"stale":  stale,
	}).Info("Loaded aggregated data from storage")
	return entries, nil
}

func (f *FileStore) loadSettings() (*Thresholds, error) {
	var doc settingsDocument
	found, err := f.readFile(settingsFileName, &doc)
	if err != nil || !found {
		return nil, err
	}
	return &Thresholds{
		Temperature: doc.AlertThreshold,
		Humidity:    doc.HumidityAlertThreshold,
	}, nil
}

func (f *FileStore) writeFile(name string, doc any) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	path := filepath.Join(f.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (f *FileStore) readFile(name string, doc any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}
