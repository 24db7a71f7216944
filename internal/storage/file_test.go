package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"thermolog/internal/clock"
	"thermolog/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clk := &clock.Fake{TS: 1700000000}
	f := NewFileStore(t.TempDir(), clk, testLogger(), 7)

	entries := []models.Reading{
		{TS: 1699990000, T: 21.5, H: 48.25},
		{TS: 1699990300, T: 22.0, H: 49.0},
		{TS: 1699990600, T: 22.125, H: 50.5},
	}
	thresholds := Thresholds{Temperature: 33.5, Humidity: 75.0}

	written, err := f.Save(entries, thresholds)
	assert.NoError(t, err)
	assert.Equal(t, 3, written)

	loaded, loadedThresholds, err := f.Load()
	assert.NoError(t, err)
	assert.Equal(t, entries, loaded, "triples must round-trip bit-identical")
	if assert.NotNil(t, loadedThresholds) {
		assert.Equal(t, thresholds, *loadedThresholds)
	}
}

func TestLoadFiltersStaleEntries(t *testing.T) {
	now := int64(1700000000)
	horizon := int64(7 * 24 * 3600)
	clk := &clock.Fake{TS: now}
	f := NewFileStore(t.TempDir(), clk, testLogger(), 7)

	entries := []models.Reading{
		{TS: now - horizon - 1, T: 20, H: 40}, // just past the horizon
		{TS: now - horizon + 300, T: 21, H: 41},
		{TS: now - 300, T: 22, H: 42},
	}
	_, err := f.Save(entries, Thresholds{Temperature: 35, Humidity: 70})
	assert.NoError(t, err)

	loaded, _, err := f.Load()
	assert.NoError(t, err)
	if assert.Len(t, loaded, 2) {
		assert.Equal(t, now-horizon+300, loaded[0].TS)
		assert.Equal(t, now-300, loaded[1].TS)
	}
}

func TestLoadMissingFilesIsNotAnError(t *testing.T) {
	f := NewFileStore(t.TempDir(), &clock.Fake{TS: 1000}, testLogger(), 7)

	entries, thresholds, err := f.Load()
	assert.NoError(t, err)
	assert.Empty(t, entries)
	assert.Nil(t, thresholds, "nil thresholds mean compiled-in defaults")
}

func TestSaveSettingsOnly(t *testing.T) {
	dir := t.TempDir()
	f := NewFileStore(dir, &clock.Fake{TS: 1700000000}, testLogger(), 7)

	assert.NoError(t, f.SaveSettings(Thresholds{Temperature: 28, Humidity: 66}))

	_, err := os.Stat(filepath.Join(dir, dataFileName))
	assert.True(t, errors.Is(err, os.ErrNotExist), "data document must be untouched")

	_, thresholds, err := f.Load()
	assert.NoError(t, err)
	if assert.NotNil(t, thresholds) {
		assert.Equal(t, 28.0, thresholds.Temperature)
		assert.Equal(t, 66.0, thresholds.Humidity)
	}
}

func TestDataDocumentShape(t *testing.T) {
	dir := t.TempDir()
	clk := &clock.Fake{TS: 1700000000}
	f := NewFileStore(dir, clk, testLogger(), 7)

	_, err := f.Save([]models.Reading{{TS: 1699999000, T: 21, H: 51}},
		Thresholds{Temperature: 35, Humidity: 70})
	assert.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, dataFileName))
	assert.NoError(t, err)

	var doc map[string]any
	assert.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "aggregated_data")
	assert.Contains(t, doc, "last_save")
	assert.Contains(t, doc, "version")
	assert.EqualValues(t, 1, doc["total_records"])

	rows := doc["aggregated_data"].([]any)
	row := rows[0].(map[string]any)
	assert.Contains(t, row, "dt")
	assert.EqualValues(t, 1699999000, row["ts"])

	raw, err = os.ReadFile(filepath.Join(dir, settingsFileName))
	assert.NoError(t, err)
	var settings map[string]any
	assert.NoError(t, json.Unmarshal(raw, &settings))
	assert.Contains(t, settings, "alert_threshold")
	assert.Contains(t, settings, "humidity_alert_threshold")
}

func TestCorruptDataFileSurfacesError(t *testing.T) {
	dir := t.TempDir()
	f := NewFileStore(dir, &clock.Fake{TS: 1000}, testLogger(), 7)

	assert.NoError(t, os.WriteFile(filepath.Join(dir, dataFileName), []byte("{nope"), 0o644))

	_, _, err := f.Load()
	assert.Error(t, err)
}

// fakeArchiver records what would have gone to Postgres.
type fakeArchiver struct {
	archived []models.Reading
	fail     bool
	closed   bool
}

func (a *fakeArchiver) ArchiveReadings(_ context.Context, entries []models.Reading) error {
	if a.fail {
		return errors.New("archive down")
	}
	a.archived = append(a.archived, entries...)
	return nil
}

func (a *fakeArchiver) Close() error {
	a.closed = true
	return nil
}

func TestManagerFlushMirrorsToArchive(t *testing.T) {
	clk := &clock.Fake{TS: 1700000000}
	file := NewFileStore(t.TempDir(), clk, testLogger(), 7)
	archive := &fakeArchiver{}
	m := NewManager(file, archive, testLogger())
	m.SetThresholdsFunc(func() Thresholds {
		return Thresholds{Temperature: 35, Humidity: 70}
	})

	entries := []models.Reading{{TS: 1699999000, T: 21, H: 51}}
	written, err := m.Flush(entries)
	assert.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.Equal(t, entries, archive.archived)
	assert.True(t, m.Healthy())

	assert.NoError(t, m.Close())
	assert.True(t, archive.closed)
}

func TestManagerArchiveFailureIsNonFatal(t *testing.T) {
	clk := &clock.Fake{TS: 1700000000}
	file := NewFileStore(t.TempDir(), clk, testLogger(), 7)
	m := NewManager(file, &fakeArchiver{fail: true}, testLogger())

	written, err := m.Flush([]models.Reading{{TS: 1699999000, T: 21, H: 51}})
	assert.NoError(t, err, "file save succeeded; archive lag is tolerable")
	assert.Equal(t, 1, written)
	assert.True(t, m.Healthy())
}

func TestManagerFileFailureMarksUnhealthy(t *testing.T) {
	clk := &clock.Fake{TS: 1700000000}
	dir := filepath.Join(t.TempDir(), "blocked")
	// A regular file where the data dir should be makes MkdirAll fail.
	assert.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))

	file := NewFileStore(dir, clk, testLogger(), 7)
	m := NewManager(file, nil, testLogger())

	_, err := m.Flush([]models.Reading{{TS: 1, T: 21, H: 51}})
	assert.Error(t, err)
	assert.False(t, m.Healthy())
}
