package models

import (
	"math"
	"time"
)

// Physically plausible bounds for a DHT-class sensor. Values outside these
// are treated as wiring glitches, not weather.
const (
	MinTemperature = -40.0
	MaxTemperature = 80.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
)

// Reading is a single timestamped sensor sample. Timestamps are integer
// seconds, either epoch (clock synced) or boot-relative. Readings are never
// mutated after creation; aggregation produces new ones.
type Reading struct {
	TS int64   `json:"ts"`
	T  float64 `json:"t"`
	H  float64 `json:"h"`
}

// NewReading builds a reading stamped with the given timestamp.
func NewReading(ts int64, temperature, humidity float64) Reading {
	return Reading{TS: ts, T: temperature, H: humidity}
}

// Valid reports whether the reading could have come from a working sensor.
func (r Reading) Valid() bool {
	if math.IsNaN(r.T) || math.IsNaN(r.H) {
		return false
	}
	if r.T < MinTemperature || r.T > MaxTemperature {
		return false
	}
	if r.H < MinHumidity || r.H > MaxHumidity {
		return false
	}
	return true
}

// Bucket returns the aggregation bucket key for the reading: the start of
// the width-second interval containing its timestamp.
func (r Reading) Bucket(width int64) int64 {
	return (r.TS / width) * width
}

// Datetime renders the timestamp for human-facing payloads.
func (r Reading) Datetime() string {
	return time.Unix(r.TS, 0).UTC().Format("2006-01-02 15:04:05")
}
