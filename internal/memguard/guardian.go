// Package memguard watches heap usage and trades history for headroom
// before the runtime would otherwise grow past its budget. It is the only
// component allowed to discard data that has not been summarized.
package memguard

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Mode is the process-wide operating mode. Emergency mode makes the
// retention store aggregate twice as often.
type Mode int32

const (
	ModeNormal Mode = iota
	ModeEmergency
)

func (m Mode) String() string {
	if m == ModeEmergency {
		return "emergency"
	}
	return "normal"
}

// Compactor is the slice of the retention store the guardian drives.
// Both methods are pure eviction and must never fail.
type Compactor interface {
	// CompactDetailed halves the detailed tier, returning entries evicted.
	CompactDetailed() int
	// CompactAggregated evicts one aggregated entry down to half capacity,
	// reporting whether anything was evicted.
	CompactAggregated() bool
}

// Options for the guardian. Thresholds are percentages of the heap budget.
type Options struct {
	HighThreshold     float64
	CriticalThreshold float64
	HeapLimitBytes    uint64
}

func DefaultOptions() Options {
	return Options{
		HighThreshold:     80.0,
		CriticalThreshold: 90.0,
		HeapLimitBytes:    64 << 20,
	}
}

// Guardian owns the operating mode. CheckUsage is called from the sampling
// path after every record and on its own sweep timer.
type Guardian struct {
	opts      Options
	compactor Compactor
	logger    *logrus.Logger

	// usage returns current heap percentage; replaceable in tests.
	usage func() float64

	mu   sync.Mutex
	mode Mode
}

func New(compactor Compactor, logger *logrus.Logger, opts Options) *Guardian {
	g := &Guardian{
		opts:      opts,
		compactor: compactor,
		logger:    logger,
	}
	g.usage = g.heapPercent
	return g
}

// SetUsageFunc overrides the heap probe. Tests use this; production code
// does not.
func (g *Guardian) SetUsageFunc(fn func() float64) {
	if fn != nil {
		g.usage = fn
	}
}

func (g *Guardian) heapPercent() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / float64(g.opts.HeapLimitBytes) * 100
}

// Mode returns the current operating mode.
func (g *Guardian) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// Emergency reports whether the guardian is in emergency mode. Wired into
// the retention store's aggregation cadence.
func (g *Guardian) Emergency() bool {
	return g.Mode() == ModeEmergency
}

// Usage returns the current heap usage percentage.
func (g *Guardian) Usage() float64 {
	return g.usage()
}

// CheckUsage samples heap usage and compacts if thresholds are crossed.
// It never fails: the compaction path allocates nothing and only evicts.
func (g *Guardian) CheckUsage() {
	percent := g.usage()

	g.mu.Lock()
	mode := g.mode
	g.mu.Unlock()

	switch {
	case percent >= g.opts.CriticalThreshold:
		g.compact(percent)
		g.setMode(ModeEmergency, percent)

	case percent >= g.opts.HighThreshold && mode == ModeNormal:
		evicted := g.compactor.CompactDetailed()
		g.logger.WithFields(logrus.Fields{
			"usage_percent": percent,
			"evicted":       evicted,
		}).Warn("High memory usage, compacted detailed buffer")
		g.setMode(ModeEmergency, percent)

	case percent < g.opts.HighThreshold && mode == ModeEmergency:
		g.setMode(ModeNormal, percent)
	}
}

// compact is the critical-path eviction: halve the detailed tier, then if
// usage is still critical walk the aggregated tier down entry by entry
// until usage recovers or half capacity is reached.
func (g *Guardian) compact(percent float64) {
	evicted := g.compactor.CompactDetailed()

	aggregatedEvicted := 0
	for g.usage() >= g.opts.CriticalThreshold {
		if !g.compactor.CompactAggregated() {
			break
		}
		aggregatedEvicted++
	}

	g.logger.WithFields(logrus.Fields{
		"usage_percent":       percent,
		"detailed_evicted":    evicted,
		"aggregated_evicted":  aggregatedEvicted,
		"usage_after_compact": g.usage(),
	}).Warn("Critical memory usage, emergency compaction")
}

func (g *Guardian) setMode(mode Mode, percent float64) {
	g.mu.Lock()
	changed := g.mode != mode
	g.mode = mode
	g.mu.Unlock()

	if changed {
		g.logger.WithFields(logrus.Fields{
			"mode":          mode.String(),
			"usage_percent": percent,
		}).Info("Memory mode changed")
	}
}
