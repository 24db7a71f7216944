// Package retention owns the two-tier reading history: a short full
// resolution window plus a long bucket-averaged tail. All buffer mutation
// happens here, behind one lock, so the sampling loop stays the only
// writer and HTTP handlers are plain readers.
package retention

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"thermolog/internal/clock"
	"thermolog/internal/models"
)

// Range selects which tier History returns.
type Range string

const (
	RangeDetailed   Range = "detailed"
	RangeAggregated Range = "aggregated"
	// RangeAll concatenates aggregated entries followed by detailed ones.
	// This is the wire order the original API produced, not a timestamp
	// merge across the two resolutions.
	RangeAll Range = "all"
)

var (
	ErrInvalidReading = errors.New("invalid reading")
	ErrInvalidRange   = errors.New("invalid history range")
)

// Options sizes the buffers and timers. All durations are in seconds.
type Options struct {
	DetailedWindow      int64 // span of the full-resolution tier
	SamplePeriod        int64 // expected cadence of Record calls
	BucketWidth         int64 // aggregation bucket size
	MaxAggregate        int   // cap on the aggregated tier
	DedupTolerance      int64 // bucket-key tolerance for duplicate detection
	AggregationInterval int64 // minimum gap between aggregation passes
	FlushInterval       int64 // minimum gap between persistence flushes
}

// DefaultOptions mirror the firmware constants: 30s samples kept at full
// resolution for 30 minutes, 5-minute buckets for roughly a day.
func DefaultOptions() Options {
	return Options{
		DetailedWindow:      1800,
		SamplePeriod:        30,
		BucketWidth:         300,
		MaxAggregate:        288,
		DedupTolerance:      60,
		AggregationInterval: 300,
		FlushInterval:       3600,
	}
}

// Store is the retention store. The zero value is not usable; construct
// with New.
type Store struct {
	opts   Options
	clk    clock.Clock
	logger *logrus.Logger

	// emergency reports whether the memory guardian has switched the
	// process into emergency mode; aggregation runs twice as often then.
	emergency func() bool

	// onFlush receives a snapshot of the aggregated tier whenever the
	// flush interval elapses during Record. Runs outside the store lock.
	onFlush func([]models.Reading)

	mu              sync.Mutex
	detailed        []models.Reading
	aggregated      []models.Reading
	lastAggregation int64
	lastFlush       int64
	generation      uint64
}

func New(clk clock.Clock, logger *logrus.Logger, opts Options) *Store {
	return &Store{
		opts:      opts,
		clk:       clk,
		logger:    logger,
		emergency: func() bool { return false },
	}
}

// SetEmergencyFunc wires the memory guardian's mode into the store.
func (s *Store) SetEmergencyFunc(fn func() bool) {
	if fn != nil {
		s.emergency = fn
	}
}

// SetFlushFunc wires the persistence gateway's save path into the store.
func (s *Store) SetFlushFunc(fn func([]models.Reading)) {
	s.onFlush = fn
}

// DetailedCapacity is the maximum size of the full-resolution tier.
func (s *Store) DetailedCapacity() int {
	return int(s.opts.DetailedWindow / s.opts.SamplePeriod)
}

// AggregateCapacity is the maximum size of the aggregated tier.
func (s *Store) AggregateCapacity() int {
	return s.opts.MaxAggregate
}

// Record appends a validated reading and drives the aggregation and flush
// timers. Invalid readings are logged and dropped; no buffer state changes.
func (s *Store) Record(r models.Reading) error {
	if !r.Valid() {
		s.logger.WithFields(logrus.Fields{
			"ts": r.TS, "t": r.T, "h": r.H,
		}).Warn("Discarding implausible reading")
		return ErrInvalidReading
	}

	now := s.clk.Now()

	var flushSnapshot []models.Reading

	s.mu.Lock()
	s.detailed = append(s.detailed, r)
	for len(s.detailed) > s.DetailedCapacity() {
		s.detailed = s.detailed[1:]
	}
	s.generation++

	interval := s.opts.AggregationInterval
	if s.emergency() {
		interval /= 2
	}
	if now-s.lastAggregation >= interval {
		s.aggregateLocked(now)
		s.lastAggregation = now
	}

	if now-s.lastFlush >= s.opts.FlushInterval {
		s.lastFlush = now
		flushSnapshot = append([]models.Reading(nil), s.aggregated...)
	}
	s.mu.Unlock()

	if flushSnapshot != nil && s.onFlush != nil {
		s.onFlush(flushSnapshot)
	}
	return nil
}

// Aggregate runs one aggregation pass immediately, regardless of the
// interval timer. Record normally drives this; exposed for the guardian
// and tests.
func (s *Store) Aggregate() {
	now := s.clk.Now()
	s.mu.Lock()
	s.aggregateLocked(now)
	s.lastAggregation = now
	s.mu.Unlock()
}

// aggregateLocked summarizes every detailed entry older than the window
// into bucket means, then prunes those entries. Build first, prune second:
// nothing is dropped before it has been represented in a bucket.
func (s *Store) aggregateLocked(now int64) {
	cutoff := now - s.opts.DetailedWindow

	width := s.opts.BucketWidth
	var (
		bucketKey  int64
		sumT, sumH float64
		count      int
		produced   int
	)
	flush := func() {
		if count == 0 {
			return
		}
		if !s.hasBucketLocked(bucketKey) {
			s.aggregated = append(s.aggregated, models.Reading{
				TS: bucketKey,
				T:  sumT / float64(count),
				H:  sumH / float64(count),
			})
			produced++
		}
		sumT, sumH, count = 0, 0, 0
	}

	pruned := 0
	for _, r := range s.detailed {
		if r.TS >= cutoff {
			break
		}
		key := r.Bucket(width)
		if count > 0 && key != bucketKey {
			flush()
		}
		bucketKey = key
		sumT += r.T
		sumH += r.H
		count++
		pruned++
	}
	flush()

	for len(s.aggregated) > s.opts.MaxAggregate {
		s.aggregated = s.aggregated[1:]
	}
	if pruned > 0 {
		s.detailed = s.detailed[pruned:]
	}
	s.generation++

	if produced > 0 || pruned > 0 {
		s.logger.WithFields(logrus.Fields{
			"buckets":    produced,
			"pruned":     pruned,
			"detailed":   len(s.detailed),
			"aggregated": len(s.aggregated),
		}).Debug("Aggregation pass complete")
	}
}

// hasBucketLocked reports whether the aggregated tier already represents
// the bucket, within the dedup tolerance. Newest entries are checked
// first since fresh buckets land at the end.
func (s *Store) hasBucketLocked(key int64) bool {
	tol := s.opts.DedupTolerance
	for i := len(s.aggregated) - 1; i >= 0; i-- {
		d := s.aggregated[i].TS - key
		if d < 0 {
			d = -d
		}
		if d <= tol {
			return true
		}
	}
	return false
}

// History returns a chronological copy of the requested tier. RangeAll is
// aggregated-then-detailed concatenation (see RangeAll).
func (s *Store) History(rng Range) ([]models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch rng {
	case RangeDetailed:
		return append([]models.Reading(nil), s.detailed...), nil
	case RangeAggregated:
		return append([]models.Reading(nil), s.aggregated...), nil
	case RangeAll:
		out := make([]models.Reading, 0, len(s.aggregated)+len(s.detailed))
		out = append(out, s.aggregated...)
		out = append(out, s.detailed...)
		return out, nil
	default:
		return nil, ErrInvalidRange
	}
}

// Latest returns the newest detailed reading, if any.
func (s *Store) Latest() (models.Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.detailed) == 0 {
		return models.Reading{}, false
	}
	return s.detailed[len(s.detailed)-1], true
}

// Lens returns the current sizes of both tiers.
func (s *Store) Lens() (detailed, aggregated int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.detailed), len(s.aggregated)
}

// Generation increments on every buffer mutation; response caches key on it.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// SeedAggregated replaces the aggregated tier with entries loaded from
// persistence at startup. Entries beyond the cap are dropped from the front.
func (s *Store) SeedAggregated(entries []models.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregated = append([]models.Reading(nil), entries...)
	for len(s.aggregated) > s.opts.MaxAggregate {
		s.aggregated = s.aggregated[1:]
	}
	s.generation++
}

// SnapshotAggregated copies the aggregated tier for an explicit flush.
func (s *Store) SnapshotAggregated() []models.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Reading(nil), s.aggregated...)
}

// CompactDetailed evicts from the front until the detailed tier is at half
// capacity. Pure eviction; cannot fail. Returns the number evicted.
func (s *Store) CompactDetailed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.DetailedCapacity() / 2
	evicted := 0
	for len(s.detailed) > target {
		s.detailed = s.detailed[1:]
		evicted++
	}
	if evicted > 0 {
		s.generation++
	}
	return evicted
}

// CompactAggregated evicts one entry from the front of the aggregated
// tier, down to half capacity. Returns true if an entry was evicted.
func (s *Store) CompactAggregated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.aggregated) == 0 || len(s.aggregated) <= s.opts.MaxAggregate/2 {
		return false
	}
	s.aggregated = s.aggregated[1:]
	s.generation++
	return true
}
