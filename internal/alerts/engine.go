// Package alerts implements the per-metric threshold latch. An alert stays
// active until a user acknowledges it; a value dropping back under the
// threshold does not clear it. That keeps an unattended overnight spike
// visible the next morning.
package alerts

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrInvalidThreshold = errors.New("threshold out of range")

// Status is the externally visible alert state.
type Status struct {
	Threshold      float64
	Active         bool
	Acknowledged   bool
	NeedsAttention bool
}

// Alert is the state machine for one monitored metric. States: Normal,
// Active/Unacknowledged, Active/Acknowledged. Acknowledged is always true
// while inactive.
type Alert struct {
	metric string
	logger *logrus.Logger

	// Valid threshold interval. maxInclusive distinguishes the humidity
	// range (0,100] from the temperature range (0,100).
	min, max     float64
	maxInclusive bool

	// onChange fires after a successful threshold update so settings can
	// be flushed to persistence. Runs outside the lock.
	onChange func()

	mu           sync.Mutex
	threshold    float64
	active       bool
	acknowledged bool
}

func newAlert(metric string, logger *logrus.Logger, threshold, min, max float64, maxInclusive bool) *Alert {
	return &Alert{
		metric:       metric,
		logger:       logger,
		min:          min,
		max:          max,
		maxInclusive: maxInclusive,
		threshold:    threshold,
		acknowledged: true,
	}
}

// Evaluate feeds one reading value through the state machine. Crossing the
// threshold while Normal triggers the alert; while already active (in
// either substate) it changes nothing, so an acknowledged alert does not
// re-arm until the user clears it.
func (a *Alert) Evaluate(value float64) {
	a.mu.Lock()
	trigger := value > a.threshold && !a.active
	if trigger {
		a.active = true
		a.acknowledged = false
	}
	threshold := a.threshold
	a.mu.Unlock()

	if trigger {
		a.logger.WithFields(logrus.Fields{
			"metric":    a.metric,
			"value":     value,
			"threshold": threshold,
		}).Warn("Alert triggered")
	}
}

// SetThreshold validates and stores a new threshold. The active/ack state
// is untouched; only the threshold is persisted across restarts.
func (a *Alert) SetThreshold(value float64) error {
	if value <= a.min || value > a.max || (!a.maxInclusive && value == a.max) {
		return ErrInvalidThreshold
	}

	a.mu.Lock()
	a.threshold = value
	a.mu.Unlock()

	a.logger.WithFields(logrus.Fields{
		"metric":    a.metric,
		"threshold": value,
	}).Info("Alert threshold updated")

	if a.onChange != nil {
		a.onChange()
	}
	return nil
}

// Acknowledge clears an active alert back to Normal. Returns false when
// there was nothing to acknowledge; that is a no-op, not an error.
func (a *Alert) Acknowledge() bool {
	a.mu.Lock()
	wasActive := a.active
	a.active = false
	a.acknowledged = true
	a.mu.Unlock()

	if wasActive {
		a.logger.WithField("metric", a.metric).Info("Alert acknowledged")
	}
	return wasActive
}

// Threshold returns the current threshold.
func (a *Alert) Threshold() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.threshold
}

// Status snapshots the machine for the API.
func (a *Alert) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		Threshold:      a.threshold,
		Active:         a.active,
		Acknowledged:   a.acknowledged,
		NeedsAttention: a.active && !a.acknowledged,
	}
}

// Engine bundles the two monitored metrics.
type Engine struct {
	Temperature *Alert
	Humidity    *Alert
}

// NewEngine builds both alert machines with their persisted or default
// thresholds. Temperature accepts (0,100), humidity (0,100].
func NewEngine(logger *logrus.Logger, temperatureThreshold, humidityThreshold float64) *Engine {
	return &Engine{
		Temperature: newAlert("temperature", logger, temperatureThreshold, 0, 100, false),
		Humidity:    newAlert("humidity", logger, humidityThreshold, 0, 100, true),
	}
}

// SetPersistFunc wires the settings-only flush into both machines.
func (e *Engine) SetPersistFunc(fn func()) {
	e.Temperature.onChange = fn
	e.Humidity.onChange = fn
}

// Evaluate runs one reading through both machines.
func (e *Engine) Evaluate(temperature, humidity float64) {
	e.Temperature.Evaluate(temperature)
	e.Humidity.Evaluate(humidity)
}
