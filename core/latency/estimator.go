// Package latency tracks how far behind the server the local player runs.
package latency

import (
	"sync"

	"SyncFM/logger"
	"SyncFM/metrics"
)

// Estimator holds the session's latency compensation in seconds. It only
// grows: each load failure bumps it by a fixed step up to a ceiling, and
// nothing lowers it for the rest of the session.
type Estimator struct {
	mu      sync.RWMutex
	value   float64
	step    float64
	ceiling float64
	metrics *metrics.Metrics
}

// New creates an Estimator starting at initial. Negative inputs are clamped to
// zero and a ceiling below initial is raised to initial.
func New(initial, step, ceiling float64, m *metrics.Metrics) *Estimator {
	if initial < 0 {
		initial = 0
	}
	if step < 0 {
		step = 0
	}
	if ceiling < initial {
		ceiling = initial
	}
	e := &Estimator{
		value:   initial,
		step:    step,
		ceiling: ceiling,
		metrics: m,
	}
	e.publish()
	return e
}

// Value returns the current estimate in seconds.
func (e *Estimator) Value() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value
}

// Ceiling returns the configured upper bound.
func (e *Estimator) Ceiling() float64 {
	return e.ceiling
}

// Bump raises the estimate by one step, saturating at the ceiling, and returns
// the new value.
func (e *Estimator) Bump() float64 {
	e.mu.Lock()
	old := e.value
	e.value += e.step
	if e.value > e.ceiling {
		e.value = e.ceiling
	}
	cur := e.value
	e.mu.Unlock()

	logger.Info("increasing latency",
		logger.Float64("from", old),
		logger.Float64("to", cur),
		logger.Bool("saturated", cur == e.ceiling))
	if e.metrics != nil {
		e.metrics.LatencyBumps.Inc()
	}
	e.publish()
	return cur
}

func (e *Estimator) publish() {
	if e.metrics != nil {
		e.metrics.LatencySeconds.Set(e.Value())
	}
}
