// Package metrics provides run-level scalar metrics over batched control
// signals. Each type implements the sim.Metric interface.
package metrics

import (
	"math"

	"github.com/san-kum/quadctl/internal/batch"
)

// TrackingError accumulates the RMS body-rate error against a fixed target
// rate vector, averaged over the batch and all three axes.
type TrackingError struct {
	name    string
	target  [3]float64
	sum     float64
	samples int
}

func NewTrackingError(target [3]float64) *TrackingError {
	return &TrackingError{
		name:   "tracking_error",
		target: target,
	}
}

func (m *TrackingError) Name() string { return m.name }

func (m *TrackingError) Observe(rates, motor, wrench *batch.Grid, t float64) {
	for i := 0; i < rates.Rows; i++ {
		r := rates.Row(i)
		for k := 0; k < 3; k++ {
			e := r[k] - m.target[k]
			m.sum += e * e
			m.samples++
		}
	}
}

func (m *TrackingError) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sum / float64(m.samples))
}

func (m *TrackingError) Reset() {
	m.sum = 0
	m.samples = 0
}
