package metrics

import "github.com/san-kum/quadctl/internal/batch"

// Saturation reports the fraction of rotor-speed samples at or above the
// given fraction of omegaMax, a cheap indicator of infeasible commands.
type Saturation struct {
	name       string
	limit      float64
	violations int
	samples    int
}

func NewSaturation(omegaMax, fraction float64) *Saturation {
	return &Saturation{
		name:  "saturation",
		limit: omegaMax * fraction,
	}
}

func (s *Saturation) Name() string { return s.name }

func (s *Saturation) Observe(rates, motor, wrench *batch.Grid, t float64) {
	for _, v := range motor.Data {
		s.samples++
		if v >= s.limit {
			s.violations++
		}
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.violations) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.violations = 0
	s.samples = 0
}
