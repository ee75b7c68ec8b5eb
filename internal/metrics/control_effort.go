package metrics

import (
	"math"

	"github.com/san-kum/quadctl/internal/batch"
)

// ControlEffort accumulates the mean absolute body torque across the batch.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string { return c.name }

func (c *ControlEffort) Observe(rates, motor, wrench *batch.Grid, t float64) {
	for i := 0; i < wrench.Rows; i++ {
		w := wrench.Row(i)
		for k := 1; k < 4; k++ {
			c.sum += math.Abs(w[k])
			c.samples++
		}
	}
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
