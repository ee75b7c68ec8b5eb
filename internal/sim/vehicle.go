package sim

import (
	"fmt"

	"github.com/san-kum/quadctl/internal/batch"
)

// Vehicle is a minimal batched rigid body for exercising the control core in
// closed loop: Euler rotational dynamics with diagonal inertia plus a single
// vertical translation axis. It is a demo collaborator, not a physics engine;
// the thrust axis is assumed body-up regardless of attitude.
type Vehicle struct {
	numInstances int
	mass         float64
	gravity      float64
	inertia      [3]float64
	dt           float64

	rates *batch.Grid // (N, 3) body rates, rad/s
	vert  *batch.Grid // (N, 2) vertical velocity and altitude
}

func NewVehicle(numInstances int, mass, gravity float64, inertia []float64, dt float64) (*Vehicle, error) {
	if numInstances <= 0 {
		return nil, fmt.Errorf("sim: numInstances must be positive, got %d", numInstances)
	}
	if mass <= 0 {
		return nil, fmt.Errorf("sim: mass must be positive, got %g", mass)
	}
	if len(inertia) != 3 {
		return nil, fmt.Errorf("sim: inertia must have length 3, got %d", len(inertia))
	}
	if dt <= 0 {
		return nil, fmt.Errorf("sim: dt must be positive, got %g", dt)
	}
	v := &Vehicle{
		numInstances: numInstances,
		mass:         mass,
		gravity:      gravity,
		dt:           dt,
		rates:        batch.New(numInstances, 3),
		vert:         batch.New(numInstances, 2),
	}
	copy(v.inertia[:], inertia)
	return v, nil
}

// Rates returns the owned body-rate state, not a copy.
func (v *Vehicle) Rates() *batch.Grid { return v.rates }

// Vertical returns the owned [vz, z] state per instance.
func (v *Vehicle) Vertical() *batch.Grid { return v.vert }

// Step integrates one timestep under the applied body wrench, shape (N, 4).
func (v *Vehicle) Step(wrench *batch.Grid) error {
	if wrench == nil || wrench.Rows != v.numInstances || wrench.Cols != 4 {
		rows, cols := -1, -1
		if wrench != nil {
			rows, cols = wrench.Rows, wrench.Cols
		}
		return fmt.Errorf("sim: wrench must have shape (%d, 4), got (%d, %d)",
			v.numInstances, rows, cols)
	}

	for i := 0; i < v.numInstances; i++ {
		w := wrench.Row(i)
		r := v.rates.Row(i)

		h0 := v.inertia[0] * r[0]
		h1 := v.inertia[1] * r[1]
		h2 := v.inertia[2] * r[2]

		// tau = I*wdot + w x (I*w), solved for wdot axis-wise.
		d0 := (w[1] - (r[1]*h2 - r[2]*h1)) / v.inertia[0]
		d1 := (w[2] - (r[2]*h0 - r[0]*h2)) / v.inertia[1]
		d2 := (w[3] - (r[0]*h1 - r[1]*h0)) / v.inertia[2]

		r[0] += v.dt * d0
		r[1] += v.dt * d1
		r[2] += v.dt * d2

		vt := v.vert.Row(i)
		vt[0] += v.dt * (w[0]/v.mass - v.gravity)
		vt[1] += v.dt * vt[0]
	}
	return nil
}

// Reset zeroes the state of the given instances only.
func (v *Vehicle) Reset(instanceIDs []int) {
	zero3 := []float64{0, 0, 0}
	zero2 := []float64{0, 0}
	v.rates.ScatterRows(instanceIDs, zero3)
	v.vert.ScatterRows(instanceIDs, zero2)
}
