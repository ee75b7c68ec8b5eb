package control

import (
	"fmt"

	"github.com/san-kum/quadctl/internal/batch"
)

// RateController is a stateless body-rate feedback law. It drives measured
// angular rates toward commanded rates and adds the gyroscopic feedforward
// term w x (I*w), using a diagonal inertia approximation.
type RateController struct {
	numInstances int
	gains        *batch.Grid
	inertia      *batch.Grid
	maxBodyRate  *batch.Grid
}

// NewRateController broadcasts the per-axis gains, diagonal inertia and
// body-rate limits across the batch. Each vector must have exactly length 3.
func NewRateController(numInstances int, rateGains, inertia, maxBodyRates []float64) (*RateController, error) {
	if numInstances <= 0 {
		return nil, fmt.Errorf("%w: numInstances must be positive, got %d", ErrBadParams, numInstances)
	}
	if len(rateGains) != 3 || len(inertia) != 3 || len(maxBodyRates) != 3 {
		return nil, fmt.Errorf("%w: rate_gains, inertia and max_body_rates must have length 3", ErrBadParams)
	}

	return &RateController{
		numInstances: numInstances,
		gains:        batch.Broadcast(rateGains, numInstances),
		inertia:      batch.Broadcast(inertia, numInstances),
		maxBodyRate:  batch.Broadcast(maxBodyRates, numInstances),
	}, nil
}

// Compute returns the body torque command for the given desired rates.
// Desired rates are clamped to the configured limits before the error term;
// infeasible commands saturate rather than fail.
func (c *RateController) Compute(currentRates, desiredRates *batch.Grid) (*batch.Grid, error) {
	if currentRates == nil || desiredRates == nil || !currentRates.SameShape(desiredRates) {
		return nil, fmt.Errorf("%w: current_rates and desired_rates must have the same shape", ErrShapeMismatch)
	}
	if currentRates.Rows != c.numInstances || currentRates.Cols != 3 {
		return nil, fmt.Errorf("%w: rates must have shape (%d, 3), got (%d, %d)",
			ErrShapeMismatch, c.numInstances, currentRates.Rows, currentRates.Cols)
	}

	torque := batch.New(c.numInstances, 3)
	for i := 0; i < c.numInstances; i++ {
		cur := currentRates.Row(i)
		des := desiredRates.Row(i)
		lim := c.maxBodyRate.Row(i)
		inr := c.inertia.Row(i)
		g := c.gains.Row(i)
		out := torque.Row(i)

		// Angular momentum under diagonal inertia.
		h0 := inr[0] * cur[0]
		h1 := inr[1] * cur[1]
		h2 := inr[2] * cur[2]

		for k := 0; k < 3; k++ {
			d := des[k]
			if d > lim[k] {
				d = lim[k]
			} else if d < -lim[k] {
				d = -lim[k]
			}
			out[k] = -g[k] * (cur[k] - d)
		}

		out[0] += cur[1]*h2 - cur[2]*h1
		out[1] += cur[2]*h0 - cur[0]*h2
		out[2] += cur[0]*h1 - cur[1]*h0
	}
	return torque, nil
}
