package control

import (
	"fmt"

	"github.com/san-kum/quadctl/internal/batch"
)

// Motor models the first-order lag of each rotor tracking a commanded
// angular velocity, with per-rotor time constants and slew-rate limits.
// It owns the only mutable state in the control core: the realized rotor
// speeds, shape (N, numMotors).
type Motor struct {
	numInstances int
	numMotors    int
	dt           float64
	useModel     bool

	init    []float64
	tau     *batch.Grid
	minRate *batch.Grid
	maxRate *batch.Grid
	omega   *batch.Grid
}

// NewMotor constructs the actuator model. taus, init, maxRate and minRate are
// per-rotor vectors of equal length, broadcast across the batch. dt is the
// integration timestep in seconds, fixed for the model's lifetime. With
// useModel false the dynamics are bypassed and Compute is a zero-lag
// passthrough.
func NewMotor(numInstances int, taus, init, maxRate, minRate []float64, dt float64, useModel bool) (*Motor, error) {
	if numInstances <= 0 {
		return nil, fmt.Errorf("%w: numInstances must be positive, got %d", ErrBadParams, numInstances)
	}
	n := len(taus)
	if n == 0 {
		return nil, fmt.Errorf("%w: taus must not be empty", ErrBadParams)
	}
	if len(init) != n || len(maxRate) != n || len(minRate) != n {
		return nil, fmt.Errorf("%w: taus, init, maxRate and minRate must have equal length (got %d, %d, %d, %d)",
			ErrBadParams, n, len(init), len(maxRate), len(minRate))
	}
	if dt <= 0 {
		return nil, fmt.Errorf("%w: dt must be positive, got %g", ErrBadParams, dt)
	}
	for i, tau := range taus {
		if tau <= 0 {
			return nil, fmt.Errorf("%w: taus[%d] must be positive, got %g", ErrBadParams, i, tau)
		}
		if minRate[i] > maxRate[i] {
			return nil, fmt.Errorf("%w: minRate[%d] %g exceeds maxRate[%d] %g",
				ErrBadParams, i, minRate[i], i, maxRate[i])
		}
	}

	initCopy := make([]float64, n)
	copy(initCopy, init)

	return &Motor{
		numInstances: numInstances,
		numMotors:    n,
		dt:           dt,
		useModel:     useModel,
		init:         initCopy,
		tau:          batch.Broadcast(taus, numInstances),
		minRate:      batch.Broadcast(minRate, numInstances),
		maxRate:      batch.Broadcast(maxRate, numInstances),
		omega:        batch.Broadcast(init, numInstances),
	}, nil
}

func (m *Motor) NumMotors() int { return m.numMotors }

// Omega returns the owned rotor speed state, not a copy.
func (m *Motor) Omega() *batch.Grid { return m.omega }

// Compute advances the rotor speeds one timestep toward omegaRef and returns
// the updated state. The returned grid aliases the owned state. With the
// model disabled the reference is adopted instantly.
func (m *Motor) Compute(omegaRef *batch.Grid) (*batch.Grid, error) {
	if omegaRef == nil || !m.omega.SameShape(omegaRef) {
		rows, cols := -1, -1
		if omegaRef != nil {
			rows, cols = omegaRef.Rows, omegaRef.Cols
		}
		return nil, fmt.Errorf("%w: omegaRef must have shape (%d, %d), got (%d, %d)",
			ErrShapeMismatch, m.numInstances, m.numMotors, rows, cols)
	}

	if !m.useModel {
		copy(m.omega.Data, omegaRef.Data)
		return m.omega, nil
	}

	for i, ref := range omegaRef.Data {
		rate := (ref - m.omega.Data[i]) / m.tau.Data[i]
		if rate < m.minRate.Data[i] {
			rate = m.minRate.Data[i]
		} else if rate > m.maxRate.Data[i] {
			rate = m.maxRate.Data[i]
		}
		m.omega.Data[i] += m.dt * rate
	}
	return m.omega, nil
}

// Reset restores the initial rotor speeds for the given instances only;
// all other rows are left untouched.
func (m *Motor) Reset(instanceIDs []int) {
	m.omega.ScatterRows(instanceIDs, m.init)
}
