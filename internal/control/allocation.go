package control

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/quadctl/internal/batch"
)

// Range is a closed clamp interval.
type Range struct {
	Min float64
	Max float64
}

// Allocation converts per-rotor angular velocities to body wrench and back
// for an X-configuration quadrotor, using the thrust model f_i = kt * w_i^2.
//
// The mixing matrix and its pseudo-inverse are built once at construction and
// shared by every instance in the batch. Rotor ordering and the alternating
// drag signs encode the airframe's CW/CCW spin convention; they must match
// the rotor indexing of the external simulator.
type Allocation struct {
	numInstances int
	thrustCoeff  float64
	matrix       [4][4]float64
	inverse      [4][4]float64
}

// NewAllocation builds the allocation matrix from the rotor geometry.
// armLength is the center-to-rotor distance in meters, thrustCoeff the rotor
// thrust constant and dragCoeff the rotor drag torque constant.
func NewAllocation(numInstances int, armLength, thrustCoeff, dragCoeff float64) (*Allocation, error) {
	if numInstances <= 0 {
		return nil, fmt.Errorf("%w: numInstances must be positive, got %d", ErrBadParams, numInstances)
	}
	if thrustCoeff <= 0 {
		return nil, fmt.Errorf("%w: thrustCoeff must be positive, got %g", ErrBadParams, thrustCoeff)
	}

	l := armLength / math.Sqrt2
	m := mat.NewDense(4, 4, []float64{
		1, 1, 1, 1,
		l, -l, -l, l,
		-l, -l, l, l,
		dragCoeff, -dragCoeff, dragCoeff, -dragCoeff,
	})

	inv, err := pseudoInverse(m)
	if err != nil {
		return nil, err
	}

	a := &Allocation{
		numInstances: numInstances,
		thrustCoeff:  thrustCoeff,
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			a.matrix[i][j] = m.At(i, j)
			a.inverse[i][j] = inv.At(i, j)
		}
	}
	return a, nil
}

func (a *Allocation) NumInstances() int { return a.numInstances }

// Matrix returns a copy of the 4x4 mixing matrix.
func (a *Allocation) Matrix() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m.Set(i, j, a.matrix[i][j])
		}
	}
	return m
}

// Inverse returns a copy of the cached pseudo-inverse.
func (a *Allocation) Inverse() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m.Set(i, j, a.inverse[i][j])
		}
	}
	return m
}

// Wrench computes [total thrust, tx, ty, tz] per instance from rotor angular
// velocities of shape (N, 4).
func (a *Allocation) Wrench(omega *batch.Grid) (*batch.Grid, error) {
	if err := a.checkShape("omega", omega); err != nil {
		return nil, err
	}
	out := batch.New(omega.Rows, 4)
	for i := 0; i < omega.Rows; i++ {
		w := omega.Row(i)
		var thrust [4]float64
		for j := 0; j < 4; j++ {
			thrust[j] = a.thrustCoeff * w[j] * w[j]
		}
		o := out.Row(i)
		for r := 0; r < 4; r++ {
			s := 0.0
			for c := 0; c < 4; c++ {
				s += a.matrix[r][c] * thrust[c]
			}
			o[r] = s
		}
	}
	return out, nil
}

// MotorThrustFromWrench applies the pseudo-inverse to a desired body wrench.
// Entries may come out negative for infeasible wrenches; callers clamp.
func (a *Allocation) MotorThrustFromWrench(wrench *batch.Grid) (*batch.Grid, error) {
	if err := a.checkShape("wrench", wrench); err != nil {
		return nil, err
	}
	out := batch.New(wrench.Rows, 4)
	for i := 0; i < wrench.Rows; i++ {
		w := wrench.Row(i)
		o := out.Row(i)
		for r := 0; r < 4; r++ {
			s := 0.0
			for c := 0; c < 4; c++ {
				s += a.inverse[r][c] * w[c]
			}
			o[r] = s
		}
	}
	return out, nil
}

// OmegaFromWrench computes the rotor angular velocities realizing a target
// wrench. Thrusts are clamped to the optional range, then to >= 0, before
// the square root; infeasible wrenches saturate instead of failing, so the
// result is a feasible least-squares approximation.
func (a *Allocation) OmegaFromWrench(wrench *batch.Grid, clamp *Range) (*batch.Grid, error) {
	thrusts, err := a.MotorThrustFromWrench(wrench)
	if err != nil {
		return nil, err
	}
	if clamp != nil {
		thrusts.Clamp(clamp.Min, clamp.Max)
	}
	for i, v := range thrusts.Data {
		thrusts.Data[i] = math.Sqrt(math.Max(v/a.thrustCoeff, 0))
	}
	return thrusts, nil
}

func (a *Allocation) checkShape(name string, g *batch.Grid) error {
	if g == nil || g.Rows != a.numInstances || g.Cols != 4 {
		rows, cols := -1, -1
		if g != nil {
			rows, cols = g.Rows, g.Cols
		}
		return fmt.Errorf("%w: %s must have shape (%d, 4), got (%d, %d)",
			ErrShapeMismatch, name, a.numInstances, rows, cols)
	}
	return nil
}

// pseudoInverse computes the Moore-Penrose inverse via thin SVD, dropping
// singular values below a scale-relative tolerance so near-singular rotor
// geometries still yield a least-squares solution.
func pseudoInverse(a *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD factorization failed", ErrBadParams)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	rows, cols := a.Dims()
	tol := float64(max(rows, cols)) * s[0] * 2.220446049250313e-16
	d := mat.NewDense(len(s), len(s), nil)
	for i, sv := range s {
		if sv > tol {
			d.Set(i, i, 1/sv)
		}
	}

	var tmp, inv mat.Dense
	tmp.Mul(&v, d)
	inv.Mul(&tmp, u.T())
	return &inv, nil
}
