package control

import (
	"math"
	"testing"

	"github.com/san-kum/quadctl/internal/batch"
)

func newTestMotor(t *testing.T, n int, tau, dt float64, maxRate float64, useModel bool) *Motor {
	t.Helper()
	taus := []float64{tau, tau, tau, tau}
	init := []float64{2000, 2000, 2000, 2000}
	maxR := []float64{maxRate, maxRate, maxRate, maxRate}
	minR := []float64{-maxRate, -maxRate, -maxRate, -maxRate}
	m, err := NewMotor(n, taus, init, maxR, minR, dt, useModel)
	if err != nil {
		t.Fatalf("NewMotor: %v", err)
	}
	return m
}

func TestMotorBypass(t *testing.T) {
	m := newTestMotor(t, 3, 0.01, 0.002, 1e6, false)
	ref := batch.Broadcast([]float64{3000, 3100, 3200, 3300}, 3)

	omega, err := m.Compute(ref)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := range ref.Data {
		if omega.Data[i] != ref.Data[i] {
			t.Errorf("bypass should return reference exactly at %d: %g vs %g",
				i, omega.Data[i], ref.Data[i])
		}
	}
	if m.Omega().At(1, 2) != 3200 {
		t.Error("bypass should update internal state immediately")
	}
}

func TestMotorFirstOrderLag(t *testing.T) {
	tau, dt := 0.1, 0.01
	m := newTestMotor(t, 2, tau, dt, 1e9, true)
	ref := batch.Broadcast([]float64{3000, 3000, 3000, 3000}, 2)

	omega, err := m.Compute(ref)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// One explicit Euler step of (ref - omega)/tau from 2000.
	want := 2000 + dt*(3000-2000)/tau
	for i, v := range omega.Data {
		if math.Abs(v-want) > 1e-9 {
			t.Errorf("omega[%d] = %g, want %g", i, v, want)
		}
	}
	if omega.At(0, 0) >= 3000 {
		t.Error("single lag step should not reach the reference")
	}
}

func TestMotorRateLimit(t *testing.T) {
	maxRate := 100.0
	dt := 0.002
	m := newTestMotor(t, 1, 0.0001, dt, maxRate, true)
	before := m.Omega().Clone()

	ref := batch.Broadcast([]float64{50000, 50000, 50000, 50000}, 1)
	omega, err := m.Compute(ref)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	for i := range omega.Data {
		delta := math.Abs(omega.Data[i] - before.Data[i])
		if delta > dt*maxRate+1e-12 {
			t.Errorf("one-step change %g exceeds dt*maxRate %g", delta, dt*maxRate)
		}
	}
}

func TestMotorComputeReturnsOwnedState(t *testing.T) {
	m := newTestMotor(t, 1, 0.01, 0.002, 1e6, true)
	ref := batch.Broadcast([]float64{2500, 2500, 2500, 2500}, 1)
	omega, err := m.Compute(ref)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if omega != m.Omega() {
		t.Error("Compute should return the owned state, not a copy")
	}
}

func TestMotorResetIsolatesInstances(t *testing.T) {
	m := newTestMotor(t, 4, 0.05, 0.002, 1e6, true)
	ref := batch.Broadcast([]float64{4000, 4100, 4200, 4300}, 4)
	for i := 0; i < 10; i++ {
		if _, err := m.Compute(ref); err != nil {
			t.Fatalf("Compute: %v", err)
		}
	}

	before := m.Omega().Clone()
	m.Reset([]int{1, 3})

	omega := m.Omega()
	for j := 0; j < 4; j++ {
		if omega.At(1, j) != 2000 || omega.At(3, j) != 2000 {
			t.Error("reset instances should hold the initial speed exactly")
		}
		if omega.At(0, j) != before.At(0, j) || omega.At(2, j) != before.At(2, j) {
			t.Error("untouched instances must be bit-identical after reset")
		}
	}
}

func TestMotorShapeMismatch(t *testing.T) {
	m := newTestMotor(t, 2, 0.01, 0.002, 1e6, true)
	if _, err := m.Compute(batch.New(3, 4)); err == nil {
		t.Error("expected error for wrong batch size")
	}
	if _, err := m.Compute(nil); err == nil {
		t.Error("expected error for nil reference")
	}
}

func TestMotorBadParams(t *testing.T) {
	taus := []float64{0.01, 0.01, 0.01, 0.01}
	vec := []float64{1, 1, 1, 1}
	neg := []float64{-1, -1, -1, -1}

	cases := []struct {
		name string
		fn   func() (*Motor, error)
	}{
		{"zero instances", func() (*Motor, error) {
			return NewMotor(0, taus, vec, vec, neg, 0.002, true)
		}},
		{"length mismatch", func() (*Motor, error) {
			return NewMotor(1, taus, vec[:3], vec, neg, 0.002, true)
		}},
		{"zero dt", func() (*Motor, error) {
			return NewMotor(1, taus, vec, vec, neg, 0, true)
		}},
		{"non-positive tau", func() (*Motor, error) {
			return NewMotor(1, []float64{0, 0.01, 0.01, 0.01}, vec, vec, neg, 0.002, true)
		}},
		{"inverted rate bounds", func() (*Motor, error) {
			return NewMotor(1, taus, vec, neg, vec, 0.002, true)
		}},
	}
	for _, tc := range cases {
		if _, err := tc.fn(); err == nil {
			t.Errorf("%s: expected construction error", tc.name)
		}
	}
}
