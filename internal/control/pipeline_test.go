package control

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/quadctl/internal/batch"
)

func testParams(mode Mode, useMotor bool) PipelineParams {
	return PipelineParams{
		ArmLength:      0.035,
		ThrustCoeff:    2.25e-7,
		DragCoeff:      1.5e-9,
		OmegaMax:       5145,
		Taus:           []float64{0.0001, 0.0001, 0.0001, 0.0001},
		InitOmega:      []float64{2572.5, 2572.5, 2572.5, 2572.5},
		MaxRate:        []float64{50000, 50000, 50000, 50000},
		MinRate:        []float64{-50000, -50000, -50000, -50000},
		Dt:             0.002,
		UseMotor:       useMotor,
		Mode:           mode,
		RateGains:      []float64{0.02, 0.02, 0.01},
		BodyInertia:    []float64{0.003, 0.003, 0.006},
		MaxBodyRate:    []float64{10, 10, 5},
		ThrottleLimits: [2]float64{0, 1},
	}
}

func TestPipelineUnsupportedMode(t *testing.T) {
	_, err := NewPipeline(2, testParams("attitude", true))
	if err == nil {
		t.Fatal("expected error for unsupported mode")
	}
	if !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("expected ErrUnsupportedMode, got %v", err)
	}
	if !strings.Contains(err.Error(), "attitude") {
		t.Errorf("error should name the offending mode: %v", err)
	}
}

func TestPipelineModeNormalization(t *testing.T) {
	p, err := NewPipeline(1, testParams("Body_Rate", true))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if p.Mode() != ModeBodyRate {
		t.Errorf("expected normalized mode %q, got %q", ModeBodyRate, p.Mode())
	}
}

func TestPipelineMotorMode(t *testing.T) {
	params := testParams(ModeMotor, false)
	p, err := NewPipeline(2, params)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	// Full-throttle commands with a bypassed actuator drive every rotor to
	// omegaMax, so total thrust is 4 * kt * omegaMax^2.
	commands := batch.Broadcast([]float64{1, 1, 1, 1}, 2)
	wrench, err := p.Process(commands, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := 4 * params.ThrustCoeff * params.OmegaMax * params.OmegaMax
	for i := 0; i < 2; i++ {
		if math.Abs(wrench.At(i, 0)-want) > 1e-9*want {
			t.Errorf("instance %d: total thrust %g, want %g", i, wrench.At(i, 0), want)
		}
		for k := 1; k < 4; k++ {
			// Equal rotor speeds cancel all torques up to rounding.
			if math.Abs(wrench.At(i, k)) > 1e-9 {
				t.Errorf("instance %d: torque %d should vanish, got %g", i, k, wrench.At(i, k))
			}
		}
	}
}

func TestPipelineCommandClamping(t *testing.T) {
	p, err := NewPipeline(1, testParams(ModeMotor, false))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	over := batch.Broadcast([]float64{5, 5, 5, 5}, 1)
	unit := batch.Broadcast([]float64{1, 1, 1, 1}, 1)

	w1, err := p.Process(over, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	w2, err := p.Process(unit, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for i := range w1.Data {
		if w1.Data[i] != w2.Data[i] {
			t.Errorf("out-of-range commands should clamp to [-1, 1]: %g vs %g", w1.Data[i], w2.Data[i])
		}
	}
	if over.At(0, 0) != 5 {
		t.Error("Process must not mutate the caller's command grid")
	}
}

func TestPipelineBodyRateMode(t *testing.T) {
	params := testParams(ModeBodyRate, false)
	p, err := NewPipeline(2, params)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	// Zero commands at rest: mid throttle, zero desired rates, zero
	// feedback torque.
	commands := batch.New(2, 4)
	rates := batch.New(2, 3)
	wrench, err := p.Process(commands, rates)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := 0.5 * 4 * params.ThrustCoeff * params.OmegaMax * params.OmegaMax
	for i := 0; i < 2; i++ {
		if math.Abs(wrench.At(i, 0)-want) > 1e-6*want {
			t.Errorf("instance %d: total thrust %g, want %g", i, wrench.At(i, 0), want)
		}
		for k := 1; k < 4; k++ {
			if math.Abs(wrench.At(i, k)) > 1e-9 {
				t.Errorf("instance %d: torque %d should vanish at rest, got %g", i, k, wrench.At(i, k))
			}
		}
	}
}

func TestPipelineBodyRateRequiresRates(t *testing.T) {
	p, err := NewPipeline(2, testParams(ModeBodyRate, true))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if _, err := p.Process(batch.New(2, 4), nil); err == nil {
		t.Error("expected error for missing current rates")
	}
	if _, err := p.Process(batch.New(2, 4), batch.New(1, 3)); err == nil {
		t.Error("expected error for wrong rate batch size")
	}
}

func TestPipelineReset(t *testing.T) {
	p, err := NewPipeline(3, testParams(ModeMotor, true))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	commands := batch.Broadcast([]float64{1, 1, 1, 1}, 3)
	for i := 0; i < 50; i++ {
		if _, err := p.Process(commands, nil); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}

	before := p.MotorSpeeds().Clone()
	p.Reset([]int{0, 2})

	after := p.MotorSpeeds()
	for j := 0; j < 4; j++ {
		if after.At(0, j) != 2572.5 || after.At(2, j) != 2572.5 {
			t.Error("reset instances should return to initial rotor speed")
		}
		if after.At(1, j) != before.At(1, j) {
			t.Error("non-reset instance must keep its state")
		}
	}
}

func TestPipelineThrottleLimitsValidated(t *testing.T) {
	params := testParams(ModeBodyRate, true)
	params.ThrottleLimits = [2]float64{0.8, 0.2}
	if _, err := NewPipeline(1, params); err == nil {
		t.Error("expected error for inverted throttle limits")
	}
}

func BenchmarkPipelineBodyRate(b *testing.B) {
	p, err := NewPipeline(1024, testParams(ModeBodyRate, true))
	if err != nil {
		b.Fatalf("NewPipeline: %v", err)
	}
	commands := batch.Broadcast([]float64{0.1, 0.05, -0.05, 0.2}, 1024)
	rates := batch.New(1024, 3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Process(commands, rates); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAllocationWrench(b *testing.B) {
	a, err := NewAllocation(1024, 0.035, 2.25e-7, 1.5e-9)
	if err != nil {
		b.Fatalf("NewAllocation: %v", err)
	}
	omega := batch.Broadcast([]float64{2500, 2600, 2400, 2550}, 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.Wrench(omega); err != nil {
			b.Fatal(err)
		}
	}
}
