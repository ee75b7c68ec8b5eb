package control

import (
	"fmt"
	"strings"

	"github.com/san-kum/quadctl/internal/batch"
)

// Mode selects how normalized commands are interpreted.
type Mode string

const (
	// ModeMotor maps commands directly to rotor speed references.
	ModeMotor Mode = "motor"
	// ModeBodyRate maps commands to throttle plus desired body rates.
	ModeBodyRate Mode = "body_rate"
)

// PipelineParams collects the construction parameters of the full command
// pipeline. Vector fields are per-rotor (length 4) or per-axis (length 3).
type PipelineParams struct {
	ArmLength   float64
	ThrustCoeff float64
	DragCoeff   float64
	OmegaMax    float64

	Taus      []float64
	InitOmega []float64
	MaxRate   []float64
	MinRate   []float64
	Dt        float64
	UseMotor  bool

	Mode           Mode
	RateGains      []float64
	BodyInertia    []float64
	MaxBodyRate    []float64
	ThrottleLimits [2]float64
}

// Pipeline converts normalized [-1, 1] commands into the body wrench realized
// by the rotors: command mapping, optional body-rate feedback, inverse
// allocation with thrust saturation, motor integration and forward
// allocation.
type Pipeline struct {
	mode  Mode
	alloc *Allocation
	motor *Motor
	rate  *RateController

	numInstances   int
	omegaMax       float64
	maxMotorThrust float64
	totalThrustMax float64
	throttleMin    float64
	throttleMax    float64
	maxBodyRate    [3]float64
}

// NewPipeline validates the mode and parameters and builds the component
// chain. The rate controller is only constructed in body-rate mode.
func NewPipeline(numInstances int, p PipelineParams) (*Pipeline, error) {
	mode := Mode(strings.ToLower(string(p.Mode)))
	switch mode {
	case ModeMotor, ModeBodyRate:
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedMode, string(p.Mode))
	}
	if p.OmegaMax <= 0 {
		return nil, fmt.Errorf("%w: omegaMax must be positive, got %g", ErrBadParams, p.OmegaMax)
	}
	if p.ThrottleLimits[0] > p.ThrottleLimits[1] {
		return nil, fmt.Errorf("%w: throttle limits out of order: %g > %g",
			ErrBadParams, p.ThrottleLimits[0], p.ThrottleLimits[1])
	}

	alloc, err := NewAllocation(numInstances, p.ArmLength, p.ThrustCoeff, p.DragCoeff)
	if err != nil {
		return nil, err
	}
	motor, err := NewMotor(numInstances, p.Taus, p.InitOmega, p.MaxRate, p.MinRate, p.Dt, p.UseMotor)
	if err != nil {
		return nil, err
	}

	pl := &Pipeline{
		mode:           mode,
		alloc:          alloc,
		motor:          motor,
		numInstances:   numInstances,
		omegaMax:       p.OmegaMax,
		maxMotorThrust: p.ThrustCoeff * p.OmegaMax * p.OmegaMax,
		throttleMin:    p.ThrottleLimits[0],
		throttleMax:    p.ThrottleLimits[1],
	}
	pl.totalThrustMax = 4 * pl.maxMotorThrust

	if mode == ModeBodyRate {
		rate, err := NewRateController(numInstances, p.RateGains, p.BodyInertia, p.MaxBodyRate)
		if err != nil {
			return nil, err
		}
		pl.rate = rate
		copy(pl.maxBodyRate[:], p.MaxBodyRate)
	}
	return pl, nil
}

func (p *Pipeline) Mode() Mode              { return p.mode }
func (p *Pipeline) Allocation() *Allocation { return p.alloc }

// MotorSpeeds returns the actuator's owned rotor speed state.
func (p *Pipeline) MotorSpeeds() *batch.Grid { return p.motor.Omega() }

// MaxMotorThrust returns the per-rotor thrust ceiling kt * omegaMax^2.
func (p *Pipeline) MaxMotorThrust() float64 { return p.maxMotorThrust }

// Process turns one step of normalized commands, shape (N, 4), into the
// realized body wrench. In motor mode commands are four rotor throttles; in
// body-rate mode they are [throttle, rate_x, rate_y, rate_z] and currentRates
// of shape (N, 3) must be supplied.
func (p *Pipeline) Process(commands, currentRates *batch.Grid) (*batch.Grid, error) {
	if commands == nil || commands.Rows != p.numInstances || commands.Cols != 4 {
		rows, cols := -1, -1
		if commands != nil {
			rows, cols = commands.Rows, commands.Cols
		}
		return nil, fmt.Errorf("%w: commands must have shape (%d, 4), got (%d, %d)",
			ErrShapeMismatch, p.numInstances, rows, cols)
	}

	clamped := commands.Clone().Clamp(-1, 1)

	var omegaRef *batch.Grid
	if p.mode == ModeMotor {
		omegaRef = batch.New(p.numInstances, 4)
		for i, v := range clamped.Data {
			omegaRef.Data[i] = p.omegaMax * (v + 1) / 2
		}
	} else {
		wrench, err := p.bodyRateWrench(clamped, currentRates)
		if err != nil {
			return nil, err
		}
		omegaRef, err = p.alloc.OmegaFromWrench(wrench, &Range{Min: 0, Max: p.maxMotorThrust})
		if err != nil {
			return nil, err
		}
	}

	omegaReal, err := p.motor.Compute(omegaRef)
	if err != nil {
		return nil, err
	}
	return p.alloc.Wrench(omegaReal)
}

func (p *Pipeline) bodyRateWrench(clamped, currentRates *batch.Grid) (*batch.Grid, error) {
	if currentRates == nil || currentRates.Rows != p.numInstances || currentRates.Cols != 3 {
		rows, cols := -1, -1
		if currentRates != nil {
			rows, cols = currentRates.Rows, currentRates.Cols
		}
		return nil, fmt.Errorf("%w: currentRates must have shape (%d, 3), got (%d, %d)",
			ErrShapeMismatch, p.numInstances, rows, cols)
	}

	desired := batch.New(p.numInstances, 3)
	totalThrust := make([]float64, p.numInstances)
	for i := 0; i < p.numInstances; i++ {
		cmd := clamped.Row(i)

		frac := (cmd[0] + 1) / 2
		frac = p.throttleMin + frac*(p.throttleMax-p.throttleMin)
		totalThrust[i] = frac * p.totalThrustMax

		des := desired.Row(i)
		for k := 0; k < 3; k++ {
			des[k] = cmd[k+1] * p.maxBodyRate[k]
		}
	}

	torque, err := p.rate.Compute(currentRates, desired)
	if err != nil {
		return nil, err
	}

	wrench := batch.New(p.numInstances, 4)
	for i := 0; i < p.numInstances; i++ {
		w := wrench.Row(i)
		w[0] = totalThrust[i]
		copy(w[1:], torque.Row(i))
	}
	return wrench, nil
}

// Reset restores the actuator state of the given instances to initial
// conditions. Other instances are untouched.
func (p *Pipeline) Reset(instanceIDs []int) {
	p.motor.Reset(instanceIDs)
}
