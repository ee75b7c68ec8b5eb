package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/quadctl/internal/batch"
	"github.com/san-kum/quadctl/internal/control"
)

// Metric accumulates a scalar over a run. Observe sees the full batch each
// step: current body rates (N,3), realized motor speeds (N,4) and applied
// wrench (N,4).
type Metric interface {
	Name() string
	Observe(rates, motor, wrench *batch.Grid, t float64)
	Value() float64
	Reset()
}

// Observer receives every step of a run, for live views.
type Observer interface {
	OnStep(rates, motor, wrench *batch.Grid, t float64)
}

// CommandFunc fills the normalized (N, 4) command grid for time t.
type CommandFunc func(t float64, commands *batch.Grid)

// Constant returns a commander that holds the same normalized command for
// every instance at all times.
func Constant(cmd [4]float64) CommandFunc {
	return func(t float64, commands *batch.Grid) {
		for i := 0; i < commands.Rows; i++ {
			copy(commands.Row(i), cmd[:])
		}
	}
}

// Doublet returns a commander that applies cmd between t0 and t1 and base
// otherwise, the classic control-response test input.
func Doublet(base, cmd [4]float64, t0, t1 float64) CommandFunc {
	return func(t float64, commands *batch.Grid) {
		active := cmd
		if t < t0 || t >= t1 {
			active = base
		}
		for i := 0; i < commands.Rows; i++ {
			copy(commands.Row(i), active[:])
		}
	}
}

type Config struct {
	Dt            float64
	Duration      float64
	ValidateState bool
}

// Result holds the probe-instance history of a run (instance 0) plus final
// metric values. Rows are per step.
type Result struct {
	Times      []float64
	Rates      [][]float64 // (steps, 3)
	Motor      [][]float64 // (steps, 4)
	Wrench     [][]float64 // (steps, 4)
	Metrics    map[string]float64
	StepsTaken int
}

// Runner drives the command pipeline against the demo vehicle in closed loop.
type Runner struct {
	pipeline  *control.Pipeline
	vehicle   *Vehicle
	commander CommandFunc
	metrics   []Metric
	observers []Observer
}

func NewRunner(pipeline *control.Pipeline, vehicle *Vehicle, commander CommandFunc) *Runner {
	return &Runner{
		pipeline:  pipeline,
		vehicle:   vehicle,
		commander: commander,
	}
}

func (r *Runner) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

func (r *Runner) Pipeline() *control.Pipeline { return r.pipeline }
func (r *Runner) Vehicle() *Vehicle           { return r.vehicle }

// Step advances the closed loop by one control timestep. With a nil
// commander the commands grid is applied as passed.
func (r *Runner) Step(t float64, commands *batch.Grid) (*batch.Grid, error) {
	if r.commander != nil {
		r.commander(t, commands)
	}
	wrench, err := r.pipeline.Process(commands, r.vehicle.Rates())
	if err != nil {
		return nil, err
	}
	if err := r.vehicle.Step(wrench); err != nil {
		return nil, err
	}
	return wrench, nil
}

func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("sim: dt must be positive, got %g", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("sim: duration must be positive, got %g", cfg.Duration)
	}

	steps := int(cfg.Duration / cfg.Dt)
	result := &Result{
		Times:   make([]float64, 0, steps),
		Rates:   make([][]float64, 0, steps),
		Motor:   make([][]float64, 0, steps),
		Wrench:  make([][]float64, 0, steps),
		Metrics: make(map[string]float64),
	}

	for _, m := range r.metrics {
		m.Reset()
	}

	commands := batch.New(r.vehicle.numInstances, 4)
	t := 0.0

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		wrench, err := r.Step(t, commands)
		if err != nil {
			return result, err
		}

		rates := r.vehicle.Rates()
		motor := r.pipeline.MotorSpeeds()

		for _, m := range r.metrics {
			m.Observe(rates, motor, wrench, t)
		}
		for _, obs := range r.observers {
			obs.OnStep(rates, motor, wrench, t)
		}

		if cfg.ValidateState && !rates.IsValid() {
			return result, fmt.Errorf("sim: invalid state (NaN/Inf) at t=%.4f", t)
		}

		result.Times = append(result.Times, t)
		result.Rates = append(result.Rates, cloneRow(rates.Row(0)))
		result.Motor = append(result.Motor, cloneRow(motor.Row(0)))
		result.Wrench = append(result.Wrench, cloneRow(wrench.Row(0)))
		result.StepsTaken++

		t += cfg.Dt
	}

	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func cloneRow(r []float64) []float64 {
	c := make([]float64, len(r))
	copy(c, r)
	return c
}
