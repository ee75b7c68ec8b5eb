package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/quadctl/internal/control"
)

// Defaults for a 5-inch racing quad: 1950KV motors on a 6S pack give
// omega_max ~= 5145 rad/s; thrust_coeff sized for a thrust-to-weight of 4 at
// 0.6076 kg.
const (
	DefaultNumInstances = 16
	DefaultDt           = 0.002
	DefaultDuration     = 5.0
	DefaultArmLength    = 0.035
	DefaultThrustCoeff  = 2.25e-7
	DefaultDragCoeff    = 1.5e-9
	DefaultOmegaMax     = 5145.0
	DefaultMass         = 0.6076
	DefaultGravity      = 9.81
)

type Config struct {
	NumInstances int     `yaml:"num_instances"`
	Dt           float64 `yaml:"dt"`
	Duration     float64 `yaml:"duration"`
	ControlMode  string  `yaml:"control_mode"`

	Vehicle VehicleConfig `yaml:"vehicle"`
	Motor   MotorConfig   `yaml:"motor"`
	Rate    RateConfig    `yaml:"rate_controller"`
}

type VehicleConfig struct {
	ArmLength   float64   `yaml:"arm_length"`
	ThrustCoeff float64   `yaml:"thrust_coeff"`
	DragCoeff   float64   `yaml:"drag_coeff"`
	OmegaMax    float64   `yaml:"omega_max"`
	Mass        float64   `yaml:"mass"`
	Gravity     float64   `yaml:"gravity"`
	Inertia     []float64 `yaml:"inertia"`
}

type MotorConfig struct {
	Taus     []float64 `yaml:"taus"`
	Init     []float64 `yaml:"init"`
	MaxRate  []float64 `yaml:"max_rate"`
	MinRate  []float64 `yaml:"min_rate"`
	UseModel bool      `yaml:"use_model"`
}

type RateConfig struct {
	Gains          []float64  `yaml:"gains"`
	MaxBodyRate    []float64  `yaml:"max_body_rate"`
	ThrottleLimits [2]float64 `yaml:"throttle_limits"`
}

func DefaultConfig() *Config {
	return &Config{
		NumInstances: DefaultNumInstances,
		Dt:           DefaultDt,
		Duration:     DefaultDuration,
		ControlMode:  string(control.ModeBodyRate),
		Vehicle: VehicleConfig{
			ArmLength:   DefaultArmLength,
			ThrustCoeff: DefaultThrustCoeff,
			DragCoeff:   DefaultDragCoeff,
			OmegaMax:    DefaultOmegaMax,
			Mass:        DefaultMass,
			Gravity:     DefaultGravity,
			Inertia:     []float64{0.003, 0.003, 0.006},
		},
		Motor: MotorConfig{
			Taus:     []float64{0.0001, 0.0001, 0.0001, 0.0001},
			Init:     []float64{2572.5, 2572.5, 2572.5, 2572.5},
			MaxRate:  []float64{50000, 50000, 50000, 50000},
			MinRate:  []float64{-50000, -50000, -50000, -50000},
			UseModel: true,
		},
		Rate: RateConfig{
			Gains:          []float64{0.02, 0.02, 0.01},
			MaxBodyRate:    []float64{10, 10, 5},
			ThrottleLimits: [2]float64{0, 1},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate fails fast on any parameter the control core would reject at
// construction, so config errors surface before a run starts.
func (c *Config) Validate() error {
	if c.NumInstances <= 0 {
		return fmt.Errorf("num_instances must be positive, got %d", c.NumInstances)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g", c.Duration)
	}
	switch control.Mode(c.ControlMode) {
	case control.ModeMotor, control.ModeBodyRate:
	default:
		return fmt.Errorf("unsupported control_mode %q", c.ControlMode)
	}
	if c.Vehicle.ThrustCoeff <= 0 {
		return fmt.Errorf("thrust_coeff must be positive, got %g", c.Vehicle.ThrustCoeff)
	}
	if c.Vehicle.OmegaMax <= 0 {
		return fmt.Errorf("omega_max must be positive, got %g", c.Vehicle.OmegaMax)
	}
	if c.Vehicle.Mass <= 0 {
		return fmt.Errorf("mass must be positive, got %g", c.Vehicle.Mass)
	}
	if len(c.Vehicle.Inertia) != 3 {
		return fmt.Errorf("inertia must have length 3, got %d", len(c.Vehicle.Inertia))
	}
	n := len(c.Motor.Taus)
	if n != 4 {
		return fmt.Errorf("motor taus must have length 4, got %d", n)
	}
	if len(c.Motor.Init) != n || len(c.Motor.MaxRate) != n || len(c.Motor.MinRate) != n {
		return fmt.Errorf("motor vectors must all have length %d", n)
	}
	if len(c.Rate.Gains) != 3 {
		return fmt.Errorf("rate gains must have length 3, got %d", len(c.Rate.Gains))
	}
	if len(c.Rate.MaxBodyRate) != 3 {
		return fmt.Errorf("max_body_rate must have length 3, got %d", len(c.Rate.MaxBodyRate))
	}
	if c.Rate.ThrottleLimits[0] > c.Rate.ThrottleLimits[1] {
		return fmt.Errorf("throttle_limits out of order: %g > %g",
			c.Rate.ThrottleLimits[0], c.Rate.ThrottleLimits[1])
	}
	return nil
}

// PipelineParams maps the config onto the control core's construction
// parameters.
func (c *Config) PipelineParams() control.PipelineParams {
	return control.PipelineParams{
		ArmLength:      c.Vehicle.ArmLength,
		ThrustCoeff:    c.Vehicle.ThrustCoeff,
		DragCoeff:      c.Vehicle.DragCoeff,
		OmegaMax:       c.Vehicle.OmegaMax,
		Taus:           c.Motor.Taus,
		InitOmega:      c.Motor.Init,
		MaxRate:        c.Motor.MaxRate,
		MinRate:        c.Motor.MinRate,
		Dt:             c.Dt,
		UseMotor:       c.Motor.UseModel,
		Mode:           control.Mode(c.ControlMode),
		RateGains:      c.Rate.Gains,
		BodyInertia:    c.Vehicle.Inertia,
		MaxBodyRate:    c.Rate.MaxBodyRate,
		ThrottleLimits: c.Rate.ThrottleLimits,
	}
}
