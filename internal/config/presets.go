package config

import "sort"

// Presets are named parameter sets layered on top of DefaultConfig.
var Presets = map[string]func(*Config){
	// 5-inch racing quad, body-rate commands.
	"racer": func(c *Config) {},

	// 65mm brushed whoop: short arms, weak motors, slow rotors.
	"whoop": func(c *Config) {
		c.Vehicle.ArmLength = 0.016
		c.Vehicle.ThrustCoeff = 1.2e-8
		c.Vehicle.DragCoeff = 8.0e-11
		c.Vehicle.OmegaMax = 3800
		c.Vehicle.Mass = 0.027
		c.Vehicle.Inertia = []float64{1.4e-5, 1.4e-5, 2.2e-5}
		c.Motor.Taus = []float64{0.02, 0.02, 0.02, 0.02}
		c.Motor.Init = []float64{1900, 1900, 1900, 1900}
		c.Motor.MaxRate = []float64{20000, 20000, 20000, 20000}
		c.Motor.MinRate = []float64{-20000, -20000, -20000, -20000}
		c.Rate.Gains = []float64{0.001, 0.001, 0.0005}
	},

	// Sluggish motors, for looking at actuator lag and slew limiting.
	"sluggish": func(c *Config) {
		c.Motor.Taus = []float64{0.05, 0.05, 0.05, 0.05}
		c.Motor.MaxRate = []float64{8000, 8000, 8000, 8000}
		c.Motor.MinRate = []float64{-8000, -8000, -8000, -8000}
	},

	// Idealized actuators: zero-lag passthrough.
	"ideal": func(c *Config) {
		c.Motor.UseModel = false
	},

	// Direct rotor-speed commands instead of throttle + body rates.
	"direct": func(c *Config) {
		c.ControlMode = "motor"
	},
}

// GetPreset returns a fresh config with the named preset applied, or nil if
// the preset is unknown.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
