package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/quadctl/internal/batch"
	"github.com/san-kum/quadctl/internal/config"
	"github.com/san-kum/quadctl/internal/control"
	"github.com/san-kum/quadctl/internal/metrics"
	"github.com/san-kum/quadctl/internal/sim"
	"github.com/san-kum/quadctl/internal/tui"
)

var (
	configFile string
	preset     string
	instances  int
	dt         float64
	duration   float64
	mode       string
	useMotor   bool

	stepTarget float64
	rotor      int

	throttle float64
	roll     float64
	pitch    float64
	yaw      float64
	cmdStart float64
	cmdEnd   float64
	plotAxis int
	csvPath  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quadctl",
		Short: "batched quadrotor flight-control core",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "named preset configuration")
	rootCmd.PersistentFlags().IntVar(&instances, "n", config.DefaultNumInstances, "batch size (vehicle instances)")
	rootCmd.PersistentFlags().Float64Var(&dt, "dt", config.DefaultDt, "control timestep")
	rootCmd.PersistentFlags().Float64Var(&duration, "time", config.DefaultDuration, "run duration")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "control mode (motor|body_rate)")
	rootCmd.PersistentFlags().BoolVar(&useMotor, "motor-model", true, "simulate first-order motor dynamics")

	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "open-loop rotor speed step response",
		RunE:  runStep,
	}
	stepCmd.Flags().Float64Var(&stepTarget, "target", 0.9, "step target as fraction of omega_max")
	stepCmd.Flags().IntVar(&rotor, "rotor", 0, "rotor index to plot")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "closed-loop command tracking run",
		RunE:  runLoop,
	}
	runCmd.Flags().Float64Var(&throttle, "throttle", 0.0, "normalized throttle command")
	runCmd.Flags().Float64Var(&roll, "roll", 0.3, "normalized roll-rate command")
	runCmd.Flags().Float64Var(&pitch, "pitch", 0.0, "normalized pitch-rate command")
	runCmd.Flags().Float64Var(&yaw, "yaw", 0.0, "normalized yaw-rate command")
	runCmd.Flags().Float64Var(&cmdStart, "from", 0.5, "command onset time")
	runCmd.Flags().Float64Var(&cmdEnd, "until", 3.0, "command release time")
	runCmd.Flags().IntVar(&plotAxis, "axis", 0, "body-rate axis to plot (0=x 1=y 2=z)")
	runCmd.Flags().StringVar(&csvPath, "csv", "", "export probe history to CSV")

	compareCmd := &cobra.Command{
		Use:   "compare [preset1] [preset2] ...",
		Short: "run the same commands across presets concurrently",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runCompare,
	}
	compareCmd.Flags().Float64Var(&roll, "roll", 0.3, "normalized roll-rate command")
	compareCmd.Flags().Float64Var(&cmdStart, "from", 0.5, "command onset time")
	compareCmd.Flags().Float64Var(&cmdEnd, "until", 3.0, "command release time")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "interactive live view",
		RunE:  runLive,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark pipeline throughput",
		RunE:  runBench,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list preset configurations",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default config to a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return config.Save(args[0], cfg)
		},
	}

	rootCmd.AddCommand(stepCmd, runCmd, compareCmd, liveCmd, benchCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers preset, config file and explicit flags, in that order
// of increasing precedence.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("n") {
		cfg.NumInstances = instances
	}
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("mode") {
		cfg.ControlMode = mode
	}
	if cmd.Flags().Changed("motor-model") {
		cfg.Motor.UseModel = useMotor
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runStep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if rotor < 0 || rotor > 3 {
		return fmt.Errorf("rotor index must be 0..3, got %d", rotor)
	}

	motor, err := control.NewMotor(cfg.NumInstances, cfg.Motor.Taus, cfg.Motor.Init,
		cfg.Motor.MaxRate, cfg.Motor.MinRate, cfg.Dt, cfg.Motor.UseModel)
	if err != nil {
		return err
	}

	target := stepTarget * cfg.Vehicle.OmegaMax
	ref := batch.Broadcast([]float64{target, target, target, target}, cfg.NumInstances)

	steps := int(cfg.Duration / cfg.Dt)
	refSeries := make([]float64, 0, steps)
	actual := make([]float64, 0, steps)
	for i := 0; i < steps; i++ {
		omega, err := motor.Compute(ref)
		if err != nil {
			return err
		}
		refSeries = append(refSeries, target)
		actual = append(actual, omega.At(0, rotor))
	}

	fmt.Printf("rotor %d step response: %.0f -> %.0f rad/s over %.3fs (dt=%.4fs)\n\n",
		rotor+1, cfg.Motor.Init[rotor], target, cfg.Duration, cfg.Dt)
	fmt.Println(asciigraph.PlotMany([][]float64{refSeries, actual},
		asciigraph.Height(15), asciigraph.Width(70),
		asciigraph.SeriesColors(asciigraph.Gray, asciigraph.Green)))
	fmt.Printf("\nfinal: %.1f rad/s (%.1f%% of reference)\n",
		actual[len(actual)-1], 100*actual[len(actual)-1]/target)
	return nil
}

func buildLoop(cfg *config.Config) (*control.Pipeline, *sim.Vehicle, error) {
	pipeline, err := control.NewPipeline(cfg.NumInstances, cfg.PipelineParams())
	if err != nil {
		return nil, nil, err
	}
	vehicle, err := sim.NewVehicle(cfg.NumInstances, cfg.Vehicle.Mass, cfg.Vehicle.Gravity,
		cfg.Vehicle.Inertia, cfg.Dt)
	if err != nil {
		return nil, nil, err
	}
	return pipeline, vehicle, nil
}

func commandPulse() ([4]float64, [4]float64) {
	base := [4]float64{throttle, 0, 0, 0}
	active := [4]float64{throttle, roll, pitch, yaw}
	return base, active
}

func rateTarget(cfg *config.Config, active [4]float64) [3]float64 {
	var target [3]float64
	if control.Mode(cfg.ControlMode) == control.ModeBodyRate {
		for k := 0; k < 3; k++ {
			target[k] = active[k+1] * cfg.Rate.MaxBodyRate[k]
		}
	}
	return target
}

func runLoop(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if plotAxis < 0 || plotAxis > 2 {
		return fmt.Errorf("axis must be 0..2, got %d", plotAxis)
	}

	pipeline, vehicle, err := buildLoop(cfg)
	if err != nil {
		return err
	}

	base, active := commandPulse()
	runner := sim.NewRunner(pipeline, vehicle, sim.Doublet(base, active, cmdStart, cmdEnd))
	runner.AddMetric(metrics.NewTrackingError(rateTarget(cfg, active)))
	runner.AddMetric(metrics.NewControlEffort())
	runner.AddMetric(metrics.NewSaturation(cfg.Vehicle.OmegaMax, 0.99))

	fmt.Printf("running %s mode, %d instances...\n", cfg.ControlMode, cfg.NumInstances)
	start := time.Now()
	result, err := runner.Run(context.Background(), sim.Config{
		Dt:            cfg.Dt,
		Duration:      cfg.Duration,
		ValidateState: true,
	})
	if err != nil {
		return err
	}
	fmt.Printf("completed %d steps in %v\n\n", result.StepsTaken, time.Since(start))

	series := make([]float64, len(result.Rates))
	for i, r := range result.Rates {
		series[i] = r[plotAxis]
	}
	axisNames := []string{"x", "y", "z"}
	fmt.Printf("body rate %s (rad/s), instance 0:\n", axisNames[plotAxis])
	fmt.Println(asciigraph.Plot(series, asciigraph.Height(12), asciigraph.Width(70)))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nmetric\tvalue")
	for name, val := range result.Metrics {
		fmt.Fprintf(w, "%s\t%.6f\n", name, val)
	}
	w.Flush()

	if csvPath != "" {
		if err := exportCSV(csvPath, result); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", csvPath)
	}
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	scenarios := make([]sim.Scenario, 0, len(args))
	var runCfg sim.Config

	for _, name := range args {
		cfg := config.GetPreset(name)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
		if cmd.Flags().Changed("n") {
			cfg.NumInstances = instances
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("preset %s: %w", name, err)
		}

		pipeline, vehicle, err := buildLoop(cfg)
		if err != nil {
			return fmt.Errorf("preset %s: %w", name, err)
		}

		base := [4]float64{0, 0, 0, 0}
		active := [4]float64{0, roll, 0, 0}
		scenarios = append(scenarios, sim.Scenario{
			Name:      name,
			Pipeline:  pipeline,
			Vehicle:   vehicle,
			Commander: sim.Doublet(base, active, cmdStart, cmdEnd),
			Metrics: []sim.Metric{
				metrics.NewTrackingError(rateTarget(cfg, active)),
				metrics.NewControlEffort(),
				metrics.NewSaturation(cfg.Vehicle.OmegaMax, 0.99),
			},
		})
		runCfg = sim.Config{Dt: cfg.Dt, Duration: cfg.Duration, ValidateState: true}
	}

	results, err := sim.RunEnsemble(context.Background(), scenarios, runCfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "preset\ttracking_error\tcontrol_effort\tsaturation")
	for _, sc := range scenarios {
		r := results[sc.Name]
		fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%.6f\n", sc.Name,
			r.Metrics["tracking_error"], r.Metrics["control_effort"], r.Metrics["saturation"])
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	pipeline, vehicle, err := buildLoop(cfg)
	if err != nil {
		return err
	}
	runner := sim.NewRunner(pipeline, vehicle, nil)
	return tui.Run(tui.NewModel(runner, cfg.NumInstances, cfg.Dt, cfg.Vehicle.OmegaMax))
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	pipeline, vehicle, err := buildLoop(cfg)
	if err != nil {
		return err
	}
	runner := sim.NewRunner(pipeline, vehicle, sim.Constant([4]float64{0, 0.2, 0, 0}))

	commands := batch.New(cfg.NumInstances, 4)
	const steps = 20000
	start := time.Now()
	t := 0.0
	for i := 0; i < steps; i++ {
		if _, err := runner.Step(t, commands); err != nil {
			return err
		}
		t += cfg.Dt
	}
	elapsed := time.Since(start)

	perStep := elapsed / steps
	fmt.Printf("%d instances, %d steps: %v (%v/step, %.1f Minstance-steps/s)\n",
		cfg.NumInstances, steps, elapsed, perStep,
		float64(cfg.NumInstances)*steps/elapsed.Seconds()/1e6)
	return nil
}

func exportCSV(path string, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"t", "rate_x", "rate_y", "rate_z",
		"w1", "w2", "w3", "w4", "thrust", "tau_x", "tau_y", "tau_z"}
	if err := w.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for i, t := range result.Times {
		vals := append([]float64{t}, result.Rates[i]...)
		vals = append(vals, result.Motor[i]...)
		vals = append(vals, result.Wrench[i]...)
		for j, v := range vals {
			row[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
