package sim

import (
	"context"
	"sync"

	"github.com/san-kum/quadctl/internal/control"
)

// Scenario names one closed-loop setup for an ensemble run. Pipelines and
// vehicles carry per-scenario state, so scenarios never share components.
type Scenario struct {
	Name      string
	Pipeline  *control.Pipeline
	Vehicle   *Vehicle
	Commander CommandFunc
	Metrics   []Metric
}

// RunEnsemble runs each scenario concurrently under the same run config and
// returns results keyed by scenario name. The first error wins.
func RunEnsemble(ctx context.Context, scenarios []Scenario, cfg Config) (map[string]*Result, error) {
	results := make([]*Result, len(scenarios))
	errs := make([]error, len(scenarios))

	var wg sync.WaitGroup
	for i := range scenarios {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sc := scenarios[idx]
			runner := NewRunner(sc.Pipeline, sc.Vehicle, sc.Commander)
			for _, m := range sc.Metrics {
				runner.AddMetric(m)
			}
			results[idx], errs[idx] = runner.Run(ctx, cfg)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := make(map[string]*Result, len(scenarios))
	for i, sc := range scenarios {
		out[sc.Name] = results[i]
	}
	return out, nil
}
