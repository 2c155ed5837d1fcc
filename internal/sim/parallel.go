package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Ensemble runs one scenario several times at once, each run on its own
// freshly built stepper.
type Ensemble struct {
	newStepper func() Stepper
	newMetrics func() []Metric
	numRuns    int
}

func NewEnsemble(newStepper func() Stepper, numRuns int) *Ensemble {
	return &Ensemble{newStepper: newStepper, numRuns: numRuns}
}

// WithMetrics sets a factory for per-run metrics. Metrics keep state, so each
// run needs its own set.
func (e *Ensemble) WithMetrics(fn func() []Metric) *Ensemble {
	e.newMetrics = fn
	return e
}

func (e *Ensemble) Run(ctx context.Context, sc Scenario) ([]*Result, error) {
	results := make([]*Result, e.numRuns)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			s := New(e.newStepper())
			if e.newMetrics != nil {
				for _, m := range e.newMetrics() {
					s.AddMetric(m)
				}
			}
			res, err := s.Run(gctx, sc)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Deterministic reports whether every run ended on exactly the same pose.
func Deterministic(results []*Result) bool {
	for _, r := range results[min(1, len(results)):] {
		if r.Final != results[0].Final {
			return false
		}
	}
	return true
}
