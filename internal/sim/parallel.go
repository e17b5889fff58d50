package sim

import (
	"context"
	"sync"

	"github.com/san-kum/mbplant/internal/plant"
)

// Vary perturbs one run's context before it starts; run indices are [0, n).
type Vary func(run int, pctx *plant.Context) error

// Ensemble runs the same plant over independent contexts in parallel, one
// goroutine per run. The plant is read-only while an ensemble is running.
type Ensemble struct {
	plant   *plant.Plant
	numRuns int
	vary    Vary
}

func NewEnsemble(p *plant.Plant, numRuns int, vary Vary) *Ensemble {
	return &Ensemble{plant: p, numRuns: numRuns, vary: vary}
}

func (e *Ensemble) Run(goCtx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			pctx, err := e.plant.CreateDefaultContext()
			if err != nil {
				errs[idx] = err
				return
			}
			pctx.ConnectDefaultQuery()
			if e.vary != nil {
				if err := e.vary(idx, pctx); err != nil {
					errs[idx] = err
					return
				}
			}

			runner, err := New(e.plant)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = runner.Run(goCtx, pctx, cfg)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
