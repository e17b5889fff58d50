package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/mbplant/internal/plant"
)

// Runner drives a finalized discrete plant over a fixed duration, recording
// the state trajectory and, optionally, contact results per step.
type Runner struct {
	plant     *plant.Plant
	observers []Observer
}

func New(p *plant.Plant) (*Runner, error) {
	if !p.IsFinalized() {
		return nil, fmt.Errorf("sim: plant must be finalized before running")
	}
	if !p.IsDiscrete() {
		return nil, fmt.Errorf("sim: runner requires a discrete plant, got time step %g", p.TimeStep())
	}
	return &Runner{plant: p, observers: make([]Observer, 0)}, nil
}

func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

// Run steps pctx forward for cfg.Duration. Cancellation through goCtx stops
// the run and returns the partial result together with the context's error.
func (r *Runner) Run(goCtx context.Context, pctx *plant.Context, cfg Config) (*Result, error) {
	if err := r.validateConfig(cfg); err != nil {
		return nil, err
	}

	dt := r.plant.TimeStep()
	steps := int(math.Round(cfg.Duration / dt))
	result := &Result{
		Samples: make([]Sample, 0, steps+1),
		Errors:  make([]error, 0),
	}

	t := 0.0
	if err := r.record(result, t, pctx, cfg); err != nil {
		return nil, err
	}

	for i := 0; i < steps; i++ {
		select {
		case <-goCtx.Done():
			return result, goCtx.Err()
		default:
		}

		if err := r.plant.Step(pctx); err != nil {
			return result, fmt.Errorf("sim: step %d at t=%.4f: %w", i, t, err)
		}
		t += dt
		result.StepsTaken++

		if cfg.ValidateState && !stateValid(pctx) {
			result.Errors = append(result.Errors,
				StepError{Time: t, Step: i, Message: "invalid state (NaN/Inf)"})
			break
		}

		for _, obs := range r.observers {
			obs.OnStep(t, pctx)
		}
		if err := r.record(result, t, pctx, cfg); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (r *Runner) validateConfig(cfg Config) error {
	if cfg.Duration <= 0 {
		return fmt.Errorf("sim: duration must be positive, got %f", cfg.Duration)
	}
	return nil
}

func (r *Runner) record(result *Result, t float64, pctx *plant.Context, cfg Config) error {
	result.Samples = append(result.Samples, Sample{
		Time: t,
		Q:    pctx.Positions(),
		V:    pctx.Velocities(),
	})
	if !cfg.RecordContact {
		return nil
	}
	cr, err := r.plant.EvalContactResults(pctx)
	if err != nil {
		return fmt.Errorf("sim: contact recording at t=%.4f: %w", t, err)
	}
	result.Contacts = append(result.Contacts, cr)
	return nil
}

func stateValid(pctx *plant.Context) bool {
	for _, q := range pctx.Positions() {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return false
		}
	}
	for _, v := range pctx.Velocities() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
