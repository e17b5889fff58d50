package sim

import (
	"fmt"

	"github.com/san-kum/mbplant/internal/contact"
	"github.com/san-kum/mbplant/internal/plant"
)

// Sample is one recorded instant of a run: time plus copies of the
// generalized positions and velocities.
type Sample struct {
	Time float64
	Q    []float64
	V    []float64
}

// Observer is notified after every completed step.
type Observer interface {
	OnStep(t float64, ctx *plant.Context)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(t float64, ctx *plant.Context)

func (f ObserverFunc) OnStep(t float64, ctx *plant.Context) { f(t, ctx) }

type Config struct {
	Duration      float64
	RecordContact bool
	ValidateState bool
}

type Result struct {
	Samples    []Sample
	Contacts   []*contact.Results // parallel to Samples when recording contact
	StepsTaken int
	Errors     []error
}

// Final returns the last recorded sample.
func (r *Result) Final() Sample {
	return r.Samples[len(r.Samples)-1]
}

type StepError struct {
	Time    float64
	Step    int
	Message string
}

func (e StepError) Error() string {
	return fmt.Sprintf("sim: step %d at t=%.4f: %s", e.Step, e.Time, e.Message)
}
