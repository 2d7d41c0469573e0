package desops

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/diagnoser"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/opacity"
	"github.com/aretw0/desops/pkg/schema"
	"golang.org/x/sync/errgroup"
)

// Request selects the analyses RunAll performs on one plant.
type Request struct {
	Plant *automaton.Automaton
	// Spec enables supervisor synthesis.
	Spec *automaton.Automaton
	// Secret enables current-state opacity.
	Secret automaton.StateSet
	// Observable overrides the events' Observable attribute for opacity.
	Observable []string
	// Diagnose enables the diagnosability check.
	Diagnose bool
}

// Synthesis summarizes a synthesis run.
type Synthesis struct {
	// Exists is false when no supervisor survives bad-state removal.
	Exists     bool             `json:"exists"`
	Iterations int              `json:"iterations"`
	Removed    int              `json:"removed"`
	Supervisor *schema.Document `json:"supervisor,omitempty"`
}

// Summary collects the verdicts of a RunAll call. Analyses that were not
// requested are nil.
type Summary struct {
	Synthesis      *Synthesis         `json:"synthesis,omitempty"`
	Opacity        *opacity.Verdict   `json:"opacity,omitempty"`
	Diagnosability *diagnoser.Verdict `json:"diagnosability,omitempty"`
	Duration       time.Duration      `json:"duration"`
}

// RunAll runs the requested analyses concurrently on the shared plant. None of
// them mutates the plant, so each verdict is the one a sequential call would
// give. The first failing analysis cancels the others and its error is
// returned; a missing supervisor is a verdict, not a failure.
func (e *Engine) RunAll(ctx context.Context, req Request) (*Summary, error) {
	if err := validate(req.Plant); err != nil {
		return nil, err
	}
	if req.Spec != nil {
		if err := validate(req.Spec); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	sum := &Summary{}
	g, gctx := errgroup.WithContext(ctx)

	if req.Spec != nil {
		g.Go(func() error {
			res, err := e.Synthesize(gctx, req.Plant, req.Spec)
			if errors.Is(err, domain.ErrNoSupervisorExists) {
				sum.Synthesis = &Synthesis{}
				return nil
			}
			if err != nil {
				return err
			}
			sum.Synthesis = &Synthesis{
				Exists:     true,
				Iterations: res.Iterations,
				Removed:    res.Removed,
				Supervisor: schema.FromAutomaton(res.Supervisor),
			}
			return nil
		})
	}
	if len(req.Secret) > 0 {
		g.Go(func() error {
			v, err := e.CurrentStateOpacity(gctx, req.Plant, req.Secret, req.Observable...)
			sum.Opacity = v
			return err
		})
	}
	if req.Diagnose {
		g.Go(func() error {
			v, err := e.Diagnosable(gctx, req.Plant)
			sum.Diagnosability = v
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	sum.Duration = time.Since(start)
	e.logger.Info("analyses finished", "duration", sum.Duration,
		"synthesis", sum.Synthesis != nil, "opacity", sum.Opacity != nil, "diagnosability", sum.Diagnosability != nil)
	return sum, nil
}
