package supervisor

import (
	"context"
	"fmt"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/compose"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
)

// Result is a synthesized supervisor.
type Result struct {
	// Supervisor is trim, controllable with respect to the plant and
	// realizes the supremal controllable sublanguage of the specification.
	Supervisor *automaton.Automaton
	// Iterations counts bad-state removal rounds, the last (clean) one included.
	Iterations int
	// Removed counts states dropped as bad or by re-trimming.
	Removed int
	// Map relates supervisor states to (plant, specification) pairs.
	Map *compose.ProductMap
}

func checkInputs(plant, spec *automaton.Automaton) error {
	if plant.Kind() != automaton.DFA {
		return fmt.Errorf("%w: plant is %s", domain.ErrNotDeterministic, plant.Kind())
	}
	if spec.Kind() != automaton.DFA {
		return fmt.Errorf("%w: specification is %s", domain.ErrNotDeterministic, spec.Kind())
	}
	return nil
}

// Synthesize computes the maximally permissive nonblocking supervisor that
// enforces spec on plant under full observation. It starts from the trim
// composition of plant and spec and repeatedly removes states where the plant
// can fire an uncontrollable event the composition does not allow, re-trimming
// after each round, until nothing changes. It fails with
// domain.ErrNoSupervisorExists when the initial state does not survive.
func Synthesize(ctx context.Context, plant, spec *automaton.Automaton, opts ...explore.Option) (*Result, error) {
	return synthesize(ctx, plant, spec, nil, opts)
}

// SynthesizeObserved is Synthesize for a supervisor that only sees the events
// for which observable returns true; a nil observable uses each event's own
// Observable attribute. The result realizes the supremal controllable and
// normal sublanguage: rounds that remove uncontrollable violations alternate
// with rounds that cut every string whose observation the plant could also
// produce outside the closed loop. Normality cannot disable an unobservable
// event, so the supervisor may be smaller than under full observation.
func SynthesizeObserved(ctx context.Context, plant, spec *automaton.Automaton, observable func(*automaton.Event) bool, opts ...explore.Option) (*Result, error) {
	if observable == nil {
		observable = (*automaton.Event).Observable
	}
	return synthesize(ctx, plant, spec, observable, opts)
}

func synthesize(ctx context.Context, plant, spec *automaton.Automaton, observable func(*automaton.Event) bool, opts []explore.Option) (*Result, error) {
	if err := checkInputs(plant, spec); err != nil {
		return nil, err
	}
	g := explore.NewGuard(ctx, domain.AnalysisSynthesis, explore.Apply(opts...))
	fail := func(err error) (*Result, error) {
		g.Finish("error", 0, err)
		return nil, err
	}

	prod, err := compose.Product(g.Context(), plant, spec, compose.MarkBoth, opts...)
	if err != nil {
		return fail(fmt.Errorf("compose plant and specification: %w", err))
	}

	h, sm, err := prod.Automaton.Trim(g.Context(), opts...)
	if err != nil {
		return fail(err)
	}
	pm := prod.Map.Restrict(sm)
	removed := prod.Automaton.NumStates() - h.NumStates()

	iterations := 0
	for {
		iterations++
		if len(h.Initial()) == 0 {
			g.Logger().Info("no supervisor exists", "iterations", iterations, "removed", removed)
			return fail(domain.ErrNoSupervisorExists)
		}

		var bad []automaton.StateID
		for _, s := range h.States() {
			if err := g.Step(); err != nil {
				return fail(err)
			}
			gs, _, _ := pm.Pair(s)
			if blocksUncontrollable(plant, gs, h, s) {
				bad = append(bad, s)
			}
		}
		g.Logger().Debug("synthesis round", "iteration", iterations, "states", h.NumStates(), "bad", len(bad))
		if len(bad) == 0 {
			if observable == nil {
				break
			}
			refined, rm, cut, err := refineNormal(g, plant, h, pm, observable)
			if err != nil {
				return fail(err)
			}
			if refined == nil {
				break
			}
			g.Logger().Debug("normality round", "iteration", iterations, "states", refined.NumStates(), "cut", cut)
			h, pm = refined, pm.Restrict(rm)
			removed += cut
			continue
		}

		before := h.NumStates()
		for _, s := range bad {
			if err := h.RemoveState(s, true); err != nil {
				return fail(err)
			}
		}
		var tm automaton.StateMap
		h, tm, err = h.Trim(g.Context(), opts...)
		if err != nil {
			return fail(err)
		}
		pm = pm.Restrict(tm)
		removed += before - h.NumStates()
	}

	g.Logger().Info("supervisor synthesized", "states", h.NumStates(), "iterations", iterations, "removed", removed)
	g.Finish("synthesized", h.NumStates(), nil)
	return &Result{Supervisor: h, Iterations: iterations, Removed: removed, Map: pm}, nil
}

// blocksUncontrollable reports whether plant state gs enables an
// uncontrollable event that closed-loop state s does not.
func blocksUncontrollable(plant *automaton.Automaton, gs automaton.StateID, h *automaton.Automaton, s automaton.StateID) bool {
	for _, e := range plant.Enabled(gs) {
		if !e.Controllable() && !h.Defined(s, e) {
			return true
		}
	}
	return false
}
