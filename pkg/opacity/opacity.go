package opacity

import (
	"context"
	"fmt"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/compose"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
)

// Verdict is the outcome of an opacity check.
type Verdict struct {
	Opaque bool `json:"opaque"`
	// Witness is the observation after which the observer is certain the
	// system is in a secret state. Empty when the initial estimate is
	// already all secret.
	Witness []string `json:"witness,omitempty"`
	// Estimate is the state estimate reached by Witness, in plant states.
	Estimate automaton.StateSet `json:"estimate,omitempty"`
	// ObserverStates is the number of observer states explored.
	ObserverStates int `json:"observer_states"`
}

// CurrentState checks current-state opacity of plant with respect to the
// secret states. The system is opaque iff no observation sequence leads to a
// non-empty state estimate contained in secret. The observer is explored
// breadth first with events in name order, so the witness is the shortest
// violating observation and the smallest by event name among those.
// A nil observable uses each event's Observable attribute.
func CurrentState(ctx context.Context, plant *automaton.Automaton, secret automaton.StateSet, observable func(*automaton.Event) bool, opts ...explore.Option) (*Verdict, error) {
	g := explore.NewGuard(ctx, domain.AnalysisOpacity, explore.Apply(opts...))
	obs, sets, err := automaton.Observer(g.Context(), plant, observable, opts...)
	if err != nil {
		err = fmt.Errorf("build observer: %w", err)
		g.Finish("error", 0, err)
		return nil, err
	}
	init, err := obs.InitialState()
	if err != nil {
		g.Finish("error", 0, err)
		return nil, err
	}

	type visit struct {
		state  automaton.StateID
		parent int
		event  string
	}
	nodes := []visit{{state: init, parent: -1}}
	seen := map[automaton.StateID]bool{init: true}
	for head := 0; head < len(nodes); head++ {
		if err := g.Step(); err != nil {
			g.Finish("error", len(nodes), err)
			return nil, err
		}
		cur := nodes[head]
		estimate := sets[cur.state]
		if len(estimate) > 0 && estimate.SubsetOf(secret) {
			var rev []string
			for i := head; nodes[i].parent >= 0; i = nodes[i].parent {
				rev = append(rev, nodes[i].event)
			}
			witness := make([]string, len(rev))
			for i, name := range rev {
				witness[len(rev)-1-i] = name
			}
			g.Logger().Info("system is not opaque", "witness", witness, "estimate", estimate.String())
			g.Finish("not_opaque", obs.NumStates(), nil)
			return &Verdict{Witness: witness, Estimate: estimate, ObserverStates: obs.NumStates()}, nil
		}
		for _, e := range obs.Enabled(cur.state) {
			t, _ := obs.Next(cur.state, e)
			if !seen[t] {
				seen[t] = true
				nodes = append(nodes, visit{state: t, parent: head, event: e.Name()})
			}
		}
	}

	g.Logger().Info("system is opaque", "observer_states", obs.NumStates())
	g.Finish("opaque", obs.NumStates(), nil)
	return &Verdict{Opaque: true, ObserverStates: obs.NumStates()}, nil
}

// Language checks language-based opacity: the secret behaviors are the marked
// language of secretSpec, a DFA over the plant's events. The plant is composed
// with the completed specification, so no plant behavior is cut, and the
// product states whose specification component is marked become the secret.
// Estimates in the verdict are expressed in product states.
func Language(ctx context.Context, plant, secretSpec *automaton.Automaton, observable func(*automaton.Event) bool, opts ...explore.Option) (*Verdict, *compose.Result, error) {
	var events []*automaton.Event
	for _, e := range plant.Alphabet() {
		if !e.IsEpsilon() {
			events = append(events, e)
		}
	}
	full, _, err := secretSpec.Complete(events...)
	if err != nil {
		return nil, nil, fmt.Errorf("complete secret specification: %w", err)
	}
	ctx, cancel := explore.Scope(ctx, explore.Apply(opts...))
	defer cancel()
	prod, err := compose.Product(ctx, plant, full, compose.MarkBoth, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("compose plant and secret: %w", err)
	}

	var secret []automaton.StateID
	for _, s := range prod.Automaton.States() {
		_, q, _ := prod.Map.Pair(s)
		if full.IsMarked(q) {
			secret = append(secret, s)
		}
	}
	v, err := CurrentState(ctx, prod.Automaton, automaton.NewStateSet(secret...), observable, opts...)
	if err != nil {
		return nil, nil, err
	}
	return v, prod, nil
}

// ObservableSet returns an observability predicate that accepts exactly the
// named events. Every name must be defined in reg; otherwise it fails with
// domain.ErrUnknownEvent.
func ObservableSet(reg *automaton.Registry, names ...string) (func(*automaton.Event) bool, error) {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if _, err := reg.Lookup(n); err != nil {
			return nil, fmt.Errorf("observable event: %w", err)
		}
		set[n] = true
	}
	return func(e *automaton.Event) bool {
		return set[e.Name()]
	}, nil
}
