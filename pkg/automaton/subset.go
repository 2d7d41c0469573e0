package automaton

import (
	"context"
	"strings"

	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
)

// Determinize builds an equivalent DFA by subset construction with epsilon
// closure. The second result gives, for each DFA state, the set of source
// states it stands for. A subset state is marked if any member is marked.
func Determinize(ctx context.Context, a *Automaton, opts ...explore.Option) (*Automaton, []StateSet, error) {
	return subsetConstruct(ctx, a, domain.AnalysisDeterminize, func(e *Event) bool {
		return !e.IsEpsilon()
	}, opts)
}

// Observer builds the observer of a: the subset construction over the
// projection onto the events for which observable returns true. Unobservable
// events (and epsilon) are closed over like epsilon. A nil observable uses
// each event's own Observable attribute.
func Observer(ctx context.Context, a *Automaton, observable func(*Event) bool, opts ...explore.Option) (*Automaton, []StateSet, error) {
	if observable == nil {
		observable = (*Event).Observable
	}
	return subsetConstruct(ctx, a, domain.AnalysisObserver, func(e *Event) bool {
		return !e.IsEpsilon() && observable(e)
	}, opts)
}

func subsetConstruct(ctx context.Context, a *Automaton, analysis domain.Analysis, visible func(*Event) bool, opts []explore.Option) (*Automaton, []StateSet, error) {
	g := explore.NewGuard(ctx, analysis, explore.Apply(opts...))
	if len(a.initial) == 0 {
		g.Finish("error", 0, domain.ErrEmptyAutomaton)
		return nil, nil, domain.ErrEmptyAutomaton
	}

	var events []*Event
	for _, e := range a.Alphabet() {
		if visible(e) {
			events = append(events, e)
		}
	}

	out := New(DFA, a.registry)
	for _, e := range events {
		out.alphabet[e] = struct{}{}
	}

	var sets []StateSet
	index := make(map[string]StateID)
	intern := func(set StateSet) (StateID, bool) {
		key := set.Key()
		if id, ok := index[key]; ok {
			return id, false
		}
		marked := false
		for _, s := range set {
			if a.states[s].marked {
				marked = true
				break
			}
		}
		id := out.AddNamedState(subsetLabel(a, set), marked)
		index[key] = id
		sets = append(sets, set)
		return id, true
	}

	start, _ := intern(closure(a, a.initial, visible))
	out.initial = StateSet{start}
	queue := []StateID{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if err := g.Step(); err != nil {
			g.Finish("error", out.NumStates(), err)
			return nil, nil, err
		}
		for _, e := range events {
			var targets []StateID
			for _, s := range sets[cur] {
				for _, ed := range a.states[s].out[e] {
					targets = append(targets, ed.to)
				}
			}
			if len(targets) == 0 {
				continue
			}
			next, fresh := intern(closure(a, NewStateSet(targets...), visible))
			if fresh {
				queue = append(queue, next)
			}
			out.link(cur, e, next, 1)
		}
	}

	g.Logger().Debug("subset construction done", "analysis", analysis, "states", out.NumStates(), "source_states", a.NumStates())
	g.Finish("built", out.NumStates(), nil)
	return out, sets, nil
}

// closure extends set with everything reachable through silent events.
func closure(a *Automaton, set StateSet, visible func(*Event) bool) StateSet {
	seen := make(map[StateID]bool, len(set))
	stack := make([]StateID, 0, len(set))
	for _, s := range set {
		seen[s] = true
		stack = append(stack, s)
	}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for e, edges := range a.states[s].out {
			if visible(e) {
				continue
			}
			for _, ed := range edges {
				if !seen[ed.to] {
					seen[ed.to] = true
					stack = append(stack, ed.to)
				}
			}
		}
	}
	out := make([]StateID, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	return NewStateSet(out...)
}

// Closure returns the epsilon closure of set in a.
func Closure(a *Automaton, set StateSet) StateSet {
	return closure(a, set, func(e *Event) bool { return !e.IsEpsilon() })
}

func subsetLabel(a *Automaton, set StateSet) string {
	names := make([]string, len(set))
	for i, s := range set {
		names[i] = a.StateName(s)
	}
	return "{" + strings.Join(names, ",") + "}"
}
