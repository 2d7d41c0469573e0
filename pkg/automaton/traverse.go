package automaton

import (
	"context"
	"iter"
	"slices"

	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
)

// StateMap relates states of a derived automaton to states of its source.
type StateMap map[StateID]StateID

// Reachable yields the states reachable from the given seeds (the initial
// states when none are given) in breadth-first order. Events are expanded in
// name order and targets in ascending order, so the sequence is deterministic.
func (a *Automaton) Reachable(from ...StateID) iter.Seq[StateID] {
	if len(from) == 0 {
		from = a.initial
	}
	return func(yield func(StateID) bool) {
		seen := make(map[StateID]bool, len(from))
		queue := make([]StateID, 0, len(from))
		for _, s := range NewStateSet(from...) {
			if a.Has(s) && !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
		for len(queue) > 0 {
			s := queue[0]
			queue = queue[1:]
			if !yield(s) {
				return
			}
			for _, e := range a.Enabled(s) {
				for _, t := range a.Successors(s, e) {
					if !seen[t] {
						seen[t] = true
						queue = append(queue, t)
					}
				}
			}
		}
	}
}

// ReachableSet returns the states reachable from the initial states.
func (a *Automaton) ReachableSet() StateSet {
	return NewStateSet(slices.Collect(a.Reachable())...)
}

// CoReachableSet returns the states from which a marked state is reachable.
func (a *Automaton) CoReachableSet() StateSet {
	marked := a.Marked()
	seen := make(map[StateID]bool, len(marked))
	queue := slices.Clone([]StateID(marked))
	for _, s := range marked {
		seen[s] = true
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, e := range a.Incoming(s) {
			for _, p := range a.Predecessors(s, e) {
				if !seen[p] {
					seen[p] = true
					queue = append(queue, p)
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

// IsTrim reports whether every state is both reachable and co-reachable.
func (a *Automaton) IsTrim() bool {
	all := NewStateSet(a.States()...)
	return a.ReachableSet().Equal(all) && a.CoReachableSet().Equal(all)
}

// Restrict copies the automaton keeping only the given states and the
// transitions among them. The map relates new states to original ones.
func (a *Automaton) Restrict(keep StateSet) (*Automaton, StateMap) {
	out := New(a.kind, a.registry)
	for e := range a.alphabet {
		out.alphabet[e] = struct{}{}
	}
	fwd := make(map[StateID]StateID, len(keep))
	back := make(StateMap, len(keep))
	for _, s := range keep {
		if !a.Has(s) {
			continue
		}
		n := out.AddNamedState(a.states[s].label, a.states[s].marked)
		fwd[s] = n
		back[n] = s
	}
	for _, s := range keep {
		ns, ok := fwd[s]
		if !ok {
			continue
		}
		for _, e := range a.Enabled(s) {
			for _, ed := range a.states[s].out[e] {
				if nt, ok := fwd[ed.to]; ok {
					out.link(ns, e, nt, ed.prob)
				}
			}
		}
	}
	for _, s := range a.initial {
		if n, ok := fwd[s]; ok {
			out.initial = out.initial.Union(StateSet{n})
		}
	}
	return out, back
}

// Trim returns the accessible and co-accessible part of a. The result may be
// empty (no states, no initial state). Trimming a PFA can leave substochastic
// distributions where transitions into blocking states were dropped.
func (a *Automaton) Trim(ctx context.Context, opts ...explore.Option) (*Automaton, StateMap, error) {
	g := explore.NewGuard(ctx, domain.AnalysisTrim, explore.Apply(opts...))

	reach := make(map[StateID]bool)
	for s := range a.Reachable() {
		if err := g.Step(); err != nil {
			g.Finish("error", len(reach), err)
			return nil, nil, err
		}
		reach[s] = true
	}
	co := a.CoReachableSet()

	keep := make([]StateID, 0, len(reach))
	for s := range reach {
		if co.Contains(s) {
			keep = append(keep, s)
		}
	}
	out, m := a.Restrict(NewStateSet(keep...))
	g.Finish("trimmed", out.NumStates(), nil)
	return out, m, nil
}
