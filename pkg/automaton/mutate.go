package automaton

import (
	"fmt"
	"slices"

	"github.com/aretw0/desops/pkg/domain"
)

// AddTransition adds (from, e, to). It fails with domain.ErrDeterminismViolation
// on a DFA whose (from, e) already has a target. On a PFA the transition gets
// probability 1. On an NFA adding an existing transition is a no-op.
// Nothing changes when an error is returned.
func (a *Automaton) AddTransition(from StateID, e *Event, to StateID) error {
	return a.AddProbTransition(from, e, to, 1)
}

// AddProbTransition adds (from, e, to) with probability p. The probability is
// only meaningful on a PFA, where it must be in (0, 1] and keep the sum of
// (from, e) at or below 1; violations fail with domain.ErrProbabilityInvariant.
// Adding an existing PFA transition accumulates its probability.
func (a *Automaton) AddProbTransition(from StateID, e *Event, to StateID, p float64) error {
	if err := a.checkState(from); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := a.checkState(to); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if err := a.checkEvent(e); err != nil {
		return err
	}

	edges := a.states[from].out[e]
	switch a.kind {
	case DFA:
		if len(edges) > 0 {
			if edges[0].to == to {
				return nil
			}
			return fmt.Errorf("%w: state %d event %q already goes to %d", domain.ErrDeterminismViolation, from, e.name, edges[0].to)
		}
		p = 1
	case NFA:
		if slices.ContainsFunc(edges, func(ed edge) bool { return ed.to == to }) {
			return nil
		}
		p = 1
	case PFA:
		if p <= 0 || p > 1+probTolerance {
			return fmt.Errorf("%w: probability %g outside (0, 1]", domain.ErrProbabilityInvariant, p)
		}
		if sum := a.probSum(from, e) + p; sum > 1+probTolerance {
			return fmt.Errorf("%w: state %d event %q would sum to %g", domain.ErrProbabilityInvariant, from, e.name, sum)
		}
		if i := slices.IndexFunc(edges, func(ed edge) bool { return ed.to == to }); i >= 0 {
			a.states[from].out[e][i].prob += p
			a.alphabet[e] = struct{}{}
			return nil
		}
	}

	a.link(from, e, to, p)
	return nil
}

// link adds an edge without checking variant invariants.
func (a *Automaton) link(from StateID, e *Event, to StateID, p float64) {
	src := &a.states[from]
	if src.out == nil {
		src.out = make(map[*Event][]edge)
	}
	src.out[e] = append(src.out[e], edge{to: to, prob: p})

	dst := &a.states[to]
	if dst.in == nil {
		dst.in = make(map[*Event][]StateID)
	}
	if !slices.Contains(dst.in[e], from) {
		dst.in[e] = append(dst.in[e], from)
	}

	a.alphabet[e] = struct{}{}
	a.ntrans++
}

// RemoveTransition deletes (from, e, to) and reports whether it existed.
func (a *Automaton) RemoveTransition(from StateID, e *Event, to StateID) bool {
	if !a.Has(from) || !a.Has(to) {
		return false
	}
	edges := a.states[from].out[e]
	i := slices.IndexFunc(edges, func(ed edge) bool { return ed.to == to })
	if i < 0 {
		return false
	}
	a.states[from].out[e] = slices.Delete(edges, i, i+1)
	if len(a.states[from].out[e]) == 0 {
		delete(a.states[from].out, e)
	}

	srcs := a.states[to].in[e]
	if j := slices.Index(srcs, from); j >= 0 {
		a.states[to].in[e] = slices.Delete(srcs, j, j+1)
		if len(a.states[to].in[e]) == 0 {
			delete(a.states[to].in, e)
		}
	}
	a.ntrans--
	return true
}

// RemoveState removes s. Without cascade it fails with domain.ErrStateInUse
// when a transition other than a self-loop still references s; with cascade
// the incident transitions are removed as well. State indices are never reused.
func (a *Automaton) RemoveState(s StateID, cascade bool) error {
	if err := a.checkState(s); err != nil {
		return err
	}
	st := &a.states[s]
	if !cascade {
		for _, edges := range st.out {
			for _, ed := range edges {
				if ed.to != s {
					return fmt.Errorf("%w: state %d has outgoing transitions", domain.ErrStateInUse, s)
				}
			}
		}
		for _, srcs := range st.in {
			for _, src := range srcs {
				if src != s {
					return fmt.Errorf("%w: state %d has incoming transitions", domain.ErrStateInUse, s)
				}
			}
		}
	}

	for e, edges := range st.out {
		for _, ed := range slices.Clone(edges) {
			a.RemoveTransition(s, e, ed.to)
		}
	}
	for e, srcs := range st.in {
		for _, src := range slices.Clone(srcs) {
			a.RemoveTransition(src, e, s)
		}
	}

	st.removed = true
	st.out = nil
	st.in = nil
	a.live--
	if a.initial.Contains(s) {
		a.initial = a.initial.Difference(StateSet{s})
	}
	return nil
}
