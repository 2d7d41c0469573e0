package compose

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
)

func sortEvents(es []*automaton.Event) {
	slices.SortFunc(es, automaton.ByName)
}

// Complement returns a DFA accepting exactly the words over the alphabet of d
// that d does not accept. d is completed first with an unmarked sink.
func Complement(ctx context.Context, d *automaton.Automaton, opts ...explore.Option) (*automaton.Automaton, error) {
	return ComplementOver(ctx, d, nil, opts...)
}

// ComplementOver is Complement with the alphabet widened by extra before completion.
func ComplementOver(ctx context.Context, d *automaton.Automaton, extra []*automaton.Event, opts ...explore.Option) (*automaton.Automaton, error) {
	if d.Kind() != automaton.DFA {
		return nil, fmt.Errorf("%w: complement needs a DFA, got %s", domain.ErrNotDeterministic, d.Kind())
	}
	g := explore.NewGuard(ctx, domain.AnalysisComplement, explore.Apply(opts...))

	c, _, err := d.Complete(extra...)
	if err != nil {
		g.Finish("error", 0, err)
		return nil, err
	}
	for _, s := range c.States() {
		if err := g.Step(); err != nil {
			g.Finish("error", c.NumStates(), err)
			return nil, err
		}
		if err := c.SetMarked(s, !c.IsMarked(s)); err != nil {
			g.Finish("error", c.NumStates(), err)
			return nil, err
		}
	}
	g.Finish("built", c.NumStates(), nil)
	return c, nil
}

// Reverse returns an NFA accepting the mirror image of the marked language of a.
// Its initial states are the marked states of a and vice versa.
func Reverse(ctx context.Context, a *automaton.Automaton, opts ...explore.Option) (*automaton.Automaton, error) {
	g := explore.NewGuard(ctx, domain.AnalysisReverse, explore.Apply(opts...))

	out := automaton.New(automaton.NFA, a.Registry())
	for _, e := range a.Alphabet() {
		if err := out.AddEvent(e); err != nil {
			g.Finish("error", 0, err)
			return nil, err
		}
	}
	ids := make(map[automaton.StateID]automaton.StateID, a.NumStates())
	for _, s := range a.States() {
		ids[s] = out.AddNamedState(a.Label(s), a.IsInitial(s))
	}
	for _, s := range a.States() {
		if err := g.Step(); err != nil {
			g.Finish("error", out.NumStates(), err)
			return nil, err
		}
		if a.IsMarked(s) {
			if err := out.SetInitial(ids[s]); err != nil {
				g.Finish("error", out.NumStates(), err)
				return nil, err
			}
		}
	}
	for _, t := range a.Transitions() {
		if err := out.AddTransition(ids[t.To], t.Event, ids[t.From]); err != nil {
			g.Finish("error", out.NumStates(), err)
			return nil, err
		}
	}
	g.Finish("built", out.NumStates(), nil)
	return out, nil
}

// Minimize returns the minimal DFA for the marked language of d by partition
// refinement on its reachable, completed part. The dead block is dropped
// again unless it holds the initial state; blocks are numbered in BFS order.
func Minimize(ctx context.Context, d *automaton.Automaton, opts ...explore.Option) (*automaton.Automaton, error) {
	if d.Kind() != automaton.DFA {
		return nil, fmt.Errorf("%w: minimization needs a DFA, got %s", domain.ErrNotDeterministic, d.Kind())
	}
	init, err := d.InitialState()
	if err != nil {
		return nil, err
	}
	g := explore.NewGuard(ctx, domain.AnalysisMinimize, explore.Apply(opts...))

	reach, rmap := d.Restrict(d.ReachableSet())
	full, _, err := reach.Complete()
	if err != nil {
		g.Finish("error", 0, err)
		return nil, err
	}
	for n, old := range rmap {
		if old == init {
			init = n
			break
		}
	}

	states := full.States()
	events := full.Alphabet()
	block := make(map[automaton.StateID]int, len(states))
	for _, s := range states {
		if full.IsMarked(s) {
			block[s] = 1
		}
	}

	for {
		sigs := make(map[string]int)
		next := make(map[automaton.StateID]int, len(states))
		for _, s := range states {
			if err := g.Step(); err != nil {
				g.Finish("error", len(sigs), err)
				return nil, err
			}
			sig := make([]int, 0, len(events)+1)
			sig = append(sig, block[s])
			for _, e := range events {
				t, _ := full.Next(s, e)
				sig = append(sig, block[t])
			}
			key := fmt.Sprint(sig)
			id, ok := sigs[key]
			if !ok {
				id = len(sigs)
				sigs[key] = id
			}
			next[s] = id
		}
		stable := countBlocks(next) == countBlocks(block)
		block = next
		if stable {
			break
		}
	}

	// live blocks reach a marked state
	live := make(map[int]bool)
	for _, s := range full.CoReachableSet() {
		live[block[s]] = true
	}

	out := automaton.New(automaton.DFA, d.Registry())
	for _, e := range events {
		if err := out.AddEvent(e); err != nil {
			g.Finish("error", 0, err)
			return nil, err
		}
	}
	rep := make(map[int]automaton.StateID)
	ids := make(map[int]automaton.StateID)
	queue := []int{block[init]}
	rep[block[init]] = init
	ids[block[init]] = out.AddNamedState(full.StateName(init), full.IsMarked(init))
	if err := out.SetInitial(ids[block[init]]); err != nil {
		g.Finish("error", 0, err)
		return nil, err
	}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		s := rep[b]
		for _, e := range events {
			t, ok := full.Next(s, e)
			if !ok || !live[block[t]] {
				continue
			}
			tb := block[t]
			if _, seen := ids[tb]; !seen {
				rep[tb] = t
				ids[tb] = out.AddNamedState(full.StateName(t), full.IsMarked(t))
				queue = append(queue, tb)
			}
			if err := out.AddTransition(ids[b], e, ids[tb]); err != nil {
				g.Finish("error", out.NumStates(), err)
				return nil, err
			}
		}
	}

	g.Logger().Debug("minimized", "from", d.NumStates(), "to", out.NumStates())
	g.Finish("built", out.NumStates(), nil)
	return out, nil
}

func countBlocks(m map[automaton.StateID]int) int {
	seen := make(map[int]bool)
	for _, b := range m {
		seen[b] = true
	}
	return len(seen)
}
