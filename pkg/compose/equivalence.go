package compose

import (
	"context"
	"fmt"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
)

// Side names the operand of a two-sided comparison.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	}
	return "none"
}

// MarshalText renders the side by name in JSON and YAML documents.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Equivalence is the outcome of a language comparison.
// When Equal is false, Witness is a word accepted by exactly one side,
// named by AcceptedBy.
type Equivalence struct {
	Equal      bool     `json:"equal"`
	Witness    []string `json:"witness,omitempty"`
	AcceptedBy Side     `json:"accepted_by"`
}

type pairNode struct {
	a, b   automaton.StateID
	parent int
	event  *automaton.Event
}

// Equivalent decides whether two DFAs accept the same marked language.
// It explores the symmetric-difference product over the union alphabet on the
// fly, completing both sides with a virtual sink, and stops at the first pair
// whose markings differ. BFS with events expanded in name order makes the
// witness the shortest one and, among those, the smallest by event name.
func Equivalent(ctx context.Context, a, b *automaton.Automaton, opts ...explore.Option) (*Equivalence, error) {
	if a.Kind() != automaton.DFA || b.Kind() != automaton.DFA {
		return nil, fmt.Errorf("%w: equivalence needs DFAs, got %s and %s", domain.ErrNotDeterministic, a.Kind(), b.Kind())
	}
	if a.Registry() != b.Registry() {
		return nil, fmt.Errorf("%w: operands use different registries", domain.ErrUnknownEvent)
	}
	ia, err := a.InitialState()
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	ib, err := b.InitialState()
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	g := explore.NewGuard(ctx, domain.AnalysisEquivalence, explore.Apply(opts...))
	events := unionAlphabet(a, b)

	nodes := []pairNode{{a: ia, b: ib, parent: -1}}
	seen := map[[2]automaton.StateID]bool{{ia, ib}: true}
	for head := 0; head < len(nodes); head++ {
		if err := g.Step(); err != nil {
			g.Finish("error", len(nodes), err)
			return nil, err
		}
		n := nodes[head]
		ma, mb := a.IsMarked(n.a), b.IsMarked(n.b)
		if ma != mb {
			res := &Equivalence{Witness: witness(nodes, head), AcceptedBy: SideRight}
			if ma {
				res.AcceptedBy = SideLeft
			}
			g.Finish("different", len(nodes), nil)
			return res, nil
		}
		for _, e := range events {
			na := step(a, n.a, e)
			nb := step(b, n.b, e)
			if na == automaton.NoState && nb == automaton.NoState {
				continue
			}
			key := [2]automaton.StateID{na, nb}
			if seen[key] {
				continue
			}
			seen[key] = true
			nodes = append(nodes, pairNode{a: na, b: nb, parent: head, event: e})
		}
	}

	g.Finish("equal", len(nodes), nil)
	return &Equivalence{Equal: true}, nil
}

// EquivalentLanguages is Equivalent after determinizing non-DFA operands.
func EquivalentLanguages(ctx context.Context, a, b *automaton.Automaton, opts ...explore.Option) (*Equivalence, error) {
	ctx, cancel := explore.Scope(ctx, explore.Apply(opts...))
	defer cancel()
	da, err := asDFA(ctx, a, opts)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	db, err := asDFA(ctx, b, opts)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}
	return Equivalent(ctx, da, db, opts...)
}

func asDFA(ctx context.Context, a *automaton.Automaton, opts []explore.Option) (*automaton.Automaton, error) {
	if a.Kind() == automaton.DFA {
		return a, nil
	}
	d, _, err := automaton.Determinize(ctx, a, opts...)
	return d, err
}

// step follows e from s; NoState stands for the virtual sink.
func step(a *automaton.Automaton, s automaton.StateID, e *automaton.Event) automaton.StateID {
	if s == automaton.NoState || !a.HasEvent(e) {
		return automaton.NoState
	}
	t, ok := a.Next(s, e)
	if !ok {
		return automaton.NoState
	}
	return t
}

func witness(nodes []pairNode, i int) []string {
	var rev []string
	for ; nodes[i].parent >= 0; i = nodes[i].parent {
		rev = append(rev, nodes[i].event.Name())
	}
	out := make([]string, len(rev))
	for j, name := range rev {
		out[len(rev)-1-j] = name
	}
	return out
}
