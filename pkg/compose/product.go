package compose

import (
	"context"
	"fmt"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
)

// Marking selects which product states are marked.
type Marking int

const (
	// MarkBoth marks (p, q) when both components are marked (nonblocking composition).
	MarkBoth Marking = iota
	// MarkEither marks (p, q) when at least one component is marked.
	MarkEither
)

func (m Marking) String() string {
	if m == MarkEither {
		return "either"
	}
	return "both"
}

func (m Marking) mark(a, b bool) bool {
	if m == MarkEither {
		return a || b
	}
	return a && b
}

// ProductMap records the component pair behind each product state.
type ProductMap struct {
	pairs [][2]automaton.StateID
	index map[[2]automaton.StateID]automaton.StateID
}

func newProductMap() *ProductMap {
	return &ProductMap{index: make(map[[2]automaton.StateID]automaton.StateID)}
}

// Pair returns the component states of product state id.
func (m *ProductMap) Pair(id automaton.StateID) (a, b automaton.StateID, ok bool) {
	if id < 0 || int(id) >= len(m.pairs) {
		return automaton.NoState, automaton.NoState, false
	}
	p := m.pairs[id]
	return p[0], p[1], true
}

// ID returns the product state standing for (a, b), if it was reached.
func (m *ProductMap) ID(a, b automaton.StateID) (automaton.StateID, bool) {
	id, ok := m.index[[2]automaton.StateID{a, b}]
	return id, ok
}

// Len returns the number of recorded pairs.
func (m *ProductMap) Len() int { return len(m.pairs) }

// Restrict rebases the map on a derived automaton, given the derived->product map.
func (m *ProductMap) Restrict(sm automaton.StateMap) *ProductMap {
	out := newProductMap()
	out.pairs = make([][2]automaton.StateID, len(sm))
	for n, old := range sm {
		if int(n) >= len(out.pairs) || int(old) >= len(m.pairs) {
			continue
		}
		out.pairs[n] = m.pairs[old]
		out.index[m.pairs[old]] = n
	}
	return out
}

// Result is a composed automaton together with its product map.
type Result struct {
	Automaton *automaton.Automaton
	Map       *ProductMap
}

// Product builds the synchronous product of a and b on the fly, starting from
// the initial pairs and expanding only reachable pairs. Events shared by both
// alphabets move jointly; private events (and epsilon) interleave.
// The result is a DFA when both inputs are DFAs and an NFA otherwise.
func Product(ctx context.Context, a, b *automaton.Automaton, marking Marking, opts ...explore.Option) (*Result, error) {
	return product(ctx, a, b, marking, false, opts)
}

// Intersection is the product in which every event must be taken by both
// components, so it accepts the intersection of the marked languages.
func Intersection(ctx context.Context, a, b *automaton.Automaton, opts ...explore.Option) (*Result, error) {
	return product(ctx, a, b, MarkBoth, true, opts)
}

// ProductAll folds Product over the given automata left to right.
// The map of the result relates states to the pair (previous fold, last operand).
func ProductAll(ctx context.Context, as []*automaton.Automaton, marking Marking, opts ...explore.Option) (*Result, error) {
	if len(as) == 0 {
		return nil, domain.ErrEmptyAutomaton
	}
	if len(as) == 1 {
		return &Result{Automaton: as[0].Clone(), Map: identityMap(as[0])}, nil
	}
	ctx, cancel := explore.Scope(ctx, explore.Apply(opts...))
	defer cancel()
	acc, err := Product(ctx, as[0], as[1], marking, opts...)
	if err != nil {
		return nil, err
	}
	for i, next := range as[2:] {
		acc, err = Product(ctx, acc.Automaton, next, marking, opts...)
		if err != nil {
			return nil, fmt.Errorf("operand %d: %w", i+2, err)
		}
	}
	return acc, nil
}

func identityMap(a *automaton.Automaton) *ProductMap {
	m := newProductMap()
	m.pairs = make([][2]automaton.StateID, 0, a.NumStates())
	for _, s := range a.States() {
		for len(m.pairs) < int(s) {
			m.pairs = append(m.pairs, [2]automaton.StateID{automaton.NoState, automaton.NoState})
		}
		m.pairs = append(m.pairs, [2]automaton.StateID{s, automaton.NoState})
		m.index[m.pairs[s]] = s
	}
	return m
}

func checkComposable(a, b *automaton.Automaton) error {
	if a.Registry() != b.Registry() {
		return fmt.Errorf("%w: operands use different registries", domain.ErrUnknownEvent)
	}
	if a.Kind() == automaton.PFA || b.Kind() == automaton.PFA {
		return fmt.Errorf("%w: composition of probabilistic automata", domain.ErrNotDeterministic)
	}
	if len(a.Initial()) == 0 || len(b.Initial()) == 0 {
		return domain.ErrEmptyAutomaton
	}
	return nil
}

func product(ctx context.Context, a, b *automaton.Automaton, marking Marking, syncAll bool, opts []explore.Option) (*Result, error) {
	if err := checkComposable(a, b); err != nil {
		return nil, err
	}
	g := explore.NewGuard(ctx, domain.AnalysisProduct, explore.Apply(opts...))

	kind := automaton.NFA
	if a.Kind() == automaton.DFA && b.Kind() == automaton.DFA {
		kind = automaton.DFA
	}
	out := automaton.New(kind, a.Registry())
	pm := newProductMap()

	events := unionAlphabet(a, b)
	for _, e := range events {
		if err := out.AddEvent(e); err != nil {
			g.Finish("error", 0, err)
			return nil, err
		}
	}

	var queue []automaton.StateID
	visit := func(pa, pb automaton.StateID) automaton.StateID {
		key := [2]automaton.StateID{pa, pb}
		if id, ok := pm.index[key]; ok {
			return id
		}
		id := out.AddNamedState("("+a.StateName(pa)+","+b.StateName(pb)+")", marking.mark(a.IsMarked(pa), b.IsMarked(pb)))
		pm.index[key] = id
		pm.pairs = append(pm.pairs, key)
		queue = append(queue, id)
		return id
	}

	for _, ia := range a.Initial() {
		for _, ib := range b.Initial() {
			id := visit(ia, ib)
			if err := out.SetInitial(id); err != nil {
				g.Finish("error", out.NumStates(), err)
				return nil, err
			}
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if err := g.Step(); err != nil {
			g.Finish("error", out.NumStates(), err)
			return nil, err
		}
		pa, pb := pm.pairs[cur][0], pm.pairs[cur][1]
		for _, e := range events {
			inA, inB := a.HasEvent(e), b.HasEvent(e)
			var targets [][2]automaton.StateID
			switch {
			case inA && inB && !e.IsEpsilon():
				for _, ta := range a.Successors(pa, e) {
					for _, tb := range b.Successors(pb, e) {
						targets = append(targets, [2]automaton.StateID{ta, tb})
					}
				}
			case syncAll && !e.IsEpsilon():
				// private event with full synchronization: blocked
			default:
				if inA {
					for _, ta := range a.Successors(pa, e) {
						targets = append(targets, [2]automaton.StateID{ta, pb})
					}
				}
				if inB {
					for _, tb := range b.Successors(pb, e) {
						targets = append(targets, [2]automaton.StateID{pa, tb})
					}
				}
			}
			for _, t := range targets {
				next := visit(t[0], t[1])
				if err := out.AddTransition(cur, e, next); err != nil {
					g.Finish("error", out.NumStates(), err)
					return nil, err
				}
			}
		}
	}

	g.Logger().Debug("product built", "states", out.NumStates(), "transitions", out.NumTransitions(), "marking", marking)
	g.Finish("built", out.NumStates(), nil)
	return &Result{Automaton: out, Map: pm}, nil
}

func unionAlphabet(a, b *automaton.Automaton) []*automaton.Event {
	seen := make(map[*automaton.Event]bool)
	var out []*automaton.Event
	for _, e := range append(a.Alphabet(), b.Alphabet()...) {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out
}
