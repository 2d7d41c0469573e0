package symbolic

import (
	"context"
	"fmt"
	"math/bits"
	"strconv"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
)

// Encoded is a symbolic view of an automaton. State sets are BDDs over the
// current-state variables; the transition relation ranges over current-state,
// event and next-state variables. Probabilities are not encoded.
type Encoded struct {
	M *Manager

	Init   Node
	Marked Node
	Live   Node
	Trans  Node

	source  *automaton.Automaton
	names   []string
	events  []*automaton.Event
	eventIx map[*automaton.Event]int
	ebits   int
	sbits   int

	curVars   []Var
	nextVars  []Var
	eventVars []Var
	curToNext map[Var]Var
	nextToCur map[Var]Var
}

func width(n int) int {
	if n <= 1 {
		return 1
	}
	return bits.Len(uint(n - 1))
}

// Encode builds the symbolic view of a. Event variables come first in the
// order, followed by interleaved current/next state bits.
func Encode(a *automaton.Automaton) (*Encoded, error) {
	if len(a.Initial()) == 0 {
		return nil, domain.ErrEmptyAutomaton
	}
	states := a.States()
	maxID := 0
	for _, s := range states {
		maxID = max(maxID, int(s))
	}
	events := a.Alphabet()

	enc := &Encoded{
		source:    a,
		events:    events,
		eventIx:   make(map[*automaton.Event]int, len(events)),
		ebits:     width(len(events)),
		sbits:     width(maxID + 1),
		curToNext: make(map[Var]Var),
		nextToCur: make(map[Var]Var),
	}
	for i, e := range events {
		enc.eventIx[e] = i
	}
	for i := range enc.ebits {
		enc.eventVars = append(enc.eventVars, Var(i))
	}
	for i := range enc.sbits {
		cur := Var(enc.ebits + 2*i)
		next := cur + 1
		enc.curVars = append(enc.curVars, cur)
		enc.nextVars = append(enc.nextVars, next)
		enc.curToNext[cur] = next
		enc.nextToCur[next] = cur
	}
	enc.M = NewManager(enc.ebits + 2*enc.sbits)

	m := enc.M
	enc.Init, enc.Marked, enc.Live, enc.Trans = False, False, False, False
	for _, s := range states {
		cube := enc.cube(int(s), enc.curVars)
		enc.Live = m.Or(enc.Live, cube)
		if a.IsInitial(s) {
			enc.Init = m.Or(enc.Init, cube)
		}
		if a.IsMarked(s) {
			enc.Marked = m.Or(enc.Marked, cube)
		}
	}
	for _, t := range a.Transitions() {
		rel := m.And(enc.cube(int(t.From), enc.curVars), enc.eventCube(t.Event))
		rel = m.And(rel, enc.cube(int(t.To), enc.nextVars))
		enc.Trans = m.Or(enc.Trans, rel)
	}
	return enc, nil
}

// cube encodes value over vars, most significant bit first.
func (enc *Encoded) cube(value int, vars []Var) Node {
	n := True
	for i := len(vars) - 1; i >= 0; i-- {
		bit := value>>(len(vars)-1-i)&1 == 1
		n = enc.M.And(enc.M.Literal(vars[i], bit), n)
	}
	return n
}

func (enc *Encoded) eventCube(e *automaton.Event) Node {
	ix, ok := enc.eventIx[e]
	if !ok {
		return False
	}
	return enc.cube(ix, enc.eventVars)
}

// Source returns the explicit automaton the view was built from, or nil when
// it was assembled by a Builder.
func (enc *Encoded) Source() *automaton.Automaton { return enc.source }

// Events returns the encoded alphabet.
func (enc *Encoded) Events() []*automaton.Event { return enc.events }

// StateName returns the name of s.
func (enc *Encoded) StateName(s automaton.StateID) string {
	if enc.source != nil {
		return enc.source.StateName(s)
	}
	if s >= 0 && int(s) < len(enc.names) {
		return enc.names[s]
	}
	return strconv.Itoa(int(s))
}

// NumStates returns the number of live states.
func (enc *Encoded) NumStates() int {
	return len(enc.States(enc.Live))
}

// Set encodes a state set. States that are not live are dropped.
func (enc *Encoded) Set(states automaton.StateSet) Node {
	n := False
	for _, s := range states {
		if s >= 0 && int(s) < 1<<enc.sbits {
			n = enc.M.Or(n, enc.cube(int(s), enc.curVars))
		}
	}
	return enc.M.And(n, enc.Live)
}

// Contains reports whether s is a member of the state set n.
func (enc *Encoded) Contains(n Node, s automaton.StateID) bool {
	if s < 0 || int(s) >= 1<<enc.sbits {
		return false
	}
	pos := make(map[Var]int, len(enc.curVars))
	for i, v := range enc.curVars {
		pos[v] = i
	}
	return enc.M.Eval(n, func(v Var) bool {
		i, ok := pos[v]
		if !ok {
			return false
		}
		return int(s)>>(len(enc.curVars)-1-i)&1 == 1
	})
}

// States decodes a state set, restricted to live states. Event and
// next-state variables are quantified away first. The walk visits only the
// paths of the BDD, in ascending state order.
func (enc *Encoded) States(n Node) automaton.StateSet {
	m := enc.M
	n = m.And(m.Exists(n, enc.quantified(enc.nextVars)), enc.Live)
	var out automaton.StateSet
	var walk func(n Node, i, value int)
	walk = func(n Node, i, value int) {
		if n == False {
			return
		}
		if i == len(enc.curVars) {
			out = append(out, automaton.StateID(value))
			return
		}
		lo, hi := m.cofactors(n, enc.curVars[i])
		walk(lo, i+1, value<<1)
		walk(hi, i+1, value<<1|1)
	}
	walk(n, 0, 0)
	return out
}

// IsMarked reports whether s is marked.
func (enc *Encoded) IsMarked(s automaton.StateID) bool {
	return enc.Contains(enc.Marked, s)
}

func (enc *Encoded) quantified(extra []Var) []Var {
	out := make([]Var, 0, len(enc.eventVars)+len(extra))
	out = append(out, enc.eventVars...)
	return append(out, extra...)
}

// Image returns the states reachable from set in one transition.
func (enc *Encoded) Image(set Node) Node {
	m := enc.M
	step := m.Exists(m.And(set, enc.Trans), enc.quantified(enc.curVars))
	return m.Rename(step, enc.nextToCur)
}

// PreImage returns the states with a transition into set.
func (enc *Encoded) PreImage(set Node) Node {
	m := enc.M
	next := m.Rename(set, enc.curToNext)
	return m.Exists(m.And(enc.Trans, next), enc.quantified(enc.nextVars))
}

// Successors returns the targets of (s, e).
func (enc *Encoded) Successors(s automaton.StateID, e *automaton.Event) []automaton.StateID {
	m := enc.M
	from := m.And(enc.cube(int(s), enc.curVars), enc.eventCube(e))
	if from == False || !enc.Contains(enc.Live, s) {
		return nil
	}
	step := m.Exists(m.And(from, enc.Trans), enc.quantified(enc.curVars))
	return enc.States(m.Rename(step, enc.nextToCur))
}

// Next returns the single target of (s, e).
func (enc *Encoded) Next(s automaton.StateID, e *automaton.Event) (automaton.StateID, bool) {
	succ := enc.Successors(s, e)
	if len(succ) == 0 {
		return automaton.NoState, false
	}
	return succ[0], true
}

// fixpoint saturates seed under f, one guard step per iteration.
func (enc *Encoded) fixpoint(ctx context.Context, analysis domain.Analysis, seed Node, f func(Node) Node, opts []explore.Option) (Node, error) {
	g := explore.NewGuard(ctx, analysis, explore.Apply(opts...))
	cur := seed
	for {
		if err := g.Step(); err != nil {
			g.Finish("error", 0, err)
			return False, err
		}
		next := enc.M.Or(cur, f(cur))
		if next == cur {
			g.Finish("fixpoint", g.Expanded(), nil)
			return cur, nil
		}
		cur = next
	}
}

// ReachableNode returns the BDD of the states reachable from the initial states.
// The budget counts image iterations.
func (enc *Encoded) ReachableNode(ctx context.Context, opts ...explore.Option) (Node, error) {
	return enc.fixpoint(ctx, domain.AnalysisSymbolic, enc.Init, enc.Image, opts)
}

// CoReachableNode returns the BDD of the states that can reach a marked state.
func (enc *Encoded) CoReachableNode(ctx context.Context, opts ...explore.Option) (Node, error) {
	return enc.fixpoint(ctx, domain.AnalysisSymbolic, enc.Marked, enc.PreImage, opts)
}

// Reachable is ReachableNode decoded into a StateSet.
func (enc *Encoded) Reachable(ctx context.Context, opts ...explore.Option) (automaton.StateSet, error) {
	n, err := enc.ReachableNode(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return enc.States(n), nil
}

// CoReachable is CoReachableNode decoded into a StateSet.
func (enc *Encoded) CoReachable(ctx context.Context, opts ...explore.Option) (automaton.StateSet, error) {
	n, err := enc.CoReachableNode(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return enc.States(n), nil
}

// Trim returns the states that are both reachable and co-reachable.
func (enc *Encoded) Trim(ctx context.Context, opts ...explore.Option) (automaton.StateSet, error) {
	ctx, cancel := explore.Scope(ctx, explore.Apply(opts...))
	defer cancel()
	r, err := enc.ReachableNode(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("reachable: %w", err)
	}
	c, err := enc.CoReachableNode(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("coreachable: %w", err)
	}
	return enc.States(enc.M.And(r, c)), nil
}

// Equal reports whether two state sets are identical; canonicity makes it O(1).
func (enc *Encoded) Equal(x, y Node) bool { return x == y }

// Subset reports whether x is contained in y.
func (enc *Encoded) Subset(x, y Node) bool { return enc.M.Implies(x, y) }
