package symbolic

import (
	"fmt"
	"math/bits"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
)

// Builder assembles an Encoded state by state, without an explicit automaton.
// The state count is fixed up front and sizes the state variables; events are
// numbered as they appear and their variables are appended to the order when
// the alphabet outgrows them.
//
// States are numbered by first mention, so a transition may name a target
// before the target is declared.
type Builder struct {
	enc      *Encoded
	limit    int
	ids      map[string]automaton.StateID
	declared []bool
	eventIx  map[string]int
	events   []string
}

// NewBuilder creates a Builder for at most states states.
func NewBuilder(states int) (*Builder, error) {
	if states <= 0 {
		return nil, domain.ErrEmptyAutomaton
	}
	enc := &Encoded{
		sbits:     width(states),
		curToNext: make(map[Var]Var),
		nextToCur: make(map[Var]Var),
	}
	for i := range enc.sbits {
		cur := Var(2 * i)
		next := cur + 1
		enc.curVars = append(enc.curVars, cur)
		enc.nextVars = append(enc.nextVars, next)
		enc.curToNext[cur] = next
		enc.nextToCur[next] = cur
	}
	enc.M = NewManager(2 * enc.sbits)
	enc.Init, enc.Marked, enc.Live, enc.Trans = False, False, False, False
	return &Builder{
		enc:     enc,
		limit:   states,
		ids:     make(map[string]automaton.StateID),
		eventIx: make(map[string]int),
	}, nil
}

// State returns the id of the named state, numbering it on first mention.
func (b *Builder) State(name string) (automaton.StateID, error) {
	if id, ok := b.ids[name]; ok {
		return id, nil
	}
	if len(b.enc.names) == b.limit {
		return automaton.NoState, fmt.Errorf("%w: state %q exceeds the declared %d states", domain.ErrUnknownState, name, b.limit)
	}
	id := automaton.StateID(len(b.enc.names))
	b.ids[name] = id
	b.enc.names = append(b.enc.names, name)
	b.declared = append(b.declared, false)
	return id, nil
}

// Declare adds the named state to the live set with its marking. Declaring a
// state twice fails.
func (b *Builder) Declare(name string, marked, initial bool) (automaton.StateID, error) {
	id, err := b.State(name)
	if err != nil {
		return id, err
	}
	if b.declared[id] {
		return id, fmt.Errorf("%w: state %q declared twice", domain.ErrUnknownState, name)
	}
	b.declared[id] = true

	m, enc := b.enc.M, b.enc
	cube := enc.cube(int(id), enc.curVars)
	enc.Live = m.Or(enc.Live, cube)
	if marked {
		enc.Marked = m.Or(enc.Marked, cube)
	}
	if initial {
		enc.Init = m.Or(enc.Init, cube)
	}
	return id, nil
}

// event numbers the named event, widening the event variables if needed.
// The new variable becomes the most significant bit, and every transition
// recorded so far keeps its index by fixing that bit to zero.
func (b *Builder) event(name string) int {
	if ix, ok := b.eventIx[name]; ok {
		return ix
	}
	ix := len(b.events)
	b.eventIx[name] = ix
	b.events = append(b.events, name)

	enc := b.enc
	for len(enc.eventVars) < bits.Len(uint(ix)) {
		v := enc.M.Grow(1)
		enc.Trans = enc.M.And(enc.Trans, enc.M.NVar(v))
		enc.eventVars = append([]Var{v}, enc.eventVars...)
		enc.ebits++
	}
	return ix
}

// Transition adds (from, event, to) to the relation.
func (b *Builder) Transition(from automaton.StateID, event string, to automaton.StateID) {
	ix := b.event(event)
	enc, m := b.enc, b.enc.M
	rel := m.And(enc.cube(int(from), enc.curVars), enc.cube(ix, enc.eventVars))
	rel = m.And(rel, enc.cube(int(to), enc.nextVars))
	enc.Trans = m.Or(enc.Trans, rel)
}

// Encoded finishes the view, resolving event names in reg. Every mentioned
// state must have been declared and an initial state must exist.
func (b *Builder) Encoded(reg *automaton.Registry) (*Encoded, error) {
	for id, ok := range b.declared {
		if !ok {
			return nil, fmt.Errorf("%w: state %q is never declared", domain.ErrUnknownState, b.enc.names[id])
		}
	}
	if b.enc.Init == False {
		return nil, domain.ErrEmptyAutomaton
	}
	enc := b.enc
	enc.events = make([]*automaton.Event, 0, len(b.events))
	enc.eventIx = make(map[*automaton.Event]int, len(b.events))
	for ix, name := range b.events {
		e, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		enc.events = append(enc.events, e)
		enc.eventIx[e] = ix
	}
	return enc, nil
}
