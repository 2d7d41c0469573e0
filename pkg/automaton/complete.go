package automaton

import (
	"fmt"

	"github.com/aretw0/desops/pkg/domain"
)

// SinkLabel is the label of the dump state added by Complete.
const SinkLabel = "dump"

// IsComplete reports whether every live state of a has a transition on
// every alphabet event.
func (a *Automaton) IsComplete() bool {
	for _, s := range a.States() {
		for e := range a.alphabet {
			if e.IsEpsilon() {
				continue
			}
			if !a.Defined(s, e) {
				return false
			}
		}
	}
	return true
}

// Complete returns a complete copy of a DFA over its alphabet extended with
// extra. Missing transitions are sent to a fresh unmarked sink, returned as the
// second value; NoState means the copy was already complete.
func (a *Automaton) Complete(extra ...*Event) (*Automaton, StateID, error) {
	if a.kind != DFA {
		return nil, NoState, fmt.Errorf("%w: completion needs a DFA, got %s", domain.ErrNotDeterministic, a.kind)
	}
	c := a.Clone()
	for _, e := range extra {
		if err := c.AddEvent(e); err != nil {
			return nil, NoState, err
		}
	}
	if c.IsComplete() {
		return c, NoState, nil
	}

	sink := c.AddNamedState(SinkLabel, false)
	events := c.Alphabet()
	for _, s := range c.States() {
		for _, e := range events {
			if !c.Defined(s, e) {
				c.link(s, e, sink, 1)
			}
		}
	}
	return c, sink, nil
}
