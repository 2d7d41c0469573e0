package automaton

import (
	"errors"
	"fmt"

	"github.com/aretw0/desops/pkg/domain"
)

// Run feeds word (event names) to a from its initial states and returns the
// set of states the automaton can be in afterwards, closed under epsilon.
// An empty result means the word is not in the generated language.
func Run(a *Automaton, word []string) (StateSet, error) {
	if len(a.initial) == 0 {
		return nil, domain.ErrEmptyAutomaton
	}
	cur := Closure(a, a.initial)
	for i, name := range word {
		e, err := a.registry.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		var next []StateID
		for _, s := range cur {
			next = append(next, a.Successors(s, e)...)
		}
		if len(next) == 0 {
			return nil, nil
		}
		cur = Closure(a, NewStateSet(next...))
	}
	return cur, nil
}

// Accepts reports whether word is in the marked language of a.
func Accepts(a *Automaton, word []string) (bool, error) {
	reached, err := Run(a, word)
	if err != nil {
		return false, err
	}
	for _, s := range reached {
		if a.IsMarked(s) {
			return true, nil
		}
	}
	return false, nil
}

// Generates reports whether word is in the generated (prefix-closed) language of a.
func Generates(a *Automaton, word []string) (bool, error) {
	reached, err := Run(a, word)
	if errors.Is(err, domain.ErrUnknownEvent) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(reached) > 0, nil
}
