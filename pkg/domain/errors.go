package domain

import "errors"

// ErrDeterminismViolation is returned when a DFA would get a second target for a (state, event) pair.
var ErrDeterminismViolation = errors.New("determinism violation")

// ErrProbabilityInvariant is returned when the outgoing probabilities of a PFA (state, event)
// pair would leave the (0, 1] range or not sum to one.
var ErrProbabilityInvariant = errors.New("probability invariant violated")

// ErrNotDeterministic is returned by operations that require a DFA when given an NFA or PFA.
var ErrNotDeterministic = errors.New("automaton is not deterministic")

// ErrStateInUse is returned when removing a state that is still referenced by a transition.
var ErrStateInUse = errors.New("state in use")

// ErrUnknownState is returned when an operation references a state the automaton does not own.
var ErrUnknownState = errors.New("unknown state")

// ErrUnknownEvent is returned when an event is absent from the registry the automaton uses.
var ErrUnknownEvent = errors.New("unknown event")

// ErrEventConflict is returned when an event name is redefined with different attributes.
var ErrEventConflict = errors.New("event redefined with different attributes")

// ErrEmptyAutomaton is returned by operations that need an initial state on an automaton without one.
var ErrEmptyAutomaton = errors.New("automaton has no initial state")

// ErrNoSupervisorExists is returned by synthesis when no initial state survives bad-state removal.
var ErrNoSupervisorExists = errors.New("no supervisor exists")

// ErrBudgetExceeded is returned when an exploration runs out of its state or time budget.
var ErrBudgetExceeded = errors.New("computation budget exceeded")

// ErrAutomatonNotFound is returned when an automaton ID cannot be found in a store.
var ErrAutomatonNotFound = errors.New("automaton not found")
