package automaton

import "fmt"

// EpsilonName is the reserved name of the silent event carried by NFAs.
const EpsilonName = "eps"

// Event is an immutable labeled event shared by every automaton of a registry.
type Event struct {
	name         string
	controllable bool
	observable   bool
	fault        string
	registry     *Registry
}

// Name returns the event name, unique within its registry.
func (e *Event) Name() string { return e.name }

// Controllable reports whether a supervisor may disable the event.
func (e *Event) Controllable() bool { return e.controllable }

// Observable reports whether the event is visible to observers and diagnosers.
func (e *Event) Observable() bool { return e.observable }

// Fault returns the fault label of the event, or "" for a normal event.
func (e *Event) Fault() string { return e.fault }

// IsFault reports whether the event carries a fault label.
func (e *Event) IsFault() bool { return e.fault != "" }

// IsEpsilon reports whether e is the registry's silent event.
func (e *Event) IsEpsilon() bool { return e.registry != nil && e == e.registry.epsilon }

// Registry returns the registry that owns the event.
func (e *Event) Registry() *Registry { return e.registry }

func (e *Event) String() string {
	return e.name
}

// GoString renders the event with its attributes, for debugging.
func (e *Event) GoString() string {
	return fmt.Sprintf("Event{%s c=%t o=%t fault=%q}", e.name, e.controllable, e.observable, e.fault)
}

// EventOption configures the attributes of an event at definition time.
type EventOption func(*Event)

// Uncontrollable marks the event as one a supervisor cannot disable.
func Uncontrollable() EventOption {
	return func(e *Event) {
		e.controllable = false
	}
}

// Unobservable hides the event from observers.
func Unobservable() EventOption {
	return func(e *Event) {
		e.observable = false
	}
}

// Controllability sets the controllable attribute explicitly.
func Controllability(c bool) EventOption {
	return func(e *Event) {
		e.controllable = c
	}
}

// Observability sets the observable attribute explicitly.
func Observability(o bool) EventOption {
	return func(e *Event) {
		e.observable = o
	}
}

// WithFault tags the event with a fault label.
func WithFault(label string) EventOption {
	return func(e *Event) {
		e.fault = label
	}
}

func (e *Event) sameAttributes(other *Event) bool {
	return e.controllable == other.controllable &&
		e.observable == other.observable &&
		e.fault == other.fault
}

// ByName orders events by name. It is the tie-break order used by every traversal.
func ByName(a, b *Event) int {
	switch {
	case a.name < b.name:
		return -1
	case a.name > b.name:
		return 1
	}
	return 0
}
