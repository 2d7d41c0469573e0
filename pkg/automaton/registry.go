package automaton

import (
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/desops/pkg/domain"
)

// Registry holds the canonical events of a session.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	events  map[string]*Event
	epsilon *Event
}

// NewRegistry creates a registry that only contains the reserved epsilon event.
func NewRegistry() *Registry {
	r := &Registry{
		events: make(map[string]*Event),
	}
	r.epsilon = &Event{name: EpsilonName, registry: r}
	return r
}

// Define returns the event with the given name, creating it on first use.
// Events default to controllable and observable. Redefining an existing
// name with different attributes fails with domain.ErrEventConflict.
func (r *Registry) Define(name string, opts ...EventOption) (*Event, error) {
	candidate, err := r.candidate(name, opts)
	if err != nil {
		return nil, err
	}
	if name == EpsilonName {
		return r.epsilon, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.events[name]; ok {
		if !existing.sameAttributes(candidate) {
			return nil, fmt.Errorf("%w: %#v vs %#v", domain.ErrEventConflict, existing, candidate)
		}
		return existing, nil
	}
	r.events[name] = candidate
	return candidate, nil
}

// Check reports whether Define would succeed for name and opts, without
// defining anything.
func (r *Registry) Check(name string, opts ...EventOption) error {
	candidate, err := r.candidate(name, opts)
	if err != nil || name == EpsilonName {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if existing, ok := r.events[name]; ok && !existing.sameAttributes(candidate) {
		return fmt.Errorf("%w: %#v vs %#v", domain.ErrEventConflict, existing, candidate)
	}
	return nil
}

func (r *Registry) candidate(name string, opts []EventOption) (*Event, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty event name", domain.ErrUnknownEvent)
	}
	candidate := &Event{name: name, controllable: true, observable: true, registry: r}
	for _, opt := range opts {
		opt(candidate)
	}
	if name == EpsilonName && !candidate.sameAttributes(r.epsilon) {
		return nil, fmt.Errorf("%w: %q is reserved", domain.ErrEventConflict, name)
	}
	return candidate, nil
}

// MustDefine is like Define but panics on error. Intended for tests and fixtures.
func (r *Registry) MustDefine(name string, opts ...EventOption) *Event {
	e, err := r.Define(name, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Lookup finds an event by name.
func (r *Registry) Lookup(name string) (*Event, error) {
	if name == EpsilonName {
		return r.epsilon, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, name)
	}
	return e, nil
}

// Epsilon returns the reserved silent event (unobservable, uncontrollable).
func (r *Registry) Epsilon() *Event {
	return r.epsilon
}

// Owns reports whether e was created by this registry.
func (r *Registry) Owns(e *Event) bool {
	return e != nil && e.registry == r
}

// Events returns all defined events, sorted by name. Epsilon is not included.
func (r *Registry) Events() []*Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e)
	}
	slices.SortFunc(out, ByName)
	return out
}

// Faults returns the distinct fault labels of the defined events, sorted.
func (r *Registry) Faults() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range r.events {
		if e.fault != "" {
			seen[e.fault] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}
