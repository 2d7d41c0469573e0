package schema

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
)

// Document is the name-based description of an automaton.
// It uses "mapstructure" tags so generic YAML maps decode straight into it.
type Document struct {
	Kind        string           `json:"kind" yaml:"kind" mapstructure:"kind"`
	Events      []EventSpec      `json:"events" yaml:"events" mapstructure:"events"`
	States      []StateSpec      `json:"states" yaml:"states" mapstructure:"states"`
	Transitions []TransitionSpec `json:"transitions" yaml:"transitions" mapstructure:"transitions"`
}

// EventSpec declares an event. Missing flags default to true.
type EventSpec struct {
	Name         string `json:"name" yaml:"name" mapstructure:"name"`
	Controllable *bool  `json:"controllable,omitempty" yaml:"controllable,omitempty" mapstructure:"controllable"`
	Observable   *bool  `json:"observable,omitempty" yaml:"observable,omitempty" mapstructure:"observable"`
	Fault        string `json:"fault,omitempty" yaml:"fault,omitempty" mapstructure:"fault"`
}

// StateSpec declares a state.
type StateSpec struct {
	Name    string `json:"name" yaml:"name" mapstructure:"name"`
	Marked  bool   `json:"marked,omitempty" yaml:"marked,omitempty" mapstructure:"marked"`
	Initial bool   `json:"initial,omitempty" yaml:"initial,omitempty" mapstructure:"initial"`
}

// TransitionSpec declares a transition. Prob is only read for PFAs.
type TransitionSpec struct {
	From  string  `json:"from" yaml:"from" mapstructure:"from"`
	Event string  `json:"event" yaml:"event" mapstructure:"event"`
	To    string  `json:"to" yaml:"to" mapstructure:"to"`
	Prob  float64 `json:"prob,omitempty" yaml:"prob,omitempty" mapstructure:"prob"`
}

func flag(b bool) *bool { return &b }

// Options returns the definition options the spec describes.
func (e EventSpec) Options() []automaton.EventOption {
	opts := []automaton.EventOption{}
	if e.Controllable != nil {
		opts = append(opts, automaton.Controllability(*e.Controllable))
	}
	if e.Observable != nil {
		opts = append(opts, automaton.Observability(*e.Observable))
	}
	if e.Fault != "" {
		opts = append(opts, automaton.WithFault(e.Fault))
	}
	return opts
}

// FromAutomaton describes a. States are listed in ascending ID order, so
// building the document again yields the same dense numbering. Unlabeled
// states are named by their index; colliding names get a "#id" suffix.
func FromAutomaton(a *automaton.Automaton) *Document {
	doc := &Document{Kind: a.Kind().String()}

	for _, e := range a.Alphabet() {
		if e.IsEpsilon() {
			continue
		}
		doc.Events = append(doc.Events, EventSpec{
			Name:         e.Name(),
			Controllable: flag(e.Controllable()),
			Observable:   flag(e.Observable()),
			Fault:        e.Fault(),
		})
	}

	names := make(map[automaton.StateID]string)
	used := make(map[string]bool)
	for _, s := range a.States() {
		base := a.StateName(s)
		name := base
		for n := int(s); used[name]; n++ {
			name = base + "#" + strconv.Itoa(n)
		}
		used[name] = true
		names[s] = name
		doc.States = append(doc.States, StateSpec{Name: name, Marked: a.IsMarked(s), Initial: a.IsInitial(s)})
	}

	for _, t := range a.Transitions() {
		ts := TransitionSpec{From: names[t.From], Event: t.Event.Name(), To: names[t.To]}
		if a.Kind() == automaton.PFA {
			ts.Prob = t.Prob
		}
		doc.Transitions = append(doc.Transitions, ts)
	}
	return doc
}

// Build creates the automaton the document describes, defining its events in
// reg (a nil reg gets a fresh registry). It does not call Validate, so a
// document without an initial state still builds.
//
// A rejected document leaves reg untouched: the document is first built
// against a scratch registry and its events are checked against reg before
// any of them is defined there.
func (d *Document) Build(reg *automaton.Registry) (*automaton.Automaton, error) {
	if reg == nil {
		return d.build(automaton.NewRegistry())
	}
	if _, err := d.build(automaton.NewRegistry()); err != nil {
		return nil, err
	}
	var errs []error
	for i, es := range d.Events {
		if err := reg.Check(es.Name, es.Options()...); err != nil {
			errs = append(errs, &ValidationError{Path: fmt.Sprintf("events[%d]", i), Reason: err.Error(), Err: err})
		}
	}
	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return d.build(reg)
}

func (d *Document) build(reg *automaton.Registry) (*automaton.Automaton, error) {
	var errs []error
	fail := func(path, reason string, value any, err error) {
		errs = append(errs, &ValidationError{Path: path, Reason: reason, Value: value, Err: err})
	}

	kind, err := automaton.ParseKind(d.Kind)
	if err != nil {
		fail("kind", "unknown automaton kind", d.Kind, nil)
	}
	a := automaton.New(kind, reg)

	events := make(map[string]*automaton.Event, len(d.Events))
	for i, es := range d.Events {
		path := fmt.Sprintf("events[%d]", i)
		if es.Name == "" {
			fail(path+".name", "required", nil, domain.ErrUnknownEvent)
			continue
		}
		if _, dup := events[es.Name]; dup {
			fail(path+".name", "duplicate event", es.Name, domain.ErrEventConflict)
			continue
		}
		e, err := reg.Define(es.Name, es.Options()...)
		if err != nil {
			fail(path, err.Error(), nil, err)
			continue
		}
		if err := a.AddEvent(e); err != nil {
			fail(path, err.Error(), nil, err)
			continue
		}
		events[es.Name] = e
	}

	states := make(map[string]automaton.StateID, len(d.States))
	for i, ss := range d.States {
		path := fmt.Sprintf("states[%d]", i)
		if ss.Name == "" {
			fail(path+".name", "required", nil, domain.ErrUnknownState)
			continue
		}
		if _, dup := states[ss.Name]; dup {
			fail(path+".name", "duplicate state", ss.Name, domain.ErrUnknownState)
			continue
		}
		id := a.AddNamedState(ss.Name, ss.Marked)
		states[ss.Name] = id
		if ss.Initial {
			if kind != automaton.NFA && len(a.Initial()) > 0 {
				fail(path+".initial", "only NFAs may have several initial states", ss.Name, domain.ErrNotDeterministic)
				continue
			}
			if err := a.SetInitial(id); err != nil {
				fail(path+".initial", err.Error(), nil, err)
			}
		}
	}

	for i, ts := range d.Transitions {
		path := fmt.Sprintf("transitions[%d]", i)
		from, okFrom := states[ts.From]
		if !okFrom {
			fail(path+".from", "undeclared state", ts.From, domain.ErrUnknownState)
		}
		to, okTo := states[ts.To]
		if !okTo {
			fail(path+".to", "undeclared state", ts.To, domain.ErrUnknownState)
		}
		e, okEvent := events[ts.Event]
		if !okEvent && ts.Event == automaton.EpsilonName {
			e, okEvent = reg.Epsilon(), true
		}
		if !okEvent {
			fail(path+".event", "undeclared event", ts.Event, domain.ErrUnknownEvent)
		}
		if !okFrom || !okTo || !okEvent {
			continue
		}
		if kind == automaton.PFA {
			err = a.AddProbTransition(from, e, to, ts.Prob)
		} else {
			err = a.AddTransition(from, e, to)
		}
		if err != nil {
			fail(path, err.Error(), nil, err)
		}
	}

	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return a, nil
}

// Validate reports the structural problems of the document without keeping
// the automaton it builds.
func (d *Document) Validate() error {
	a, err := d.Build(nil)
	if err != nil {
		return err
	}
	if err := a.Validate(); err != nil && !errors.Is(err, domain.ErrEmptyAutomaton) {
		return err
	}
	return nil
}
