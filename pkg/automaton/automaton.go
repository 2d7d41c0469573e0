package automaton

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/aretw0/desops/pkg/domain"
)

// probTolerance absorbs floating point drift when summing PFA probabilities.
const probTolerance = 1e-9

type edge struct {
	to   StateID
	prob float64
}

type stateRec struct {
	label   string
	marked  bool
	removed bool
	out     map[*Event][]edge
	in      map[*Event][]StateID
}

// Transition is a read-only view of one transition.
// Prob is 1 for DFA and NFA transitions.
type Transition struct {
	From  StateID
	Event *Event
	To    StateID
	Prob  float64
}

// Automaton is the tagged DFA/NFA/PFA substrate.
// It is not safe for concurrent mutation; engines only read their inputs.
type Automaton struct {
	kind     Kind
	registry *Registry
	states   []stateRec
	live     int
	alphabet map[*Event]struct{}
	initial  StateSet
	ntrans   int
}

// New creates an empty automaton of the given kind bound to reg.
// A nil registry gets a fresh one.
func New(kind Kind, reg *Registry) *Automaton {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Automaton{
		kind:     kind,
		registry: reg,
		alphabet: make(map[*Event]struct{}),
	}
}

// Kind returns the variant tag.
func (a *Automaton) Kind() Kind { return a.kind }

// Registry returns the registry the automaton is bound to.
func (a *Automaton) Registry() *Registry { return a.registry }

// AddState allocates a fresh state.
func (a *Automaton) AddState(marked bool) StateID {
	return a.AddNamedState("", marked)
}

// AddNamedState allocates a fresh state carrying a display label.
func (a *Automaton) AddNamedState(label string, marked bool) StateID {
	a.states = append(a.states, stateRec{label: label, marked: marked})
	a.live++
	return StateID(len(a.states) - 1)
}

// Has reports whether s is a live state of a.
func (a *Automaton) Has(s StateID) bool {
	return s >= 0 && int(s) < len(a.states) && !a.states[s].removed
}

func (a *Automaton) checkState(s StateID) error {
	if !a.Has(s) {
		return fmt.Errorf("%w: %d", domain.ErrUnknownState, s)
	}
	return nil
}

// SetInitial makes s initial. On a DFA or PFA it replaces the previous initial
// state; on an NFA it adds s to the initial set.
func (a *Automaton) SetInitial(s StateID) error {
	if err := a.checkState(s); err != nil {
		return err
	}
	if a.kind == NFA {
		a.initial = a.initial.Union(StateSet{s})
		return nil
	}
	a.initial = StateSet{s}
	return nil
}

// ResetInitial clears the initial states.
func (a *Automaton) ResetInitial() {
	a.initial = nil
}

// SetMarked sets the marked (accepting) flag of s.
func (a *Automaton) SetMarked(s StateID, marked bool) error {
	if err := a.checkState(s); err != nil {
		return err
	}
	a.states[s].marked = marked
	return nil
}

// SetLabel changes the display label of s.
func (a *Automaton) SetLabel(s StateID, label string) error {
	if err := a.checkState(s); err != nil {
		return err
	}
	a.states[s].label = label
	return nil
}

// AddEvent adds e to the alphabet without adding transitions.
func (a *Automaton) AddEvent(e *Event) error {
	if err := a.checkEvent(e); err != nil {
		return err
	}
	a.alphabet[e] = struct{}{}
	return nil
}

func (a *Automaton) checkEvent(e *Event) error {
	if !a.registry.Owns(e) {
		return fmt.Errorf("%w: %v is not defined in this automaton's registry", domain.ErrUnknownEvent, e)
	}
	if e.IsEpsilon() && a.kind != NFA {
		return fmt.Errorf("%w: epsilon transitions require an NFA", domain.ErrNotDeterministic)
	}
	return nil
}

// States returns the live states in ascending order.
func (a *Automaton) States() []StateID {
	out := make([]StateID, 0, a.live)
	for i := range a.states {
		if !a.states[i].removed {
			out = append(out, StateID(i))
		}
	}
	return out
}

// NumStates returns the number of live states.
func (a *Automaton) NumStates() int { return a.live }

// NumTransitions returns the number of transitions.
func (a *Automaton) NumTransitions() int { return a.ntrans }

// Initial returns the initial states.
func (a *Automaton) Initial() StateSet { return slices.Clone(a.initial) }

// InitialState returns the single initial state of a DFA or PFA.
func (a *Automaton) InitialState() (StateID, error) {
	switch len(a.initial) {
	case 0:
		return NoState, domain.ErrEmptyAutomaton
	case 1:
		return a.initial[0], nil
	}
	return NoState, fmt.Errorf("%w: %d initial states", domain.ErrNotDeterministic, len(a.initial))
}

// IsInitial reports whether s is initial.
func (a *Automaton) IsInitial(s StateID) bool { return a.initial.Contains(s) }

// IsMarked reports whether s is marked.
func (a *Automaton) IsMarked(s StateID) bool {
	return a.Has(s) && a.states[s].marked
}

// Marked returns the marked states in ascending order.
func (a *Automaton) Marked() StateSet {
	var out StateSet
	for _, s := range a.States() {
		if a.states[s].marked {
			out = append(out, s)
		}
	}
	return out
}

// Label returns the display label of s ("" if none).
func (a *Automaton) Label(s StateID) string {
	if !a.Has(s) {
		return ""
	}
	return a.states[s].label
}

// StateName returns the label of s, or its index when unlabeled.
func (a *Automaton) StateName(s StateID) string {
	if l := a.Label(s); l != "" {
		return l
	}
	return strconv.Itoa(int(s))
}

// FindState returns the first live state with the given label.
func (a *Automaton) FindState(label string) (StateID, bool) {
	for i := range a.states {
		if !a.states[i].removed && a.states[i].label == label {
			return StateID(i), true
		}
	}
	return NoState, false
}

// Alphabet returns the events of the automaton, sorted by name.
func (a *Automaton) Alphabet() []*Event {
	out := slices.Collect(maps.Keys(a.alphabet))
	slices.SortFunc(out, ByName)
	return out
}

// HasEvent reports whether e belongs to the alphabet.
func (a *Automaton) HasEvent(e *Event) bool {
	_, ok := a.alphabet[e]
	return ok
}

// Successors returns the targets of (s, e) in ascending order.
func (a *Automaton) Successors(s StateID, e *Event) []StateID {
	if !a.Has(s) {
		return nil
	}
	edges := a.states[s].out[e]
	out := make([]StateID, len(edges))
	for i, ed := range edges {
		out[i] = ed.to
	}
	slices.Sort(out)
	return out
}

// Next returns the target of (s, e) on a deterministic automaton.
// On an NFA it returns the smallest target.
func (a *Automaton) Next(s StateID, e *Event) (StateID, bool) {
	if !a.Has(s) {
		return NoState, false
	}
	edges := a.states[s].out[e]
	if len(edges) == 0 {
		return NoState, false
	}
	best := edges[0].to
	for _, ed := range edges[1:] {
		best = min(best, ed.to)
	}
	return best, true
}

// Defined reports whether (s, e) has at least one transition.
func (a *Automaton) Defined(s StateID, e *Event) bool {
	return a.Has(s) && len(a.states[s].out[e]) > 0
}

// Enabled returns the events with at least one transition out of s, sorted by name.
func (a *Automaton) Enabled(s StateID) []*Event {
	if !a.Has(s) {
		return nil
	}
	out := make([]*Event, 0, len(a.states[s].out))
	for e, edges := range a.states[s].out {
		if len(edges) > 0 {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, ByName)
	return out
}

// Predecessors returns the sources of transitions on e into s, ascending.
func (a *Automaton) Predecessors(s StateID, e *Event) []StateID {
	if !a.Has(s) {
		return nil
	}
	out := slices.Clone(a.states[s].in[e])
	slices.Sort(out)
	return out
}

// Incoming returns the events with at least one transition into s, sorted by name.
func (a *Automaton) Incoming(s StateID) []*Event {
	if !a.Has(s) {
		return nil
	}
	out := make([]*Event, 0, len(a.states[s].in))
	for e, srcs := range a.states[s].in {
		if len(srcs) > 0 {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, ByName)
	return out
}

// Transitions lists every transition ordered by source, event name and target.
func (a *Automaton) Transitions() []Transition {
	out := make([]Transition, 0, a.ntrans)
	for _, s := range a.States() {
		for _, e := range a.Enabled(s) {
			edges := slices.Clone(a.states[s].out[e])
			slices.SortFunc(edges, func(x, y edge) int { return int(x.to) - int(y.to) })
			for _, ed := range edges {
				out = append(out, Transition{From: s, Event: e, To: ed.to, Prob: ed.prob})
			}
		}
	}
	return out
}

// Clone returns a deep copy sharing the registry and events.
func (a *Automaton) Clone() *Automaton {
	c := &Automaton{
		kind:     a.kind,
		registry: a.registry,
		states:   make([]stateRec, len(a.states)),
		live:     a.live,
		alphabet: maps.Clone(a.alphabet),
		initial:  slices.Clone(a.initial),
		ntrans:   a.ntrans,
	}
	for i, st := range a.states {
		cp := stateRec{label: st.label, marked: st.marked, removed: st.removed}
		if st.out != nil {
			cp.out = make(map[*Event][]edge, len(st.out))
			for e, edges := range st.out {
				cp.out[e] = slices.Clone(edges)
			}
		}
		if st.in != nil {
			cp.in = make(map[*Event][]StateID, len(st.in))
			for e, srcs := range st.in {
				cp.in[e] = slices.Clone(srcs)
			}
		}
		c.states[i] = cp
	}
	return c
}

// WithKind returns a copy re-tagged as kind. Converting to DFA fails with
// domain.ErrNotDeterministic if the structure is not deterministic.
func (a *Automaton) WithKind(kind Kind) (*Automaton, error) {
	c := a.Clone()
	c.kind = kind
	if kind != NFA {
		if _, ok := a.alphabet[a.registry.epsilon]; ok {
			return nil, fmt.Errorf("%w: epsilon transitions present", domain.ErrNotDeterministic)
		}
		if len(a.initial) > 1 {
			return nil, fmt.Errorf("%w: %d initial states", domain.ErrNotDeterministic, len(a.initial))
		}
	}
	if kind == DFA {
		for _, s := range c.States() {
			for e, edges := range c.states[s].out {
				if len(edges) > 1 {
					return nil, fmt.Errorf("%w: state %d event %q has %d targets", domain.ErrDeterminismViolation, s, e.name, len(edges))
				}
			}
		}
	}
	if kind != PFA {
		for i := range c.states {
			for e, edges := range c.states[i].out {
				for j := range edges {
					c.states[i].out[e][j].prob = 1
				}
			}
		}
	}
	return c, nil
}

// IsDeterministic reports whether a has at most one initial state, no epsilon
// transitions and at most one target per (state, event), whatever its tag.
func (a *Automaton) IsDeterministic() bool {
	if len(a.initial) > 1 {
		return false
	}
	for _, s := range a.States() {
		for e, edges := range a.states[s].out {
			if len(edges) > 1 || (len(edges) > 0 && e.IsEpsilon()) {
				return false
			}
		}
	}
	return true
}

// Validate re-checks the invariants of the variant.
// Loaders and engines call it before consuming an automaton.
func (a *Automaton) Validate() error {
	if len(a.initial) == 0 {
		return domain.ErrEmptyAutomaton
	}
	for _, s := range a.initial {
		if err := a.checkState(s); err != nil {
			return fmt.Errorf("initial state: %w", err)
		}
	}
	switch a.kind {
	case DFA:
		if !a.IsDeterministic() {
			return fmt.Errorf("%w: tagged DFA has nondeterministic structure", domain.ErrDeterminismViolation)
		}
	case PFA:
		if len(a.initial) != 1 {
			return fmt.Errorf("%w: %d initial states", domain.ErrNotDeterministic, len(a.initial))
		}
		for _, s := range a.States() {
			for _, e := range a.Enabled(s) {
				if sum := a.probSum(s, e); sum < 1-probTolerance || sum > 1+probTolerance {
					return fmt.Errorf("%w: state %d event %q sums to %g", domain.ErrProbabilityInvariant, s, e.name, sum)
				}
			}
		}
	}
	return nil
}
