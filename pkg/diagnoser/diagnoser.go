package diagnoser

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
)

// Item is one plant state of a diagnoser estimate, together with the fault
// labels that occurred on the way there. Faults is sorted; empty means normal.
type Item struct {
	State  automaton.StateID `json:"state"`
	Faults []string          `json:"faults,omitempty"`
}

func (it Item) key() string {
	return strconv.Itoa(int(it.State)) + "|" + strings.Join(it.Faults, ",")
}

func (it Item) String() string {
	if len(it.Faults) == 0 {
		return strconv.Itoa(int(it.State)) + "N"
	}
	return strconv.Itoa(int(it.State)) + strings.Join(it.Faults, "")
}

func (it Item) has(fault string) bool {
	_, ok := slices.BinarySearch(it.Faults, fault)
	return ok
}

func withFault(faults []string, f string) []string {
	if f == "" {
		return faults
	}
	if _, ok := slices.BinarySearch(faults, f); ok {
		return faults
	}
	out := append(slices.Clone(faults), f)
	slices.Sort(out)
	return out
}

// Certainty classifies a diagnoser state with respect to one fault label.
type Certainty int

const (
	Normal Certainty = iota
	Certain
	Uncertain
)

func (c Certainty) String() string {
	switch c {
	case Certain:
		return "certain"
	case Uncertain:
		return "uncertain"
	}
	return "normal"
}

// Diagnoser is the observer of a plant whose states carry fault labels.
type Diagnoser struct {
	// Automaton is a DFA over the observable events of the plant.
	Automaton *automaton.Automaton
	// Items lists, per diagnoser state, the labeled plant states it stands for.
	Items [][]Item
	plant *automaton.Automaton
}

// Plant returns the diagnosed plant.
func (d *Diagnoser) Plant() *automaton.Automaton { return d.plant }

// Certainty tells whether the diagnoser state s is sure fault occurred
// (Certain), sure it did not (Normal) or cannot tell (Uncertain).
func (d *Diagnoser) Certainty(s automaton.StateID, fault string) Certainty {
	if s < 0 || int(s) >= len(d.Items) {
		return Normal
	}
	with, without := 0, 0
	for _, it := range d.Items[s] {
		if it.has(fault) {
			with++
		} else {
			without++
		}
	}
	switch {
	case with > 0 && without > 0:
		return Uncertain
	case with > 0:
		return Certain
	}
	return Normal
}

func observableEvent(e *automaton.Event) bool {
	return !e.IsEpsilon() && e.Observable()
}

// Build constructs the diagnoser of plant. Unobservable events are closed
// over; a fault event adds its label to every item it leads to.
func Build(ctx context.Context, plant *automaton.Automaton, opts ...explore.Option) (*Diagnoser, error) {
	if len(plant.Initial()) == 0 {
		return nil, domain.ErrEmptyAutomaton
	}
	g := explore.NewGuard(ctx, domain.AnalysisDiagnoser, explore.Apply(opts...))

	var events []*automaton.Event
	for _, e := range plant.Alphabet() {
		if observableEvent(e) {
			events = append(events, e)
		}
	}
	out := automaton.New(automaton.DFA, plant.Registry())
	for _, e := range events {
		if err := out.AddEvent(e); err != nil {
			g.Finish("error", 0, err)
			return nil, err
		}
	}

	d := &Diagnoser{Automaton: out, plant: plant}
	index := make(map[string]automaton.StateID)
	var queue []automaton.StateID
	intern := func(items []Item) automaton.StateID {
		key := itemsKey(items)
		if id, ok := index[key]; ok {
			return id
		}
		names := make([]string, len(items))
		marked := false
		for i, it := range items {
			names[i] = it.String()
			marked = marked || plant.IsMarked(it.State)
		}
		id := out.AddNamedState("{"+strings.Join(names, ",")+"}", marked)
		index[key] = id
		d.Items = append(d.Items, items)
		queue = append(queue, id)
		return id
	}

	start := make([]Item, 0, len(plant.Initial()))
	for _, s := range plant.Initial() {
		start = append(start, Item{State: s})
	}
	init := intern(unobservableClosure(plant, start))
	if err := out.SetInitial(init); err != nil {
		g.Finish("error", 0, err)
		return nil, err
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if err := g.Step(); err != nil {
			g.Finish("error", out.NumStates(), err)
			return nil, err
		}
		for _, e := range events {
			var next []Item
			for _, it := range d.Items[cur] {
				for _, t := range plant.Successors(it.State, e) {
					next = append(next, Item{State: t, Faults: withFault(it.Faults, e.Fault())})
				}
			}
			if len(next) == 0 {
				continue
			}
			target := intern(unobservableClosure(plant, next))
			if err := out.AddTransition(cur, e, target); err != nil {
				g.Finish("error", out.NumStates(), err)
				return nil, err
			}
		}
	}

	g.Logger().Debug("diagnoser built", "states", out.NumStates(), "plant_states", plant.NumStates())
	g.Finish("built", out.NumStates(), nil)
	return d, nil
}

func unobservableClosure(plant *automaton.Automaton, items []Item) []Item {
	seen := make(map[string]Item, len(items))
	stack := slices.Clone(items)
	for _, it := range items {
		seen[it.key()] = it
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range plant.Enabled(it.State) {
			if observableEvent(e) {
				continue
			}
			for _, t := range plant.Successors(it.State, e) {
				n := Item{State: t, Faults: withFault(it.Faults, e.Fault())}
				if _, ok := seen[n.key()]; !ok {
					seen[n.key()] = n
					stack = append(stack, n)
				}
			}
		}
	}
	out := make([]Item, 0, len(seen))
	for _, it := range seen {
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b Item) int {
		if a.State != b.State {
			return int(a.State) - int(b.State)
		}
		return strings.Compare(strings.Join(a.Faults, ","), strings.Join(b.Faults, ","))
	})
	return out
}

func itemsKey(items []Item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.key()
	}
	return strings.Join(parts, ";")
}

// String renders a state of the diagnoser with its items.
func (d *Diagnoser) String(s automaton.StateID) string {
	if s < 0 || int(s) >= len(d.Items) {
		return fmt.Sprintf("state(%d)", s)
	}
	return d.Automaton.Label(s)
}
