package testutils

import (
	"fmt"
	"math/rand/v2"

	"github.com/aretw0/desops/pkg/automaton"
)

// Shape describes the random automata a Generator produces.
type Shape struct {
	States int
	Events int
	// Density is the probability that a (state, event) pair gets a transition.
	Density float64
	// MarkedRatio is the probability that a state is marked.
	MarkedRatio float64
	// Uncontrollable and Unobservable are the probabilities of the event attributes.
	Uncontrollable float64
	Unobservable   float64
	// Faults turns that many unobservable events into fault events F1..Fn.
	Faults int
	Kind   automaton.Kind
}

// Generator builds reproducible random automata for property tests.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator seeds a generator; equal seeds give equal sequences.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Events defines the events of shape in reg, named e0, e1, ...
func (g *Generator) Events(reg *automaton.Registry, shape Shape) []*automaton.Event {
	out := make([]*automaton.Event, 0, shape.Events)
	faults := 0
	for i := range shape.Events {
		var opts []automaton.EventOption
		if g.rng.Float64() < shape.Uncontrollable {
			opts = append(opts, automaton.Uncontrollable())
		}
		if faults < shape.Faults {
			faults++
			opts = append(opts, automaton.Unobservable(), automaton.Uncontrollable(), automaton.WithFault(fmt.Sprintf("F%d", faults)))
		} else if g.rng.Float64() < shape.Unobservable {
			opts = append(opts, automaton.Unobservable())
		}
		out = append(out, reg.MustDefine(fmt.Sprintf("e%d", i), opts...))
	}
	return out
}

// Automaton returns a fresh random automaton of the given shape over its own
// registry. State 0 is initial. NFAs get up to two targets per pair.
func (g *Generator) Automaton(shape Shape) *automaton.Automaton {
	return g.AutomatonIn(automaton.NewRegistry(), shape)
}

// AutomatonIn is Automaton over an existing registry.
func (g *Generator) AutomatonIn(reg *automaton.Registry, shape Shape) *automaton.Automaton {
	events := g.Events(reg, shape)
	a := automaton.New(shape.Kind, reg)
	states := make([]automaton.StateID, max(shape.States, 1))
	for i := range states {
		states[i] = a.AddState(g.rng.Float64() < shape.MarkedRatio)
	}
	must(a.SetInitial(states[0]))
	for _, e := range events {
		must(a.AddEvent(e))
	}
	for _, s := range states {
		for _, e := range events {
			if g.rng.Float64() >= shape.Density {
				continue
			}
			switch shape.Kind {
			case automaton.NFA:
				for range 1 + g.rng.IntN(2) {
					must(a.AddTransition(s, e, states[g.rng.IntN(len(states))]))
				}
			case automaton.PFA:
				first := states[g.rng.IntN(len(states))]
				second := states[g.rng.IntN(len(states))]
				p := 0.1 + 0.8*g.rng.Float64()
				must(a.AddProbTransition(s, e, first, p))
				must(a.AddProbTransition(s, e, second, 1-p))
			default:
				must(a.AddTransition(s, e, states[g.rng.IntN(len(states))]))
			}
		}
	}
	return a
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
