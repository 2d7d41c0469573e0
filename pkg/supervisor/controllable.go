package supervisor

import (
	"context"
	"fmt"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/compose"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
)

// Controllability is the outcome of IsControllable. When the specification
// is not controllable, Trace leads to a state where the plant can fire the
// uncontrollable Event but the specification forbids it.
type Controllability struct {
	Controllable bool     `json:"controllable"`
	Trace        []string `json:"trace,omitempty"`
	Event        string   `json:"event,omitempty"`
	PlantState   string   `json:"plant_state,omitempty"`
}

// IsControllable checks whether the closed behavior of spec composed with
// plant is controllable: no reachable composed state may disable an
// uncontrollable event the plant allows. The reported trace is the shortest,
// smallest by event name.
func IsControllable(ctx context.Context, plant, spec *automaton.Automaton, opts ...explore.Option) (*Controllability, error) {
	if err := checkInputs(plant, spec); err != nil {
		return nil, err
	}
	g := explore.NewGuard(ctx, domain.AnalysisSynthesis, explore.Apply(opts...))
	prod, err := compose.Product(g.Context(), plant, spec, compose.MarkBoth, opts...)
	if err != nil {
		err = fmt.Errorf("compose plant and specification: %w", err)
		g.Finish("error", 0, err)
		return nil, err
	}
	h := prod.Automaton
	init, err := h.InitialState()
	if err != nil {
		g.Finish("error", 0, err)
		return nil, err
	}

	type visit struct {
		state  automaton.StateID
		parent int
		event  string
	}
	nodes := []visit{{state: init, parent: -1}}
	seen := map[automaton.StateID]bool{init: true}
	for head := 0; head < len(nodes); head++ {
		if err := g.Step(); err != nil {
			g.Finish("error", len(nodes), err)
			return nil, err
		}
		cur := nodes[head]
		gs, _, _ := prod.Map.Pair(cur.state)
		for _, e := range plant.Enabled(gs) {
			if e.Controllable() || h.Defined(cur.state, e) {
				continue
			}
			var rev []string
			for i := head; nodes[i].parent >= 0; i = nodes[i].parent {
				rev = append(rev, nodes[i].event)
			}
			trace := make([]string, len(rev))
			for i, name := range rev {
				trace[len(rev)-1-i] = name
			}
			g.Finish("uncontrollable", len(nodes), nil)
			return &Controllability{Trace: trace, Event: e.Name(), PlantState: plant.StateName(gs)}, nil
		}
		for _, e := range h.Enabled(cur.state) {
			t, _ := h.Next(cur.state, e)
			if !seen[t] {
				seen[t] = true
				nodes = append(nodes, visit{state: t, parent: head, event: e.Name()})
			}
		}
	}
	g.Finish("controllable", len(nodes), nil)
	return &Controllability{Controllable: true}, nil
}
