package supervisor

import (
	"fmt"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/compose"
	"github.com/aretw0/desops/pkg/explore"
)

// estimate is what an observer of the closed loop knows after an
// observation: the closed-loop states it could be in, and whether some plant
// string with the same observation has already left the closed loop.
type estimate struct {
	set  automaton.StateSet
	leak bool
}

func (e estimate) key() string {
	if e.leak {
		return e.set.Key() + "!"
	}
	return e.set.Key()
}

type observation struct {
	from  int
	event *automaton.Event
}

// refineNormal cuts h down to its supremal normal sublanguage with respect
// to plant and the projection onto observable events. A closed-loop string is
// cut once its observation could equally have come from a plant string the
// closed loop does not contain. The states of h are split by observer
// estimate so the cut is state based; the result is trimmed and the map
// relates its states to those of h. A nil automaton means h is already
// normal.
func refineNormal(g *explore.Guard, plant, h *automaton.Automaton, pm *compose.ProductMap, observable func(*automaton.Event) bool) (*automaton.Automaton, automaton.StateMap, int, error) {
	init, err := h.InitialState()
	if err != nil {
		return nil, nil, 0, err
	}
	plantOf := func(x automaton.StateID) automaton.StateID {
		gs, _, _ := pm.Pair(x)
		return gs
	}

	// closure follows the unobservable plant moves from seed.
	closure := func(seed []automaton.StateID) estimate {
		var est estimate
		seen := make(map[automaton.StateID]bool, len(seed))
		stack := make([]automaton.StateID, 0, len(seed))
		for _, x := range seed {
			if !seen[x] {
				seen[x] = true
				stack = append(stack, x)
			}
		}
		for len(stack) > 0 {
			x := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, e := range plant.Enabled(plantOf(x)) {
				if observable(e) {
					continue
				}
				to, ok := h.Next(x, e)
				if !ok {
					est.leak = true
					continue
				}
				if !seen[to] {
					seen[to] = true
					stack = append(stack, to)
				}
			}
		}
		ids := make([]automaton.StateID, 0, len(seen))
		for x := range seen {
			ids = append(ids, x)
		}
		est.set = automaton.NewStateSet(ids...)
		return est
	}

	var events []*automaton.Event
	for _, e := range plant.Alphabet() {
		if !e.IsEpsilon() && observable(e) {
			events = append(events, e)
		}
	}

	// Estimates that leak are not expanded: every observation extending
	// theirs is cut anyway.
	estimates := []estimate{closure([]automaton.StateID{init})}
	index := map[string]int{estimates[0].key(): 0}
	delta := make(map[observation]int)
	leaks := estimates[0].leak
	for cur := 0; cur < len(estimates); cur++ {
		if err := g.Step(); err != nil {
			return nil, nil, 0, err
		}
		if estimates[cur].leak {
			continue
		}
		for _, e := range events {
			var seed []automaton.StateID
			leak := false
			for _, x := range estimates[cur].set {
				if !plant.Defined(plantOf(x), e) {
					continue
				}
				if to, ok := h.Next(x, e); ok {
					seed = append(seed, to)
				} else {
					leak = true
				}
			}
			if len(seed) == 0 {
				continue
			}
			next := closure(seed)
			next.leak = next.leak || leak
			id, ok := index[next.key()]
			if !ok {
				id = len(estimates)
				index[next.key()] = id
				estimates = append(estimates, next)
			}
			leaks = leaks || next.leak
			delta[observation{from: cur, event: e}] = id
		}
	}
	if !leaks {
		return nil, nil, 0, nil
	}

	out := automaton.New(automaton.DFA, h.Registry())
	for _, e := range h.Alphabet() {
		if err := out.AddEvent(e); err != nil {
			return nil, nil, 0, err
		}
	}
	if estimates[0].leak {
		return out, automaton.StateMap{}, h.NumStates(), nil
	}

	type pair struct {
		x automaton.StateID
		y int
	}
	ids := make(map[pair]automaton.StateID)
	origin := make(automaton.StateMap)
	var queue []pair
	cut := make(map[pair]bool)
	visit := func(p pair) (automaton.StateID, bool) {
		if id, ok := ids[p]; ok {
			return id, true
		}
		if estimates[p.y].leak {
			cut[p] = true
			return automaton.NoState, false
		}
		id := out.AddNamedState(fmt.Sprintf("%s@%d", h.StateName(p.x), p.y), h.IsMarked(p.x))
		ids[p] = id
		origin[id] = p.x
		queue = append(queue, p)
		return id, true
	}
	start, _ := visit(pair{x: init, y: 0})
	if err := out.SetInitial(start); err != nil {
		return nil, nil, 0, err
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if err := g.Step(); err != nil {
			return nil, nil, 0, err
		}
		from := ids[p]
		for _, e := range h.Enabled(p.x) {
			to, _ := h.Next(p.x, e)
			next := pair{x: to, y: p.y}
			if observable(e) && !e.IsEpsilon() {
				next.y = delta[observation{from: p.y, event: e}]
			}
			id, ok := visit(next)
			if !ok {
				continue
			}
			if err := out.AddTransition(from, e, id); err != nil {
				return nil, nil, 0, err
			}
		}
	}

	trimmed, tm, err := out.Trim(g.Context())
	if err != nil {
		return nil, nil, 0, err
	}
	sm := make(automaton.StateMap, len(tm))
	for n, o := range tm {
		sm[n] = origin[o]
	}
	return trimmed, sm, len(cut) + out.NumStates() - trimmed.NumStates(), nil
}
