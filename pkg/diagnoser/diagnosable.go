package diagnoser

import (
	"context"
	"slices"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
)

// Verdict is the outcome of a diagnosability check. When Diagnosable is false,
// Prefix followed by Cycle repeated forever is an observation the plant can
// produce both with and without Fault.
type Verdict struct {
	Diagnosable bool     `json:"diagnosable"`
	Fault       string   `json:"fault,omitempty"`
	Prefix      []string `json:"prefix,omitempty"`
	Cycle       []string `json:"cycle,omitempty"`
	// TwinStates is the number of twin-plant states explored.
	TwinStates int `json:"twin_states"`
}

type twinKey struct {
	x1, x2 automaton.StateID
	f1, f2 bool
}

type twinEdge struct {
	to    int
	event *automaton.Event
}

type twin struct {
	nodes  []twinKey
	edges  [][]twinEdge
	parent []twinEdge // parent[i].to is the BFS parent of i, -1 for roots
}

// Diagnosable decides whether every fault label of plant is diagnosable
// within a bounded number of observations. For each label it explores the
// twin plant: two copies of the plant that agree on observable events and
// move independently on unobservable ones, each tracking whether the fault
// occurred. A label is not diagnosable iff some reachable cycle where one copy
// is faulty and the other is not contains an observable event. Plants are
// assumed to have no cycles of unobservable events. Labels are checked in
// name order; the first failing one is reported.
func Diagnosable(ctx context.Context, plant *automaton.Automaton, opts ...explore.Option) (*Verdict, error) {
	if len(plant.Initial()) == 0 {
		return nil, domain.ErrEmptyAutomaton
	}
	g := explore.NewGuard(ctx, domain.AnalysisDiagnoser, explore.Apply(opts...))

	explored := 0
	for _, fault := range plantFaults(plant) {
		tw, err := buildTwin(g, plant, fault)
		if err != nil {
			g.Finish("error", explored, err)
			return nil, err
		}
		explored += len(tw.nodes)
		g.Logger().Debug("twin plant built", "fault", fault, "states", len(tw.nodes))

		if prefix, cycle, ok := tw.indeterminateCycle(); ok {
			v := &Verdict{Fault: fault, Prefix: prefix, Cycle: cycle, TwinStates: explored}
			g.Logger().Info("plant is not diagnosable", "fault", fault, "prefix", prefix, "cycle", cycle)
			g.Finish("not_diagnosable", explored, nil)
			return v, nil
		}
	}

	g.Logger().Info("plant is diagnosable", "twin_states", explored)
	g.Finish("diagnosable", explored, nil)
	return &Verdict{Diagnosable: true, TwinStates: explored}, nil
}

// plantFaults lists the fault labels used by the plant's alphabet, sorted.
func plantFaults(plant *automaton.Automaton) []string {
	var out []string
	for _, e := range plant.Alphabet() {
		if e.IsFault() && !slices.Contains(out, e.Fault()) {
			out = append(out, e.Fault())
		}
	}
	slices.Sort(out)
	return out
}

func buildTwin(g *explore.Guard, plant *automaton.Automaton, fault string) (*twin, error) {
	tw := &twin{}
	index := make(map[twinKey]int)
	visit := func(k twinKey, from int, e *automaton.Event) int {
		if i, ok := index[k]; ok {
			return i
		}
		i := len(tw.nodes)
		index[k] = i
		tw.nodes = append(tw.nodes, k)
		tw.edges = append(tw.edges, nil)
		tw.parent = append(tw.parent, twinEdge{to: from, event: e})
		return i
	}
	for _, a := range plant.Initial() {
		for _, b := range plant.Initial() {
			visit(twinKey{x1: a, x2: b}, -1, nil)
		}
	}

	events := plant.Alphabet()
	for head := 0; head < len(tw.nodes); head++ {
		if err := g.Step(); err != nil {
			return nil, err
		}
		k := tw.nodes[head]
		add := func(n twinKey, e *automaton.Event) {
			to := visit(n, head, e)
			tw.edges[head] = append(tw.edges[head], twinEdge{to: to, event: e})
		}
		for _, e := range events {
			hit := e.Fault() == fault
			if observableEvent(e) {
				for _, t1 := range plant.Successors(k.x1, e) {
					for _, t2 := range plant.Successors(k.x2, e) {
						add(twinKey{x1: t1, x2: t2, f1: k.f1 || hit, f2: k.f2 || hit}, e)
					}
				}
				continue
			}
			for _, t1 := range plant.Successors(k.x1, e) {
				add(twinKey{x1: t1, x2: k.x2, f1: k.f1 || hit, f2: k.f2}, e)
			}
			for _, t2 := range plant.Successors(k.x2, e) {
				add(twinKey{x1: k.x1, x2: t2, f1: k.f1, f2: k.f2 || hit}, e)
			}
		}
	}
	return tw, nil
}

// indeterminateCycle looks for a strongly connected set of ambiguous twin
// states (exactly one copy faulty) joined by an observable edge.
func (tw *twin) indeterminateCycle() (prefix, cycle []string, ok bool) {
	ambiguous := func(i int) bool { return tw.nodes[i].f1 != tw.nodes[i].f2 }
	comp := tarjan(len(tw.nodes), func(i int, yield func(int)) {
		if !ambiguous(i) {
			return
		}
		for _, e := range tw.edges[i] {
			if ambiguous(e.to) {
				yield(e.to)
			}
		}
	})

	for u := range tw.nodes {
		if !ambiguous(u) {
			continue
		}
		for _, e := range tw.edges[u] {
			if !ambiguous(e.to) || comp[e.to] != comp[u] || !observableEvent(e.event) {
				continue
			}
			back := tw.pathWithin(e.to, u, comp)
			cycle = append([]string{e.event.Name()}, back...)
			return tw.observedPrefix(u), cycle, true
		}
	}
	return nil, nil, false
}

// pathWithin returns the observable events of a shortest path from src to dst
// that stays inside the component of dst.
func (tw *twin) pathWithin(src, dst int, comp []int) []string {
	if src == dst {
		return nil
	}
	prev := map[int]twinEdge{src: {to: -1}}
	queue := []int{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range tw.edges[cur] {
			if comp[e.to] != comp[dst] {
				continue
			}
			if _, seen := prev[e.to]; seen {
				continue
			}
			prev[e.to] = twinEdge{to: cur, event: e.event}
			if e.to == dst {
				var rev []string
				for n := dst; prev[n].to >= 0; n = prev[n].to {
					if observableEvent(prev[n].event) {
						rev = append(rev, prev[n].event.Name())
					}
				}
				slices.Reverse(rev)
				return rev
			}
			queue = append(queue, e.to)
		}
	}
	return nil
}

// observedPrefix projects the BFS path to node i onto observable events.
func (tw *twin) observedPrefix(i int) []string {
	var rev []string
	for ; tw.parent[i].to >= 0; i = tw.parent[i].to {
		if observableEvent(tw.parent[i].event) {
			rev = append(rev, tw.parent[i].event.Name())
		}
	}
	slices.Reverse(rev)
	return rev
}

// tarjan labels the strongly connected components of a graph with n nodes.
func tarjan(n int, succ func(int, func(int))) []int {
	index := make([]int, n)
	low := make([]int, n)
	comp := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	counter, ncomp := 0, 0

	var strong func(v int)
	strong = func(v int) {
		index[v], low[v] = counter, counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
		succ(v, func(w int) {
			if index[w] < 0 {
				strong(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		})
		if low[v] == index[v] {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp[w] = ncomp
				if w == v {
					break
				}
			}
			ncomp++
		}
	}
	for v := range n {
		if index[v] < 0 {
			strong(v)
		}
	}
	return comp
}
