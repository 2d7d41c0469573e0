package supervisor_test

import (
	"context"
	"testing"

	"github.com/aretw0/desops/internal/testutils"
	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/compose"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
	"github.com/aretw0/desops/pkg/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize_UncontrollableEventCannotBeDisabled(t *testing.T) {
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	u := reg.MustDefine("u", automaton.Uncontrollable())

	plant := automaton.New(automaton.DFA, reg)
	s0 := plant.AddNamedState("s0", true)
	s1 := plant.AddNamedState("s1", false)
	require.NoError(t, plant.SetInitial(s0))
	require.NoError(t, plant.AddTransition(s0, a, s0))
	require.NoError(t, plant.AddTransition(s0, u, s1))

	spec := automaton.New(automaton.DFA, reg)
	e0 := spec.AddState(true)
	require.NoError(t, spec.SetInitial(e0))
	require.NoError(t, spec.AddEvent(u))
	require.NoError(t, spec.AddTransition(e0, a, e0))

	_, err := supervisor.Synthesize(context.Background(), plant, spec)
	assert.ErrorIs(t, err, domain.ErrNoSupervisorExists)

	ctrl, err := supervisor.IsControllable(context.Background(), plant, spec)
	require.NoError(t, err)
	assert.False(t, ctrl.Controllable)
	assert.Empty(t, ctrl.Trace)
	assert.Equal(t, "u", ctrl.Event)
	assert.Equal(t, "s0", ctrl.PlantState)
}

// machine: idle -start-> busy -finish(u)-> idle, busy -fail(u)-> down -repair-> idle.
func machine(t *testing.T, reg *automaton.Registry) *automaton.Automaton {
	t.Helper()
	start := reg.MustDefine("start")
	finish := reg.MustDefine("finish", automaton.Uncontrollable())
	fail := reg.MustDefine("fail", automaton.Uncontrollable())
	repair := reg.MustDefine("repair")

	g := automaton.New(automaton.DFA, reg)
	idle := g.AddNamedState("idle", true)
	busy := g.AddNamedState("busy", false)
	down := g.AddNamedState("down", false)
	require.NoError(t, g.SetInitial(idle))
	require.NoError(t, g.AddTransition(idle, start, busy))
	require.NoError(t, g.AddTransition(busy, finish, idle))
	require.NoError(t, g.AddTransition(busy, fail, down))
	require.NoError(t, g.AddTransition(down, repair, idle))
	return g
}

func TestSynthesize_RestrictsControllableEvents(t *testing.T) {
	reg := automaton.NewRegistry()
	plant := machine(t, reg)
	start, _ := reg.Lookup("start")
	fail, _ := reg.Lookup("fail")
	repair, _ := reg.Lookup("repair")

	// Specification: at most one failure ever; after it, no restart.
	spec := automaton.New(automaton.DFA, reg)
	ok := spec.AddNamedState("ok", true)
	failed := spec.AddNamedState("failed", true)
	require.NoError(t, spec.SetInitial(ok))
	require.NoError(t, spec.AddTransition(ok, start, ok))
	require.NoError(t, spec.AddTransition(ok, repair, ok))
	require.NoError(t, spec.AddTransition(ok, fail, failed))
	require.NoError(t, spec.AddTransition(failed, repair, failed))

	res, err := supervisor.Synthesize(context.Background(), plant, spec)
	require.NoError(t, err)
	sup := res.Supervisor
	assert.True(t, sup.IsTrim())
	assert.GreaterOrEqual(t, res.Iterations, 1)

	for _, w := range [][]string{{"start", "finish"}, {"start", "fail", "repair"}} {
		in, err := automaton.Accepts(sup, w)
		require.NoError(t, err)
		assert.True(t, in, "word %v", w)
	}
	gen, err := automaton.Generates(sup, []string{"start", "fail", "repair", "start"})
	require.NoError(t, err)
	assert.False(t, gen, "restart after a failure violates the specification")

	ctrl, err := supervisor.IsControllable(context.Background(), plant, sup)
	require.NoError(t, err)
	assert.True(t, ctrl.Controllable)

	for _, s := range sup.States() {
		gs, es, ok := res.Map.Pair(s)
		require.True(t, ok)
		assert.True(t, plant.Has(gs))
		assert.True(t, spec.Has(es))
	}
}

func TestSynthesize_Idempotent(t *testing.T) {
	ctx := context.Background()
	reg := automaton.NewRegistry()
	plant := machine(t, reg)
	start, _ := reg.Lookup("start")
	finish, _ := reg.Lookup("finish")
	fail, _ := reg.Lookup("fail")
	repair, _ := reg.Lookup("repair")

	// Specification: the machine may only be started twice.
	spec := automaton.New(automaton.DFA, reg)
	c0 := spec.AddState(true)
	c1 := spec.AddState(true)
	c2 := spec.AddState(true)
	require.NoError(t, spec.SetInitial(c0))
	for _, s := range []automaton.StateID{c0, c1, c2} {
		require.NoError(t, spec.AddTransition(s, finish, s))
		require.NoError(t, spec.AddTransition(s, fail, s))
		require.NoError(t, spec.AddTransition(s, repair, s))
	}
	require.NoError(t, spec.AddTransition(c0, start, c1))
	require.NoError(t, spec.AddTransition(c1, start, c2))

	first, err := supervisor.Synthesize(ctx, plant, spec)
	require.NoError(t, err)
	second, err := supervisor.Synthesize(ctx, plant, first.Supervisor)
	require.NoError(t, err)

	eq, err := compose.Equivalent(ctx, first.Supervisor, second.Supervisor)
	require.NoError(t, err)
	assert.True(t, eq.Equal, "witness %v", eq.Witness)
	assert.Equal(t, 1, second.Iterations)
}

func TestSynthesize_RejectsNondeterministicInputs(t *testing.T) {
	reg := automaton.NewRegistry()
	plant := machine(t, reg)
	nfa := automaton.New(automaton.NFA, reg)
	require.NoError(t, nfa.SetInitial(nfa.AddState(true)))

	_, err := supervisor.Synthesize(context.Background(), plant, nfa)
	assert.ErrorIs(t, err, domain.ErrNotDeterministic)
}

func TestSynthesize_RandomPlantsAreControllable(t *testing.T) {
	ctx := context.Background()
	gen := testutils.NewGenerator(3)
	shape := testutils.Shape{States: 6, Events: 3, Density: 0.6, MarkedRatio: 0.5, Uncontrollable: 0.4, Kind: automaton.DFA}

	for i := range 20 {
		reg := automaton.NewRegistry()
		plant := gen.AutomatonIn(reg, shape)
		spec := gen.AutomatonIn(automaton.NewRegistry(), shape)
		spec = rebind(t, spec, reg)

		res, err := supervisor.Synthesize(ctx, plant, spec)
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrNoSupervisorExists, "sample %d", i)
			continue
		}
		assert.True(t, res.Supervisor.IsTrim(), "sample %d", i)
		ctrl, err := supervisor.IsControllable(ctx, plant, res.Supervisor)
		require.NoError(t, err)
		assert.True(t, ctrl.Controllable, "sample %d: trace %v event %s", i, ctrl.Trace, ctrl.Event)
	}
}

// rebind copies a into reg, reusing the events of reg by name.
func rebind(t *testing.T, a *automaton.Automaton, reg *automaton.Registry) *automaton.Automaton {
	t.Helper()
	out := automaton.New(a.Kind(), reg)
	ids := make(map[automaton.StateID]automaton.StateID)
	for _, s := range a.States() {
		ids[s] = out.AddState(a.IsMarked(s))
	}
	for _, s := range a.Initial() {
		require.NoError(t, out.SetInitial(ids[s]))
	}
	for _, tr := range a.Transitions() {
		e, err := reg.Lookup(tr.Event.Name())
		require.NoError(t, err)
		require.NoError(t, out.AddTransition(ids[tr.From], e, ids[tr.To]))
	}
	return out
}

func TestSynthesize_BudgetCoversTheWholeCall(t *testing.T) {
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	plant := automaton.New(automaton.DFA, reg)
	prev := plant.AddState(false)
	require.NoError(t, plant.SetInitial(prev))
	for i := 1; i < 10; i++ {
		next := plant.AddState(i == 9)
		require.NoError(t, plant.AddTransition(prev, a, next))
		prev = next
	}
	spec := automaton.New(automaton.DFA, reg)
	q := spec.AddState(true)
	require.NoError(t, spec.SetInitial(q))
	require.NoError(t, spec.AddTransition(q, a, q))

	var expanded int
	hooks := explore.WithHooks(domain.LifecycleHooks{
		OnExpand: func(context.Context, *domain.ExpandEvent) { expanded++ },
	})

	// The composition alone has 10 states; trimming and checking need more.
	_, err := supervisor.Synthesize(context.Background(), plant, spec, explore.WithMaxStates(10), hooks)
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
	assert.LessOrEqual(t, expanded, 10)

	expanded = 0
	res, err := supervisor.Synthesize(context.Background(), plant, spec, explore.WithMaxStates(1000), hooks)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Supervisor.NumStates())
	assert.Greater(t, expanded, 10)
	assert.LessOrEqual(t, expanded, 1000)
}

// hidden: a and b are unobservable and both lead to a state where c is
// possible; the specification forbids c only after a.
func hidden(t *testing.T) (plant, spec *automaton.Automaton, c *automaton.Event) {
	t.Helper()
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a", automaton.Unobservable())
	b := reg.MustDefine("b", automaton.Unobservable())
	c = reg.MustDefine("c")

	plant = automaton.New(automaton.DFA, reg)
	p0, p1, p2, p3, p4 := plant.AddState(true), plant.AddState(true), plant.AddState(true), plant.AddState(true), plant.AddState(true)
	require.NoError(t, plant.SetInitial(p0))
	require.NoError(t, plant.AddTransition(p0, a, p1))
	require.NoError(t, plant.AddTransition(p0, b, p2))
	require.NoError(t, plant.AddTransition(p1, c, p3))
	require.NoError(t, plant.AddTransition(p2, c, p4))

	spec = automaton.New(automaton.DFA, reg)
	e0, e1, e2, e3 := spec.AddState(true), spec.AddState(true), spec.AddState(true), spec.AddState(true)
	require.NoError(t, spec.SetInitial(e0))
	require.NoError(t, spec.AddTransition(e0, a, e1))
	require.NoError(t, spec.AddTransition(e0, b, e2))
	require.NoError(t, spec.AddTransition(e2, c, e3))
	return plant, spec, c
}

func enables(a *automaton.Automaton, e *automaton.Event) bool {
	for _, s := range a.States() {
		if a.Defined(s, e) {
			return true
		}
	}
	return false
}

func TestSynthesizeObserved_UnobservableEventForcesRestriction(t *testing.T) {
	ctx := context.Background()
	plant, spec, c := hidden(t)

	full, err := supervisor.Synthesize(ctx, plant, spec)
	require.NoError(t, err)
	assert.Equal(t, 4, full.Supervisor.NumStates())
	assert.True(t, enables(full.Supervisor, c), "b then c is allowed when b is seen")

	res, err := supervisor.SynthesizeObserved(ctx, plant, spec, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Supervisor.NumStates())
	assert.False(t, enables(res.Supervisor, c), "c cannot be told apart from the forbidden a c")
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 2, res.Iterations)
	assert.True(t, res.Supervisor.IsTrim())

	for _, s := range res.Supervisor.States() {
		gs, _, ok := res.Map.Pair(s)
		require.True(t, ok)
		assert.True(t, plant.Has(gs))
	}

	seen, err := supervisor.SynthesizeObserved(ctx, plant, spec, func(*automaton.Event) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, full.Supervisor.NumStates(), seen.Supervisor.NumStates())
	assert.True(t, enables(seen.Supervisor, c))
}

func TestSynthesizeObserved_NormalityCannotDisableUnobservableEvents(t *testing.T) {
	ctx := context.Background()
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a", automaton.Unobservable())
	u := reg.MustDefine("u", automaton.Uncontrollable())

	plant := automaton.New(automaton.DFA, reg)
	g0, g1, g2, g3 := plant.AddState(true), plant.AddState(true), plant.AddState(true), plant.AddState(true)
	require.NoError(t, plant.SetInitial(g0))
	require.NoError(t, plant.AddTransition(g0, a, g1))
	require.NoError(t, plant.AddTransition(g1, u, g2))
	require.NoError(t, plant.AddTransition(g0, u, g3))

	spec := automaton.New(automaton.DFA, reg)
	e0, e1, e2 := spec.AddState(true), spec.AddState(true), spec.AddState(true)
	require.NoError(t, spec.SetInitial(e0))
	require.NoError(t, spec.AddTransition(e0, a, e1))
	require.NoError(t, spec.AddTransition(e0, u, e2))

	// Under full observation disabling a is enough.
	res, err := supervisor.Synthesize(ctx, plant, spec)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Supervisor.NumStates())

	_, err = supervisor.SynthesizeObserved(ctx, plant, spec, nil)
	assert.ErrorIs(t, err, domain.ErrNoSupervisorExists)
}

func TestSynthesizeObserved_Budget(t *testing.T) {
	plant, spec, _ := hidden(t)
	_, err := supervisor.SynthesizeObserved(context.Background(), plant, spec, nil, explore.WithMaxStates(6))
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
}
