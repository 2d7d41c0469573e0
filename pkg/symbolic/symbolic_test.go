package symbolic_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/aretw0/desops/internal/testutils"
	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
	"github.com/aretw0/desops/pkg/symbolic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Canonical(t *testing.T) {
	m := symbolic.NewManager(3)
	x, y, z := m.Var(0), m.Var(1), m.Var(2)

	assert.Equal(t, m.And(x, y), m.And(y, x))
	assert.Equal(t, m.Or(m.And(x, y), m.And(x, z)), m.And(x, m.Or(y, z)), "distributivity")
	assert.Equal(t, symbolic.False, m.Xor(x, x))
	assert.Equal(t, symbolic.True, m.Or(x, m.Not(x)))
	assert.Equal(t, m.Not(m.And(x, y)), m.Or(m.Not(x), m.Not(y)), "de Morgan")
	assert.True(t, m.Implies(m.And(x, y), x))
	assert.False(t, m.Implies(x, m.And(x, y)))
}

func TestManager_Quantification(t *testing.T) {
	m := symbolic.NewManager(3)
	x, y := m.Var(0), m.Var(1)

	assert.Equal(t, y, m.Exists(m.And(x, y), []symbolic.Var{0}))
	assert.Equal(t, symbolic.True, m.Exists(m.Xor(x, y), []symbolic.Var{0}))

	renamed := m.Rename(m.And(x, m.Not(y)), map[symbolic.Var]symbolic.Var{0: 2})
	assert.Equal(t, m.And(m.Var(2), m.Not(y)), renamed)
}

func TestManager_Counting(t *testing.T) {
	m := symbolic.NewManager(4)
	f := m.Or(m.Var(0), m.Var(3))
	// 16 assignments, 4 of which have both variables false.
	assert.Equal(t, big.NewInt(12), m.SatCount(f))
	assert.Equal(t, big.NewInt(16), m.SatCount(symbolic.True))
	assert.Equal(t, big.NewInt(0), m.SatCount(symbolic.False))
	assert.Equal(t, 4, m.NodeCount(f))
}

func chain(t *testing.T) *automaton.Automaton {
	t.Helper()
	reg := automaton.NewRegistry()
	a, b := reg.MustDefine("a"), reg.MustDefine("b")
	g := automaton.New(automaton.NFA, reg)
	s0 := g.AddState(false)
	s1 := g.AddState(false)
	s2 := g.AddState(true)
	s3 := g.AddState(false)
	s4 := g.AddState(true)
	require.NoError(t, g.SetInitial(s0))
	require.NoError(t, g.AddTransition(s0, a, s1))
	require.NoError(t, g.AddTransition(s0, a, s3))
	require.NoError(t, g.AddTransition(s1, b, s2))
	require.NoError(t, g.AddTransition(s4, b, s2))
	require.NoError(t, g.AddTransition(s1, reg.Epsilon(), s4))
	return g
}

func TestEncoded_MatchesExplicitQueries(t *testing.T) {
	g := chain(t)
	enc, err := symbolic.Encode(g)
	require.NoError(t, err)

	for _, s := range g.States() {
		assert.Equal(t, g.IsMarked(s), enc.IsMarked(s), "state %d", s)
		for _, e := range g.Alphabet() {
			assert.Equal(t, g.Successors(s, e), nilIfEmpty(enc.Successors(s, e)), "state %d event %s", s, e)
		}
	}

	reach, err := enc.Reachable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, g.ReachableSet(), reach)

	co, err := enc.CoReachable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, g.CoReachableSet(), co)

	set := enc.Set(automaton.StateSet{0, 2})
	assert.Equal(t, automaton.StateSet{0, 2}, enc.States(set))
	assert.True(t, enc.Subset(enc.Set(automaton.StateSet{2}), set))
	assert.True(t, enc.Equal(set, enc.Set(automaton.StateSet{2, 0})))
}

func nilIfEmpty(s []automaton.StateID) []automaton.StateID {
	if len(s) == 0 {
		return []automaton.StateID{}
	}
	return s
}

func TestEncoded_TrimAgreesWithExplicit(t *testing.T) {
	gen := testutils.NewGenerator(7)
	for i := range 25 {
		g := gen.Automaton(testutils.Shape{States: 12, Events: 3, Density: 0.25, MarkedRatio: 0.2, Kind: automaton.NFA})
		enc, err := symbolic.Encode(g)
		require.NoError(t, err)

		_, m, err := g.Trim(context.Background())
		require.NoError(t, err)
		var want []automaton.StateID
		for _, old := range m {
			want = append(want, old)
		}

		got, err := enc.Trim(context.Background())
		require.NoError(t, err)
		assert.ElementsMatch(t, want, []automaton.StateID(got), "sample %d", i)
	}
}

func TestEncoded_Budget(t *testing.T) {
	g := chain(t)
	enc, err := symbolic.Encode(g)
	require.NoError(t, err)
	_, err = enc.Reachable(context.Background(), explore.WithMaxStates(1))
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
}

func TestEncode_Empty(t *testing.T) {
	_, err := symbolic.Encode(automaton.New(automaton.DFA, nil))
	assert.ErrorIs(t, err, domain.ErrEmptyAutomaton)
}

func TestManager_Grow(t *testing.T) {
	m := symbolic.NewManager(2)
	f := m.And(m.Var(0), m.Var(1))
	assert.Equal(t, big.NewInt(1), m.SatCount(f))

	v := m.Grow(2)
	assert.Equal(t, symbolic.Var(2), v)
	assert.Equal(t, 4, m.NumVars())
	assert.Equal(t, big.NewInt(4), m.SatCount(f), "old functions ignore the new variables")
	assert.Equal(t, big.NewInt(2), m.SatCount(m.And(f, m.Var(v))))
	assert.Equal(t, m.Var(v), m.Exists(m.And(f, m.Var(v)), []symbolic.Var{0, 1}))
}

func TestBuilder_MatchesEncode(t *testing.T) {
	g := chain(t)
	want, err := symbolic.Encode(g)
	require.NoError(t, err)

	b, err := symbolic.NewBuilder(g.NumStates())
	require.NoError(t, err)
	for _, s := range g.States() {
		_, err := b.Declare(g.StateName(s), g.IsMarked(s), g.IsInitial(s))
		require.NoError(t, err)
	}
	for _, tr := range g.Transitions() {
		from, err := b.State(g.StateName(tr.From))
		require.NoError(t, err)
		to, err := b.State(g.StateName(tr.To))
		require.NoError(t, err)
		b.Transition(from, tr.Event.Name(), to)
	}
	got, err := b.Encoded(g.Registry())
	require.NoError(t, err)

	// States are declared in ID order, so both views number them alike.
	for _, s := range g.States() {
		assert.Equal(t, g.StateName(s), got.StateName(s))
		for _, e := range g.Alphabet() {
			assert.Equal(t, want.Successors(s, e), got.Successors(s, e), "state %d event %s", s, e)
		}
	}
	wr, err := want.Trim(context.Background())
	require.NoError(t, err)
	gr, err := got.Trim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wr, gr)
	assert.Equal(t, 5, got.NumStates())
	assert.False(t, got.Contains(got.Live, 7), "ids past the live set are not members")
}

func TestBuilder_Errors(t *testing.T) {
	_, err := symbolic.NewBuilder(0)
	assert.ErrorIs(t, err, domain.ErrEmptyAutomaton)

	b, err := symbolic.NewBuilder(2)
	require.NoError(t, err)
	p, err := b.Declare("p", false, true)
	require.NoError(t, err)
	q, err := b.State("q")
	require.NoError(t, err)
	b.Transition(p, "a", q)

	_, err = b.Encoded(automaton.NewRegistry())
	assert.ErrorIs(t, err, domain.ErrUnknownState, "q is mentioned but never declared")

	_, err = b.State("r")
	assert.ErrorIs(t, err, domain.ErrUnknownState)

	_, err = b.Declare("q", true, false)
	require.NoError(t, err)
	_, err = b.Encoded(automaton.NewRegistry())
	assert.ErrorIs(t, err, domain.ErrUnknownEvent, "a is not defined in the registry")
}
