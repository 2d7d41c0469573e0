package automaton_test

import (
	"context"
	"testing"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// endsWithAB accepts words over {a,b} whose last two symbols are "ab".
func endsWithAB(t *testing.T) (*automaton.Automaton, *automaton.Registry) {
	t.Helper()
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	b := reg.MustDefine("b")
	n := automaton.New(automaton.NFA, reg)
	q0 := n.AddNamedState("q0", false)
	q1 := n.AddNamedState("q1", false)
	q2 := n.AddNamedState("q2", true)
	require.NoError(t, n.SetInitial(q0))
	require.NoError(t, n.AddTransition(q0, a, q0))
	require.NoError(t, n.AddTransition(q0, b, q0))
	require.NoError(t, n.AddTransition(q0, a, q1))
	require.NoError(t, n.AddTransition(q1, b, q2))
	return n, reg
}

func TestDeterminize_PreservesLanguage(t *testing.T) {
	n, _ := endsWithAB(t)
	d, sets, err := automaton.Determinize(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, automaton.DFA, d.Kind())
	assert.Equal(t, 3, d.NumStates())
	assert.Len(t, sets, d.NumStates())
	assert.Equal(t, automaton.StateSet{0}, sets[0])
	require.NoError(t, d.Validate())

	words := [][]string{
		{}, {"a"}, {"a", "b"}, {"b", "a", "b"}, {"a", "b", "a"}, {"a", "a", "b"}, {"b", "b"},
	}
	for _, w := range words {
		want, err := automaton.Accepts(n, w)
		require.NoError(t, err)
		got, err := automaton.Accepts(d, w)
		require.NoError(t, err)
		assert.Equal(t, want, got, "word %v", w)
	}
}

func TestDeterminize_EpsilonClosure(t *testing.T) {
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	n := automaton.New(automaton.NFA, reg)
	s0 := n.AddState(false)
	s1 := n.AddState(false)
	s2 := n.AddState(true)
	require.NoError(t, n.SetInitial(s0))
	require.NoError(t, n.AddTransition(s0, reg.Epsilon(), s1))
	require.NoError(t, n.AddTransition(s1, a, s2))

	d, sets, err := automaton.Determinize(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, automaton.StateSet{s0, s1}, sets[0])
	assert.False(t, d.HasEvent(reg.Epsilon()))

	ok, err := automaton.Accepts(d, []string{"a"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeterminize_Empty(t *testing.T) {
	n := automaton.New(automaton.NFA, nil)
	n.AddState(true)
	_, _, err := automaton.Determinize(context.Background(), n)
	assert.ErrorIs(t, err, domain.ErrEmptyAutomaton)
}

func TestObserver_Projection(t *testing.T) {
	reg := automaton.NewRegistry()
	u := reg.MustDefine("u", automaton.Unobservable())
	a := reg.MustDefine("a")
	g := automaton.New(automaton.DFA, reg)
	s0 := g.AddState(false)
	s1 := g.AddState(false)
	s2 := g.AddState(true)
	s3 := g.AddState(false)
	require.NoError(t, g.SetInitial(s0))
	require.NoError(t, g.AddTransition(s0, u, s1))
	require.NoError(t, g.AddTransition(s0, a, s3))
	require.NoError(t, g.AddTransition(s1, a, s2))

	obs, sets, err := automaton.Observer(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, obs.NumStates())
	assert.Equal(t, automaton.StateSet{s0, s1}, sets[0])
	assert.Equal(t, automaton.StateSet{s2, s3}, sets[1])
	assert.True(t, obs.IsMarked(1))
	assert.False(t, obs.HasEvent(u))

	// Observing everything turns the observer into a plain determinization.
	all, sets, err := automaton.Observer(context.Background(), g, func(*automaton.Event) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 4, all.NumStates())
	assert.Equal(t, automaton.StateSet{s0}, sets[0])
}
