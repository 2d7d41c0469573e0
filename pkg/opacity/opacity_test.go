package opacity_test

import (
	"context"
	"testing"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
	"github.com/aretw0/desops/pkg/opacity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func observing(t *testing.T, reg *automaton.Registry, names ...string) func(*automaton.Event) bool {
	t.Helper()
	pred, err := opacity.ObservableSet(reg, names...)
	require.NoError(t, err)
	return pred
}

func TestObservableSet_UnknownEvent(t *testing.T) {
	reg := automaton.NewRegistry()
	reg.MustDefine("a")
	_, err := opacity.ObservableSet(reg, "a", "ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)
	assert.ErrorContains(t, err, "ghost")
}

func TestCurrentState_ObservedSecret(t *testing.T) {
	reg := automaton.NewRegistry()
	obsA := reg.MustDefine("obs_a")
	g := automaton.New(automaton.DFA, reg)
	s0 := g.AddNamedState("s0", false)
	s1 := g.AddNamedState("s1", false)
	require.NoError(t, g.SetInitial(s0))
	require.NoError(t, g.AddTransition(s0, obsA, s1))

	v, err := opacity.CurrentState(context.Background(), g, automaton.StateSet{s1}, observing(t, reg, "obs_a"))
	require.NoError(t, err)
	assert.False(t, v.Opaque)
	assert.Equal(t, []string{"obs_a"}, v.Witness)
	assert.Equal(t, automaton.StateSet{s1}, v.Estimate)
}

func TestCurrentState_HiddenBySilentMove(t *testing.T) {
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	u := reg.MustDefine("u", automaton.Unobservable())
	g := automaton.New(automaton.DFA, reg)
	s0 := g.AddState(false)
	s1 := g.AddState(false)
	secret := g.AddState(false)
	plain := g.AddState(false)
	require.NoError(t, g.SetInitial(s0))
	require.NoError(t, g.AddTransition(s0, u, s1))
	require.NoError(t, g.AddTransition(s0, a, secret))
	require.NoError(t, g.AddTransition(s1, a, plain))

	v, err := opacity.CurrentState(context.Background(), g, automaton.StateSet{secret}, nil)
	require.NoError(t, err)
	assert.True(t, v.Opaque, "after a the observer cannot tell secret from plain")
	assert.Empty(t, v.Witness)
	assert.Equal(t, 2, v.ObserverStates)

	// Making u observable exposes the secret.
	v, err = opacity.CurrentState(context.Background(), g, automaton.StateSet{secret}, observing(t, reg, "a", "u"))
	require.NoError(t, err)
	assert.False(t, v.Opaque)
	assert.Equal(t, []string{"a"}, v.Witness)
}

func TestCurrentState_VacuousWithoutObservations(t *testing.T) {
	reg := automaton.NewRegistry()
	u := reg.MustDefine("u", automaton.Unobservable())
	v := reg.MustDefine("v", automaton.Unobservable())
	g := automaton.New(automaton.DFA, reg)
	s0 := g.AddState(false)
	s1 := g.AddState(true)
	s2 := g.AddState(false)
	require.NoError(t, g.SetInitial(s0))
	require.NoError(t, g.AddTransition(s0, u, s1))
	require.NoError(t, g.AddTransition(s1, v, s2))

	verdict, err := opacity.CurrentState(context.Background(), g, automaton.StateSet{s1}, nil)
	require.NoError(t, err)
	assert.True(t, verdict.Opaque)
}

func TestCurrentState_InitialEstimateAllSecret(t *testing.T) {
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	g := automaton.New(automaton.DFA, reg)
	s0 := g.AddState(false)
	s1 := g.AddState(false)
	require.NoError(t, g.SetInitial(s0))
	require.NoError(t, g.AddTransition(s0, a, s1))

	v, err := opacity.CurrentState(context.Background(), g, automaton.StateSet{s0}, nil)
	require.NoError(t, err)
	assert.False(t, v.Opaque)
	assert.Empty(t, v.Witness)
}

func TestCurrentState_Budget(t *testing.T) {
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	g := automaton.New(automaton.DFA, reg)
	prev := g.AddState(false)
	require.NoError(t, g.SetInitial(prev))
	for range 20 {
		next := g.AddState(false)
		require.NoError(t, g.AddTransition(prev, a, next))
		prev = next
	}
	_, err := opacity.CurrentState(context.Background(), g, automaton.StateSet{prev}, nil, explore.WithMaxStates(5))
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
}

func TestLanguage_SecretBehavior(t *testing.T) {
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	b := reg.MustDefine("b")
	h := reg.MustDefine("h", automaton.Unobservable())

	// Plant: s0 -h-> s1 -a-> s2, s0 -a-> s3 -b-> s4.
	g := automaton.New(automaton.DFA, reg)
	s0, s1, s2, s3, s4 := g.AddState(false), g.AddState(false), g.AddState(false), g.AddState(false), g.AddState(false)
	require.NoError(t, g.SetInitial(s0))
	require.NoError(t, g.AddTransition(s0, h, s1))
	require.NoError(t, g.AddTransition(s1, a, s2))
	require.NoError(t, g.AddTransition(s0, a, s3))
	require.NoError(t, g.AddTransition(s3, b, s4))

	// Secret: any behavior that contains h.
	spec := automaton.New(automaton.DFA, reg)
	clean := spec.AddState(false)
	dirty := spec.AddState(true)
	require.NoError(t, spec.SetInitial(clean))
	require.NoError(t, spec.AddTransition(clean, h, dirty))
	require.NoError(t, spec.AddTransition(clean, a, clean))
	require.NoError(t, spec.AddTransition(clean, b, clean))
	require.NoError(t, spec.AddTransition(dirty, a, dirty))
	require.NoError(t, spec.AddTransition(dirty, b, dirty))

	v, prod, err := opacity.Language(context.Background(), g, spec, nil)
	require.NoError(t, err)
	assert.True(t, v.Opaque, "observing a alone never reveals h")
	assert.NotNil(t, prod)

	// Observing h reveals it immediately.
	v, _, err = opacity.Language(context.Background(), g, spec, observing(t, reg, "a", "b", "h"))
	require.NoError(t, err)
	assert.False(t, v.Opaque)
	assert.Equal(t, []string{"h"}, v.Witness)
}
