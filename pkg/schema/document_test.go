package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func no() *bool { b := false; return &b }

func TestBuild(t *testing.T) {
	doc := schema.Document{
		Kind: "dfa",
		Events: []schema.EventSpec{
			{Name: "a"},
			{Name: "f", Controllable: no(), Observable: no(), Fault: "F1"},
		},
		States: []schema.StateSpec{
			{Name: "s0", Initial: true},
			{Name: "s1", Marked: true},
		},
		Transitions: []schema.TransitionSpec{
			{From: "s0", Event: "a", To: "s1"},
			{From: "s1", Event: "f", To: "s0"},
		},
	}

	reg := automaton.NewRegistry()
	a, err := doc.Build(reg)
	require.NoError(t, err)
	require.NoError(t, a.Validate())

	assert.Equal(t, automaton.DFA, a.Kind())
	assert.Equal(t, 2, a.NumStates())
	assert.Equal(t, 2, a.NumTransitions())

	f, err := reg.Lookup("f")
	require.NoError(t, err)
	assert.False(t, f.Controllable())
	assert.False(t, f.Observable())
	assert.Equal(t, "F1", f.Fault())

	s1, ok := a.FindState("s1")
	require.True(t, ok)
	assert.True(t, a.IsMarked(s1))
	assert.Equal(t, automaton.StateSet{0}, a.Initial())
}

func TestBuild_CollectsErrors(t *testing.T) {
	doc := schema.Document{
		Kind:   "dfa",
		Events: []schema.EventSpec{{Name: "a"}, {Name: "a"}},
		States: []schema.StateSpec{{Name: "s0", Initial: true}, {Name: "s1"}},
		Transitions: []schema.TransitionSpec{
			{From: "s0", Event: "a", To: "s1"},
			{From: "s0", Event: "a", To: "s0"},
			{From: "s0", Event: "b", To: "s9"},
		},
	}

	_, err := doc.Build(nil)
	require.Error(t, err)
	errs := schema.ValidationErrors(err)
	assert.Len(t, errs, 4)
	assert.ErrorIs(t, err, domain.ErrEventConflict)
	assert.ErrorIs(t, err, domain.ErrDeterminismViolation)
	assert.ErrorIs(t, err, domain.ErrUnknownState)
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)
	assert.Contains(t, err.Error(), "transitions[2].to")
}

func TestBuild_Kinds(t *testing.T) {
	t.Run("Unknown kind", func(t *testing.T) {
		_, err := (&schema.Document{Kind: "mealy"}).Build(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kind")
	})

	t.Run("Epsilon needs an NFA", func(t *testing.T) {
		doc := schema.Document{
			Kind:        "dfa",
			States:      []schema.StateSpec{{Name: "s0", Initial: true}},
			Transitions: []schema.TransitionSpec{{From: "s0", Event: "eps", To: "s0"}},
		}
		_, err := doc.Build(nil)
		assert.ErrorIs(t, err, domain.ErrNotDeterministic)

		doc.Kind = "nfa"
		a, err := doc.Build(nil)
		require.NoError(t, err)
		assert.True(t, a.HasEvent(a.Registry().Epsilon()))
	})

	t.Run("Several initial states", func(t *testing.T) {
		doc := schema.Document{
			Kind:   "dfa",
			States: []schema.StateSpec{{Name: "p", Initial: true}, {Name: "q", Initial: true}},
		}
		_, err := doc.Build(nil)
		assert.ErrorIs(t, err, domain.ErrNotDeterministic)

		doc.Kind = "nfa"
		a, err := doc.Build(nil)
		require.NoError(t, err)
		assert.Len(t, a.Initial(), 2)
	})

	t.Run("PFA probabilities", func(t *testing.T) {
		doc := schema.Document{
			Kind:   "pfa",
			Events: []schema.EventSpec{{Name: "a"}},
			States: []schema.StateSpec{{Name: "p", Initial: true}, {Name: "q"}},
			Transitions: []schema.TransitionSpec{
				{From: "p", Event: "a", To: "p", Prob: 0.25},
				{From: "p", Event: "a", To: "q", Prob: 0.75},
			},
		}
		a, err := doc.Build(nil)
		require.NoError(t, err)
		require.NoError(t, a.Validate())

		doc.Transitions[1].Prob = 0.9
		_, err = doc.Build(nil)
		assert.ErrorIs(t, err, domain.ErrProbabilityInvariant)
	})
}

func TestFromAutomaton_RoundTrip(t *testing.T) {
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	u := reg.MustDefine("u", automaton.Uncontrollable(), automaton.Unobservable(), automaton.WithFault("F2"))
	g := automaton.New(automaton.PFA, reg)
	s0 := g.AddNamedState("idle", false)
	s1 := g.AddState(true)
	s2 := g.AddNamedState("idle", false)
	require.NoError(t, g.SetInitial(s0))
	require.NoError(t, g.AddProbTransition(s0, a, s1, 0.5))
	require.NoError(t, g.AddProbTransition(s0, a, s2, 0.5))
	require.NoError(t, g.AddTransition(s1, u, s0))

	doc := schema.FromAutomaton(g)
	assert.Equal(t, "pfa", doc.Kind)
	assert.Equal(t, []string{"idle", "1", "idle#2"}, []string{doc.States[0].Name, doc.States[1].Name, doc.States[2].Name})

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var decoded schema.Document
	require.NoError(t, json.Unmarshal(raw, &decoded))

	back, err := decoded.Build(automaton.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, back.Validate())
	assert.Equal(t, g.NumStates(), back.NumStates())
	assert.Equal(t, g.Marked(), back.Marked())
	assert.Equal(t, g.Initial(), back.Initial())

	want := make([][3]any, 0)
	for _, tr := range g.Transitions() {
		want = append(want, [3]any{tr.From, tr.Event.Name(), tr.Prob})
	}
	got := make([][3]any, 0)
	for _, tr := range back.Transitions() {
		got = append(got, [3]any{tr.From, tr.Event.Name(), tr.Prob})
	}
	assert.Equal(t, want, got)

	fu, err := back.Registry().Lookup("u")
	require.NoError(t, err)
	assert.Equal(t, "F2", fu.Fault())
	assert.False(t, fu.Controllable())
}

func TestValidate(t *testing.T) {
	doc := schema.Document{Kind: "dfa", States: []schema.StateSpec{{Name: "s0"}}}
	assert.NoError(t, doc.Validate(), "a missing initial state is not a structural error")

	doc.States = append(doc.States, schema.StateSpec{Name: "s0"})
	assert.Error(t, doc.Validate())
}

func TestBuild_RejectedDocumentLeavesRegistryUntouched(t *testing.T) {
	reg := automaton.NewRegistry()

	broken := schema.Document{
		Kind:        "dfa",
		Events:      []schema.EventSpec{{Name: "a", Controllable: no()}},
		States:      []schema.StateSpec{{Name: "s0", Initial: true}},
		Transitions: []schema.TransitionSpec{{From: "s0", Event: "a", To: "nowhere"}},
	}
	_, err := broken.Build(reg)
	require.ErrorIs(t, err, domain.ErrUnknownState)

	_, err = reg.Lookup("a")
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)

	valid := schema.Document{
		Kind:        "dfa",
		Events:      []schema.EventSpec{{Name: "a"}},
		States:      []schema.StateSpec{{Name: "s0", Initial: true}},
		Transitions: []schema.TransitionSpec{{From: "s0", Event: "a", To: "s0"}},
	}
	_, err = valid.Build(reg)
	require.NoError(t, err)
}

func TestBuild_ConflictWithRegistry(t *testing.T) {
	reg := automaton.NewRegistry()
	reg.MustDefine("a", automaton.Uncontrollable())

	doc := schema.Document{
		Kind:   "dfa",
		Events: []schema.EventSpec{{Name: "b"}, {Name: "a"}},
		States: []schema.StateSpec{{Name: "s0", Initial: true}},
	}
	_, err := doc.Build(reg)
	require.ErrorIs(t, err, domain.ErrEventConflict)
	assert.Contains(t, err.Error(), "events[1]")

	_, err = reg.Lookup("b")
	assert.ErrorIs(t, err, domain.ErrUnknownEvent, "b must not be defined by a rejected document")
}
