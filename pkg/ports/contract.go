package ports

import (
	"bytes"
	"context"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ContractAutomaton builds the machine used by the contract suites:
// a two-state DFA with an uncontrollable and an unobservable event.
func ContractAutomaton() *automaton.Automaton {
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	b := reg.MustDefine("b", automaton.Uncontrollable())
	c := reg.MustDefine("c", automaton.Unobservable())
	g := automaton.New(automaton.DFA, reg)
	s0 := g.AddNamedState("idle", false)
	s1 := g.AddNamedState("busy", true)
	_ = g.SetInitial(s0)
	_ = g.AddTransition(s0, a, s1)
	_ = g.AddTransition(s1, b, s0)
	_ = g.AddTransition(s1, c, s1)
	return g
}

// AssertSameAutomaton checks that got describes the same machine as want,
// comparing states by name so adapters are free to renumber them.
func AssertSameAutomaton(t *testing.T, want, got *automaton.Automaton) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.Kind(), got.Kind(), "kind")
	assert.Equal(t, want.NumStates(), got.NumStates(), "state count")
	assert.Equal(t, stateNames(want, want.Initial()), stateNames(got, got.Initial()), "initial states")
	assert.Equal(t, stateNames(want, want.Marked()), stateNames(got, got.Marked()), "marked states")
	assert.Equal(t, eventTraits(want), eventTraits(got), "alphabet")
	assert.Equal(t, transitionLines(want), transitionLines(got), "transitions")
}

func stateNames(a *automaton.Automaton, set automaton.StateSet) []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		out = append(out, a.StateName(s))
	}
	slices.Sort(out)
	return out
}

func eventTraits(a *automaton.Automaton) []string {
	var out []string
	for _, e := range a.Alphabet() {
		out = append(out, e.GoString())
	}
	return out
}

func transitionLines(a *automaton.Automaton) []string {
	var out []string
	for _, t := range a.Transitions() {
		line := a.StateName(t.From) + " " + t.Event.Name() + " " + a.StateName(t.To)
		if a.Kind() == automaton.PFA {
			line += " " + strconv.FormatFloat(t.Prob, 'g', 9, 64)
		}
		out = append(out, line)
	}
	slices.Sort(out)
	return out
}

// RunCodecContract verifies that a codec round-trips every sample and rejects
// empty input.
func RunCodecContract(t *testing.T, codec Codec, samples map[string]*automaton.Automaton) {
	ctx := context.Background()

	for name, sample := range samples {
		t.Run("Round trip "+name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, codec.Save(ctx, &buf, sample), "Save should not return error")

			loaded, err := codec.Load(ctx, bytes.NewReader(buf.Bytes()), automaton.NewRegistry())
			require.NoError(t, err, "Load should accept what Save wrote:\n%s", buf.String())
			AssertSameAutomaton(t, sample, loaded)

			var again bytes.Buffer
			require.NoError(t, codec.Save(ctx, &again, loaded))
			assert.Equal(t, buf.String(), again.String(), "serialization should be stable")
		})
	}

	t.Run("Empty input", func(t *testing.T) {
		_, err := codec.Load(ctx, strings.NewReader(""), automaton.NewRegistry())
		assert.Error(t, err)
	})
}

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	id := "contract-test-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		want := ContractAutomaton()
		require.NoError(t, store.Save(ctx, id, want), "Save should not return error")

		loaded, err := store.Load(ctx, id, automaton.NewRegistry())
		require.NoError(t, err, "Load should not return error")
		AssertSameAutomaton(t, want, loaded)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id, automaton.NewRegistry())
		assert.ErrorIs(t, err, domain.ErrAutomatonNotFound)
	})

	t.Run("Load into conflicting registry", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, id, ContractAutomaton()))

		reg := automaton.NewRegistry()
		reg.MustDefine("a", automaton.Uncontrollable())
		_, err := store.Load(ctx, id, reg)
		assert.ErrorIs(t, err, domain.ErrEventConflict)
	})

	t.Run("Overwrite", func(t *testing.T) {
		first := ContractAutomaton()
		require.NoError(t, store.Save(ctx, id, first))

		second := first.Clone()
		second.AddNamedState("extra", true)
		require.NoError(t, store.Save(ctx, id, second))

		loaded, err := store.Load(ctx, id, automaton.NewRegistry())
		require.NoError(t, err)
		assert.Equal(t, 3, loaded.NumStates())
	})

	t.Run("Stored copy is isolated", func(t *testing.T) {
		a := ContractAutomaton()
		require.NoError(t, store.Save(ctx, id, a))
		a.AddNamedState("late", false)

		loaded, err := store.Load(ctx, id, automaton.NewRegistry())
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.NumStates(), "mutating after Save must not leak into the store")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, id, ContractAutomaton()))

		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id, automaton.NewRegistry())
		assert.ErrorIs(t, err, domain.ErrAutomatonNotFound, "Load after Delete should return ErrAutomatonNotFound")

		assert.NoError(t, store.Delete(ctx, id), "deleting twice is fine")
	})

	t.Run("List", func(t *testing.T) {
		id1 := id + "-1"
		id2 := id + "-2"
		_ = store.Save(ctx, id2, ContractAutomaton())
		_ = store.Save(ctx, id1, ContractAutomaton())

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
		assert.True(t, slices.IsSorted(ids), "List should be sorted")
	})
}
