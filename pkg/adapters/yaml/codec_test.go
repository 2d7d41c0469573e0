package yaml_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/desops/pkg/adapters/yaml"
	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const faulty = `
kind: dfa
events:
  - {name: a}
  - {name: f, controllable: false, observable: false, fault: F1}
states:
  - {name: s0, initial: true}
  - {name: s1, marked: true}
transitions:
  - {from: s0, event: f, to: s1}
  - {from: s1, event: a, to: s1}
`

func TestLoad(t *testing.T) {
	reg := automaton.NewRegistry()
	a, err := yaml.New().Load(context.Background(), strings.NewReader(faulty), reg)
	require.NoError(t, err)
	assert.Equal(t, 2, a.NumStates())
	assert.Equal(t, []string{"F1"}, reg.Faults())

	f, err := reg.Lookup("f")
	require.NoError(t, err)
	assert.False(t, f.Controllable())
	assert.False(t, f.Observable())

	ev, err := reg.Lookup("a")
	require.NoError(t, err)
	assert.True(t, ev.Controllable(), "flags default to true")
}

func TestLoad_IntegerProbability(t *testing.T) {
	src := `
kind: pfa
events: [{name: a}]
states: [{name: p, initial: true}]
transitions: [{from: p, event: a, to: p, prob: 1}]
`
	a, err := yaml.New().Load(context.Background(), strings.NewReader(src), nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, a.Probability(0, mustLookup(t, a, "a"), 0), 1e-12)
}

func TestLoad_JSON(t *testing.T) {
	src := `{"kind": "nfa", "states": [{"name": "p", "initial": true}, {"name": "q", "initial": true}]}`
	a, err := yaml.New().Load(context.Background(), strings.NewReader(src), nil)
	require.NoError(t, err)
	assert.Equal(t, automaton.NFA, a.Kind())
	assert.Len(t, a.Initial(), 2)
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := yaml.New().Load(ctx, strings.NewReader("   \n"), nil)
	assert.ErrorIs(t, err, yaml.ErrEmptyDocument)

	_, err = yaml.New().Load(ctx, strings.NewReader("kind: [unclosed"), nil)
	assert.Error(t, err)

	typo := "kind: dfa\nstates: [{name: s0, initial: true}]\ntransitons: []\n"
	_, err = yaml.New().Load(ctx, strings.NewReader(typo), nil)
	assert.Error(t, err, "strict mode rejects unknown keys")

	_, err = yaml.New(yaml.WithStrict(false)).Load(ctx, strings.NewReader(typo), nil)
	assert.NoError(t, err)

	noInit := "kind: dfa\nstates: [{name: s0}]\n"
	_, err = yaml.New().Load(ctx, strings.NewReader(noInit), nil)
	assert.ErrorIs(t, err, domain.ErrEmptyAutomaton)

	badProb := `
kind: pfa
events: [{name: a}]
states: [{name: p, initial: true}, {name: q}]
transitions: [{from: p, event: a, to: q, prob: 0.5}]
`
	_, err = yaml.New().Load(ctx, strings.NewReader(badProb), nil)
	assert.ErrorIs(t, err, domain.ErrProbabilityInvariant)
}

func TestSave(t *testing.T) {
	a, err := yaml.New().Load(context.Background(), strings.NewReader(faulty), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, yaml.New().Save(context.Background(), &buf, a))
	out := buf.String()
	assert.Contains(t, out, "kind: dfa")
	assert.Contains(t, out, "fault: F1")
	assert.Contains(t, out, "controllable: false")
	assert.NotContains(t, out, "prob:", "deterministic automata carry no probabilities")
}

func TestCodecContract(t *testing.T) {
	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	f := reg.MustDefine("f", automaton.Unobservable(), automaton.Uncontrollable(), automaton.WithFault("F1"))
	idle := reg.MustDefine("idle")

	pfa := automaton.New(automaton.PFA, reg)
	p, q := pfa.AddNamedState("p", false), pfa.AddNamedState("q", true)
	require.NoError(t, pfa.SetInitial(p))
	require.NoError(t, pfa.AddProbTransition(p, a, p, 0.3))
	require.NoError(t, pfa.AddProbTransition(p, a, q, 0.7))
	require.NoError(t, pfa.AddTransition(q, f, p))
	require.NoError(t, pfa.AddEvent(idle))

	nfa := automaton.New(automaton.NFA, reg)
	n0, n1 := nfa.AddState(false), nfa.AddState(true)
	require.NoError(t, nfa.SetInitial(n0))
	require.NoError(t, nfa.SetInitial(n1))
	require.NoError(t, nfa.AddTransition(n0, reg.Epsilon(), n1))
	require.NoError(t, nfa.AddTransition(n1, a, n0))

	ports.RunCodecContract(t, yaml.New(), map[string]*automaton.Automaton{
		"contract machine": ports.ContractAutomaton(),
		"pfa with faults":  pfa,
		"nfa":              nfa,
	})
}

func mustLookup(t *testing.T, a *automaton.Automaton, name string) *automaton.Event {
	t.Helper()
	e, err := a.Registry().Lookup(name)
	require.NoError(t, err)
	return e
}
