package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/desops"
	"github.com/aretw0/desops/pkg/adapters/yaml"
	"github.com/aretw0/desops/pkg/compose"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plant: the fault f is followed by b forever, the normal run by c.
const plant = `
kind: dfa
events:
  - {name: a}
  - {name: b, controllable: false}
  - {name: c}
  - {name: f, controllable: false, observable: false, fault: F1}
states:
  - {name: s0, initial: true}
  - {name: s1}
  - {name: s2, marked: true}
  - {name: s3, marked: true}
transitions:
  - {from: s0, event: f, to: s1}
  - {from: s1, event: a, to: s2}
  - {from: s2, event: b, to: s2}
  - {from: s0, event: a, to: s3}
  - {from: s3, event: c, to: s3}
`

const noB = `
kind: dfa
events: [{name: a}, {name: b, controllable: false}, {name: c}, {name: f, controllable: false, observable: false, fault: F1}]
states: [{name: q, initial: true, marked: true}]
transitions:
  - {from: q, event: a, to: q}
  - {from: q, event: c, to: q}
  - {from: q, event: f, to: q}
`

func TestToolsAreListed(t *testing.T) {
	s := NewServer(desops.New())
	msg := s.mcpServer.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	for _, name := range []string{"synthesize", "controllable", "opacity", "diagnose", "equivalence", "render"} {
		assert.Contains(t, string(raw), `"name":"`+name+`"`)
	}
}

func TestHandleDiagnose(t *testing.T) {
	s := NewServer(desops.New())
	v, err := s.handleDiagnose(context.Background(), mcp.CallToolRequest{}, PlantArgs{Plant: plant})
	require.NoError(t, err)
	assert.True(t, v.Diagnosable)

	_, err = s.handleDiagnose(context.Background(), mcp.CallToolRequest{}, PlantArgs{})
	assert.ErrorContains(t, err, "missing document")
}

func TestHandleOpacity(t *testing.T) {
	s := NewServer(desops.New())
	ctx := context.Background()

	v, err := s.handleOpacity(ctx, mcp.CallToolRequest{}, OpacityArgs{PlantArgs: PlantArgs{Plant: plant}, Secret: []string{"s2"}})
	require.NoError(t, err)
	assert.False(t, v.Opaque)
	assert.Equal(t, []string{"a", "b"}, v.Witness)
	assert.Equal(t, []string{"s2"}, v.Estimate)

	// With only a observable, s2 and s3 are never told apart.
	v, err = s.handleOpacity(ctx, mcp.CallToolRequest{}, OpacityArgs{
		PlantArgs:  PlantArgs{Plant: plant},
		Secret:     []string{"s2"},
		Observable: []string{"a"},
	})
	require.NoError(t, err)
	assert.True(t, v.Opaque)

	_, err = s.handleOpacity(ctx, mcp.CallToolRequest{}, OpacityArgs{PlantArgs: PlantArgs{Plant: plant}, Secret: []string{"nowhere"}})
	assert.ErrorIs(t, err, domain.ErrUnknownState)

	_, err = s.handleOpacity(ctx, mcp.CallToolRequest{}, OpacityArgs{PlantArgs: PlantArgs{Plant: plant}})
	assert.Error(t, err)
}

func TestHandleSynthesize(t *testing.T) {
	s := NewServer(desops.New())
	ctx := context.Background()

	res, err := s.handleSynthesize(ctx, mcp.CallToolRequest{}, SynthesizeArgs{PlantArgs: PlantArgs{Plant: plant}, Spec: noB})
	require.NoError(t, err)
	assert.False(t, res.Exists)

	c, err := s.handleControllable(ctx, mcp.CallToolRequest{}, SynthesizeArgs{PlantArgs: PlantArgs{Plant: plant}, Spec: noB})
	require.NoError(t, err)
	assert.False(t, c.Controllable)
	assert.Equal(t, "b", c.Event)
}

func TestHandleSynthesize_StoredOperands(t *testing.T) {
	eng := desops.New()
	ctx := context.Background()
	a, err := eng.Load(ctx, yaml.New(), strings.NewReader(plant))
	require.NoError(t, err)
	require.NoError(t, eng.Put(ctx, "plant", a))

	s := NewServer(eng)
	res, err := s.handleSynthesize(ctx, mcp.CallToolRequest{}, SynthesizeArgs{PlantArgs: PlantArgs{PlantID: "plant"}, SpecID: "plant"})
	require.NoError(t, err)
	assert.True(t, res.Exists, "a plant is its own supervisor")
	require.NotNil(t, res.Supervisor)
	assert.Len(t, res.Supervisor.States, 4)

	_, err = s.handleSynthesize(ctx, mcp.CallToolRequest{}, SynthesizeArgs{PlantArgs: PlantArgs{PlantID: "ghost"}, Spec: noB})
	assert.ErrorIs(t, err, domain.ErrAutomatonNotFound)
}

func TestHandleEquivalence(t *testing.T) {
	s := NewServer(desops.New())
	ctx := context.Background()

	eq, err := s.handleEquivalence(ctx, mcp.CallToolRequest{}, EquivalenceArgs{Left: plant, Right: plant})
	require.NoError(t, err)
	assert.True(t, eq.Equal)

	eq, err = s.handleEquivalence(ctx, mcp.CallToolRequest{}, EquivalenceArgs{Left: plant, Right: noB})
	require.NoError(t, err)
	assert.False(t, eq.Equal)
	assert.Empty(t, eq.Witness, "noB marks its initial state")
	assert.Equal(t, compose.SideRight, eq.AcceptedBy)
}
