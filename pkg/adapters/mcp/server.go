package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/desops"
	"github.com/aretw0/desops/internal/presentation/graph"
	"github.com/aretw0/desops/pkg/adapters/yaml"
	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/compose"
	"github.com/aretw0/desops/pkg/diagnoser"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/schema"
	"github.com/aretw0/desops/pkg/supervisor"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps a desops Engine and exposes its analyses as MCP tools.
type Server struct {
	engine    *desops.Engine
	codec     *yaml.Codec
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine *desops.Engine) *Server {
	s := &Server{
		engine:    engine,
		codec:     yaml.New(),
		mcpServer: server.NewMCPServer("desops-mcp", strings.TrimSpace(desops.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when
// ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.engine.Logger().Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.engine.Logger().Info("shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// PlantArgs names one automaton, either as document text or by store ID.
type PlantArgs struct {
	Plant   string `json:"plant,omitempty"`
	PlantID string `json:"plant_id,omitempty"`
}

// SynthesizeArgs are the arguments of the synthesize and controllable tools.
type SynthesizeArgs struct {
	PlantArgs
	Spec   string `json:"spec,omitempty"`
	SpecID string `json:"spec_id,omitempty"`
}

// OpacityArgs are the arguments of the opacity tool.
type OpacityArgs struct {
	PlantArgs
	Secret     []string `json:"secret,omitempty"`
	SecretSpec string   `json:"secret_spec,omitempty"`
	Observable []string `json:"observable,omitempty"`
}

// EquivalenceArgs are the arguments of the equivalence tool.
type EquivalenceArgs struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// OpacityResult is the structured result of the opacity tool.
type OpacityResult struct {
	Opaque         bool     `json:"opaque" jsonschema_description:"True when no observation reveals the secret"`
	Witness        []string `json:"witness,omitempty" jsonschema_description:"Shortest observation revealing the secret"`
	Estimate       []string `json:"estimate,omitempty" jsonschema_description:"State estimate reached by the witness"`
	ObserverStates int      `json:"observer_states" jsonschema_description:"Number of observer states explored"`
}

func (s *Server) registerTools() {
	documentHelp := "Automaton document in YAML or JSON (kind, events, states, transitions)"

	s.mcpServer.AddTool(mcp.NewTool("synthesize",
		mcp.WithDescription("Synthesize the maximally permissive nonblocking supervisor enforcing spec on plant."),
		mcp.WithString("plant", mcp.Description(documentHelp)),
		mcp.WithString("plant_id", mcp.Description("ID of a stored plant (instead of plant)")),
		mcp.WithString("spec", mcp.Description(documentHelp)),
		mcp.WithString("spec_id", mcp.Description("ID of a stored specification (instead of spec)")),
		mcp.WithOutputSchema[desops.Synthesis](),
	), mcp.NewStructuredToolHandler(s.handleSynthesize))

	s.mcpServer.AddTool(mcp.NewTool("controllable",
		mcp.WithDescription("Check whether spec is controllable with respect to plant."),
		mcp.WithString("plant", mcp.Description(documentHelp)),
		mcp.WithString("plant_id", mcp.Description("ID of a stored plant (instead of plant)")),
		mcp.WithString("spec", mcp.Description(documentHelp)),
		mcp.WithString("spec_id", mcp.Description("ID of a stored specification (instead of spec)")),
		mcp.WithOutputSchema[supervisor.Controllability](),
	), mcp.NewStructuredToolHandler(s.handleControllable))

	s.mcpServer.AddTool(mcp.NewTool("opacity",
		mcp.WithDescription("Verify current-state opacity (secret state names) or language opacity (secret_spec)."),
		mcp.WithString("plant", mcp.Description(documentHelp)),
		mcp.WithString("plant_id", mcp.Description("ID of a stored plant (instead of plant)")),
		mcp.WithArray("secret", mcp.Description("Names of the secret states"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("secret_spec", mcp.Description("DFA document whose marked language is the secret")),
		mcp.WithArray("observable", mcp.Description("Observable event names; defaults to the events' own attribute"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithOutputSchema[OpacityResult](),
	), mcp.NewStructuredToolHandler(s.handleOpacity))

	s.mcpServer.AddTool(mcp.NewTool("diagnose",
		mcp.WithDescription("Decide whether every fault label of the plant is diagnosable."),
		mcp.WithString("plant", mcp.Description(documentHelp)),
		mcp.WithString("plant_id", mcp.Description("ID of a stored plant (instead of plant)")),
		mcp.WithOutputSchema[diagnoser.Verdict](),
	), mcp.NewStructuredToolHandler(s.handleDiagnose))

	s.mcpServer.AddTool(mcp.NewTool("equivalence",
		mcp.WithDescription("Decide whether two automata accept the same marked language."),
		mcp.WithString("left", mcp.Required(), mcp.Description(documentHelp)),
		mcp.WithString("right", mcp.Required(), mcp.Description(documentHelp)),
		mcp.WithOutputSchema[compose.Equivalence](),
	), mcp.NewStructuredToolHandler(s.handleEquivalence))

	s.mcpServer.AddTool(mcp.NewTool("render",
		mcp.WithDescription("Render an automaton as a Mermaid diagram."),
		mcp.WithString("plant", mcp.Description(documentHelp)),
		mcp.WithString("plant_id", mcp.Description("ID of a stored plant (instead of plant)")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := PlantArgs{Plant: request.GetString("plant", ""), PlantID: request.GetString("plant_id", "")}
		a, err := s.plant(ctx, args, automaton.NewRegistry())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", err)), nil
		}
		return mcp.NewToolResultText(graph.GenerateMermaid(a, graph.NoOverlay)), nil
	})
}

// parse reads one document from text.
func (s *Server) parse(ctx context.Context, name, text string, reg *automaton.Registry) (*automaton.Automaton, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: missing document", name)
	}
	a, err := s.codec.Load(ctx, strings.NewReader(text), reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return a, nil
}

func (s *Server) operand(ctx context.Context, name, text, id string, reg *automaton.Registry) (*automaton.Automaton, error) {
	if id != "" {
		a, err := s.engine.Store().Load(ctx, id, reg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return a, nil
	}
	return s.parse(ctx, name, text, reg)
}

func (s *Server) plant(ctx context.Context, args PlantArgs, reg *automaton.Registry) (*automaton.Automaton, error) {
	return s.operand(ctx, "plant", args.Plant, args.PlantID, reg)
}

func (s *Server) handleSynthesize(ctx context.Context, request mcp.CallToolRequest, args SynthesizeArgs) (desops.Synthesis, error) {
	reg := automaton.NewRegistry()
	plant, err := s.plant(ctx, args.PlantArgs, reg)
	if err != nil {
		return desops.Synthesis{}, err
	}
	spec, err := s.operand(ctx, "spec", args.Spec, args.SpecID, reg)
	if err != nil {
		return desops.Synthesis{}, err
	}
	res, err := s.engine.Synthesize(ctx, plant, spec)
	if errors.Is(err, domain.ErrNoSupervisorExists) {
		return desops.Synthesis{}, nil
	}
	if err != nil {
		return desops.Synthesis{}, fmt.Errorf("synthesis failed: %w", err)
	}
	return desops.Synthesis{
		Exists:     true,
		Iterations: res.Iterations,
		Removed:    res.Removed,
		Supervisor: schema.FromAutomaton(res.Supervisor),
	}, nil
}

func (s *Server) handleControllable(ctx context.Context, request mcp.CallToolRequest, args SynthesizeArgs) (supervisor.Controllability, error) {
	reg := automaton.NewRegistry()
	plant, err := s.plant(ctx, args.PlantArgs, reg)
	if err != nil {
		return supervisor.Controllability{}, err
	}
	spec, err := s.operand(ctx, "spec", args.Spec, args.SpecID, reg)
	if err != nil {
		return supervisor.Controllability{}, err
	}
	c, err := s.engine.Controllable(ctx, plant, spec)
	if err != nil {
		return supervisor.Controllability{}, fmt.Errorf("controllability check failed: %w", err)
	}
	return *c, nil
}

func (s *Server) handleOpacity(ctx context.Context, request mcp.CallToolRequest, args OpacityArgs) (OpacityResult, error) {
	reg := automaton.NewRegistry()
	plant, err := s.plant(ctx, args.PlantArgs, reg)
	if err != nil {
		return OpacityResult{}, err
	}

	if args.SecretSpec != "" {
		secretSpec, err := s.parse(ctx, "secret_spec", args.SecretSpec, reg)
		if err != nil {
			return OpacityResult{}, err
		}
		v, err := s.engine.LanguageOpacity(ctx, plant, secretSpec, args.Observable...)
		if err != nil {
			return OpacityResult{}, fmt.Errorf("opacity check failed: %w", err)
		}
		return OpacityResult{Opaque: v.Opaque, Witness: v.Witness, ObserverStates: v.ObserverStates}, nil
	}

	if len(args.Secret) == 0 {
		return OpacityResult{}, errors.New("opacity needs secret states or a secret_spec")
	}
	var ids []automaton.StateID
	for _, name := range args.Secret {
		id, ok := plant.FindState(name)
		if !ok {
			return OpacityResult{}, fmt.Errorf("secret state %q: %w", name, domain.ErrUnknownState)
		}
		ids = append(ids, id)
	}
	v, err := s.engine.CurrentStateOpacity(ctx, plant, automaton.NewStateSet(ids...), args.Observable...)
	if err != nil {
		return OpacityResult{}, fmt.Errorf("opacity check failed: %w", err)
	}
	res := OpacityResult{Opaque: v.Opaque, Witness: v.Witness, ObserverStates: v.ObserverStates}
	for _, id := range v.Estimate {
		res.Estimate = append(res.Estimate, plant.StateName(id))
	}
	return res, nil
}

func (s *Server) handleDiagnose(ctx context.Context, request mcp.CallToolRequest, args PlantArgs) (diagnoser.Verdict, error) {
	plant, err := s.plant(ctx, args, automaton.NewRegistry())
	if err != nil {
		return diagnoser.Verdict{}, err
	}
	v, err := s.engine.Diagnosable(ctx, plant)
	if err != nil {
		return diagnoser.Verdict{}, fmt.Errorf("diagnosability check failed: %w", err)
	}
	return *v, nil
}

func (s *Server) handleEquivalence(ctx context.Context, request mcp.CallToolRequest, args EquivalenceArgs) (compose.Equivalence, error) {
	reg := automaton.NewRegistry()
	left, err := s.parse(ctx, "left", args.Left, reg)
	if err != nil {
		return compose.Equivalence{}, err
	}
	right, err := s.parse(ctx, "right", args.Right, reg)
	if err != nil {
		return compose.Equivalence{}, err
	}
	eq, err := s.engine.Equivalent(ctx, left, right)
	if err != nil {
		return compose.Equivalence{}, fmt.Errorf("equivalence check failed: %w", err)
	}
	return *eq, nil
}

func (s *Server) registerResources() {
	// EXPOSE: desops://automata
	s.mcpServer.AddResource(mcp.NewResource("desops://automata", "Stored automata",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.engine.Store().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list automata: %w", err)
		}
		if ids == nil {
			ids = []string{}
		}
		jsonBytes, _ := json.Marshal(ids)
		s.engine.Logger().Debug("MCP: listed automata", "count", len(ids))

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "desops://automata",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
