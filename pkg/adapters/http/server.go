package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/desops"
	"github.com/aretw0/desops/internal/presentation/graph"
	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxBodyBytes caps request bodies unless WithMaxBodyBytes says otherwise.
const DefaultMaxBodyBytes = 4 << 20

// errBadRequest marks malformed requests.
var errBadRequest = errors.New("bad request")

// Server exposes an Engine over HTTP.
type Server struct {
	Engine  *desops.Engine
	metrics http.Handler
	maxBody int64
}

// HandlerOption configures the handler returned by NewHandler.
type HandlerOption func(*Server)

// WithMetricsHandler serves h on /metrics instead of the default Prometheus registry.
func WithMetricsHandler(h http.Handler) HandlerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithMaxBodyBytes caps the size of request bodies.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine *desops.Engine, opts ...HandlerOption) http.Handler {
	s := &Server{
		Engine:  engine,
		metrics: promhttp.Handler(),
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/automata", s.ListAutomata)
		r.Get("/automata/{id}", s.GetAutomaton)
		r.Put("/automata/{id}", s.PutAutomaton)
		r.Delete("/automata/{id}", s.DeleteAutomaton)
		r.Get("/automata/{id}/graph", s.GetGraph)

		r.Post("/synthesize", s.analysis("synthesize", s.synthesize))
		r.Post("/controllable", s.analysis("controllable", s.controllable))
		r.Post("/opacity", s.analysis("opacity", s.opacity))
		r.Post("/diagnose", s.analysis("diagnose", s.diagnose))
		r.Post("/equivalence", s.analysis("equivalence", s.equivalence))
		r.Post("/minimize", s.analysis("minimize", s.minimize))
		r.Post("/run", s.analysis("run", s.runAll))
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Operand is an automaton given either inline as a document or by store ID.
type Operand struct {
	ID string `json:"id,omitempty"`
	schema.Document
}

// AnalysisRequest is the body of every POST /v1 analysis. Each endpoint reads
// the operands it needs and ignores the rest.
type AnalysisRequest struct {
	Plant      *Operand `json:"plant,omitempty"`
	Spec       *Operand `json:"spec,omitempty"`
	Left       *Operand `json:"left,omitempty"`
	Right      *Operand `json:"right,omitempty"`
	SecretSpec *Operand `json:"secret_spec,omitempty"`
	// Secret names plant states for current-state opacity.
	Secret     []string `json:"secret,omitempty"`
	Observable []string `json:"observable,omitempty"`
	Diagnose   bool     `json:"diagnose,omitempty"`
}

// resolve builds op into reg. Operands of one request share reg so they can
// be composed.
func (s *Server) resolve(ctx context.Context, name string, op *Operand, reg *automaton.Registry) (*automaton.Automaton, error) {
	if op == nil {
		return nil, fmt.Errorf("%w: missing %q", errBadRequest, name)
	}
	if op.ID != "" {
		a, err := s.Engine.Store().Load(ctx, op.ID, reg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return a, nil
	}
	a, err := op.Build(reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return a, nil
}

type analysisFunc func(ctx context.Context, req *AnalysisRequest, reg *automaton.Registry) (any, error)

// analysis decodes the request, runs fn with a per-request registry and
// encodes its result.
func (s *Server) analysis(name string, fn analysisFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := s.Engine.Logger().With("analysis", name, "request_id", middleware.GetReqID(r.Context()))

		var req AnalysisRequest
		if err := s.decode(w, r, &req); err != nil {
			s.fail(w, logger, err)
			return
		}
		resp, err := fn(r.Context(), &req, automaton.NewRegistry())
		if err != nil {
			s.fail(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", errBadRequest, err)
	}
	return nil
}

func (s *Server) synthesize(ctx context.Context, req *AnalysisRequest, reg *automaton.Registry) (any, error) {
	plant, err := s.resolve(ctx, "plant", req.Plant, reg)
	if err != nil {
		return nil, err
	}
	spec, err := s.resolve(ctx, "spec", req.Spec, reg)
	if err != nil {
		return nil, err
	}
	res, err := s.Engine.Synthesize(ctx, plant, spec)
	if errors.Is(err, domain.ErrNoSupervisorExists) {
		return &desops.Synthesis{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &desops.Synthesis{
		Exists:     true,
		Iterations: res.Iterations,
		Removed:    res.Removed,
		Supervisor: schema.FromAutomaton(res.Supervisor),
	}, nil
}

func (s *Server) controllable(ctx context.Context, req *AnalysisRequest, reg *automaton.Registry) (any, error) {
	plant, err := s.resolve(ctx, "plant", req.Plant, reg)
	if err != nil {
		return nil, err
	}
	spec, err := s.resolve(ctx, "spec", req.Spec, reg)
	if err != nil {
		return nil, err
	}
	return s.Engine.Controllable(ctx, plant, spec)
}

// OpacityResponse is an opacity verdict with the estimate spelled out by state name.
type OpacityResponse struct {
	Opaque         bool     `json:"opaque"`
	Witness        []string `json:"witness,omitempty"`
	Estimate       []string `json:"estimate,omitempty"`
	ObserverStates int      `json:"observer_states"`
}

func (s *Server) opacity(ctx context.Context, req *AnalysisRequest, reg *automaton.Registry) (any, error) {
	plant, err := s.resolve(ctx, "plant", req.Plant, reg)
	if err != nil {
		return nil, err
	}

	if req.SecretSpec != nil {
		secretSpec, err := s.resolve(ctx, "secret_spec", req.SecretSpec, reg)
		if err != nil {
			return nil, err
		}
		v, err := s.Engine.LanguageOpacity(ctx, plant, secretSpec, req.Observable...)
		if err != nil {
			return nil, err
		}
		// Language verdicts estimate product states, which have no plant name.
		return &OpacityResponse{Opaque: v.Opaque, Witness: v.Witness, ObserverStates: v.ObserverStates}, nil
	}

	if len(req.Secret) == 0 {
		return nil, fmt.Errorf("%w: opacity needs secret states or a secret_spec", errBadRequest)
	}
	var ids []automaton.StateID
	for _, name := range req.Secret {
		id, ok := plant.FindState(name)
		if !ok {
			return nil, fmt.Errorf("secret state %q: %w", name, domain.ErrUnknownState)
		}
		ids = append(ids, id)
	}
	v, err := s.Engine.CurrentStateOpacity(ctx, plant, automaton.NewStateSet(ids...), req.Observable...)
	if err != nil {
		return nil, err
	}
	resp := &OpacityResponse{Opaque: v.Opaque, Witness: v.Witness, ObserverStates: v.ObserverStates}
	for _, id := range v.Estimate {
		resp.Estimate = append(resp.Estimate, plant.StateName(id))
	}
	return resp, nil
}

func (s *Server) diagnose(ctx context.Context, req *AnalysisRequest, reg *automaton.Registry) (any, error) {
	plant, err := s.resolve(ctx, "plant", req.Plant, reg)
	if err != nil {
		return nil, err
	}
	return s.Engine.Diagnosable(ctx, plant)
}

func (s *Server) equivalence(ctx context.Context, req *AnalysisRequest, reg *automaton.Registry) (any, error) {
	left, err := s.resolve(ctx, "left", req.Left, reg)
	if err != nil {
		return nil, err
	}
	right, err := s.resolve(ctx, "right", req.Right, reg)
	if err != nil {
		return nil, err
	}
	return s.Engine.Equivalent(ctx, left, right)
}

func (s *Server) minimize(ctx context.Context, req *AnalysisRequest, reg *automaton.Registry) (any, error) {
	plant, err := s.resolve(ctx, "plant", req.Plant, reg)
	if err != nil {
		return nil, err
	}
	minimal, err := s.Engine.Minimize(ctx, plant)
	if err != nil {
		return nil, err
	}
	return schema.FromAutomaton(minimal), nil
}

func (s *Server) runAll(ctx context.Context, req *AnalysisRequest, reg *automaton.Registry) (any, error) {
	plant, err := s.resolve(ctx, "plant", req.Plant, reg)
	if err != nil {
		return nil, err
	}
	run := desops.Request{Plant: plant, Observable: req.Observable, Diagnose: req.Diagnose}
	if req.Spec != nil {
		if run.Spec, err = s.resolve(ctx, "spec", req.Spec, reg); err != nil {
			return nil, err
		}
	}
	for _, name := range req.Secret {
		id, ok := plant.FindState(name)
		if !ok {
			return nil, fmt.Errorf("secret state %q: %w", name, domain.ErrUnknownState)
		}
		run.Secret = append(run.Secret, id)
	}
	run.Secret = automaton.NewStateSet(run.Secret...)
	return s.Engine.RunAll(ctx, run)
}

// ListAutomata handles GET /v1/automata.
func (s *Server) ListAutomata(w http.ResponseWriter, r *http.Request) {
	logger := s.Engine.Logger()
	ids, err := s.Engine.Store().List(r.Context())
	if err != nil {
		s.fail(w, logger, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, logger, http.StatusOK, map[string][]string{"ids": ids})
}

// GetAutomaton handles GET /v1/automata/{id}.
func (s *Server) GetAutomaton(w http.ResponseWriter, r *http.Request) {
	logger := s.Engine.Logger()
	a, err := s.Engine.Store().Load(r.Context(), chi.URLParam(r, "id"), automaton.NewRegistry())
	if err != nil {
		s.fail(w, logger, err)
		return
	}
	writeJSON(w, logger, http.StatusOK, schema.FromAutomaton(a))
}

// PutAutomaton handles PUT /v1/automata/{id}.
func (s *Server) PutAutomaton(w http.ResponseWriter, r *http.Request) {
	logger := s.Engine.Logger()
	id := chi.URLParam(r, "id")

	var doc schema.Document
	if err := s.decode(w, r, &doc); err != nil {
		s.fail(w, logger, err)
		return
	}
	a, err := doc.Build(automaton.NewRegistry())
	if err == nil {
		err = s.Engine.Put(r.Context(), id, a)
	}
	if err != nil {
		s.fail(w, logger, err)
		return
	}
	logger.Info("automaton stored", "id", id, "states", a.NumStates())
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAutomaton handles DELETE /v1/automata/{id}.
func (s *Server) DeleteAutomaton(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, s.Engine.Logger(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGraph handles GET /v1/automata/{id}/graph, returning a Mermaid diagram.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	a, err := s.Engine.Store().Load(r.Context(), chi.URLParam(r, "id"), automaton.NewRegistry())
	if err != nil {
		s.fail(w, s.Engine.Logger(), err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(a, graph.NoOverlay))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Engine.Logger(), http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Engine.Logger(), http.StatusOK, map[string]string{
		"app":     "desops-http",
		"version": strings.TrimSpace(desops.Version),
	})
}

// StatusFor maps an analysis error to an HTTP status code.
func StatusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAutomatonNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBudgetExceeded):
		return http.StatusServiceUnavailable
	case len(schema.ValidationErrors(err)) > 0,
		errors.Is(err, domain.ErrDeterminismViolation),
		errors.Is(err, domain.ErrProbabilityInvariant),
		errors.Is(err, domain.ErrNotDeterministic),
		errors.Is(err, domain.ErrUnknownState),
		errors.Is(err, domain.ErrUnknownEvent),
		errors.Is(err, domain.ErrEventConflict),
		errors.Is(err, domain.ErrEmptyAutomaton):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "err", err)
	} else {
		logger.Warn("request rejected", "status", status, "err", err)
	}
	writeJSON(w, logger, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}
