package desops

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/desops/internal/logging"
	"github.com/aretw0/desops/pkg/adapters/fsm"
	"github.com/aretw0/desops/pkg/adapters/memory"
	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/compose"
	"github.com/aretw0/desops/pkg/diagnoser"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
	"github.com/aretw0/desops/pkg/opacity"
	"github.com/aretw0/desops/pkg/ports"
	"github.com/aretw0/desops/pkg/supervisor"
	"github.com/aretw0/desops/pkg/symbolic"
)

// Engine is the high-level entry point of the module. It owns the event
// registry automata are loaded into and applies one budget, one set of hooks
// and one logger to every analysis.
//
// An Engine is safe for concurrent use as long as the hooks it carries are.
type Engine struct {
	registry *automaton.Registry
	budget   domain.Budget
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	store    ports.Store
}

// New creates an Engine. Without options it uses a fresh registry, an
// unlimited budget, a discarding logger and an in-memory store.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry: automaton.NewRegistry(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	return e
}

// Registry returns the registry shared by every automaton the engine loads.
func (e *Engine) Registry() *automaton.Registry { return e.registry }

// Budget returns the budget applied to each analysis.
func (e *Engine) Budget() domain.Budget { return e.budget }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Store returns the store behind Put, Get and Remove.
func (e *Engine) Store() ports.Store { return e.store }

func (e *Engine) options() []explore.Option {
	return []explore.Option{
		explore.WithBudget(e.budget),
		explore.WithHooks(e.hooks),
		explore.WithLogger(e.logger),
	}
}

// validate checks every input before an analysis reads it.
func validate(as ...*automaton.Automaton) error {
	for i, a := range as {
		if a == nil {
			return fmt.Errorf("operand %d: %w", i, domain.ErrEmptyAutomaton)
		}
		if err := a.Validate(); err != nil {
			return fmt.Errorf("operand %d: %w", i, err)
		}
	}
	return nil
}

// Load reads one automaton with l, defining its events in the engine's registry.
func (e *Engine) Load(ctx context.Context, l ports.Loader, r io.Reader) (*automaton.Automaton, error) {
	a, err := l.Load(ctx, r, e.registry)
	if err != nil {
		return nil, fmt.Errorf("load automaton: %w", err)
	}
	e.logger.Debug("automaton loaded", "kind", a.Kind(), "states", a.NumStates(), "transitions", a.NumTransitions())
	return a, nil
}

// Save writes a with s.
func (e *Engine) Save(ctx context.Context, s ports.Serializer, w io.Writer, a *automaton.Automaton) error {
	if err := s.Save(ctx, w, a); err != nil {
		return fmt.Errorf("save automaton: %w", err)
	}
	return nil
}

// Put stores a under id.
func (e *Engine) Put(ctx context.Context, id string, a *automaton.Automaton) error {
	if err := validate(a); err != nil {
		return err
	}
	return e.store.Save(ctx, id, a)
}

// Get loads the automaton stored under id into the engine's registry.
func (e *Engine) Get(ctx context.Context, id string) (*automaton.Automaton, error) {
	return e.store.Load(ctx, id, e.registry)
}

// Remove deletes the automaton stored under id.
func (e *Engine) Remove(ctx context.Context, id string) error {
	return e.store.Delete(ctx, id)
}

// List returns the stored IDs in ascending order.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.store.List(ctx)
}

// Synthesize computes the supremal controllable nonblocking supervisor of spec
// with respect to plant. It returns domain.ErrNoSupervisorExists when the
// initial state is removed.
func (e *Engine) Synthesize(ctx context.Context, plant, spec *automaton.Automaton) (*supervisor.Result, error) {
	if err := validate(plant, spec); err != nil {
		return nil, err
	}
	return supervisor.Synthesize(ctx, plant, spec, e.options()...)
}

// SynthesizeObserved computes the supremal controllable and normal
// supervisor of spec with respect to plant for a supervisor that sees only
// the named events. With no names, the events' own Observable attribute
// applies.
func (e *Engine) SynthesizeObserved(ctx context.Context, plant, spec *automaton.Automaton, observable ...string) (*supervisor.Result, error) {
	if err := validate(plant, spec); err != nil {
		return nil, err
	}
	obs, err := e.observability(observable)
	if err != nil {
		return nil, err
	}
	return supervisor.SynthesizeObserved(ctx, plant, spec, obs, e.options()...)
}

// Controllable checks whether spec is controllable with respect to plant.
func (e *Engine) Controllable(ctx context.Context, plant, spec *automaton.Automaton) (*supervisor.Controllability, error) {
	if err := validate(plant, spec); err != nil {
		return nil, err
	}
	return supervisor.IsControllable(ctx, plant, spec, e.options()...)
}

// observability turns a list of event names into a predicate. An empty list
// keeps the events' own Observable attribute.
func (e *Engine) observability(names []string) (func(*automaton.Event) bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return opacity.ObservableSet(e.registry, names...)
}

// CurrentStateOpacity checks whether an observer of the named events can ever
// be sure that plant is in one of the secret states.
func (e *Engine) CurrentStateOpacity(ctx context.Context, plant *automaton.Automaton, secret automaton.StateSet, observable ...string) (*opacity.Verdict, error) {
	if err := validate(plant); err != nil {
		return nil, err
	}
	for _, s := range secret {
		if !plant.Has(s) {
			return nil, fmt.Errorf("secret state %d: %w", s, domain.ErrUnknownState)
		}
	}
	obs, err := e.observability(observable)
	if err != nil {
		return nil, err
	}
	return opacity.CurrentState(ctx, plant, secret, obs, e.options()...)
}

// LanguageOpacity checks whether an observer can ever be sure that plant has
// run a word of the marked language of secretSpec.
func (e *Engine) LanguageOpacity(ctx context.Context, plant, secretSpec *automaton.Automaton, observable ...string) (*opacity.Verdict, error) {
	if err := validate(plant, secretSpec); err != nil {
		return nil, err
	}
	obs, err := e.observability(observable)
	if err != nil {
		return nil, err
	}
	v, _, err := opacity.Language(ctx, plant, secretSpec, obs, e.options()...)
	return v, err
}

// Diagnoser builds the diagnoser automaton of plant.
func (e *Engine) Diagnoser(ctx context.Context, plant *automaton.Automaton) (*diagnoser.Diagnoser, error) {
	if err := validate(plant); err != nil {
		return nil, err
	}
	return diagnoser.Build(ctx, plant, e.options()...)
}

// Diagnosable decides whether every fault label of plant is diagnosable.
func (e *Engine) Diagnosable(ctx context.Context, plant *automaton.Automaton) (*diagnoser.Verdict, error) {
	if err := validate(plant); err != nil {
		return nil, err
	}
	return diagnoser.Diagnosable(ctx, plant, e.options()...)
}

// Equivalent decides whether a and b accept the same marked language.
// Nondeterministic operands are determinized first.
func (e *Engine) Equivalent(ctx context.Context, a, b *automaton.Automaton) (*compose.Equivalence, error) {
	if err := validate(a, b); err != nil {
		return nil, err
	}
	return compose.EquivalentLanguages(ctx, a, b, e.options()...)
}

// Minimize returns the minimal DFA accepting the marked language of a.
func (e *Engine) Minimize(ctx context.Context, a *automaton.Automaton) (*automaton.Automaton, error) {
	if err := validate(a); err != nil {
		return nil, err
	}
	ctx, cancel := explore.Scope(ctx, explore.Apply(e.options()...))
	defer cancel()
	if a.Kind() != automaton.DFA {
		d, _, err := automaton.Determinize(ctx, a, e.options()...)
		if err != nil {
			return nil, err
		}
		a = d
	}
	return compose.Minimize(ctx, a, e.options()...)
}

// Structure counts the reachable and trim states of a.
type Structure struct {
	States    int `json:"states"`
	Reachable int `json:"reachable"`
	Trim      int `json:"trim"`
	// BDDNodes is the size of the encoded transition relation.
	BDDNodes int `json:"bdd_nodes"`
}

// Structure computes reachability on the BDD encoding of a.
func (e *Engine) Structure(ctx context.Context, a *automaton.Automaton) (*Structure, error) {
	if err := validate(a); err != nil {
		return nil, err
	}
	enc, err := symbolic.Encode(a)
	if err != nil {
		return nil, err
	}
	return e.structure(ctx, enc)
}

// StructureFSM is Structure for an .fsm stream, encoded as it is read
// without building the explicit automaton.
func (e *Engine) StructureFSM(ctx context.Context, r io.Reader) (*Structure, error) {
	ctx, cancel := explore.Scope(ctx, explore.Apply(e.options()...))
	defer cancel()
	enc, err := fsm.LoadSymbolic(ctx, r, e.registry, e.options()...)
	if err != nil {
		return nil, fmt.Errorf("load automaton: %w", err)
	}
	return e.structure(ctx, enc)
}

func (e *Engine) structure(ctx context.Context, enc *symbolic.Encoded) (*Structure, error) {
	ctx, cancel := explore.Scope(ctx, explore.Apply(e.options()...))
	defer cancel()
	reach, err := enc.ReachableNode(ctx, e.options()...)
	if err != nil {
		return nil, err
	}
	trim, err := enc.Trim(ctx, e.options()...)
	if err != nil {
		return nil, err
	}
	return &Structure{
		States:    enc.NumStates(),
		Reachable: len(enc.States(reach)),
		Trim:      len(trim),
		BDDNodes:  enc.M.NodeCount(enc.Trans),
	}, nil
}
