package desops

import (
	"log/slog"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/metrics"
	"github.com/aretw0/desops/pkg/ports"
)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithRegistry makes the engine load automata into reg instead of a fresh registry.
func WithRegistry(reg *automaton.Registry) Option {
	return func(e *Engine) {
		if reg != nil {
			e.registry = reg
		}
	}
}

// WithBudget bounds every analysis the engine runs.
func WithBudget(b domain.Budget) Option {
	return func(e *Engine) {
		e.budget = b
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithMetrics feeds the collector from the engine's lifecycle hooks.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) {
		if c != nil {
			e.hooks = e.hooks.Merge(c.Hooks())
		}
	}
}

// WithLogger sets the structured logger passed to every analysis.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStore sets the store used by Put, Get and Remove.
func WithStore(s ports.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}
