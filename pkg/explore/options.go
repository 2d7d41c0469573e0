package explore

import (
	"io"
	"log/slog"

	"github.com/aretw0/desops/pkg/domain"
)

// Options configures a single exploration call.
type Options struct {
	Budget domain.Budget
	Hooks  domain.LifecycleHooks
	Logger *slog.Logger
}

// Option defines a functional option for an exploration call.
type Option func(*Options)

// WithBudget bounds the call by expanded states and/or wall-clock time.
func WithBudget(b domain.Budget) Option {
	return func(o *Options) {
		o.Budget = b
	}
}

// WithMaxStates is a shorthand for a state-only budget.
func WithMaxStates(n int) Option {
	return func(o *Options) {
		o.Budget.MaxStates = n
	}
}

// WithHooks registers observability hooks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(o *Options) {
		o.Hooks = h
	}
}

// WithLogger sets a structured logger for the call.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Apply builds Options from defaults and the given functional options.
func Apply(opts ...Option) Options {
	o := Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
