package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/desops"
	"github.com/aretw0/desops/internal/config"
	"github.com/aretw0/desops/internal/logging"
	"github.com/aretw0/desops/pkg/adapters/memory"
	"github.com/aretw0/desops/pkg/adapters/redis"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/metrics"
	"github.com/aretw0/desops/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Options are the command-line overrides applied on top of the config file.
type Options struct {
	ConfigPath string
	LogLevel   string
	MaxStates  int
	Timeout    time.Duration
	// LogOutput defaults to Stderr.
	LogOutput io.Writer
	// Metrics, when set, receives the engine's Prometheus collectors.
	Metrics prometheus.Registerer
}

// Setup bundles what a command needs to run.
type Setup struct {
	Config  *config.Config
	Engine  *desops.Engine
	Metrics *metrics.Collector
	closers []func() error
}

// Close releases the store connection, if any.
func (s *Setup) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewSetup loads the configuration, applies the overrides and builds the engine.
func NewSetup(ctx context.Context, opts Options) (*Setup, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.MaxStates > 0 {
		cfg.Budget.MaxStates = opts.MaxStates
	}
	if opts.Timeout > 0 {
		cfg.Budget.Timeout = opts.Timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setup := &Setup{Config: cfg}
	engine, err := setup.createEngine(ctx, opts)
	if err != nil {
		_ = setup.Close()
		return nil, err
	}
	setup.Engine = engine
	return setup, nil
}

// createEngine initializes the engine with standard CLI conventions.
func (s *Setup) createEngine(ctx context.Context, opts Options) (*desops.Engine, error) {
	w := opts.LogOutput
	if w == nil {
		w = os.Stderr
	}
	level, err := logging.ParseLevel(s.Config.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(w, level, logging.Format(s.Config.Log.Format))

	store, err := s.createStore(ctx, logger)
	if err != nil {
		return nil, err
	}

	engineOpts := []desops.Option{
		desops.WithLogger(logger),
		desops.WithBudget(s.Config.Budget),
		desops.WithStore(store),
	}
	if level <= slog.LevelDebug {
		engineOpts = append(engineOpts, desops.WithLifecycleHooks(createDebugHooks(logger)))
	}
	if opts.Metrics != nil {
		s.Metrics = metrics.New(opts.Metrics)
		engineOpts = append(engineOpts, desops.WithMetrics(s.Metrics))
	}
	return desops.New(engineOpts...), nil
}

func (s *Setup) createStore(ctx context.Context, logger *slog.Logger) (ports.Store, error) {
	switch s.Config.Store.Backend {
	case "redis":
		rc := s.Config.Store.Redis
		var opts []redis.Option
		if rc.Prefix != "" {
			opts = append(opts, redis.WithPrefix(rc.Prefix))
		}
		if rc.TTL > 0 {
			opts = append(opts, redis.WithTTL(rc.TTL))
		}
		store := redis.New(rc.Addr, rc.Password, rc.DB, opts...)
		s.closers = append(s.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis store at %s: %w", rc.Addr, err)
		}
		logger.Debug("using redis store", "addr", rc.Addr, "prefix", rc.Prefix)
		return store, nil
	default:
		return memory.NewStore(), nil
	}
}

// createDebugHooks logs every verdict, failed ones included.
func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnVerdict: func(ctx context.Context, e *domain.VerdictEvent) {
			attrs := []any{
				"analysis", e.Analysis,
				"verdict", e.Verdict,
				"states", e.States,
				"duration", e.Duration,
			}
			if e.Err != nil {
				attrs = append(attrs, "err", e.Err)
			}
			logger.Debug("analysis finished", attrs...)
		},
	}
}
