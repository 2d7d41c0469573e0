package explore

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/desops/pkg/domain"
)

// Guard enforces cancellation and budgets during one exploration.
// It is not safe for concurrent use; each traversal owns its Guard.
type Guard struct {
	ctx      context.Context
	cancel   context.CancelFunc
	analysis domain.Analysis
	opts     Options
	meter    *meter
	expanded int
	started  time.Time
}

type meterKey struct{}

// meter is the state budget shared by every guard of one top-level call.
type meter struct {
	limit    int
	expanded atomic.Int64
}

// Scope installs the budget of opts in ctx: guards created from the returned
// context charge one shared state count and stop at one deadline. A ctx that
// already carries a budget is kept as is, so nested explorations charge the
// outermost call. The returned func releases the deadline.
func Scope(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Value(meterKey{}).(*meter); ok {
		return context.WithCancel(ctx)
	}
	ctx = context.WithValue(ctx, meterKey{}, &meter{limit: opts.Budget.MaxStates})
	if opts.Budget.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Budget.Timeout)
	}
	return context.WithCancel(ctx)
}

// NewGuard derives a Guard from ctx. Unless ctx already carries a budget
// (see Scope), the guard starts a new one from opts, with a derived deadline
// that Close releases.
func NewGuard(ctx context.Context, analysis domain.Analysis, opts Options) *Guard {
	g := &Guard{
		analysis: analysis,
		opts:     opts,
		started:  time.Now(),
	}
	g.ctx, g.cancel = Scope(ctx, opts)
	g.meter = g.ctx.Value(meterKey{}).(*meter)
	return g
}

// Context returns the guard's (possibly deadline-bound) context.
func (g *Guard) Context() context.Context {
	return g.ctx
}

// Step accounts for one expanded state.
// It returns an error wrapping domain.ErrBudgetExceeded when the state budget
// is exhausted or the context is done.
func (g *Guard) Step() error {
	select {
	case <-g.ctx.Done():
		return fmt.Errorf("%w: %s after %d states: %w", domain.ErrBudgetExceeded, g.analysis, g.expanded, g.ctx.Err())
	default:
	}
	if n := g.meter.expanded.Add(1); g.meter.limit > 0 && n > int64(g.meter.limit) {
		g.meter.expanded.Add(-1)
		return fmt.Errorf("%w: %s reached %d states", domain.ErrBudgetExceeded, g.analysis, g.meter.limit)
	}
	g.expanded++
	if g.opts.Hooks.OnExpand != nil {
		g.opts.Hooks.OnExpand(g.ctx, &domain.ExpandEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Analysis: g.analysis},
			Expanded:  g.expanded,
		})
	}
	return nil
}

// Expanded returns the number of states this guard accounted so far.
func (g *Guard) Expanded() int {
	return g.expanded
}

// Charged returns the number of states accounted against the shared budget,
// by this guard and every other guard of the same call.
func (g *Guard) Charged() int {
	return int(g.meter.expanded.Load())
}

// Elapsed returns the time since the guard was created.
func (g *Guard) Elapsed() time.Duration {
	return time.Since(g.started)
}

// Finish fires the verdict hook and releases the derived context.
// verdict is a short machine-friendly outcome ("opaque", "error", ...).
func (g *Guard) Finish(verdict string, states int, err error) {
	defer g.cancel()
	g.opts.Logger.Debug("exploration finished",
		"analysis", g.analysis,
		"verdict", verdict,
		"expanded", g.expanded,
		"states", states,
		"duration", g.Elapsed(),
		"err", err,
	)
	if g.opts.Hooks.OnVerdict != nil {
		g.opts.Hooks.OnVerdict(g.ctx, &domain.VerdictEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Analysis: g.analysis},
			Verdict:   verdict,
			States:    states,
			Duration:  g.Elapsed(),
			Err:       err,
		})
	}
}

// Close releases the derived context without firing hooks.
func (g *Guard) Close() {
	g.cancel()
}

// Logger returns the logger configured for this exploration.
func (g *Guard) Logger() *slog.Logger {
	return g.opts.Logger
}
