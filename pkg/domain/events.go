package domain

import (
	"context"
	"time"
)

// Analysis names the engine that emitted an event.
type Analysis string

const (
	AnalysisDeterminize Analysis = "determinize"
	AnalysisObserver    Analysis = "observer"
	AnalysisProduct     Analysis = "product"
	AnalysisComplement  Analysis = "complement"
	AnalysisReverse     Analysis = "reverse"
	AnalysisTrim        Analysis = "trim"
	AnalysisMinimize    Analysis = "minimize"
	AnalysisEquivalence Analysis = "equivalence"
	AnalysisSymbolic    Analysis = "symbolic"
	AnalysisSynthesis   Analysis = "synthesis"
	AnalysisOpacity     Analysis = "opacity"
	AnalysisDiagnoser   Analysis = "diagnoser"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Analysis  Analysis  `json:"analysis"`
}

// ExpandEvent is emitted each time an exploration expands one state.
type ExpandEvent struct {
	EventBase
	Expanded int `json:"expanded"`
}

// VerdictEvent is emitted when an analysis finishes, successfully or not.
type VerdictEvent struct {
	EventBase
	Verdict  string        `json:"verdict"`
	States   int           `json:"states"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnExpand  func(context.Context, *ExpandEvent)
	OnVerdict func(context.Context, *VerdictEvent)
}

// Merge returns hooks that invoke h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnExpand: func(ctx context.Context, e *ExpandEvent) {
			if h.OnExpand != nil {
				h.OnExpand(ctx, e)
			}
			if other.OnExpand != nil {
				other.OnExpand(ctx, e)
			}
		},
		OnVerdict: func(ctx context.Context, e *VerdictEvent) {
			if h.OnVerdict != nil {
				h.OnVerdict(ctx, e)
			}
			if other.OnVerdict != nil {
				other.OnVerdict(ctx, e)
			}
		},
	}
}
