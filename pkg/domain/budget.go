package domain

import "time"

// Budget bounds a single analysis call.
// Zero values disable the corresponding limit.
type Budget struct {
	// MaxStates is the maximum number of states an exploration may expand.
	MaxStates int `json:"max_states,omitempty" yaml:"max_states,omitempty"`

	// Timeout is the wall-clock limit for the whole call.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Unlimited reports whether the budget imposes no limit at all.
func (b Budget) Unlimited() bool {
	return b.MaxStates <= 0 && b.Timeout <= 0
}
