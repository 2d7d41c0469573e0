package automaton

import "slices"

// Probability returns the probability of (from, e, to). Non-PFA transitions
// report 1 when present; a missing transition reports 0.
func (a *Automaton) Probability(from StateID, e *Event, to StateID) float64 {
	if !a.Has(from) {
		return 0
	}
	for _, ed := range a.states[from].out[e] {
		if ed.to == to {
			if a.kind != PFA {
				return 1
			}
			return ed.prob
		}
	}
	return 0
}

// Outcome is one target of a probabilistic choice.
type Outcome struct {
	To   StateID
	Prob float64
}

// Distribution returns the outcomes of (from, e) ordered by target.
// On a DFA or NFA every outcome has probability 1.
func (a *Automaton) Distribution(from StateID, e *Event) []Outcome {
	if !a.Has(from) {
		return nil
	}
	edges := a.states[from].out[e]
	out := make([]Outcome, len(edges))
	for i, ed := range edges {
		p := ed.prob
		if a.kind != PFA {
			p = 1
		}
		out[i] = Outcome{To: ed.to, Prob: p}
	}
	slices.SortFunc(out, func(x, y Outcome) int { return int(x.To) - int(y.To) })
	return out
}

func (a *Automaton) probSum(from StateID, e *Event) float64 {
	var sum float64
	for _, ed := range a.states[from].out[e] {
		sum += ed.prob
	}
	return sum
}
