package automaton

import (
	"fmt"
	"strings"
)

// Kind tags the automaton variant.
type Kind int

const (
	DFA Kind = iota
	NFA
	PFA
)

func (k Kind) String() string {
	switch k {
	case DFA:
		return "dfa"
	case NFA:
		return "nfa"
	case PFA:
		return "pfa"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind reads a kind name ("dfa", "nfa", "pfa"), case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dfa", "":
		return DFA, nil
	case "nfa":
		return NFA, nil
	case "pfa":
		return PFA, nil
	}
	return DFA, fmt.Errorf("unknown automaton kind %q", s)
}

// Deterministic reports whether the variant allows at most one target per (state, event).
func (k Kind) Deterministic() bool {
	return k == DFA
}
