// Package opacity verifies whether an outside observer can ever be sure that a
// system is in a secret state (current-state opacity) or has executed a secret
// behavior (language-based opacity).
//
// Both checks run on the observer of the plant built by automaton.Observer.
package opacity
