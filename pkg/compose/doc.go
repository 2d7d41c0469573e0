// Package compose implements the composition algebra over automata:
// synchronous product, intersection, complement, reverse, minimization
// and language equivalence with a witness.
//
// Every operation returns a fresh automaton and leaves its operands untouched.
// Operands must share a Registry. Products are built on the fly from the
// initial pairs; the full cross product is never materialized.
package compose
