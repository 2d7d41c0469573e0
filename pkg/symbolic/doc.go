// Package symbolic encodes automata as reduced ordered binary decision diagrams.
//
// A Manager hash-conses nodes so that equal boolean functions share one Node;
// an Encoded automaton answers the same questions as the explicit core
// (successors, marking, reachability) through image computations on BDDs.
// Callers choose the representation per automaton by calling Encode.
package symbolic
