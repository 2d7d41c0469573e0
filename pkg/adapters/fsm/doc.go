// Package fsm reads and writes the DESops .fsm text format.
//
// A file starts with the number of states and a blank line. Each state block
// is a header line (name, marked 0|1, number of transitions) followed by one
// line per transition (event, target, c|uc, o|uo) and a blank line. Fields are
// tab separated. The first block is the initial state. A (state, event) pair
// listed with two targets, or an "eps" transition, makes the result an NFA.
//
// The format has no room for fault labels, probabilities or events without
// transitions; those are dropped on Save.
package fsm
