// Package diagnoser builds fault diagnosers and decides diagnosability.
//
// Fault events are events carrying a fault label (see automaton.WithFault).
// The diagnoser tracks, after each observation, which plant states the system
// may be in and which faults may have occurred on the way. Diagnosable checks,
// per label, that every fault is detected after finitely many observations.
package diagnoser
