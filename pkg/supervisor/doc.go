// Package supervisor synthesizes supervisory controllers for discrete event
// systems.
//
// Given a plant G and a specification E over the same registry, Synthesize
// returns a trim automaton whose marked language is the supremal controllable
// sublanguage of L_m(G || E). Uncontrollable events are never disabled: any
// state where the plant could fire one that the closed loop forbids is removed,
// together with everything that becomes blocking as a consequence.
//
// SynthesizeObserved does the same for a supervisor that sees only part of
// the alphabet, alternating those rounds with normality rounds until the
// closed loop is both controllable and normal.
package supervisor
