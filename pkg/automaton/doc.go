/*
Package automaton implements the event registry and the automaton core of desops.

A single Automaton type carries the three variants as a tag (DFA, NFA, PFA).
The variants share the state, transition and event substrate; their invariants
are enforced at the mutation boundary:

  - DFA: at most one target per (state, event) and exactly one initial state.
  - NFA: any number of targets and initial states, epsilon transitions allowed.
  - PFA: targets carry probabilities in (0, 1] that sum to 1 per (state, event).

Events are created once in a Registry and shared by pointer, so event identity
is pointer equality. Every automaton is bound to the registry it was created with.

# Usage

	reg := automaton.NewRegistry()
	a := reg.MustDefine("a")
	u := reg.MustDefine("u", automaton.Uncontrollable())

	g := automaton.New(automaton.DFA, reg)
	s0 := g.AddNamedState("s0", true)
	s1 := g.AddNamedState("s1", false)
	_ = g.SetInitial(s0)
	_ = g.AddTransition(s0, a, s0)
	_ = g.AddTransition(s0, u, s1)

Shared algorithms (reachability, trim, completion) are methods; variant specific
transformations (Determinize, Observer) are free functions.
*/
package automaton
