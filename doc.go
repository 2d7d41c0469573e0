/*
Package desops analyses discrete-event systems modelled as finite automata.

An automaton is a DFA, NFA or PFA over events drawn from a shared registry.
Events carry a controllable and an observable attribute and may be tagged with
a fault label. On top of that core the module offers three engines:

  - supervisory control synthesis (pkg/supervisor): the maximal controllable,
    nonblocking sublanguage of a specification with respect to a plant;
  - opacity verification (pkg/opacity): whether an outside observer can ever
    be certain the system is in a secret state or has run a secret behavior;
  - diagnosis (pkg/diagnoser): the diagnoser automaton and a diagnosability
    check based on the twin plant.

# Usage

The Engine bundles a registry, an exploration budget, lifecycle hooks and a
logger, and applies them to every analysis it runs.

	eng := desops.New(
		desops.WithBudget(domain.Budget{MaxStates: 100_000, Timeout: time.Minute}),
		desops.WithLogger(logging.New(slog.LevelInfo)),
	)

	plant, err := eng.Load(ctx, yaml.New(), file)
	if err != nil {
		log.Fatal(err)
	}

	verdict, err := eng.Diagnosable(ctx, plant)

Automata are read and written by the codecs in pkg/adapters (the DESops .fsm
text format and a YAML document format) and kept by the stores in the same
tree (memory and Redis).

# Budgets

Every exploration is bounded by a domain.Budget. When the state count or the
deadline is exhausted the analysis stops and returns an error wrapping
domain.ErrBudgetExceeded; no partial verdict is reported.
*/
package desops
