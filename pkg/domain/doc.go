/*
Package domain contains the shared vocabulary of the desops engine.

It defines the error kinds every component reports, the computation budget that
bounds long-running explorations, and the lifecycle hooks used for observability.
The package is kept pure: it has no dependency on automata, I/O or persistence,
so that every other package can import it without cycles.

# Key Entities

  - Error kinds: sentinel errors compared with errors.Is (ErrDeterminismViolation, ...).
  - Budget: a caller-imposed state/time limit for synthesis and verification.
  - LifecycleHooks: callbacks fired while an analysis expands states and when it
    reaches a verdict.
*/
package domain
