package ports

import (
	"context"

	"github.com/aretw0/desops/pkg/automaton"
)

// Store defines the interface for persisting automata by ID.
type Store interface {
	// Save persists a under id, replacing any previous automaton.
	Save(ctx context.Context, id string, a *automaton.Automaton) error

	// Load rebuilds the automaton stored under id, defining its events in reg.
	// Returns domain.ErrAutomatonNotFound if the ID does not exist.
	Load(ctx context.Context, id string, reg *automaton.Registry) (*automaton.Automaton, error)

	// Delete removes the automaton stored under id. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the stored IDs, sorted.
	List(ctx context.Context) ([]string, error)
}
