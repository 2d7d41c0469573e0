package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/schema"
)

// Store implements ports.Store in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*schema.Document
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*schema.Document),
	}
}

// Save keeps the portable form of a, so later changes to a do not leak in.
func (s *Store) Save(ctx context.Context, id string, a *automaton.Automaton) error {
	doc := schema.FromAutomaton(a)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = doc
	return nil
}

// Load rebuilds a fresh automaton on every call.
func (s *Store) Load(ctx context.Context, id string, reg *automaton.Registry) (*automaton.Automaton, error) {
	s.mu.RLock()
	doc, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAutomatonNotFound, id)
	}
	return doc.Build(reg)
}

// Delete removes the automaton.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns the stored IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
