package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/schema"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the keys written by the store.
const DefaultPrefix = "desops:automaton:"

// Store implements ports.Store using Redis. Automata are kept as JSON
// documents; a sorted set indexes the IDs by expiry time.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Store)

// WithTTL sets the expiration for stored automata.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithClock replaces time.Now when scoring and pruning the index.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the automaton to Redis.
func (s *Store) Save(ctx context.Context, id string, a *automaton.Automaton) error {
	data, err := json.Marshal(schema.FromAutomaton(a))
	if err != nil {
		return fmt.Errorf("failed to marshal automaton: %w", err)
	}

	pipe := s.client.Pipeline()

	// Use 0 for no expiration if ttl is not set.
	pipe.Set(ctx, s.key(id), data, s.ttl)

	// Score = Now + TTL. If TTL = 0, Score = 2100-01-01.
	score := float64(s.now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: id,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the automaton from Redis and rebuilds it against reg.
func (s *Store) Load(ctx context.Context, id string, reg *automaton.Registry) (*automaton.Automaton, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAutomatonNotFound, id)
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var doc schema.Document
	if err := json.Unmarshal(val, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal automaton: %w", err)
	}
	return doc.Build(reg)
}

// Delete removes the automaton and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()

	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)

	_, err := pipe.Exec(ctx)
	return err
}

// List prunes expired entries from the index and returns the rest, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(s.now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired automata: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list automata: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
