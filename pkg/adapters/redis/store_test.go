package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/desops/pkg/adapters/redis"
	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)

	store := redis.NewFromClient(client)
	ports.RunStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	start := time.Now()
	clock := start
	store := redis.NewFromClient(client, redis.WithTTL(time.Second), redis.WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "plant", ports.ContractAutomaton()))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "plant")

	// Key expiration is driven by miniredis, index pruning by the store clock.
	mr.FastForward(2 * time.Second)
	clock = start.Add(2 * time.Second)

	_, err = store.Load(ctx, "plant", automaton.NewRegistry())
	assert.ErrorIs(t, err, domain.ErrAutomatonNotFound)

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "plant", ports.ContractAutomaton()))

	assert.True(t, mr.Exists("custom:app:plant"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"plant"}, list)
	assert.NoError(t, store.Ping(ctx))
}

func TestRedisStore_CorruptDocument(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)

	require.NoError(t, mr.Set(redis.DefaultPrefix+"broken", "{not json"))
	_, err := store.Load(context.Background(), "broken", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAutomatonNotFound)
}
