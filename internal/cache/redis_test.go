package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "dashboardStats")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := Record{Value: []byte(`{"currentPrice":48.5}`), Timestamp: 1_700_000_000_000}
	require.NoError(t, store.Save(ctx, "dashboardStats", rec))

	got, err := store.Load(ctx, "dashboardStats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"currentPrice":48.5}`, string(got.Value))
	assert.Equal(t, rec.Timestamp, got.Timestamp)

	raw, err := mr.Get("ricemarket:cache:dashboardStats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"stats":{"currentPrice":48.5},"timestamp":1700000000000}`, raw)
	assert.Zero(t, mr.TTL("ricemarket:cache:dashboardStats"), "stale records must survive for fallback")
}

func TestRedisStore_CorruptRecord(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, mr.Set("ricemarket:cache:k", "{broken"))

	_, err := store.Load(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_WithCache(t *testing.T) {
	store, _ := newRedisStore(t)
	c, _, _ := newTestCache(t, store)
	ctx := context.Background()
	p := &countingProducer{value: 11}

	_, err := c.GetOrRefresh(ctx, "k", ttl, p.produce)
	require.NoError(t, err)
	got, err := c.GetOrRefresh(ctx, "k", ttl, p.produce)
	require.NoError(t, err)

	assert.Equal(t, OutcomeHit, got.Outcome)
	assert.Equal(t, 11, got.Value)
	assert.Equal(t, 1, p.calls)
}
