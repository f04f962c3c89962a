package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const ttl = 300000 * time.Millisecond

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingProducer struct {
	calls int
	value int
	err   error
}

func (p *countingProducer) produce(context.Context) (int, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	return p.value, nil
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) ObserveCache(_ string, outcome string) {
	o.outcomes = append(o.outcomes, outcome)
}

func newTestCache(t *testing.T, store Store) (*FreshnessCache[int], *fakeClock, *recordingObserver) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	obs := &recordingObserver{}
	c := New[int](store, WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)), WithObserver(obs))
	return c, clock, obs
}

func TestGetOrRefresh_TTLBoundary(t *testing.T) {
	c, clock, obs := newTestCache(t, NewMemoryStore())
	ctx := context.Background()
	p := &countingProducer{value: 1}

	first, err := c.GetOrRefresh(ctx, "dashboardStats", ttl, p.produce)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefreshed, first.Outcome)
	assert.Equal(t, 1, first.Value)
	assert.Equal(t, 1, p.calls)

	clock.Advance(299999 * time.Millisecond)
	p.value = 2
	hit, err := c.GetOrRefresh(ctx, "dashboardStats", ttl, p.produce)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHit, hit.Outcome)
	assert.Equal(t, 1, hit.Value)
	assert.Equal(t, 1, p.calls, "producer must not run inside the ttl window")

	clock.Advance(2 * time.Millisecond) // 300001 ms since the store
	refreshed, err := c.GetOrRefresh(ctx, "dashboardStats", ttl, p.produce)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefreshed, refreshed.Outcome)
	assert.Equal(t, 2, refreshed.Value)
	assert.Equal(t, 2, p.calls)

	assert.Equal(t, []string{"refreshed", "hit", "refreshed"}, obs.outcomes)
}

func TestGetOrRefresh_ExactTTLIsStale(t *testing.T) {
	c, clock, _ := newTestCache(t, NewMemoryStore())
	ctx := context.Background()
	p := &countingProducer{value: 1}

	_, err := c.GetOrRefresh(ctx, "k", ttl, p.produce)
	require.NoError(t, err)

	clock.Advance(ttl)
	_, err = c.GetOrRefresh(ctx, "k", ttl, p.produce)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestGetOrRefresh_FallbackToStale(t *testing.T) {
	c, clock, obs := newTestCache(t, NewMemoryStore())
	ctx := context.Background()
	p := &countingProducer{value: 7}

	stored, err := c.GetOrRefresh(ctx, "k", ttl, p.produce)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	boom := errors.New("nl-sql down")
	p.err = boom

	got, err := c.GetOrRefresh(ctx, "k", ttl, p.produce)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallback, got.Outcome)
	assert.True(t, got.Stale())
	assert.Equal(t, 7, got.Value)
	assert.Equal(t, stored.StoredAt, got.StoredAt)
	assert.ErrorIs(t, got.RefreshErr, boom)
	assert.Equal(t, "fallback", obs.outcomes[len(obs.outcomes)-1])
}

func TestGetOrRefresh_FailureWithoutEntry(t *testing.T) {
	c, _, _ := newTestCache(t, NewMemoryStore())
	boom := errors.New("nl-sql down")
	p := &countingProducer{err: boom}

	_, err := c.GetOrRefresh(context.Background(), "k", ttl, p.produce)
	assert.ErrorIs(t, err, boom)
}

func TestGetOrRefresh_KeysAreIndependent(t *testing.T) {
	c, _, _ := newTestCache(t, NewMemoryStore())
	ctx := context.Background()

	a := &countingProducer{value: 1}
	b := &countingProducer{value: 2}

	la, err := c.GetOrRefresh(ctx, "a", ttl, a.produce)
	require.NoError(t, err)
	lb, err := c.GetOrRefresh(ctx, "b", ttl, b.produce)
	require.NoError(t, err)

	assert.Equal(t, 1, la.Value)
	assert.Equal(t, 2, lb.Value)
}

type brokenStore struct {
	loadErr error
	saveErr error
}

func (s brokenStore) Load(context.Context, string) (Record, error) { return Record{}, s.loadErr }
func (s brokenStore) Save(context.Context, string, Record) error    { return s.saveErr }

func TestGetOrRefresh_StoreFailures(t *testing.T) {
	c, _, _ := newTestCache(t, brokenStore{loadErr: errors.New("read"), saveErr: errors.New("write")})
	p := &countingProducer{value: 5}

	got, err := c.GetOrRefresh(context.Background(), "k", ttl, p.produce)
	require.NoError(t, err, "a broken store must not break a successful refresh")
	assert.Equal(t, 5, got.Value)
	assert.Equal(t, OutcomeRefreshed, got.Outcome)
}

func TestGetOrRefresh_UndecodableEntryIsAbsent(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "k", Record{Value: []byte(`"not an int"`), Timestamp: 1}))

	c, _, _ := newTestCache(t, store)
	p := &countingProducer{value: 3}

	got, err := c.GetOrRefresh(context.Background(), "k", ttl, p.produce)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Value)
	assert.Equal(t, 1, p.calls)
}

func TestPeek(t *testing.T) {
	c, _, _ := newTestCache(t, NewMemoryStore())
	ctx := context.Background()

	_, _, ok := c.Peek(ctx, "k")
	assert.False(t, ok)

	p := &countingProducer{value: 9}
	_, err := c.GetOrRefresh(ctx, "k", ttl, p.produce)
	require.NoError(t, err)

	v, _, ok := c.Peek(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, 9, v)
}

// Два обновления пустого ключа не сериализуются: продюсер отрабатывает
// дважды, в хранилище остается то, что сохранили последним.
func TestGetOrRefresh_ConcurrentRefreshLastSaveWins(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	c := New[int](NewMemoryStore(), WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()

	var calls atomic.Int32
	started := make(chan struct{}, 2)
	gated := func(gate <-chan struct{}, value int) func(context.Context) (int, error) {
		return func(context.Context) (int, error) {
			calls.Add(1)
			started <- struct{}{}
			<-gate
			return value, nil
		}
	}

	gateA, gateB := make(chan struct{}), make(chan struct{})
	doneA, doneB := make(chan Lookup[int], 1), make(chan Lookup[int], 1)
	go func() {
		l, _ := c.GetOrRefresh(ctx, "dashboardStats", ttl, gated(gateA, 1))
		doneA <- l
	}()
	go func() {
		l, _ := c.GetOrRefresh(ctx, "dashboardStats", ttl, gated(gateB, 2))
		doneB <- l
	}()

	// оба промахнулись мимо пустого ключа и ушли в продюсер
	<-started
	<-started

	close(gateA)
	a := <-doneA
	assert.Equal(t, OutcomeRefreshed, a.Outcome)
	assert.Equal(t, 1, a.Value)

	clock.Advance(time.Second)
	close(gateB)
	b := <-doneB
	assert.Equal(t, OutcomeRefreshed, b.Outcome)
	assert.Equal(t, 2, b.Value)

	assert.Equal(t, int32(2), calls.Load())
	v, storedAt, ok := c.Peek(ctx, "dashboardStats")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.True(t, storedAt.Equal(clock.Now()))
}
