// Package cache - кэш со сроком свежести для тяжелых агрегатов (статистика главной страницы).
//
// Одна запись на ключ, перезаписывается целиком при каждом успешном обновлении.
// Если обновить не удалось, отдаем прежнее значение, даже протухшее.
// Блокировок нет: два параллельных обновления оба вызовут producer,
// в хранилище останется результат последнего.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound - записи под ключом нет.
var ErrNotFound = errors.New("cache: entry not found")

// Record - то, что физически лежит в хранилище.
// Поля названы так же, как запись панели в localStorage: {"stats": ..., "timestamp": ms}.
type Record struct {
	Value     json.RawMessage `json:"stats"`
	Timestamp int64           `json:"timestamp"` // epoch millis
}

// Store - хранилище записей (память, Redis, Postgres).
type Store interface {
	Load(ctx context.Context, key string) (Record, error)
	Save(ctx context.Context, key string, rec Record) error
}

// Outcome - откуда взялось значение.
type Outcome string

const (
	OutcomeHit       Outcome = "hit"       // свежая запись, producer не вызывался
	OutcomeRefreshed Outcome = "refreshed" // producer отработал, запись обновлена
	OutcomeFallback  Outcome = "fallback"  // producer упал, отдаем старую запись
)

type Lookup[T any] struct {
	Value    T
	StoredAt time.Time
	Outcome  Outcome
	// RefreshErr заполнен только для OutcomeFallback.
	RefreshErr error
}

// Stale - значение отдано как деградация после ошибки обновления.
func (l Lookup[T]) Stale() bool { return l.Outcome == OutcomeFallback }

// Observer получает исход каждого обращения (метрики).
type Observer interface {
	ObserveCache(key string, outcome string)
}

type FreshnessCache[T any] struct {
	store    Store
	now      func() time.Time
	logger   *zap.Logger
	observer Observer
}

type Option func(*options)

type options struct {
	now      func() time.Time
	logger   *zap.Logger
	observer Observer
}

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

func WithObserver(obs Observer) Option { return func(o *options) { o.observer = obs } }

func New[T any](store Store, opts ...Option) *FreshnessCache[T] {
	o := options{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &FreshnessCache[T]{
		store:    store,
		now:      o.now,
		logger:   o.logger.With(zap.String("mod", "cache")),
		observer: o.observer,
	}
}

// GetOrRefresh отдает значение под ключом, пока оно моложе ttl, иначе вызывает producer.
func (c *FreshnessCache[T]) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, producer func(ctx context.Context) (T, error)) (Lookup[T], error) {
	cached, storedAt, found := c.load(ctx, key)

	now := c.now()
	if found && now.Sub(storedAt) < ttl {
		c.observe(key, OutcomeHit)
		return Lookup[T]{Value: cached, StoredAt: storedAt, Outcome: OutcomeHit}, nil
	}

	fresh, err := producer(ctx)
	if err != nil {
		if found {
			c.logger.Warn("refresh failed, serving stale entry",
				zap.String("key", key),
				zap.Time("stored_at", storedAt),
				zap.Error(err))
			c.observe(key, OutcomeFallback)
			return Lookup[T]{Value: cached, StoredAt: storedAt, Outcome: OutcomeFallback, RefreshErr: err}, nil
		}
		c.observe(key, "error")
		var zero Lookup[T]
		return zero, err
	}

	// время записи берем после producer: он мог работать долго
	storedAt = c.now()
	if err := c.save(ctx, key, fresh, storedAt); err != nil {
		// значение уже посчитано, отдаем его, просто следующий вызов пересчитает снова
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	c.observe(key, OutcomeRefreshed)
	return Lookup[T]{Value: fresh, StoredAt: storedAt, Outcome: OutcomeRefreshed}, nil
}

// Peek читает запись без обновления и без учета срока.
func (c *FreshnessCache[T]) Peek(ctx context.Context, key string) (T, time.Time, bool) {
	return c.load(ctx, key)
}

func (c *FreshnessCache[T]) load(ctx context.Context, key string) (T, time.Time, bool) {
	var zero T
	rec, err := c.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("cache read failed, treating as absent", zap.String("key", key), zap.Error(err))
		}
		return zero, time.Time{}, false
	}

	var v T
	if err := json.Unmarshal(rec.Value, &v); err != nil {
		c.logger.Warn("cache entry undecodable, treating as absent", zap.String("key", key), zap.Error(err))
		return zero, time.Time{}, false
	}
	return v, time.UnixMilli(rec.Timestamp), true
}

func (c *FreshnessCache[T]) save(ctx context.Context, key string, v T, at time.Time) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	return c.store.Save(ctx, key, Record{Value: raw, Timestamp: at.UnixMilli()})
}

func (c *FreshnessCache[T]) observe(key string, outcome Outcome) {
	if c.observer != nil {
		c.observer.ObserveCache(key, string(outcome))
	}
}
