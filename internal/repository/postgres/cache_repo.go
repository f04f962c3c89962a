package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/ricemarket-console/internal/cache"
)

// CacheRepo - хранилище записей FreshnessCache в Postgres.
// Одна строка на ключ, каждая запись перезаписывает строку целиком.
type CacheRepo struct {
	db *sql.DB
}

const schemaCacheEntries = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	stored_at  BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// NewCacheRepo открывает пул соединений. Доступность базы проверяется отдельно через Ping.
func NewCacheRepo(connString string) (*CacheRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &CacheRepo{db: db}, nil
}

func NewCacheRepoFromDB(db *sql.DB) *CacheRepo {
	return &CacheRepo{db: db}
}

// EnsureSchema создает таблицу, если ее еще нет
func (r *CacheRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaCacheEntries); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

func (r *CacheRepo) Load(ctx context.Context, key string) (cache.Record, error) {
	query := `SELECT value, stored_at FROM cache_entries WHERE key = $1`

	var rec cache.Record
	var value []byte
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value, &rec.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cache.Record{}, cache.ErrNotFound
		}
		return cache.Record{}, fmt.Errorf("postgres: load cache entry: %w", err)
	}
	rec.Value = value
	return rec, nil
}

func (r *CacheRepo) Save(ctx context.Context, key string, rec cache.Record) error {
	query := `
		INSERT INTO cache_entries (key, value, stored_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, stored_at = EXCLUDED.stored_at, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, key, []byte(rec.Value), rec.Timestamp); err != nil {
		return fmt.Errorf("postgres: save cache entry: %w", err)
	}
	return nil
}

// Ping проверяет доступность базы при старте
func (r *CacheRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *CacheRepo) Close() error {
	return r.db.Close()
}
