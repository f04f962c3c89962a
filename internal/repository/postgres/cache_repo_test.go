package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/ricemarket-console/internal/cache"
)

func newMockRepo(t *testing.T) (*CacheRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCacheRepoFromDB(db), mock
}

func TestCacheRepo_Load(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value, stored_at FROM cache_entries WHERE key = $1`)).
		WithArgs("dashboardStats").
		WillReturnRows(sqlmock.NewRows([]string{"value", "stored_at"}).
			AddRow([]byte(`{"currentPrice":48.5}`), int64(1700000000000)))

	rec, err := repo.Load(context.Background(), "dashboardStats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"currentPrice":48.5}`, string(rec.Value))
	assert.Equal(t, int64(1700000000000), rec.Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepo_LoadMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value, stored_at FROM cache_entries`)).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestCacheRepo_LoadFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value, stored_at FROM cache_entries`)).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Load(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrNotFound)
}

func TestCacheRepo_SaveUpserts(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cache_entries`)).
		WithArgs("dashboardStats", []byte(`{"a":1}`), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), "dashboardStats", cache.Record{Value: []byte(`{"a":1}`), Timestamp: 42})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepo_EnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS cache_entries`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
