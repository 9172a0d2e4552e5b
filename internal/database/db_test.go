package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func tableNames(t *testing.T, db *DB) []string {
	t.Helper()

	rows, err := db.Conn().Query("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())

	return names
}

func TestMigrate_Market(t *testing.T) {
	db := newTestDB(t, NameMarket, ProfileStandard)

	require.NoError(t, db.Migrate())
	assert.Equal(t, []string{"holdings", "instruments", "price_bars"}, tableNames(t, db))

	// Idempotent
	require.NoError(t, db.Migrate())
}

func TestMigrate_ClientData(t *testing.T) {
	db := newTestDB(t, NameClientData, ProfileCache)

	require.NoError(t, db.Migrate())
	assert.Equal(t, []string{"profiles", "quotes"}, tableNames(t, db))
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)

	require.NoError(t, db.Migrate())
	assert.Empty(t, tableNames(t, db))
}

func TestInstrumentSymbolIsCaseInsensitiveUnique(t *testing.T) {
	db := newTestDB(t, NameMarket, ProfileStandard)
	require.NoError(t, db.Migrate())

	_, err := db.Conn().Exec("INSERT INTO instruments (symbol, created_at) VALUES ('AAPL', 0)")
	require.NoError(t, err)

	_, err = db.Conn().Exec("INSERT INTO instruments (symbol, created_at) VALUES ('aapl', 0)")
	assert.Error(t, err)
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t, "tx", ProfileStandard)
	_, err := db.Conn().Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM t").Scan(&n))
		return n
	}

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO t (v) VALUES (1)")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t (v) VALUES (2)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count())

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO t (v) VALUES (3)")
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
	assert.Equal(t, 1, count())

	assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
}

func TestHealthCheckAndStats(t *testing.T) {
	db := newTestDB(t, NameMarket, ProfileStandard)
	require.NoError(t, db.Migrate())

	require.NoError(t, db.HealthCheck(context.Background()))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Positive(t, stats.PageCount)
	assert.Positive(t, stats.PageSize)
}
