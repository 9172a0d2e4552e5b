// Package testing provides testing utilities and helpers for the portfolio tracker.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/database"
)

// NewTestDB creates a temporary-file SQLite database with the embedded schema applied.
// Returns the database instance and a cleanup function that closes and removes it.
//
// Supported schema names:
//   - "market" - instruments, price_bars, holdings
//   - "client_data" - quotes, profiles
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, tmpPath := openTempDB(t, name)

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, cleanupFunc(t, db, name, tmpPath)
}

// NewTestDBWithSchema creates a temporary-file SQLite database with a custom schema.
func NewTestDBWithSchema(t *testing.T, name string, schema string) (*database.DB, func()) {
	t.Helper()

	db, tmpPath := openTempDB(t, name)

	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			_ = db.Close()
			_ = os.Remove(tmpPath)
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}

	return db, cleanupFunc(t, db, name, tmpPath)
}

// Temporary files rather than :memory: so every pooled connection sees the same data.
func openTempDB(t *testing.T, name string) (*database.DB, string) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	profile := database.ProfileStandard
	if name == database.NameClientData {
		profile = database.ProfileCache
	}

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	return db, tmpPath
}

func cleanupFunc(t *testing.T, db *database.DB, name, tmpPath string) func() {
	return func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(tmpPath + suffix)
		}
	}
}
