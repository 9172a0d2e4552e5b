// Package clientdata provides persistent caching for market-data provider responses.
// All data is stored as JSON blobs with expiration timestamps for cache-first behavior.
package clientdata

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Cache tables in client_data.db, keyed by uppercase symbol.
const (
	TableQuotes   = "quotes"
	TableProfiles = "profiles"
)

// AllTables lists all tables in client_data.db for cleanup operations.
var AllTables = []string{
	TableQuotes,
	TableProfiles,
}

var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Repository provides cache operations for client data.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// validateTable ensures the table name is in our allowed list.
// Table names are interpolated into SQL, so only known tables pass.
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Store saves data with expiration = now + ttl, replacing any existing entry.
func (r *Repository) Store(table, key string, data interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (symbol, data, expires_at) VALUES (?, ?, ?)",
		table,
	)

	if _, err := r.db.Exec(query, key, string(jsonData), expiresAt); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh returns data only if expires_at > now.
// Returns nil, nil if the key doesn't exist or data is expired.
func (r *Repository) GetIfFresh(table, key string) (json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE symbol = ? AND expires_at > ?", table)

	var data string
	err := r.db.QueryRow(query, key, time.Now().Unix()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return json.RawMessage(data), nil
}

// Get returns data regardless of expiration status.
// Used as a fallback when the provider fails: stale data is better than no data.
// Returns nil, nil if the key doesn't exist.
func (r *Repository) Get(table, key string) (json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE symbol = ?", table)

	var data string
	err := r.db.QueryRow(query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return json.RawMessage(data), nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE symbol = ?", table)
	if _, err := r.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return nil
}

// DeleteExpired removes all rows where expires_at < now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)

	result, err := r.db.Exec(query, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}

	return deleted, nil
}

// DeleteAllExpired removes all expired entries from all tables.
// Returns a map of table name to number of rows deleted.
func (r *Repository) DeleteAllExpired() (map[string]int64, error) {
	results := make(map[string]int64)

	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(table)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}

	return results, nil
}
