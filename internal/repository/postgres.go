// Package repository provides option and transient storage backed by
// PostgreSQL, Redis, or process memory.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements durable options and expiring transients on top of
// a PostgreSQL database.
type PostgresStore struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// NewPostgresStore creates a new PostgresStore with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance whose schema
// was created by db.InitPostgres.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db, Now: time.Now}
}

// GetOption loads the JSON value stored under key into dest.
// It returns false without error when the option does not exist.
func (s *PostgresStore) GetOption(ctx context.Context, key string, dest any) (bool, error) {
	var raw []byte
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM options WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("GetOption %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("GetOption %s: decode: %w", key, err)
	}
	return true, nil
}

// SetOption inserts or replaces the option stored under key.
func (s *PostgresStore) SetOption(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("SetOption %s: encode: %w", key, err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO options (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, string(raw))
	if err != nil {
		return fmt.Errorf("SetOption %s: %w", key, err)
	}
	return nil
}

// DeleteOption removes the option stored under key. Missing keys are not an error.
func (s *PostgresStore) DeleteOption(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM options WHERE key = $1`, key); err != nil {
		return fmt.Errorf("DeleteOption %s: %w", key, err)
	}
	return nil
}

// DeleteOptions removes every listed option in a single statement.
func (s *PostgresStore) DeleteOptions(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM options WHERE key = ANY($1)`, pq.Array(keys)); err != nil {
		return fmt.Errorf("DeleteOptions: %w", err)
	}
	return nil
}

// SetTransient stores value under key until ttl elapses.
func (s *PostgresStore) SetTransient(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("SetTransient %s: encode: %w", key, err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO transients (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, key, string(raw), s.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("SetTransient %s: %w", key, err)
	}
	return nil
}

// GetTransient loads a live transient into dest. Expired rows read as missing.
func (s *PostgresStore) GetTransient(ctx context.Context, key string, dest any) (bool, error) {
	var raw []byte
	err := s.DB.QueryRowContext(ctx, `
		SELECT value FROM transients WHERE key = $1 AND expires_at > $2
	`, key, s.Now()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("GetTransient %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("GetTransient %s: decode: %w", key, err)
	}
	return true, nil
}

// DeleteTransient removes the transient stored under key.
func (s *PostgresStore) DeleteTransient(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM transients WHERE key = $1`, key); err != nil {
		return fmt.Errorf("DeleteTransient %s: %w", key, err)
	}
	return nil
}
