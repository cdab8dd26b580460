// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitbaba/internal/realtime"
	"github.com/mmynk/splitbaba/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
// After every committed write to expenses, payments or memberships it
// publishes a realtime.Event for the affected household.
type SQLiteStore struct {
	db        *sql.DB
	publisher realtime.Publisher
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithPublisher sets where change events are published.
func WithPublisher(p realtime.Publisher) Option {
	return func(s *SQLiteStore) {
		s.publisher = p
	}
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string, opts ...Option) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps PRAGMAs in effect and serializes writers.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &SQLiteStore{db: db, publisher: realtime.Discard}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// notify publishes a change event. The write has already been committed, so
// a publish failure is logged rather than returned.
func (s *SQLiteStore) notify(ctx context.Context, householdID string, table realtime.Table) {
	if err := s.publisher.Publish(ctx, realtime.NewEvent(householdID, table)); err != nil {
		slog.WarnContext(ctx, "Failed to publish change event",
			"household_id", householdID,
			"table", table,
			"error", err,
		)
	}
}
