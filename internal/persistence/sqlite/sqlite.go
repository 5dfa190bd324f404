// Package sqlite implements the persistence repositories on SQLite.
//
// Days are stored as YYYY-MM-DD text so that range predicates compare
// lexicographically. Write transactions begin with BEGIN IMMEDIATE, which
// takes the database write lock before the first read and serialises
// concurrent commits.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/example/hotel-frontdesk/internal/persistence"
	"github.com/example/hotel-frontdesk/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded schema migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Storage bundles the connection pool with the repositories built on it.
type Storage struct {
	pool   *ConnectionPool
	logger *slog.Logger
}

// Open connects to the database described by config.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending embedded migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	return s.migrations().RunMigrations(ctx)
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.MigrationStatus, error) {
	return s.migrations().GetMigrationStatus(ctx)
}

func (s *Storage) migrations() migration.MigrationManager {
	return migration.NewMigrationManager(
		migration.NewFileScanner(Migrations()),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
}

// Repositories returns repositories bound to the connection pool.
func (s *Storage) Repositories() persistence.Repositories {
	return bind(s.pool.DB())
}

// WithinTransaction runs fn with repositories bound to one transaction.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(repos persistence.Repositories) error) error {
	return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(bind(tx))
	})
}

func bind(q querier) persistence.Repositories {
	return persistence.Repositories{
		Rooms:        NewRoomRepository(q),
		Reservations: NewReservationRepository(q),
		Stays:        NewStayRepository(q),
	}
}

const dayLayout = "2006-01-02"

func formatDay(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

func parseDay(value string) (time.Time, error) {
	t, err := time.ParseInLocation(dayLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", value, err)
	}
	return t, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}
