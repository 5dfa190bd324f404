package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/example/hotel-frontdesk/internal/application"
	"github.com/example/hotel-frontdesk/internal/config"
	"github.com/example/hotel-frontdesk/internal/logging"
	"github.com/example/hotel-frontdesk/internal/metrics"
	"github.com/example/hotel-frontdesk/internal/persistence"
	"github.com/example/hotel-frontdesk/internal/persistence/memory"
	"github.com/example/hotel-frontdesk/internal/persistence/sqlite"
	"github.com/example/hotel-frontdesk/internal/persistence/sqlite/migration"
	"github.com/example/hotel-frontdesk/internal/sessionstore"
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   persistence.Store
	sqlite  *sqlite.Storage
	metrics *metrics.Recorder

	closers []func() error
}

func loadApp(configPath string, logOutput io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		logger: logging.New(logOutput, cfg.LogLevel),
	}, nil
}

// openStore opens the configured persistence backend. SQLite stores are
// migrated when migrate is set.
func (a *app) openStore(ctx context.Context, migrate bool) error {
	switch a.cfg.Store {
	case config.StoreMemory:
		a.store = memory.Open()
	case config.StoreSQLite:
		storage, err := sqlite.Open(migration.DefaultSQLiteConfig(a.cfg.SQLitePath), a.logger)
		if err != nil {
			return fmt.Errorf("open sqlite %s: %w", a.cfg.SQLitePath, err)
		}
		a.sqlite = storage
		a.store = storage
		if migrate {
			if err := storage.Migrate(ctx); err != nil {
				_ = storage.Close()
				return fmt.Errorf("apply migrations: %w", err)
			}
		}
	default:
		return fmt.Errorf("unsupported store %q", a.cfg.Store)
	}
	a.closers = append(a.closers, a.store.Close)
	return nil
}

func (a *app) openSessionStore(ctx context.Context) (application.SessionStore, error) {
	switch a.cfg.SessionStore {
	case config.SessionStoreRedis:
		client, err := sessionstore.NewRedisClient(ctx, sessionstore.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return sessionstore.NewRedisStore(client, nil), nil
	default:
		return application.NewMemorySessionStore(application.DefaultMaxSessions, nil), nil
	}
}

func (a *app) occupancyConfig() application.OccupancyConfig {
	return application.OccupancyConfig{
		MaxGridDays:         a.cfg.MaxGridDays,
		OpenStayHorizonDays: a.cfg.OpenStayHorizonDays,
	}
}

func (a *app) occupancyService(m application.Metrics) *application.OccupancyService {
	return application.NewOccupancyService(a.store, a.occupancyConfig(), m, a.logger)
}

func (a *app) health(ctx context.Context) error {
	if a.sqlite != nil {
		return a.sqlite.Ping(ctx)
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newID() string {
	return uuid.NewString()
}
