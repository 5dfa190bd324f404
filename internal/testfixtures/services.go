package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/hotel-frontdesk/internal/application"
	"github.com/example/hotel-frontdesk/internal/persistence"
)

// Services is a complete application stack over one store.
type Services struct {
	Store     persistence.Store
	Sessions  application.SessionStore
	Occupancy *application.OccupancyService
	Committer *application.BookingCommitter
	Session   *application.SessionService
	Rooms     *application.RoomService
	Clock     *Clock
	IDs       *IDGenerator
}

// ServiceOption configures NewServices.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	clock     *Clock
	ids       *IDGenerator
	occupancy application.OccupancyConfig
	session   application.SessionConfig
	metrics   application.Metrics
	logger    *slog.Logger
}

// WithClock overrides the clock.
func WithClock(clock *Clock) ServiceOption {
	return func(c *serviceConfig) { c.clock = clock }
}

// WithSessionConfig overrides session limits.
func WithSessionConfig(config application.SessionConfig) ServiceOption {
	return func(c *serviceConfig) { c.session = config }
}

// WithOccupancyConfig overrides grid limits.
func WithOccupancyConfig(config application.OccupancyConfig) ServiceOption {
	return func(c *serviceConfig) { c.occupancy = config }
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m application.Metrics) ServiceOption {
	return func(c *serviceConfig) { c.metrics = m }
}

// NewServices wires every service over store with deterministic ids and time.
func NewServices(store persistence.Store, opts ...ServiceOption) *Services {
	cfg := serviceConfig{
		clock:   NewClock(time.Time{}),
		ids:     NewIDGenerator("id"),
		session: application.SessionConfig{TTL: time.Hour},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	sessions := application.NewMemorySessionStore(0, cfg.clock.NowFunc())
	occ := application.NewOccupancyService(store, cfg.occupancy, cfg.metrics, cfg.logger)
	committer := application.NewBookingCommitter(store, cfg.ids.NextFunc(), cfg.clock.NowFunc(), cfg.metrics, cfg.logger)

	return &Services{
		Store:     store,
		Sessions:  sessions,
		Occupancy: occ,
		Committer: committer,
		Session: application.NewSessionService(sessions, occ, committer, cfg.session,
			cfg.ids.NextFunc(), cfg.clock.NowFunc(), cfg.metrics, cfg.logger),
		Rooms: application.NewRoomServiceWithLogger(store.Repositories().Rooms, cfg.clock.NowFunc(), cfg.logger),
		Clock: cfg.clock,
		IDs:   cfg.ids,
	}
}
