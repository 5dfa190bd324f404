package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/hotel-frontdesk/internal/occupancy"
	"github.com/example/hotel-frontdesk/internal/persistence"
)

// DefaultOpenStayHorizonDays is how far ahead an open-ended check-in is
// checked against reservations.
const DefaultOpenStayHorizonDays = 30

// RepositoryProvider hands out repositories bound to the backing store.
type RepositoryProvider interface {
	Repositories() persistence.Repositories
}

// OccupancyConfig bounds grid requests.
type OccupancyConfig struct {
	MaxGridDays         int
	OpenStayHorizonDays int
}

func (c OccupancyConfig) withDefaults() OccupancyConfig {
	if c.MaxGridDays <= 0 {
		c.MaxGridDays = occupancy.DefaultMaxDays
	}
	if c.OpenStayHorizonDays <= 0 {
		c.OpenStayHorizonDays = DefaultOpenStayHorizonDays
	}
	if c.OpenStayHorizonDays > c.MaxGridDays {
		c.OpenStayHorizonDays = c.MaxGridDays
	}
	return c
}

// horizonEnd returns the exclusive end used for an open period starting at from.
func (c OccupancyConfig) horizonEnd(from time.Time) time.Time {
	return occupancy.AddDays(from, c.OpenStayHorizonDays)
}

// GridRequest selects the window and rooms of an occupancy grid. An empty
// RoomNumbers selects every room.
type GridRequest struct {
	Start       time.Time
	End         time.Time
	RoomNumbers []string
}

// OccupancyService builds grids from the store and answers availability and
// guest questions against them.
type OccupancyService struct {
	repos   RepositoryProvider
	config  OccupancyConfig
	metrics Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// NewOccupancyService constructs an occupancy service.
func NewOccupancyService(repos RepositoryProvider, config OccupancyConfig, metrics Metrics, logger *slog.Logger) *OccupancyService {
	return &OccupancyService{
		repos:   repos,
		config:  config.withDefaults(),
		metrics: metricsOrNoop(metrics),
		now:     time.Now,
		logger:  defaultLogger(logger),
	}
}

func (s *OccupancyService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "OccupancyService", operation, attrs...)
}

// BuildOccupancyGrid loads rooms, active reservations and stays for the
// closed window [Start, End] and resolves them into a grid.
func (s *OccupancyService) BuildOccupancyGrid(ctx context.Context, req GridRequest) (grid *occupancy.Grid, err error) {
	if s == nil || s.repos == nil {
		return nil, fmt.Errorf("OccupancyService is not configured")
	}

	start, end := occupancy.Day(req.Start), occupancy.Day(req.End)
	logger := s.loggerWith(ctx, "BuildOccupancyGrid",
		"start", occupancy.FormatDay(start),
		"end", occupancy.FormatDay(end),
	)
	began := s.now()
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build occupancy grid", "error", err, "error_kind", ErrorKind(err))
			return
		}
		elapsed := s.now().Sub(began)
		s.metrics.ObserveGridBuild(len(grid.Rooms()), len(grid.Days()), elapsed)
		logger.DebugContext(ctx, "occupancy grid built", "rooms", len(grid.Rooms()), "elapsed", elapsed)
	}()

	if err = occupancy.ValidateWindow(start, end, s.config.MaxGridDays); err != nil {
		return nil, err
	}

	repos := s.repos.Repositories()
	records, err := repos.Rooms.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	rooms, err := selectRooms(records, req.RoomNumbers)
	if err != nil {
		return nil, err
	}

	var (
		reservations []persistence.Reservation
		stays        []persistence.Stay
		until        = occupancy.AddDays(end, 1)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reservations, err = repos.Reservations.FindActiveInRange(gctx, start, until)
		if err != nil {
			return fmt.Errorf("load reservations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stays, err = repos.Stays.FindInRange(gctx, start, until)
		if err != nil {
			return fmt.Errorf("load stays: %w", err)
		}
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	gridReservations := make([]occupancy.Reservation, 0, len(reservations))
	for _, r := range reservations {
		gridReservations = append(gridReservations, occupancyReservation(r))
	}
	gridStays := make([]occupancy.Stay, 0, len(stays))
	for _, st := range stays {
		gridStays = append(gridStays, occupancyStay(st))
	}

	return occupancy.BuildGridWithOptions(rooms, gridReservations, gridStays, start, end,
		occupancy.GridOptions{MaxDays: s.config.MaxGridDays})
}

// CheckAvailability decides whether the queried room can take a booking,
// given the selections already staged in the caller's session.
//
// Open-ended check-ins are resolved on the grid over the configured horizon
// and checked against every active reservation past it.
func (s *OccupancyService) CheckAvailability(ctx context.Context, query AvailabilityQuery, staged []Selection) (decision occupancy.Decision, err error) {
	if s == nil || s.repos == nil {
		return occupancy.Decision{}, fmt.Errorf("OccupancyService is not configured")
	}
	defer func() {
		if err == nil {
			s.metrics.ObserveDecision(query.Mode.String(), decision.Reason)
		}
	}()

	vErr := &ValidationError{}
	if query.RoomNumber == "" {
		vErr.add("room_number", "room number is required")
	}
	if query.From.IsZero() {
		vErr.add("from", "from is required")
	}
	if vErr.HasErrors() {
		return occupancy.Decision{}, vErr
	}

	period := occupancy.IntervalFromPtr(query.From, query.To)
	if !period.Valid() || (period.IsOpen() && query.Mode != occupancy.ModeCheckIn) {
		return occupancy.Decision{Reason: occupancy.ReasonInvalidRange}, nil
	}

	until := period.To
	if period.IsOpen() {
		until = s.config.horizonEnd(period.From)
	}
	if occupancy.DaysBetween(period.From, until) > s.config.MaxGridDays {
		vErr.add("to", fmt.Sprintf("range exceeds %d days", s.config.MaxGridDays))
		return occupancy.Decision{}, vErr
	}

	grid, err := s.BuildOccupancyGrid(ctx, GridRequest{
		Start:       period.From,
		End:         occupancy.AddDays(until, -1),
		RoomNumbers: []string{query.RoomNumber},
	})
	if err != nil {
		return occupancy.Decision{}, err
	}

	opts := occupancy.CheckOptions{
		Mode:           query.Mode,
		AcceptReserved: query.AcceptReserved,
	}
	if period.IsOpen() && query.Mode == occupancy.ModeCheckIn {
		later, err := s.repos.Repositories().Reservations.ListOverlapping(ctx, query.RoomNumber, until, nil)
		if err != nil {
			return occupancy.Decision{}, fmt.Errorf("load later reservations: %w", err)
		}
		for _, r := range later {
			opts.LaterReservations = append(opts.LaterReservations, occupancyReservation(r))
		}
	}

	decision, err = occupancy.CheckAvailable(grid, query.RoomNumber, period, stagedSelections(staged), opts)
	if err != nil {
		return occupancy.Decision{}, err
	}

	s.loggerWith(ctx, "CheckAvailability",
		"room_number", query.RoomNumber,
		"mode", query.Mode.String(),
	).DebugContext(ctx, "availability decided", "available", decision.Available, "reason", decision.Reason)
	return decision, nil
}

// ValidateGuestAssignment checks the guests of a stay selection against
// persisted stays and against the stays staged earlier in the session.
func (s *OccupancyService) ValidateGuestAssignment(ctx context.Context, sel Selection, staged []Selection) (decision occupancy.GuestDecision, err error) {
	if s == nil || s.repos == nil {
		return occupancy.GuestDecision{}, fmt.Errorf("OccupancyService is not configured")
	}
	defer func() {
		if err == nil {
			s.metrics.ObserveDecision("guests", decision.Reason)
		}
	}()

	repos := s.repos.Repositories()
	record, err := repos.Rooms.GetRoom(ctx, sel.RoomNumber)
	if err != nil {
		return occupancy.GuestDecision{}, mapRoomRepoError(err)
	}

	period := sel.Period()
	until := period.To
	if period.IsOpen() {
		until = farFuture
	}
	records, err := repos.Stays.FindInRange(ctx, period.From, until)
	if err != nil {
		return occupancy.GuestDecision{}, fmt.Errorf("load stays: %w", err)
	}

	others := make([]occupancy.Stay, 0, len(records)+len(staged))
	for _, st := range records {
		others = append(others, occupancyStay(st))
	}
	for _, st := range stagedStays(staged) {
		if st.ID != sel.ID {
			others = append(others, st)
		}
	}

	return occupancy.ValidateGuestAssignment(occupancy.CandidateStay{
		RoomNumber: sel.RoomNumber,
		Period:     period,
		Guests:     occupancyGuests(sel.Guests),
	}, occupancyRoom(record), others)
}

func selectRooms(records []persistence.Room, numbers []string) ([]occupancy.Room, error) {
	if len(numbers) == 0 {
		rooms := make([]occupancy.Room, 0, len(records))
		for _, r := range records {
			rooms = append(rooms, occupancyRoom(r))
		}
		return rooms, nil
	}

	byNumber := make(map[string]persistence.Room, len(records))
	for _, r := range records {
		byNumber[r.Number] = r
	}
	rooms := make([]occupancy.Room, 0, len(numbers))
	seen := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		r, ok := byNumber[n]
		if !ok {
			return nil, fmt.Errorf("%w: room %s", ErrNotFound, n)
		}
		rooms = append(rooms, occupancyRoom(r))
	}
	return rooms, nil
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("room", "room violates a storage constraint")
		return vErr
	}
	return err
}
