package application

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/example/hotel-frontdesk/internal/occupancy"
)

// Session defaults.
const (
	DefaultSessionTTL           = 30 * time.Minute
	DefaultMaxSessionSelections = 50
)

// SessionConfig tunes working sessions.
type SessionConfig struct {
	TTL           time.Duration
	MaxSelections int
}

// SessionService manages working sessions: staging validated selections,
// discarding them, and committing them as one batch.
type SessionService struct {
	store       SessionStore
	occupancy   *OccupancyService
	committer   *BookingCommitter
	config      SessionConfig
	idGenerator func() string
	now         func() time.Time
	metrics     Metrics
	logger      *slog.Logger

	// locks serialise read-modify-write cycles per session in this process.
	locks [sessionLockStripes]sync.Mutex
}

const sessionLockStripes = 64

func (s *SessionService) lock(sessionID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	mu := &s.locks[h.Sum32()%sessionLockStripes]
	mu.Lock()
	return mu.Unlock
}

// NewSessionService wires a session service.
func NewSessionService(store SessionStore, occupancySvc *OccupancyService, committer *BookingCommitter, config SessionConfig, idGenerator func() string, now func() time.Time, metrics Metrics, logger *slog.Logger) *SessionService {
	if config.TTL <= 0 {
		config.TTL = DefaultSessionTTL
	}
	if config.MaxSelections <= 0 {
		config.MaxSelections = DefaultMaxSessionSelections
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		store:       store,
		occupancy:   occupancySvc,
		committer:   committer,
		config:      config,
		idGenerator: idGenerator,
		now:         now,
		metrics:     metricsOrNoop(metrics),
		logger:      defaultLogger(logger),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// Open starts an empty working session.
func (s *SessionService) Open(ctx context.Context) (WorkingSession, error) {
	now := s.now()
	session := WorkingSession{
		ID:        s.idGenerator(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.TTL),
	}
	if err := s.store.Create(ctx, session); err != nil {
		s.loggerWith(ctx, "Open").ErrorContext(ctx, "failed to open session", "error", err, "error_kind", ErrorKind(err))
		return WorkingSession{}, err
	}
	s.metrics.ObserveSession(SessionEventOpened)
	s.loggerWith(ctx, "Open", "session_id", session.ID).InfoContext(ctx, "session opened")
	return session, nil
}

// Get returns a working session with its staged selections.
func (s *SessionService) Get(ctx context.Context, id string) (WorkingSession, error) {
	return s.store.Get(ctx, id)
}

// Stage validates sel against the grid, the session's staged selections and,
// for stays, the guest rules, then appends it to the session. A rejected
// selection is returned as *AvailabilityError and leaves the session as is.
func (s *SessionService) Stage(ctx context.Context, sessionID string, sel Selection) (staged Selection, err error) {
	logger := s.loggerWith(ctx, "Stage",
		"session_id", sessionID,
		"room_number", sel.RoomNumber,
		"kind", string(sel.Kind),
	)
	defer func() {
		switch {
		case err == nil:
			s.metrics.ObserveSession(SessionEventStaged)
			logger.InfoContext(ctx, "selection staged", "selection_id", staged.ID)
		default:
			var aErr *AvailabilityError
			if errors.As(err, &aErr) {
				s.metrics.ObserveSession(SessionEventRejected)
				logger.InfoContext(ctx, "selection rejected", "reason", aErr.Reason)
				return
			}
			logger.WarnContext(ctx, "failed to stage selection", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	defer s.lock(sessionID)()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return Selection{}, err
	}
	if len(session.Selections) >= s.config.MaxSelections {
		vErr := &ValidationError{}
		vErr.add("selections", fmt.Sprintf("a session holds at most %d selections", s.config.MaxSelections))
		return Selection{}, vErr
	}
	if vErr := validateSelection(sel); vErr.HasErrors() {
		return Selection{}, vErr
	}

	sel = cloneSelection(sel)
	sel.ID = s.idGenerator()
	sel.From = occupancy.Day(sel.From)
	sel.To = dayPtr(sel.To)
	sel.OverriddenReservationIDs = nil

	decision, err := s.occupancy.CheckAvailability(ctx, AvailabilityQuery{
		RoomNumber:     sel.RoomNumber,
		From:           sel.From,
		To:             sel.To,
		Mode:           sel.Mode(),
		AcceptReserved: sel.Kind == SelectionStay && sel.AcceptReservedOverride,
	}, session.Selections)
	if err != nil {
		return Selection{}, err
	}
	if !decision.Available {
		return Selection{}, &AvailabilityError{
			RoomNumber:               sel.RoomNumber,
			Reason:                   decision.Reason,
			Day:                      decision.Day,
			ConflictWith:             decision.ConflictWith,
			RequiresOverride:         decision.RequiresOverride,
			OverriddenReservationIDs: decision.OverriddenReservationIDs,
		}
	}

	if sel.Kind == SelectionStay {
		sel.OverriddenReservationIDs = decision.OverriddenReservationIDs
		guestDecision, err := s.occupancy.ValidateGuestAssignment(ctx, sel, session.Selections)
		if err != nil {
			return Selection{}, err
		}
		if !guestDecision.Allowed {
			aErr := &AvailabilityError{
				RoomNumber:   sel.RoomNumber,
				Reason:       guestDecision.Reason,
				ConflictWith: guestDecision.ConflictWith,
			}
			if !guestDecision.Guest.IsZero() {
				aErr.Guest = guestDecision.Guest.String()
			}
			return Selection{}, aErr
		}
	}

	session.Selections = append(session.Selections, sel)
	session.ExpiresAt = s.now().Add(s.config.TTL)
	if err := s.store.Save(ctx, session); err != nil {
		return Selection{}, err
	}
	return cloneSelection(sel), nil
}

// Unstage removes one selection from the session.
func (s *SessionService) Unstage(ctx context.Context, sessionID, selectionID string) error {
	defer s.lock(sessionID)()

	logger := s.loggerWith(ctx, "Unstage", "session_id", sessionID, "selection_id", selectionID)

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		logger.WarnContext(ctx, "failed to unstage selection", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	kept := session.Selections[:0]
	found := false
	for _, sel := range session.Selections {
		if sel.ID == selectionID {
			found = true
			continue
		}
		kept = append(kept, sel)
	}
	if !found {
		return fmt.Errorf("%w: selection %s", ErrNotFound, selectionID)
	}
	session.Selections = kept
	session.ExpiresAt = s.now().Add(s.config.TTL)

	if err := s.store.Save(ctx, session); err != nil {
		logger.WarnContext(ctx, "failed to unstage selection", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	s.metrics.ObserveSession(SessionEventUnstaged)
	logger.InfoContext(ctx, "selection unstaged")
	return nil
}

// Discard drops the session and everything staged in it. Nothing is persisted.
func (s *SessionService) Discard(ctx context.Context, sessionID string) error {
	defer s.lock(sessionID)()

	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.metrics.ObserveSession(SessionEventDiscarded)
	s.loggerWith(ctx, "Discard", "session_id", sessionID).InfoContext(ctx, "session discarded")
	return nil
}

// Commit persists every staged selection atomically and closes the session.
// On *CommitError the session is kept so conflicting selections can be
// unstaged and the commit retried.
func (s *SessionService) Commit(ctx context.Context, sessionID string) (CommitResult, error) {
	defer s.lock(sessionID)()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return CommitResult{}, err
	}
	if len(session.Selections) == 0 {
		vErr := &ValidationError{}
		vErr.add("selections", "nothing staged")
		return CommitResult{}, vErr
	}

	result, err := s.committer.CommitSelections(ctx, session.Selections)
	if err != nil {
		return CommitResult{}, err
	}

	if err := s.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		s.loggerWith(ctx, "Commit", "session_id", sessionID).
			WarnContext(ctx, "committed session could not be removed", "error", err)
	}
	s.metrics.ObserveSession(SessionEventCommitted)
	return result, nil
}
