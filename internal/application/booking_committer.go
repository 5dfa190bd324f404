package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/hotel-frontdesk/internal/occupancy"
	"github.com/example/hotel-frontdesk/internal/persistence"
)

// BookingCommitter persists a batch of selections atomically after
// re-validating each one against the live store.
type BookingCommitter struct {
	tx          persistence.Transactor
	idGenerator func() string
	now         func() time.Time
	metrics     Metrics
	logger      *slog.Logger
}

// NewBookingCommitter constructs a committer.
func NewBookingCommitter(tx persistence.Transactor, idGenerator func() string, now func() time.Time, metrics Metrics, logger *slog.Logger) *BookingCommitter {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingCommitter{
		tx:          tx,
		idGenerator: idGenerator,
		now:         now,
		metrics:     metricsOrNoop(metrics),
		logger:      defaultLogger(logger),
	}
}

func (c *BookingCommitter) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, c.logger, "BookingCommitter", operation, attrs...)
}

// CommitSelections writes every selection in one transaction, in order.
// Each selection is checked against the store including the writes of the
// selections before it. If any selection conflicts nothing is persisted and
// a *CommitError lists every conflicting selection.
func (c *BookingCommitter) CommitSelections(ctx context.Context, selections []Selection) (result CommitResult, err error) {
	if c == nil || c.tx == nil {
		return CommitResult{}, fmt.Errorf("BookingCommitter is not configured")
	}

	logger := c.loggerWith(ctx, "CommitSelections", "selections", len(selections))
	began := c.now()
	defer func() {
		elapsed := c.now().Sub(began)
		switch {
		case err == nil:
			c.metrics.ObserveCommit(CommitOutcomeSuccess, len(selections), elapsed)
			logger.InfoContext(ctx, "selections committed", "created", len(result.CreatedIDs))
		case errors.Is(err, ErrCommitConflict):
			c.metrics.ObserveCommit(CommitOutcomeConflict, len(selections), elapsed)
			logger.WarnContext(ctx, "commit rejected", "error", err, "error_kind", ErrorKind(err))
		default:
			c.metrics.ObserveCommit(CommitOutcomeError, len(selections), elapsed)
			logger.ErrorContext(ctx, "failed to commit selections", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if len(selections) == 0 {
		vErr := &ValidationError{}
		vErr.add("selections", "at least one selection is required")
		return CommitResult{}, vErr
	}
	vErr := &ValidationError{}
	for i, sel := range selections {
		vErr.merge(fmt.Sprintf("selections[%d].", i), validateSelection(sel))
	}
	if vErr.HasErrors() {
		return CommitResult{}, vErr
	}

	err = c.tx.WithinTransaction(ctx, func(repos persistence.Repositories) error {
		result = CommitResult{}
		var conflicts []SelectionConflict
		for i, sel := range selections {
			conflict, id, err := c.apply(ctx, repos, sel)
			if err != nil {
				return fmt.Errorf("selection %d: %w", i, err)
			}
			if conflict != nil {
				conflict.Index = i
				conflict.SelectionID = sel.ID
				conflict.RoomNumber = sel.RoomNumber
				conflicts = append(conflicts, *conflict)
				continue
			}
			result.CreatedIDs = append(result.CreatedIDs, id)
			if sel.Kind == SelectionStay {
				result.StayIDs = append(result.StayIDs, id)
			} else {
				result.ReservationIDs = append(result.ReservationIDs, id)
			}
		}
		if len(conflicts) > 0 {
			return &CommitError{Conflicts: conflicts}
		}
		return nil
	})
	if err != nil {
		return CommitResult{}, err
	}
	return result, nil
}

// apply re-validates one selection and writes it. A non-nil conflict means
// the selection was not written.
func (c *BookingCommitter) apply(ctx context.Context, repos persistence.Repositories, sel Selection) (*SelectionConflict, string, error) {
	period := sel.Period()
	if !period.Valid() || (period.IsOpen() && sel.Kind != SelectionStay) {
		return &SelectionConflict{Reason: occupancy.ReasonInvalidRange}, "", nil
	}
	to := dayPtr(sel.To)

	room, err := repos.Rooms.GetRoom(ctx, sel.RoomNumber)
	if errors.Is(err, persistence.ErrNotFound) {
		return &SelectionConflict{Reason: occupancy.ReasonUnknownRoom}, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get room: %w", err)
	}
	if room.Maintenance == persistence.MaintenanceOutOfService {
		return &SelectionConflict{Reason: occupancy.ReasonOutOfService}, "", nil
	}

	occupied, err := repos.Stays.ExistsOverlap(ctx, room.Number, period.From, to)
	if err != nil {
		return nil, "", fmt.Errorf("check stays: %w", err)
	}
	if occupied {
		return &SelectionConflict{Reason: occupancy.ReasonRoomNotFree, Detail: "room is occupied"}, "", nil
	}

	if sel.Kind == SelectionReservation {
		reserved, err := repos.Reservations.ExistsOverlap(ctx, room.Number, period.From, to)
		if err != nil {
			return nil, "", fmt.Errorf("check reservations: %w", err)
		}
		if reserved {
			return &SelectionConflict{Reason: occupancy.ReasonRoomNotFree, Detail: "room is reserved"}, "", nil
		}
		id := c.idGenerator()
		if _, err := repos.Reservations.CreateReservations(ctx, []persistence.Reservation{{
			ID:               id,
			RoomNumber:       room.Number,
			From:             period.From,
			To:               period.To,
			Status:           persistence.ReservationActive,
			ResponsibleName:  strings.TrimSpace(sel.Responsible.Name),
			ResponsiblePhone: strings.TrimSpace(sel.Responsible.Phone),
			CreatedAt:        c.now(),
		}}); err != nil {
			return nil, "", fmt.Errorf("create reservation: %w", err)
		}
		return nil, id, nil
	}

	// A nil to reaches every later reservation of an open stay.
	reserved, err := repos.Reservations.ListOverlapping(ctx, room.Number, period.From, to)
	if err != nil {
		return nil, "", fmt.Errorf("check reservations: %w", err)
	}
	overridden, missing := coveredReservations(reserved, sel)
	if missing != "" {
		return &SelectionConflict{Reason: occupancy.ReasonRoomNotFree, Detail: "reservation override required for " + missing}, "", nil
	}

	for _, guest := range sel.Guests {
		id := guest.Identity()
		busy, err := repos.Stays.IsGuestActiveElsewhere(ctx, persistence.GuestIdentity{
			DocumentType:   id.DocumentType,
			DocumentNumber: id.DocumentNumber,
		}, period.From, to, guest.Responsible)
		if err != nil {
			return nil, "", fmt.Errorf("check guest: %w", err)
		}
		if busy {
			return &SelectionConflict{Reason: occupancy.ReasonGuestDoubleBook, Detail: id.String()}, "", nil
		}
	}

	guestDecision, err := occupancy.ValidateGuestAssignment(occupancy.CandidateStay{
		RoomNumber: room.Number,
		Period:     period,
		Guests:     occupancyGuests(sel.Guests),
	}, occupancyRoom(room), nil)
	if err != nil {
		return nil, "", err
	}
	if !guestDecision.Allowed {
		detail := ""
		if !guestDecision.Guest.IsZero() {
			detail = guestDecision.Guest.String()
		}
		return &SelectionConflict{Reason: guestDecision.Reason, Detail: detail}, "", nil
	}

	rate := sel.NightlyRate
	if rate == 0 {
		rate = room.NightlyRate
	}
	id := c.idGenerator()
	if _, err := repos.Stays.CreateStay(ctx, persistence.Stay{
		ID:                       id,
		RoomNumber:               room.Number,
		CheckIn:                  period.From,
		CheckOut:                 to,
		NightlyRate:              rate,
		Guests:                   stayRecordGuests(sel.Guests),
		OverriddenReservationIDs: overridden,
		CreatedAt:                c.now(),
	}); err != nil {
		return nil, "", fmt.Errorf("create stay: %w", err)
	}
	return nil, id, nil
}

// coveredReservations returns the ids of reserved that the stay selection has
// accepted to override, or the first id it has not.
func coveredReservations(reserved []persistence.Reservation, sel Selection) ([]string, string) {
	if len(reserved) == 0 {
		return nil, ""
	}
	accepted := make(map[string]struct{}, len(sel.OverriddenReservationIDs))
	if sel.AcceptReservedOverride {
		for _, id := range sel.OverriddenReservationIDs {
			accepted[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(reserved))
	for _, r := range reserved {
		if _, ok := accepted[r.ID]; !ok {
			return nil, r.ID
		}
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids, ""
}
