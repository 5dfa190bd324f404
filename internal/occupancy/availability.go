package occupancy

import (
	"fmt"
	"sort"
	"time"
)

// Reason is a machine readable tag explaining a negative decision.
type Reason string

const (
	ReasonInvalidRange     Reason = "INVALID_RANGE"
	ReasonRoomNotFree      Reason = "ROOM_NOT_FREE"
	ReasonStagedConflict   Reason = "STAGED_CONFLICT"
	ReasonOutOfService     Reason = "OUT_OF_SERVICE"
	ReasonGuestDoubleBook  Reason = "GUEST_DOUBLE_BOOKED"
	ReasonDuplicateGuest   Reason = "DUPLICATE_GUEST"
	ReasonCapacityExceeded Reason = "CAPACITY_EXCEEDED"
	ReasonUnknownRoom      Reason = "UNKNOWN_ROOM"
)

// Mode selects which flow is asking for availability.
type Mode int

const (
	// ModeReservation treats every non-FREE day as blocking.
	ModeReservation Mode = iota
	// ModeCheckIn downgrades RESERVED days to a warning the caller may accept.
	ModeCheckIn
)

func (m Mode) String() string {
	if m == ModeCheckIn {
		return "check_in"
	}
	return "reservation"
}

// CheckOptions carries the flow and override flags for CheckAvailable.
type CheckOptions struct {
	Mode           Mode
	AcceptReserved bool
	// LaterReservations are active reservations for the room that lie past
	// the end of the grid. They are consulted only for open periods, which
	// run without end.
	LaterReservations []Reservation
}

// StagedSelection is an uncommitted candidate already accepted in the same
// working session.
type StagedSelection struct {
	ID         string
	RoomNumber string
	Period     Interval
}

// Decision is the outcome of an availability check.
type Decision struct {
	Available bool
	Reason    Reason
	// Day is the first blocking day for grid based reasons.
	Day time.Time
	// ConflictWith names the record or staged selection that blocked.
	ConflictWith string
	// RequiresOverride is set when the only obstacle is a live reservation
	// during check-in and the caller has not accepted it yet.
	RequiresOverride bool
	// OverriddenReservationIDs lists reservations a check-in would occupy against.
	OverriddenReservationIDs []string
}

func unavailable(reason Reason) Decision {
	return Decision{Reason: reason}
}

// CheckAvailable decides whether room can take a booking over period, given
// the grid snapshot and the selections already staged in the session.
//
// Rules are applied in order and the first failure wins: the range must be
// non-empty, every day must be FREE in the grid (RESERVED is soft during
// check-in), and no staged selection for the room may overlap.
// An open period is only legal in check-in mode. It is checked against the
// grid and against opts.LaterReservations. The only errors are for rooms
// missing from the grid and periods starting outside it.
func CheckAvailable(grid *Grid, roomNumber string, period Interval, staged []StagedSelection, opts CheckOptions) (Decision, error) {
	if grid == nil {
		return Decision{}, fmt.Errorf("occupancy: nil grid")
	}
	row, ok := grid.cells[roomNumber]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownRoom, roomNumber)
	}

	period = normalise(period)
	if !period.Valid() || (period.IsOpen() && opts.Mode != ModeCheckIn) {
		return unavailable(ReasonInvalidRange), nil
	}

	if period.From.Before(grid.start) || period.From.After(grid.end) {
		return Decision{}, fmt.Errorf("%w: %s", ErrOutsideWindow, FormatDay(period.From))
	}
	if !period.IsOpen() && !grid.Covers(period.From, period.To) {
		return Decision{}, fmt.Errorf("%w: %s", ErrOutsideWindow, FormatDay(period.To))
	}

	decision, blocked := checkCells(row, grid.start, period, opts)
	if blocked {
		return decision, nil
	}

	for _, sel := range staged {
		if sel.RoomNumber != roomNumber {
			continue
		}
		if normalise(sel.Period).Overlaps(period) {
			return Decision{Reason: ReasonStagedConflict, ConflictWith: sel.ID}, nil
		}
	}

	return decision, nil
}

func checkCells(row []Cell, start time.Time, period Interval, opts CheckOptions) (Decision, bool) {
	var (
		worst    = StateFree
		worstDay time.Time
		worstRec string
		reserved = map[string]struct{}{}
	)
	for _, day := range period.Days(row[len(row)-1].Day) {
		cell := row[DaysBetween(start, day)]
		if cell.State == StateReserved {
			for _, id := range cell.ReservationIDs {
				reserved[id] = struct{}{}
			}
		}
		if cell.State.rank() > worst.rank() {
			worst = cell.State
			worstDay = cell.Day
			worstRec = cell.StayID
			if worst == StateReserved && len(cell.ReservationIDs) > 0 {
				worstRec = cell.ReservationIDs[0]
			}
		}
	}
	if period.IsOpen() {
		for _, r := range opts.LaterReservations {
			if !r.Active || !normalise(r.Period).Overlaps(period) {
				continue
			}
			reserved[r.ID] = struct{}{}
			if worst == StateFree {
				worst = StateReserved
				worstDay = Day(r.Period.From)
				if worstDay.Before(period.From) {
					worstDay = period.From
				}
				worstRec = r.ID
			}
		}
	}

	switch worst {
	case StateOutOfService:
		return Decision{Reason: ReasonOutOfService, Day: worstDay}, true
	case StateOccupied:
		return Decision{Reason: ReasonRoomNotFree, Day: worstDay, ConflictWith: worstRec}, true
	case StateReserved:
		if opts.Mode != ModeCheckIn {
			return Decision{Reason: ReasonRoomNotFree, Day: worstDay, ConflictWith: worstRec}, true
		}
		ids := make([]string, 0, len(reserved))
		for id := range reserved {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		if !opts.AcceptReserved {
			return Decision{
				Reason:                   ReasonRoomNotFree,
				Day:                      worstDay,
				ConflictWith:             worstRec,
				RequiresOverride:         true,
				OverriddenReservationIDs: ids,
			}, true
		}
		return Decision{Available: true, OverriddenReservationIDs: ids}, false
	}
	return Decision{Available: true}, false
}

func normalise(i Interval) Interval {
	return Interval{From: Day(i.From), To: Day(i.To)}
}
