package occupancy

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DayState is the derived occupancy classification of one room on one day.
type DayState string

const (
	StateFree         DayState = "FREE"
	StateReserved     DayState = "RESERVED"
	StateOccupied     DayState = "OCCUPIED"
	StateOutOfService DayState = "OUT_OF_SERVICE"
)

// rank orders states by precedence; higher wins.
func (s DayState) rank() int {
	switch s {
	case StateOutOfService:
		return 3
	case StateOccupied:
		return 2
	case StateReserved:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the four known states.
func (s DayState) Valid() bool {
	switch s {
	case StateFree, StateReserved, StateOccupied, StateOutOfService:
		return true
	}
	return false
}

var (
	// ErrInvalidWindow is returned when a grid window is missing, inverted or too large.
	ErrInvalidWindow = errors.New("occupancy: invalid window")
	// ErrNoRooms is returned when a grid is requested for an empty room set.
	ErrNoRooms = errors.New("occupancy: no rooms")
	// ErrUnknownRoom is returned when a room number is not part of the grid.
	ErrUnknownRoom = errors.New("occupancy: unknown room")
	// ErrOutsideWindow is returned when a queried range is not covered by the grid.
	ErrOutsideWindow = errors.New("occupancy: range outside grid window")
)

// DefaultMaxDays bounds the number of days a single grid may span.
const DefaultMaxDays = 366

// Room is the slice of room data the grid needs.
type Room struct {
	Number       string
	Capacity     int
	OutOfService bool
}

// Reservation is an interval record that marks days RESERVED while active.
type Reservation struct {
	ID         string
	RoomNumber string
	Period     Interval
	Active     bool
}

// Stay is an interval record that marks days OCCUPIED.
type Stay struct {
	ID         string
	RoomNumber string
	Period     Interval
	Guests     []StayGuest
}

// Cell is the resolved state of one room on one day together with the
// records that produced it.
type Cell struct {
	Day            time.Time
	State          DayState
	StayID         string
	ReservationIDs []string
}

// Grid is an immutable day-by-day occupancy snapshot for a set of rooms over
// the closed window [Start, End].
type Grid struct {
	start time.Time
	end   time.Time
	order []string
	rooms map[string]Room
	cells map[string][]Cell
}

// GridOptions tunes grid construction.
type GridOptions struct {
	MaxDays int
}

// BuildGrid merges rooms, reservations and stays into a snapshot covering
// every day in [start, end]. Records for rooms outside the set are ignored.
func BuildGrid(rooms []Room, reservations []Reservation, stays []Stay, start, end time.Time) (*Grid, error) {
	return BuildGridWithOptions(rooms, reservations, stays, start, end, GridOptions{})
}

// BuildGridWithOptions is BuildGrid with an explicit window cap.
func BuildGridWithOptions(rooms []Room, reservations []Reservation, stays []Stay, start, end time.Time, opts GridOptions) (*Grid, error) {
	if len(rooms) == 0 {
		return nil, ErrNoRooms
	}
	if err := ValidateWindow(start, end, opts.MaxDays); err != nil {
		return nil, err
	}
	start, end = Day(start), Day(end)
	span := DaysBetween(start, end) + 1

	g := &Grid{
		start: start,
		end:   end,
		order: make([]string, 0, len(rooms)),
		rooms: make(map[string]Room, len(rooms)),
		cells: make(map[string][]Cell, len(rooms)),
	}
	for _, room := range rooms {
		if _, dup := g.rooms[room.Number]; dup {
			return nil, fmt.Errorf("occupancy: duplicate room %q", room.Number)
		}
		g.rooms[room.Number] = room
		g.order = append(g.order, room.Number)

		row := make([]Cell, span)
		for i := range row {
			row[i] = Cell{Day: AddDays(start, i), State: StateFree}
		}
		g.cells[room.Number] = row
	}
	sort.Strings(g.order)

	window := NewInterval(start, AddDays(end, 1))

	for _, res := range reservations {
		if !res.Active || !res.Period.Overlaps(window) {
			continue
		}
		row, ok := g.cells[res.RoomNumber]
		if !ok {
			continue
		}
		for _, day := range res.Period.Clip(window).Days(end) {
			cell := &row[DaysBetween(start, day)]
			cell.ReservationIDs = append(cell.ReservationIDs, res.ID)
			if cell.State.rank() < StateReserved.rank() {
				cell.State = StateReserved
			}
		}
	}

	for _, stay := range stays {
		if !stay.Period.Overlaps(window) {
			continue
		}
		row, ok := g.cells[stay.RoomNumber]
		if !ok {
			continue
		}
		for _, day := range stay.Period.Clip(window).Days(end) {
			cell := &row[DaysBetween(start, day)]
			if cell.StayID == "" {
				cell.StayID = stay.ID
			}
			if cell.State.rank() < StateOccupied.rank() {
				cell.State = StateOccupied
			}
		}
	}

	for number, room := range g.rooms {
		if !room.OutOfService {
			continue
		}
		row := g.cells[number]
		for i := range row {
			row[i].State = StateOutOfService
		}
	}

	return g, nil
}

// ValidateWindow checks that [start, end] is a usable closed window.
// maxDays <= 0 selects DefaultMaxDays.
func ValidateWindow(start, end time.Time, maxDays int) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidWindow)
	}
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return fmt.Errorf("%w: start %s after end %s", ErrInvalidWindow, FormatDay(start), FormatDay(end))
	}
	if maxDays <= 0 {
		maxDays = DefaultMaxDays
	}
	if DaysBetween(start, end)+1 > maxDays {
		return fmt.Errorf("%w: window exceeds %d days", ErrInvalidWindow, maxDays)
	}
	return nil
}

// Start returns the first day of the window.
func (g *Grid) Start() time.Time { return g.start }

// End returns the last day of the window, inclusive.
func (g *Grid) End() time.Time { return g.end }

// Rooms returns the room numbers in the grid, sorted.
func (g *Grid) Rooms() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Room returns the room data captured in the snapshot.
func (g *Grid) Room(number string) (Room, bool) {
	room, ok := g.rooms[number]
	return room, ok
}

// Days lists every day in the window.
func (g *Grid) Days() []time.Time {
	return NewInterval(g.start, AddDays(g.end, 1)).Days(g.end)
}

// Covers reports whether every day of [from, to) lies inside the window.
func (g *Grid) Covers(from, to time.Time) bool {
	from, to = Day(from), Day(to)
	if from.Before(g.start) {
		return false
	}
	return !to.After(AddDays(g.end, 1))
}

// State returns the state of one room on one day.
func (g *Grid) State(number string, day time.Time) (DayState, error) {
	cell, err := g.Cell(number, day)
	if err != nil {
		return "", err
	}
	return cell.State, nil
}

// Cell returns a copy of the cell for one room on one day.
func (g *Grid) Cell(number string, day time.Time) (Cell, error) {
	row, ok := g.cells[number]
	if !ok {
		return Cell{}, fmt.Errorf("%w: %s", ErrUnknownRoom, number)
	}
	day = Day(day)
	if day.Before(g.start) || day.After(g.end) {
		return Cell{}, fmt.Errorf("%w: %s", ErrOutsideWindow, FormatDay(day))
	}
	return cloneCell(row[DaysBetween(g.start, day)]), nil
}

// Row returns a copy of all cells for one room.
func (g *Grid) Row(number string) ([]Cell, error) {
	row, ok := g.cells[number]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, number)
	}
	out := make([]Cell, len(row))
	for i, cell := range row {
		out[i] = cloneCell(cell)
	}
	return out, nil
}

func cloneCell(cell Cell) Cell {
	if len(cell.ReservationIDs) > 0 {
		ids := make([]string, len(cell.ReservationIDs))
		copy(ids, cell.ReservationIDs)
		cell.ReservationIDs = ids
	}
	return cell
}

// DayLayout is the calendar-day wire format.
const DayLayout = "2006-01-02"

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(day time.Time) string {
	return Day(day).Format(DayLayout)
}

// ParseDay parses a YYYY-MM-DD string into a UTC day.
func ParseDay(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
