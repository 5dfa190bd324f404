// Package memory provides a map backed implementation of the persistence
// repositories for tests, demos and the CLI.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/hotel-frontdesk/internal/occupancy"
	"github.com/example/hotel-frontdesk/internal/persistence"
)

// Storage keeps rooms, reservations and stays in memory.
type Storage struct {
	// writeMu serialises writers and transactions.
	writeMu sync.Mutex
	mu      sync.RWMutex
	state   *state
}

type state struct {
	rooms        map[string]persistence.Room
	reservations map[string]persistence.Reservation
	stays        map[string]persistence.Stay
}

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{state: newState()}
}

func newState() *state {
	return &state{
		rooms:        make(map[string]persistence.Room),
		reservations: make(map[string]persistence.Reservation),
		stays:        make(map[string]persistence.Stay),
	}
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// Repositories returns repositories that operate outside any transaction.
func (s *Storage) Repositories() persistence.Repositories {
	return bind(s.run)
}

// WithinTransaction runs fn against a private copy of the data and publishes
// it only when fn succeeds. Transactions run one at a time.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(repos persistence.Repositories) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	if err := fn(bind(func(_ bool, op func(*state) error) error { return op(working) })); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

func (s *Storage) run(write bool, op func(*state) error) error {
	if write {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		s.mu.Lock()
		defer s.mu.Unlock()
		return op(s.state)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return op(s.state)
}

func (st *state) clone() *state {
	out := newState()
	for k, v := range st.rooms {
		out.rooms[k] = v
	}
	for k, v := range st.reservations {
		out.reservations[k] = v
	}
	for k, v := range st.stays {
		out.stays[k] = cloneStay(v)
	}
	return out
}

type runner func(write bool, op func(*state) error) error

func bind(run runner) persistence.Repositories {
	return persistence.Repositories{
		Rooms:        roomRepo{run: run},
		Reservations: reservationRepo{run: run},
		Stays:        stayRepo{run: run},
	}
}

type roomRepo struct{ run runner }

type reservationRepo struct{ run runner }

type stayRepo struct{ run runner }

// --- RoomRepository implementation ---

func (r roomRepo) CreateRoom(ctx context.Context, room persistence.Room) error {
	return r.run(true, func(st *state) error {
		if _, ok := st.rooms[room.Number]; ok {
			return fmt.Errorf("memory: room %s: %w", room.Number, persistence.ErrDuplicate)
		}
		st.rooms[room.Number] = room
		return nil
	})
}

func (r roomRepo) UpdateRoom(ctx context.Context, room persistence.Room) error {
	return r.run(true, func(st *state) error {
		if _, ok := st.rooms[room.Number]; !ok {
			return persistence.ErrNotFound
		}
		st.rooms[room.Number] = room
		return nil
	})
}

func (r roomRepo) GetRoom(ctx context.Context, number string) (room persistence.Room, err error) {
	err = r.run(false, func(st *state) error {
		var ok bool
		if room, ok = st.rooms[number]; !ok {
			return persistence.ErrNotFound
		}
		return nil
	})
	return room, err
}

func (r roomRepo) ListRooms(ctx context.Context) (rooms []persistence.Room, err error) {
	err = r.run(false, func(st *state) error {
		rooms = make([]persistence.Room, 0, len(st.rooms))
		for _, room := range st.rooms {
			rooms = append(rooms, room)
		}
		return nil
	})
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Number < rooms[j].Number })
	return rooms, err
}

// --- ReservationRepository implementation ---

func (r reservationRepo) FindActiveInRange(ctx context.Context, from, to time.Time) (out []persistence.Reservation, err error) {
	window := occupancy.NewInterval(from, to)
	err = r.run(false, func(st *state) error {
		for _, res := range st.reservations {
			if res.Status != persistence.ReservationActive {
				continue
			}
			if occupancy.NewInterval(res.From, res.To).Overlaps(window) {
				out = append(out, res)
			}
		}
		return nil
	})
	sortReservations(out)
	return out, err
}

func (r reservationRepo) ExistsOverlap(ctx context.Context, roomNumber string, from time.Time, to *time.Time) (bool, error) {
	found, err := r.ListOverlapping(ctx, roomNumber, from, to)
	return len(found) > 0, err
}

func (r reservationRepo) ListOverlapping(ctx context.Context, roomNumber string, from time.Time, to *time.Time) (out []persistence.Reservation, err error) {
	window := occupancy.IntervalFromPtr(from, to)
	err = r.run(false, func(st *state) error {
		for _, res := range st.reservations {
			if res.RoomNumber != roomNumber || res.Status != persistence.ReservationActive {
				continue
			}
			if occupancy.NewInterval(res.From, res.To).Overlaps(window) {
				out = append(out, res)
			}
		}
		return nil
	})
	sortReservations(out)
	return out, err
}

func (r reservationRepo) CreateReservations(ctx context.Context, reservations []persistence.Reservation) ([]string, error) {
	ids := make([]string, 0, len(reservations))
	err := r.run(true, func(st *state) error {
		for _, res := range reservations {
			if res.ID == "" {
				return fmt.Errorf("memory: reservation id required: %w", persistence.ErrConstraintViolation)
			}
			if _, ok := st.reservations[res.ID]; ok {
				return fmt.Errorf("memory: reservation %s: %w", res.ID, persistence.ErrDuplicate)
			}
			if _, ok := st.rooms[res.RoomNumber]; !ok {
				return fmt.Errorf("memory: reservation room %s: %w", res.RoomNumber, persistence.ErrConstraintViolation)
			}
		}
		for _, res := range reservations {
			st.reservations[res.ID] = res
			ids = append(ids, res.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// --- StayRepository implementation ---

func (r stayRepo) FindInRange(ctx context.Context, from, to time.Time) (out []persistence.Stay, err error) {
	window := occupancy.NewInterval(from, to)
	err = r.run(false, func(st *state) error {
		for _, stay := range st.stays {
			if occupancy.IntervalFromPtr(stay.CheckIn, stay.CheckOut).Overlaps(window) {
				out = append(out, cloneStay(stay))
			}
		}
		return nil
	})
	sortStays(out)
	return out, err
}

func (r stayRepo) ExistsOverlap(ctx context.Context, roomNumber string, from time.Time, to *time.Time) (found bool, err error) {
	window := occupancy.IntervalFromPtr(from, to)
	err = r.run(false, func(st *state) error {
		for _, stay := range st.stays {
			if stay.RoomNumber == roomNumber && occupancy.IntervalFromPtr(stay.CheckIn, stay.CheckOut).Overlaps(window) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r stayRepo) IsGuestActiveElsewhere(ctx context.Context, guest persistence.GuestIdentity, from time.Time, to *time.Time, accompanyingOnly bool) (found bool, err error) {
	window := occupancy.IntervalFromPtr(from, to)
	want := occupancy.NewGuestIdentity(guest.DocumentType, guest.DocumentNumber)
	err = r.run(false, func(st *state) error {
		for _, stay := range st.stays {
			if !occupancy.IntervalFromPtr(stay.CheckIn, stay.CheckOut).Overlaps(window) {
				continue
			}
			for _, g := range stay.Guests {
				if accompanyingOnly && g.Responsible {
					continue
				}
				if occupancy.NewGuestIdentity(g.DocumentType, g.DocumentNumber) == want {
					found = true
					return nil
				}
			}
		}
		return nil
	})
	return found, err
}

func (r stayRepo) CreateStay(ctx context.Context, stay persistence.Stay) (string, error) {
	err := r.run(true, func(st *state) error {
		if stay.ID == "" {
			return fmt.Errorf("memory: stay id required: %w", persistence.ErrConstraintViolation)
		}
		if _, ok := st.stays[stay.ID]; ok {
			return fmt.Errorf("memory: stay %s: %w", stay.ID, persistence.ErrDuplicate)
		}
		if _, ok := st.rooms[stay.RoomNumber]; !ok {
			return fmt.Errorf("memory: stay room %s: %w", stay.RoomNumber, persistence.ErrConstraintViolation)
		}
		st.stays[stay.ID] = cloneStay(stay)
		return nil
	})
	if err != nil {
		return "", err
	}
	return stay.ID, nil
}

func (r stayRepo) GetStay(ctx context.Context, id string) (stay persistence.Stay, err error) {
	err = r.run(false, func(st *state) error {
		found, ok := st.stays[id]
		if !ok {
			return persistence.ErrNotFound
		}
		stay = cloneStay(found)
		return nil
	})
	return stay, err
}

func cloneStay(stay persistence.Stay) persistence.Stay {
	if stay.CheckOut != nil {
		out := *stay.CheckOut
		stay.CheckOut = &out
	}
	if stay.Guests != nil {
		guests := make([]persistence.StayGuest, len(stay.Guests))
		copy(guests, stay.Guests)
		stay.Guests = guests
	}
	if stay.OverriddenReservationIDs != nil {
		ids := make([]string, len(stay.OverriddenReservationIDs))
		copy(ids, stay.OverriddenReservationIDs)
		stay.OverriddenReservationIDs = ids
	}
	return stay
}

func sortReservations(items []persistence.Reservation) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].From.Equal(items[j].From) {
			return items[i].From.Before(items[j].From)
		}
		return items[i].ID < items[j].ID
	})
}

func sortStays(items []persistence.Stay) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CheckIn.Equal(items[j].CheckIn) {
			return items[i].CheckIn.Before(items[j].CheckIn)
		}
		return items[i].ID < items[j].ID
	})
}
