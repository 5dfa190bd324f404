// Package testfixtures builds deterministic hotels, clocks and service
// stacks for tests.
package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/hotel-frontdesk/internal/occupancy"
	"github.com/example/hotel-frontdesk/internal/persistence"
)

var referenceTime = time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)

// ReferenceTime is the instant fixtures are created at.
func ReferenceTime() time.Time {
	return referenceTime
}

// Day parses a YYYY-MM-DD literal and panics on malformed input.
func Day(value string) time.Time {
	d, err := occupancy.ParseDay(value)
	if err != nil {
		panic(err)
	}
	return d
}

// DayPtr is Day returning a pointer, for optional end dates.
func DayPtr(value string) *time.Time {
	d := Day(value)
	return &d
}

// RoomOption adjusts a room fixture.
type RoomOption func(*persistence.Room)

// WithCapacity sets the room capacity.
func WithCapacity(capacity int) RoomOption {
	return func(r *persistence.Room) { r.Capacity = capacity }
}

// OutOfService marks the room as under maintenance.
func OutOfService() RoomOption {
	return func(r *persistence.Room) { r.Maintenance = persistence.MaintenanceOutOfService }
}

// NewRoom returns an in-service double room with the given number.
func NewRoom(number string, opts ...RoomOption) persistence.Room {
	room := persistence.Room{
		Number:      number,
		Type:        "double",
		Capacity:    2,
		NightlyRate: 12000,
		Maintenance: persistence.MaintenanceInService,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// NewReservation returns an ACTIVE reservation over [from, to).
func NewReservation(id, room, from, to string) persistence.Reservation {
	return persistence.Reservation{
		ID:               id,
		RoomNumber:       room,
		From:             Day(from),
		To:               Day(to),
		Status:           persistence.ReservationActive,
		ResponsibleName:  "Responsible " + id,
		ResponsiblePhone: "+34 600 000 000",
		CreatedAt:        referenceTime,
	}
}

// Guest builds a stay guest with a passport identity.
func Guest(document, name string, responsible bool) persistence.StayGuest {
	return persistence.StayGuest{
		DocumentType:   "PASSPORT",
		DocumentNumber: document,
		Name:           name,
		Responsible:    responsible,
	}
}

// NewStay returns a stay from checkIn until checkOut; an empty checkOut leaves it open.
func NewStay(id, room, checkIn, checkOut string, guests ...persistence.StayGuest) persistence.Stay {
	stay := persistence.Stay{
		ID:          id,
		RoomNumber:  room,
		CheckIn:     Day(checkIn),
		NightlyRate: 12000,
		Guests:      guests,
		CreatedAt:   referenceTime,
	}
	if checkOut != "" {
		stay.CheckOut = DayPtr(checkOut)
	}
	return stay
}

// Hotel seeds a store with records.
type Hotel struct {
	Rooms        []persistence.Room
	Reservations []persistence.Reservation
	Stays        []persistence.Stay
}

// Seed writes the hotel into store in one transaction.
func (h Hotel) Seed(tb testing.TB, store persistence.Transactor) {
	tb.Helper()
	ctx := context.Background()
	err := store.WithinTransaction(ctx, func(repos persistence.Repositories) error {
		for _, room := range h.Rooms {
			if err := repos.Rooms.CreateRoom(ctx, room); err != nil {
				return err
			}
		}
		if len(h.Reservations) > 0 {
			if _, err := repos.Reservations.CreateReservations(ctx, h.Reservations); err != nil {
				return err
			}
		}
		for _, stay := range h.Stays {
			if _, err := repos.Stays.CreateStay(ctx, stay); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(tb, err)
}
