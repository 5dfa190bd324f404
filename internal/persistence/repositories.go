package persistence

import (
	"context"
	"time"
)

// RoomRepository exposes the room directory.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, number string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// ReservationRepository stores reservations. Range arguments are the
// half-open day interval [from, to).
type ReservationRepository interface {
	// FindActiveInRange returns every ACTIVE reservation overlapping [from, to), across all rooms.
	FindActiveInRange(ctx context.Context, from, to time.Time) ([]Reservation, error)
	// ExistsOverlap reports whether an ACTIVE reservation for the room overlaps [from, to).
	// A nil to means open-ended.
	ExistsOverlap(ctx context.Context, roomNumber string, from time.Time, to *time.Time) (bool, error)
	// ListOverlapping returns the ACTIVE reservations for the room overlapping [from, to).
	ListOverlapping(ctx context.Context, roomNumber string, from time.Time, to *time.Time) ([]Reservation, error)
	CreateReservations(ctx context.Context, reservations []Reservation) ([]string, error)
}

// StayRepository stores stays and their guests.
type StayRepository interface {
	// FindInRange returns every stay overlapping [from, to), open stays included.
	FindInRange(ctx context.Context, from, to time.Time) ([]Stay, error)
	// ExistsOverlap reports whether a stay for the room overlaps [from, to). A nil to means open-ended.
	ExistsOverlap(ctx context.Context, roomNumber string, from time.Time, to *time.Time) (bool, error)
	// IsGuestActiveElsewhere reports whether the guest is on any stay overlapping [from, to).
	// When accompanyingOnly is set, stays where the guest is responsible are ignored.
	IsGuestActiveElsewhere(ctx context.Context, guest GuestIdentity, from time.Time, to *time.Time, accompanyingOnly bool) (bool, error)
	CreateStay(ctx context.Context, stay Stay) (string, error)
	GetStay(ctx context.Context, id string) (Stay, error)
}

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Rooms        RoomRepository
	Reservations ReservationRepository
	Stays        StayRepository
}

// Transactor runs fn inside a transaction. Writes made through the
// repositories passed to fn are committed only when fn returns nil.
// Implementations serialise concurrent transactions that write.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(repos Repositories) error) error
}

// Store is a complete persistence backend.
type Store interface {
	Transactor
	Repositories() Repositories
	Close() error
}
