package persistence

import "time"

// Maintenance states for rooms.
const (
	MaintenanceInService    = "IN_SERVICE"
	MaintenanceOutOfService = "OUT_OF_SERVICE"
)

// Reservation statuses.
const (
	ReservationActive    = "ACTIVE"
	ReservationCancelled = "CANCELLED"
)

// Room represents a bookable hotel room.
type Room struct {
	Number      string
	Type        string
	Capacity    int
	NightlyRate int64
	Maintenance string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reservation represents a future commitment to occupy a room over [From, To).
// The responsible person is stored inline and does not reference a guest record.
type Reservation struct {
	ID               string
	RoomNumber       string
	From             time.Time
	To               time.Time
	Status           string
	ResponsibleName  string
	ResponsiblePhone string
	CreatedAt        time.Time
}

// GuestIdentity identifies a guest by identity document.
type GuestIdentity struct {
	DocumentType   string
	DocumentNumber string
}

// StayGuest associates a guest with a stay.
type StayGuest struct {
	DocumentType   string
	DocumentNumber string
	Name           string
	Responsible    bool
}

// Stay represents physical occupancy of a room from CheckIn until CheckOut.
// A nil CheckOut means the stay is still open.
type Stay struct {
	ID                       string
	RoomNumber               string
	CheckIn                  time.Time
	CheckOut                 *time.Time
	NightlyRate              int64
	Guests                   []StayGuest
	OverriddenReservationIDs []string
	CreatedAt                time.Time
}
