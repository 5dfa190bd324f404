package application

import (
	"time"

	"github.com/example/hotel-frontdesk/internal/occupancy"
)

// MaintenanceState tells whether a room can be sold.
type MaintenanceState string

const (
	MaintenanceInService    MaintenanceState = "IN_SERVICE"
	MaintenanceOutOfService MaintenanceState = "OUT_OF_SERVICE"
)

// Room is a bookable unit.
type Room struct {
	Number      string
	Type        string
	Capacity    int
	NightlyRate int64
	Maintenance MaintenanceState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Number      string
	Type        string
	Capacity    int
	NightlyRate int64
	Maintenance MaintenanceState
}

// SelectionKind distinguishes bookings from check-ins.
type SelectionKind string

const (
	SelectionReservation SelectionKind = "reservation"
	SelectionStay        SelectionKind = "stay"
)

// ResponsibleParty is the denormalised contact stored on a reservation.
type ResponsibleParty struct {
	Name  string
	Phone string
}

// Guest is one occupant of a stay selection.
type Guest struct {
	DocumentType   string
	DocumentNumber string
	Name           string
	Responsible    bool
}

// Identity returns the normalised document identity.
func (g Guest) Identity() occupancy.GuestIdentity {
	return occupancy.NewGuestIdentity(g.DocumentType, g.DocumentNumber)
}

// Selection is an uncommitted candidate reservation or check-in.
//
// Reservation selections need To and a Responsible party. Stay selections
// need Guests with exactly one responsible guest and may leave To nil for an
// open stay.
type Selection struct {
	ID          string
	Kind        SelectionKind
	RoomNumber  string
	From        time.Time
	To          *time.Time
	Responsible ResponsibleParty
	Guests      []Guest
	// NightlyRate defaults to the room rate when zero.
	NightlyRate int64
	// AcceptReservedOverride confirms a check-in over live reservations.
	AcceptReservedOverride   bool
	OverriddenReservationIDs []string
}

// Period returns the selection's day interval.
func (s Selection) Period() occupancy.Interval {
	return occupancy.IntervalFromPtr(s.From, s.To)
}

// Mode returns the availability mode matching the selection kind.
func (s Selection) Mode() occupancy.Mode {
	if s.Kind == SelectionStay {
		return occupancy.ModeCheckIn
	}
	return occupancy.ModeReservation
}

// CommitResult lists the records created by a commit, in selection order.
type CommitResult struct {
	CreatedIDs     []string
	ReservationIDs []string
	StayIDs        []string
}

// WorkingSession holds staged selections until they are committed or discarded.
type WorkingSession struct {
	ID         string
	Selections []Selection
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// AvailabilityQuery asks whether one room can take a booking.
type AvailabilityQuery struct {
	RoomNumber     string
	From           time.Time
	To             *time.Time
	Mode           occupancy.Mode
	AcceptReserved bool
}

func cloneSelection(s Selection) Selection {
	if s.To != nil {
		to := *s.To
		s.To = &to
	}
	if s.Guests != nil {
		guests := make([]Guest, len(s.Guests))
		copy(guests, s.Guests)
		s.Guests = guests
	}
	if s.OverriddenReservationIDs != nil {
		ids := make([]string, len(s.OverriddenReservationIDs))
		copy(ids, s.OverriddenReservationIDs)
		s.OverriddenReservationIDs = ids
	}
	return s
}

func cloneSession(s WorkingSession) WorkingSession {
	if s.Selections != nil {
		selections := make([]Selection, len(s.Selections))
		for i, sel := range s.Selections {
			selections[i] = cloneSelection(sel)
		}
		s.Selections = selections
	}
	return s
}
