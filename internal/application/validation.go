package application

import (
	"errors"
	"strings"

	"github.com/example/hotel-frontdesk/internal/occupancy"
)

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Number) == "" {
		vErr.add("number", "number is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}
	if input.NightlyRate < 0 {
		vErr.add("nightly_rate", "nightly rate must not be negative")
	}
	switch input.Maintenance {
	case "", MaintenanceInService, MaintenanceOutOfService:
	default:
		vErr.add("maintenance", "maintenance must be IN_SERVICE or OUT_OF_SERVICE")
	}

	return vErr
}

// validateSelection checks the shape of a selection. Range ordering is left
// to the availability rules so it surfaces as INVALID_RANGE.
func validateSelection(sel Selection) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(sel.RoomNumber) == "" {
		vErr.add("room_number", "room number is required")
	}
	if sel.From.IsZero() {
		vErr.add("from", "from is required")
	}
	if sel.NightlyRate < 0 {
		vErr.add("nightly_rate", "nightly rate must not be negative")
	}

	switch sel.Kind {
	case SelectionReservation:
		if sel.To == nil {
			vErr.add("to", "reservations need an end date")
		}
		if strings.TrimSpace(sel.Responsible.Name) == "" {
			vErr.add("responsible.name", "responsible name is required")
		}
		if len(sel.Guests) > 0 {
			vErr.add("guests", "guests are recorded at check-in")
		}
	case SelectionStay:
		if err := occupancy.CheckGuestList(occupancyGuests(sel.Guests)); err != nil {
			vErr.add("guests", guestListMessage(err))
		}
	default:
		vErr.add("kind", "kind must be reservation or stay")
	}

	return vErr
}

func guestListMessage(err error) string {
	if !errors.Is(err, occupancy.ErrInvalidGuests) {
		return err.Error()
	}
	return strings.TrimPrefix(err.Error(), occupancy.ErrInvalidGuests.Error()+": ")
}
