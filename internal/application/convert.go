package application

import (
	"time"

	"github.com/example/hotel-frontdesk/internal/occupancy"
	"github.com/example/hotel-frontdesk/internal/persistence"
)

// farFuture bounds range queries for open-ended stays.
var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

func roomFromRecord(r persistence.Room) Room {
	maintenance := MaintenanceState(r.Maintenance)
	if maintenance == "" {
		maintenance = MaintenanceInService
	}
	return Room{
		Number:      r.Number,
		Type:        r.Type,
		Capacity:    r.Capacity,
		NightlyRate: r.NightlyRate,
		Maintenance: maintenance,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func occupancyRoom(r persistence.Room) occupancy.Room {
	return occupancy.Room{
		Number:       r.Number,
		Capacity:     r.Capacity,
		OutOfService: r.Maintenance == persistence.MaintenanceOutOfService,
	}
}

func occupancyReservation(r persistence.Reservation) occupancy.Reservation {
	return occupancy.Reservation{
		ID:         r.ID,
		RoomNumber: r.RoomNumber,
		Period:     occupancy.NewInterval(r.From, r.To),
		Active:     r.Status == persistence.ReservationActive,
	}
}

func occupancyStay(s persistence.Stay) occupancy.Stay {
	guests := make([]occupancy.StayGuest, 0, len(s.Guests))
	for _, g := range s.Guests {
		guests = append(guests, occupancy.StayGuest{
			Identity:    occupancy.NewGuestIdentity(g.DocumentType, g.DocumentNumber),
			Name:        g.Name,
			Responsible: g.Responsible,
		})
	}
	return occupancy.Stay{
		ID:         s.ID,
		RoomNumber: s.RoomNumber,
		Period:     occupancy.IntervalFromPtr(s.CheckIn, s.CheckOut),
		Guests:     guests,
	}
}

func occupancyGuests(guests []Guest) []occupancy.StayGuest {
	out := make([]occupancy.StayGuest, 0, len(guests))
	for _, g := range guests {
		out = append(out, occupancy.StayGuest{
			Identity:    g.Identity(),
			Name:        g.Name,
			Responsible: g.Responsible,
		})
	}
	return out
}

func stagedSelections(selections []Selection) []occupancy.StagedSelection {
	out := make([]occupancy.StagedSelection, 0, len(selections))
	for _, sel := range selections {
		out = append(out, occupancy.StagedSelection{
			ID:         sel.ID,
			RoomNumber: sel.RoomNumber,
			Period:     sel.Period(),
		})
	}
	return out
}

// stagedStays returns the stay selections as occupancy stays so guest rules
// can see occupants staged earlier in the same session.
func stagedStays(selections []Selection) []occupancy.Stay {
	var out []occupancy.Stay
	for _, sel := range selections {
		if sel.Kind != SelectionStay {
			continue
		}
		out = append(out, occupancy.Stay{
			ID:         sel.ID,
			RoomNumber: sel.RoomNumber,
			Period:     sel.Period(),
			Guests:     occupancyGuests(sel.Guests),
		})
	}
	return out
}

func stayRecordGuests(guests []Guest) []persistence.StayGuest {
	out := make([]persistence.StayGuest, 0, len(guests))
	for _, g := range guests {
		id := g.Identity()
		out = append(out, persistence.StayGuest{
			DocumentType:   id.DocumentType,
			DocumentNumber: id.DocumentNumber,
			Name:           g.Name,
			Responsible:    g.Responsible,
		})
	}
	return out
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := occupancy.Day(*t)
	return &d
}
