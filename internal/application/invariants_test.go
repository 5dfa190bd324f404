package application_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hotel-frontdesk/internal/application"
	"github.com/example/hotel-frontdesk/internal/occupancy"
	"github.com/example/hotel-frontdesk/internal/persistence"
	tf "github.com/example/hotel-frontdesk/internal/testfixtures"
)

// commitMixedBatches drives the committer with a seeded mix of reservations,
// bounded and open stays, accepted overrides and multi-room batches. It
// returns how many batches were written.
func commitMixedBatches(t *testing.T, svc *tf.Services, seed int64, batches int) int {
	t.Helper()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(seed))
	rooms := []string{"101", "102", "103", "104", "105", "106"}
	base := tf.Day("2024-06-01")

	committed := 0
	for b := 0; b < batches; b++ {
		var batch []application.Selection
		for n := 1 + rng.Intn(3); n > 0; n-- {
			room := rooms[rng.Intn(len(rooms))]
			from := occupancy.AddDays(base, rng.Intn(45))
			to := occupancy.AddDays(from, 1+rng.Intn(6))
			id := fmt.Sprintf("b%d-%d", b, n)

			if rng.Intn(3) == 0 {
				batch = append(batch, application.Selection{
					ID:          id,
					Kind:        application.SelectionReservation,
					RoomNumber:  room,
					From:        from,
					To:          &to,
					Responsible: application.ResponsibleParty{Name: "Holder " + id, Phone: "+34 600 000 001"},
				})
				continue
			}

			sel := application.Selection{
				ID:         id,
				Kind:       application.SelectionStay,
				RoomNumber: room,
				From:       from,
				To:         &to,
			}
			if rng.Intn(10) == 0 {
				sel.To = nil
			}
			docs := rng.Perm(12)[:1+rng.Intn(3)]
			for i, doc := range docs {
				sel.Guests = append(sel.Guests, application.Guest{
					DocumentType:   "PASSPORT",
					DocumentNumber: fmt.Sprintf("P%02d", doc),
					Name:           fmt.Sprintf("Guest %02d", doc),
					Responsible:    i == 0,
				})
			}
			if rng.Intn(2) == 0 {
				decision, err := svc.Occupancy.CheckAvailability(ctx, application.AvailabilityQuery{
					RoomNumber:     room,
					From:           sel.From,
					To:             sel.To,
					Mode:           occupancy.ModeCheckIn,
					AcceptReserved: true,
				}, nil)
				require.NoError(t, err)
				if decision.Available {
					sel.AcceptReservedOverride = true
					sel.OverriddenReservationIDs = decision.OverriddenReservationIDs
				}
			}
			batch = append(batch, sel)
		}

		_, err := svc.Committer.CommitSelections(ctx, batch)
		switch {
		case err == nil:
			committed++
		case errors.Is(err, application.ErrCommitConflict):
		default:
			t.Fatalf("batch %d: unexpected error: %v", b, err)
		}
	}
	return committed
}

func stayInterval(st persistence.Stay) occupancy.Interval {
	return occupancy.IntervalFromPtr(st.CheckIn, st.CheckOut)
}

func TestCommittedRecordsNeverOverlap(t *testing.T) {
	for _, backend := range tf.Stores() {
		t.Run(backend.Name, func(t *testing.T) {
			store := backend.New(t)
			tf.Hotel{
				Rooms: []persistence.Room{
					tf.NewRoom("101"), tf.NewRoom("102"), tf.NewRoom("103"),
					tf.NewRoom("104"), tf.NewRoom("105", tf.WithCapacity(3)), tf.NewRoom("106", tf.WithCapacity(1)),
				},
				Reservations: []persistence.Reservation{
					tf.NewReservation("res-near", "101", "2024-06-05", "2024-06-08"),
					tf.NewReservation("res-far", "102", "2024-08-20", "2024-08-25"),
				},
			}.Seed(t, store)
			svc := tf.NewServices(store)

			committed := commitMixedBatches(t, svc, 20240601, 80)
			require.Positive(t, committed)

			reservations, stays := persistedRecords(t, store)
			require.NotEmpty(t, stays)

			for i := range stays {
				for j := i + 1; j < len(stays); j++ {
					a, b := stays[i], stays[j]
					if a.RoomNumber == b.RoomNumber {
						assert.False(t, stayInterval(a).Overlaps(stayInterval(b)),
							"stays %s and %s share room %s", a.ID, b.ID, a.RoomNumber)
					}
				}
			}

			for i := range reservations {
				for j := i + 1; j < len(reservations); j++ {
					a, b := reservations[i], reservations[j]
					if a.RoomNumber == b.RoomNumber {
						assert.False(t, occupancy.NewInterval(a.From, a.To).Overlaps(occupancy.NewInterval(b.From, b.To)),
							"reservations %s and %s share room %s", a.ID, b.ID, a.RoomNumber)
					}
				}
			}

			for _, st := range stays {
				overridden := make(map[string]bool, len(st.OverriddenReservationIDs))
				for _, id := range st.OverriddenReservationIDs {
					overridden[id] = true
				}
				for _, r := range reservations {
					if r.RoomNumber != st.RoomNumber || overridden[r.ID] {
						continue
					}
					assert.False(t, stayInterval(st).Overlaps(occupancy.NewInterval(r.From, r.To)),
						"stay %s overlaps reservation %s without an override", st.ID, r.ID)
				}
			}

			for i := range stays {
				for j := range stays {
					a, b := stays[i], stays[j]
					if i == j || !stayInterval(a).Overlaps(stayInterval(b)) {
						continue
					}
					for _, ga := range a.Guests {
						if ga.Responsible {
							continue
						}
						for _, gb := range b.Guests {
							assert.False(t, ga.DocumentType == gb.DocumentType && ga.DocumentNumber == gb.DocumentNumber,
								"%s %s accompanies stay %s while on overlapping stay %s", ga.DocumentType, ga.DocumentNumber, a.ID, b.ID)
						}
					}
				}
			}
		})
	}
}
