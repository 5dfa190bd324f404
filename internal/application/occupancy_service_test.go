package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hotel-frontdesk/internal/application"
	"github.com/example/hotel-frontdesk/internal/occupancy"
	"github.com/example/hotel-frontdesk/internal/persistence"
	tf "github.com/example/hotel-frontdesk/internal/testfixtures"
)

func TestOccupancyService_BuildOccupancyGrid(t *testing.T) {
	for _, backend := range tf.Stores() {
		t.Run(backend.Name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("reservation marks its nights reserved", func(t *testing.T) {
				store := backend.New(t)
				tf.Hotel{
					Rooms:        []persistence.Room{tf.NewRoom("101")},
					Reservations: []persistence.Reservation{tf.NewReservation("res-1", "101", "2024-06-03", "2024-06-05")},
				}.Seed(t, store)
				svc := tf.NewServices(store)

				grid, err := svc.Occupancy.BuildOccupancyGrid(ctx, application.GridRequest{
					Start: tf.Day("2024-06-01"),
					End:   tf.Day("2024-06-10"),
				})
				require.NoError(t, err)

				for _, day := range grid.Days() {
					state, err := grid.State("101", day)
					require.NoError(t, err)
					want := occupancy.StateFree
					if occupancy.FormatDay(day) == "2024-06-03" || occupancy.FormatDay(day) == "2024-06-04" {
						want = occupancy.StateReserved
					}
					assert.Equal(t, want, state, occupancy.FormatDay(day))
				}
			})

			t.Run("open stay occupies every day", func(t *testing.T) {
				store := backend.New(t)
				tf.Hotel{
					Rooms: []persistence.Room{tf.NewRoom("101")},
					Stays: []persistence.Stay{tf.NewStay("stay-1", "101", "2024-06-01", "", tf.Guest("X1", "Ana", true))},
				}.Seed(t, store)
				svc := tf.NewServices(store)

				grid, err := svc.Occupancy.BuildOccupancyGrid(ctx, application.GridRequest{
					Start: tf.Day("2024-06-01"),
					End:   tf.Day("2024-12-31"),
				})
				require.NoError(t, err)

				row, err := grid.Row("101")
				require.NoError(t, err)
				require.Len(t, row, 214)
				for _, cell := range row {
					assert.Equal(t, occupancy.StateOccupied, cell.State)
					assert.Equal(t, "stay-1", cell.StayID)
				}
			})

			t.Run("out of service rooms dominate", func(t *testing.T) {
				store := backend.New(t)
				tf.Hotel{
					Rooms:        []persistence.Room{tf.NewRoom("101", tf.OutOfService()), tf.NewRoom("102")},
					Reservations: []persistence.Reservation{tf.NewReservation("res-1", "101", "2024-06-01", "2024-06-03")},
				}.Seed(t, store)
				svc := tf.NewServices(store)

				grid, err := svc.Occupancy.BuildOccupancyGrid(ctx, application.GridRequest{
					Start:       tf.Day("2024-06-01"),
					End:         tf.Day("2024-06-02"),
					RoomNumbers: []string{"101"},
				})
				require.NoError(t, err)
				assert.Equal(t, []string{"101"}, grid.Rooms())
				state, err := grid.State("101", tf.Day("2024-06-01"))
				require.NoError(t, err)
				assert.Equal(t, occupancy.StateOutOfService, state)
			})

			t.Run("unknown room", func(t *testing.T) {
				store := backend.New(t)
				tf.Hotel{Rooms: []persistence.Room{tf.NewRoom("101")}}.Seed(t, store)
				svc := tf.NewServices(store)

				_, err := svc.Occupancy.BuildOccupancyGrid(ctx, application.GridRequest{
					Start:       tf.Day("2024-06-01"),
					End:         tf.Day("2024-06-02"),
					RoomNumbers: []string{"999"},
				})
				assert.True(t, errors.Is(err, application.ErrNotFound), "got %v", err)
			})

			t.Run("window errors", func(t *testing.T) {
				store := backend.New(t)
				tf.Hotel{Rooms: []persistence.Room{tf.NewRoom("101")}}.Seed(t, store)
				svc := tf.NewServices(store, tf.WithOccupancyConfig(application.OccupancyConfig{MaxGridDays: 10}))

				_, err := svc.Occupancy.BuildOccupancyGrid(ctx, application.GridRequest{
					Start: tf.Day("2024-06-05"),
					End:   tf.Day("2024-06-01"),
				})
				assert.True(t, errors.Is(err, occupancy.ErrInvalidWindow), "got %v", err)

				_, err = svc.Occupancy.BuildOccupancyGrid(ctx, application.GridRequest{
					Start: tf.Day("2024-06-01"),
					End:   tf.Day("2024-06-30"),
				})
				assert.True(t, errors.Is(err, occupancy.ErrInvalidWindow), "got %v", err)
			})

			t.Run("empty hotel", func(t *testing.T) {
				svc := tf.NewServices(backend.New(t))
				_, err := svc.Occupancy.BuildOccupancyGrid(ctx, application.GridRequest{
					Start: tf.Day("2024-06-01"),
					End:   tf.Day("2024-06-02"),
				})
				assert.True(t, errors.Is(err, occupancy.ErrNoRooms), "got %v", err)
			})
		})
	}
}

func TestOccupancyService_CheckAvailability(t *testing.T) {
	ctx := context.Background()
	store := tf.Stores()[0].New(t)
	tf.Hotel{
		Rooms:        []persistence.Room{tf.NewRoom("101"), tf.NewRoom("102")},
		Reservations: []persistence.Reservation{tf.NewReservation("res-1", "101", "2024-06-03", "2024-06-05")},
		Stays:        []persistence.Stay{tf.NewStay("stay-1", "102", "2024-06-01", "", tf.Guest("X1", "Ana", true))},
	}.Seed(t, store)
	svc := tf.NewServices(store)

	t.Run("reservation blocked by reservation", func(t *testing.T) {
		decision, err := svc.Occupancy.CheckAvailability(ctx, application.AvailabilityQuery{
			RoomNumber: "101",
			From:       tf.Day("2024-06-04"),
			To:         tf.DayPtr("2024-06-06"),
		}, nil)
		require.NoError(t, err)
		assert.False(t, decision.Available)
		assert.Equal(t, occupancy.ReasonRoomNotFree, decision.Reason)
		assert.Equal(t, "res-1", decision.ConflictWith)
	})

	t.Run("touching ranges are free", func(t *testing.T) {
		decision, err := svc.Occupancy.CheckAvailability(ctx, application.AvailabilityQuery{
			RoomNumber: "101",
			From:       tf.Day("2024-06-05"),
			To:         tf.DayPtr("2024-06-07"),
		}, nil)
		require.NoError(t, err)
		assert.True(t, decision.Available)
	})

	t.Run("check-in over a reservation needs confirmation", func(t *testing.T) {
		query := application.AvailabilityQuery{
			RoomNumber: "101",
			From:       tf.Day("2024-06-03"),
			To:         tf.DayPtr("2024-06-04"),
			Mode:       occupancy.ModeCheckIn,
		}
		decision, err := svc.Occupancy.CheckAvailability(ctx, query, nil)
		require.NoError(t, err)
		assert.False(t, decision.Available)
		assert.True(t, decision.RequiresOverride)

		query.AcceptReserved = true
		decision, err = svc.Occupancy.CheckAvailability(ctx, query, nil)
		require.NoError(t, err)
		assert.True(t, decision.Available)
		assert.Equal(t, []string{"res-1"}, decision.OverriddenReservationIDs)
	})

	t.Run("open range only for check-in", func(t *testing.T) {
		decision, err := svc.Occupancy.CheckAvailability(ctx, application.AvailabilityQuery{
			RoomNumber: "101",
			From:       tf.Day("2024-07-01"),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, occupancy.ReasonInvalidRange, decision.Reason)

		decision, err = svc.Occupancy.CheckAvailability(ctx, application.AvailabilityQuery{
			RoomNumber: "101",
			From:       tf.Day("2024-07-01"),
			Mode:       occupancy.ModeCheckIn,
		}, nil)
		require.NoError(t, err)
		assert.True(t, decision.Available)
	})

	t.Run("open check-in sees reservations past the horizon", func(t *testing.T) {
		tf.Hotel{
			Rooms:        []persistence.Room{tf.NewRoom("103")},
			Reservations: []persistence.Reservation{tf.NewReservation("res-far", "103", "2024-09-01", "2024-09-03")},
		}.Seed(t, store)

		query := application.AvailabilityQuery{
			RoomNumber: "103",
			From:       tf.Day("2024-06-01"),
			Mode:       occupancy.ModeCheckIn,
		}
		decision, err := svc.Occupancy.CheckAvailability(ctx, query, nil)
		require.NoError(t, err)
		assert.False(t, decision.Available)
		assert.True(t, decision.RequiresOverride)
		assert.Equal(t, "res-far", decision.ConflictWith)
		assert.Equal(t, "2024-09-01", occupancy.FormatDay(decision.Day))

		query.AcceptReserved = true
		decision, err = svc.Occupancy.CheckAvailability(ctx, query, nil)
		require.NoError(t, err)
		assert.True(t, decision.Available)
		assert.Equal(t, []string{"res-far"}, decision.OverriddenReservationIDs)

		decision, err = svc.Occupancy.CheckAvailability(ctx, application.AvailabilityQuery{
			RoomNumber: "103",
			From:       tf.Day("2024-06-01"),
			To:         tf.DayPtr("2024-06-10"),
			Mode:       occupancy.ModeCheckIn,
		}, nil)
		require.NoError(t, err)
		assert.True(t, decision.Available)
	})

	t.Run("open stay blocks later bookings", func(t *testing.T) {
		decision, err := svc.Occupancy.CheckAvailability(ctx, application.AvailabilityQuery{
			RoomNumber: "102",
			From:       tf.Day("2024-09-01"),
			To:         tf.DayPtr("2024-09-02"),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, occupancy.ReasonRoomNotFree, decision.Reason)
		assert.Equal(t, "stay-1", decision.ConflictWith)
	})

	t.Run("staged overlay", func(t *testing.T) {
		staged := []application.Selection{{
			ID:         "sel-1",
			Kind:       application.SelectionReservation,
			RoomNumber: "101",
			From:       tf.Day("2024-06-10"),
			To:         tf.DayPtr("2024-06-12"),
		}}
		decision, err := svc.Occupancy.CheckAvailability(ctx, application.AvailabilityQuery{
			RoomNumber: "101",
			From:       tf.Day("2024-06-11"),
			To:         tf.DayPtr("2024-06-13"),
		}, staged)
		require.NoError(t, err)
		assert.Equal(t, occupancy.ReasonStagedConflict, decision.Reason)
		assert.Equal(t, "sel-1", decision.ConflictWith)
	})

	t.Run("inverted range", func(t *testing.T) {
		decision, err := svc.Occupancy.CheckAvailability(ctx, application.AvailabilityQuery{
			RoomNumber: "101",
			From:       tf.Day("2024-06-10"),
			To:         tf.DayPtr("2024-06-10"),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, occupancy.ReasonInvalidRange, decision.Reason)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Occupancy.CheckAvailability(ctx, application.AvailabilityQuery{}, nil)
		var vErr *application.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "room_number")
		assert.Contains(t, vErr.FieldErrors, "from")
	})
}

func TestOccupancyService_ValidateGuestAssignment(t *testing.T) {
	ctx := context.Background()
	store := tf.Stores()[0].New(t)
	tf.Hotel{
		Rooms: []persistence.Room{tf.NewRoom("102"), tf.NewRoom("201"), tf.NewRoom("301")},
		Stays: []persistence.Stay{
			tf.NewStay("stay-201", "201", "2024-06-06", "2024-06-07",
				tf.Guest("A1", "Lopez", true),
				tf.Guest("30111222", "Perez", false),
			),
			tf.NewStay("stay-301", "301", "2024-06-01", "2024-06-10",
				tf.Guest("B1", "Ruiz", true),
			),
		},
	}.Seed(t, store)
	svc := tf.NewServices(store)

	stay := func(guests ...application.Guest) application.Selection {
		return application.Selection{
			Kind:       application.SelectionStay,
			RoomNumber: "102",
			From:       tf.Day("2024-06-05"),
			To:         tf.DayPtr("2024-06-08"),
			Guests:     guests,
		}
	}

	t.Run("accompanying elsewhere blocks", func(t *testing.T) {
		decision, err := svc.Occupancy.ValidateGuestAssignment(ctx, stay(
			application.Guest{DocumentType: " passport", DocumentNumber: "30111222", Name: "Perez", Responsible: true},
		), nil)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, occupancy.ReasonGuestDoubleBook, decision.Reason)
		assert.Equal(t, "stay-201", decision.ConflictWith)
	})

	t.Run("responsible on several rooms", func(t *testing.T) {
		decision, err := svc.Occupancy.ValidateGuestAssignment(ctx, stay(
			application.Guest{DocumentType: "PASSPORT", DocumentNumber: "B1", Name: "Ruiz", Responsible: true},
		), nil)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("staged stays count", func(t *testing.T) {
		staged := []application.Selection{{
			ID:         "sel-1",
			Kind:       application.SelectionStay,
			RoomNumber: "301",
			From:       tf.Day("2024-06-05"),
			To:         tf.DayPtr("2024-06-06"),
			Guests: []application.Guest{
				{DocumentType: "PASSPORT", DocumentNumber: "Z9", Name: "Diaz", Responsible: true},
				{DocumentType: "PASSPORT", DocumentNumber: "C3", Name: "Gil"},
			},
		}}
		decision, err := svc.Occupancy.ValidateGuestAssignment(ctx, stay(
			application.Guest{DocumentType: "PASSPORT", DocumentNumber: "C3", Name: "Gil", Responsible: true},
		), staged)
		require.NoError(t, err)
		assert.Equal(t, occupancy.ReasonGuestDoubleBook, decision.Reason)
		assert.Equal(t, "sel-1", decision.ConflictWith)
	})

	t.Run("capacity", func(t *testing.T) {
		decision, err := svc.Occupancy.ValidateGuestAssignment(ctx, stay(
			application.Guest{DocumentType: "PASSPORT", DocumentNumber: "D1", Responsible: true},
			application.Guest{DocumentType: "PASSPORT", DocumentNumber: "D2"},
			application.Guest{DocumentType: "PASSPORT", DocumentNumber: "D3"},
		), nil)
		require.NoError(t, err)
		assert.Equal(t, occupancy.ReasonCapacityExceeded, decision.Reason)
	})

	t.Run("unknown room", func(t *testing.T) {
		sel := stay(application.Guest{DocumentType: "PASSPORT", DocumentNumber: "D1", Responsible: true})
		sel.RoomNumber = "999"
		_, err := svc.Occupancy.ValidateGuestAssignment(ctx, sel, nil)
		assert.True(t, errors.Is(err, application.ErrNotFound), "got %v", err)
	})
}
