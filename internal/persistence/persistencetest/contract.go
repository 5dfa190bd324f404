// Package persistencetest holds a behavioural suite shared by every
// persistence.Store implementation.
package persistencetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hotel-frontdesk/internal/persistence"
)

// Factory returns a fresh, empty, migrated store.
type Factory func(t *testing.T) persistence.Store

func day(value string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(value string) *time.Time {
	d := day(value)
	return &d
}

var created = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func seedRooms(t *testing.T, repos persistence.Repositories, numbers ...string) {
	t.Helper()
	for _, number := range numbers {
		require.NoError(t, repos.Rooms.CreateRoom(context.Background(), persistence.Room{
			Number:      number,
			Type:        "double",
			Capacity:    2,
			NightlyRate: 12000,
			Maintenance: persistence.MaintenanceInService,
			CreatedAt:   created,
			UpdatedAt:   created,
		}))
	}
}

// Run exercises the repositories and transaction semantics of a store.
func Run(t *testing.T, newStore Factory) {
	t.Run("rooms", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		repos := store.Repositories()
		seedRooms(t, repos, "102", "101")

		err := repos.Rooms.CreateRoom(ctx, persistence.Room{Number: "101", Type: "single", Capacity: 1, CreatedAt: created, UpdatedAt: created})
		assert.True(t, errors.Is(err, persistence.ErrDuplicate), "got %v", err)

		room, err := repos.Rooms.GetRoom(ctx, "101")
		require.NoError(t, err)
		assert.Equal(t, 2, room.Capacity)
		assert.Equal(t, int64(12000), room.NightlyRate)
		assert.True(t, room.CreatedAt.Equal(created))

		room.Maintenance = persistence.MaintenanceOutOfService
		room.UpdatedAt = created.Add(time.Hour)
		require.NoError(t, repos.Rooms.UpdateRoom(ctx, room))
		room, err = repos.Rooms.GetRoom(ctx, "101")
		require.NoError(t, err)
		assert.Equal(t, persistence.MaintenanceOutOfService, room.Maintenance)

		_, err = repos.Rooms.GetRoom(ctx, "999")
		assert.True(t, errors.Is(err, persistence.ErrNotFound))
		err = repos.Rooms.UpdateRoom(ctx, persistence.Room{Number: "999", Type: "x", Capacity: 1})
		assert.True(t, errors.Is(err, persistence.ErrNotFound))

		rooms, err := repos.Rooms.ListRooms(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 2)
		assert.Equal(t, "101", rooms[0].Number)
		assert.Equal(t, "102", rooms[1].Number)
	})

	t.Run("reservations", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		repos := store.Repositories()
		seedRooms(t, repos, "101", "102")

		ids, err := repos.Reservations.CreateReservations(ctx, []persistence.Reservation{
			{ID: "r1", RoomNumber: "101", From: day("2024-06-03"), To: day("2024-06-05"), Status: persistence.ReservationActive, ResponsibleName: "Gomez", ResponsiblePhone: "555", CreatedAt: created},
			{ID: "r2", RoomNumber: "102", From: day("2024-06-10"), To: day("2024-06-12"), Status: persistence.ReservationActive, ResponsibleName: "Diaz", CreatedAt: created},
			{ID: "r3", RoomNumber: "101", From: day("2024-06-06"), To: day("2024-06-08"), Status: persistence.ReservationCancelled, ResponsibleName: "Ruiz", CreatedAt: created},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"r1", "r2", "r3"}, ids)

		found, err := repos.Reservations.FindActiveInRange(ctx, day("2024-06-01"), day("2024-06-11"))
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "r1", found[0].ID)
		assert.Equal(t, "Gomez", found[0].ResponsibleName)
		assert.True(t, found[0].From.Equal(day("2024-06-03")))
		assert.True(t, found[0].To.Equal(day("2024-06-05")))

		found, err = repos.Reservations.FindActiveInRange(ctx, day("2024-06-05"), day("2024-06-10"))
		require.NoError(t, err)
		assert.Empty(t, found, "touching ranges do not overlap")

		exists, err := repos.Reservations.ExistsOverlap(ctx, "101", day("2024-06-04"), dayPtr("2024-06-06"))
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repos.Reservations.ExistsOverlap(ctx, "101", day("2024-06-06"), dayPtr("2024-06-08"))
		require.NoError(t, err)
		assert.False(t, exists, "cancelled reservations are ignored")

		exists, err = repos.Reservations.ExistsOverlap(ctx, "102", day("2024-06-01"), nil)
		require.NoError(t, err)
		assert.True(t, exists, "open range reaches later reservations")

		listed, err := repos.Reservations.ListOverlapping(ctx, "101", day("2024-06-01"), nil)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, "r1", listed[0].ID)

		_, err = repos.Reservations.CreateReservations(ctx, []persistence.Reservation{
			{ID: "r9", RoomNumber: "999", From: day("2024-06-03"), To: day("2024-06-05"), Status: persistence.ReservationActive, CreatedAt: created},
		})
		assert.True(t, errors.Is(err, persistence.ErrConstraintViolation), "got %v", err)
	})

	t.Run("stays", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		repos := store.Repositories()
		seedRooms(t, repos, "101", "201")
		_, err := repos.Reservations.CreateReservations(ctx, []persistence.Reservation{
			{ID: "r1", RoomNumber: "201", From: day("2024-06-06"), To: day("2024-06-07"), Status: persistence.ReservationActive, ResponsibleName: "Lopez", CreatedAt: created},
		})
		require.NoError(t, err)

		id, err := repos.Stays.CreateStay(ctx, persistence.Stay{
			ID:         "s-open",
			RoomNumber: "101",
			CheckIn:    day("2024-06-01"),
			Guests: []persistence.StayGuest{
				{DocumentType: "DNI", DocumentNumber: "1", Name: "Sosa", Responsible: true},
			},
			CreatedAt: created,
		})
		require.NoError(t, err)
		assert.Equal(t, "s-open", id)

		_, err = repos.Stays.CreateStay(ctx, persistence.Stay{
			ID:          "s-201",
			RoomNumber:  "201",
			CheckIn:     day("2024-06-06"),
			CheckOut:    dayPtr("2024-06-07"),
			NightlyRate: 9000,
			Guests: []persistence.StayGuest{
				{DocumentType: "DNI", DocumentNumber: "20999888", Name: "Lopez", Responsible: true},
				{DocumentType: "DNI", DocumentNumber: "30111222", Name: "Perez"},
			},
			OverriddenReservationIDs: []string{"r1"},
			CreatedAt:                created,
		})
		require.NoError(t, err)

		stays, err := repos.Stays.FindInRange(ctx, day("2024-12-01"), day("2025-01-01"))
		require.NoError(t, err)
		require.Len(t, stays, 1)
		assert.Equal(t, "s-open", stays[0].ID)
		assert.Nil(t, stays[0].CheckOut)

		stays, err = repos.Stays.FindInRange(ctx, day("2024-06-05"), day("2024-06-09"))
		require.NoError(t, err)
		require.Len(t, stays, 2)
		assert.Equal(t, "s-open", stays[0].ID)
		assert.Equal(t, "s-201", stays[1].ID)
		require.Len(t, stays[1].Guests, 2)
		assert.Equal(t, "Lopez", stays[1].Guests[0].Name)
		assert.True(t, stays[1].Guests[0].Responsible)
		assert.False(t, stays[1].Guests[1].Responsible)
		assert.Equal(t, []string{"r1"}, stays[1].OverriddenReservationIDs)
		require.NotNil(t, stays[1].CheckOut)
		assert.True(t, stays[1].CheckOut.Equal(day("2024-06-07")))

		exists, err := repos.Stays.ExistsOverlap(ctx, "101", day("2030-01-01"), dayPtr("2030-01-02"))
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = repos.Stays.ExistsOverlap(ctx, "201", day("2024-06-07"), nil)
		require.NoError(t, err)
		assert.False(t, exists, "checkout day is free")

		perez := persistence.GuestIdentity{DocumentType: "DNI", DocumentNumber: "30111222"}
		lopez := persistence.GuestIdentity{DocumentType: "DNI", DocumentNumber: "20999888"}

		active, err := repos.Stays.IsGuestActiveElsewhere(ctx, perez, day("2024-06-05"), dayPtr("2024-06-08"), false)
		require.NoError(t, err)
		assert.True(t, active)
		active, err = repos.Stays.IsGuestActiveElsewhere(ctx, perez, day("2024-06-07"), dayPtr("2024-06-08"), false)
		require.NoError(t, err)
		assert.False(t, active)
		active, err = repos.Stays.IsGuestActiveElsewhere(ctx, lopez, day("2024-06-05"), nil, true)
		require.NoError(t, err)
		assert.False(t, active, "responsible role ignored when only accompanying counts")
		active, err = repos.Stays.IsGuestActiveElsewhere(ctx, lopez, day("2024-06-05"), nil, false)
		require.NoError(t, err)
		assert.True(t, active)

		stay, err := repos.Stays.GetStay(ctx, "s-201")
		require.NoError(t, err)
		assert.Equal(t, int64(9000), stay.NightlyRate)
		assert.Len(t, stay.Guests, 2)

		_, err = repos.Stays.GetStay(ctx, "missing")
		assert.True(t, errors.Is(err, persistence.ErrNotFound))
	})

	t.Run("transaction rollback discards every write", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		seedRooms(t, store.Repositories(), "101")
		boom := errors.New("boom")

		err := store.WithinTransaction(ctx, func(repos persistence.Repositories) error {
			if _, err := repos.Reservations.CreateReservations(ctx, []persistence.Reservation{
				{ID: "r1", RoomNumber: "101", From: day("2024-06-03"), To: day("2024-06-05"), Status: persistence.ReservationActive, ResponsibleName: "A", CreatedAt: created},
			}); err != nil {
				return err
			}
			exists, err := repos.Reservations.ExistsOverlap(ctx, "101", day("2024-06-03"), dayPtr("2024-06-04"))
			if err != nil {
				return err
			}
			if !exists {
				return errors.New("write not visible inside transaction")
			}
			if _, err := repos.Stays.CreateStay(ctx, persistence.Stay{ID: "s1", RoomNumber: "101", CheckIn: day("2024-06-10"), Guests: []persistence.StayGuest{{DocumentType: "DNI", DocumentNumber: "1", Name: "A", Responsible: true}}, CreatedAt: created}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		repos := store.Repositories()
		found, err := repos.Reservations.FindActiveInRange(ctx, day("2024-01-01"), day("2025-01-01"))
		require.NoError(t, err)
		assert.Empty(t, found)
		stays, err := repos.Stays.FindInRange(ctx, day("2024-01-01"), day("2025-01-01"))
		require.NoError(t, err)
		assert.Empty(t, stays)
	})

	t.Run("transaction commit publishes writes", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		seedRooms(t, store.Repositories(), "101")

		err := store.WithinTransaction(ctx, func(repos persistence.Repositories) error {
			_, err := repos.Reservations.CreateReservations(ctx, []persistence.Reservation{
				{ID: "r1", RoomNumber: "101", From: day("2024-06-03"), To: day("2024-06-05"), Status: persistence.ReservationActive, ResponsibleName: "A", CreatedAt: created},
			})
			return err
		})
		require.NoError(t, err)

		exists, err := store.Repositories().Reservations.ExistsOverlap(ctx, "101", day("2024-06-01"), dayPtr("2024-06-04"))
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
