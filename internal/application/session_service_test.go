package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hotel-frontdesk/internal/application"
	"github.com/example/hotel-frontdesk/internal/occupancy"
	"github.com/example/hotel-frontdesk/internal/persistence"
	tf "github.com/example/hotel-frontdesk/internal/testfixtures"
)

func sessionHotel(t *testing.T, store persistence.Store) {
	t.Helper()
	tf.Hotel{
		Rooms: []persistence.Room{
			tf.NewRoom("101"), tf.NewRoom("102"), tf.NewRoom("103"), tf.NewRoom("201"),
		},
		Reservations: []persistence.Reservation{tf.NewReservation("res-1", "101", "2024-06-03", "2024-06-05")},
		Stays: []persistence.Stay{
			tf.NewStay("stay-201", "201", "2024-06-06", "2024-06-07",
				tf.Guest("A1", "Lopez", true),
				tf.Guest("30111222", "Perez", false),
			),
		},
	}.Seed(t, store)
}

func TestSessionService_StageAndCommit(t *testing.T) {
	ctx := context.Background()
	store := tf.Stores()[0].New(t)
	sessionHotel(t, store)
	svc := tf.NewServices(store)

	session, err := svc.Session.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, "id-1", session.ID)
	assert.Equal(t, svc.Clock.Now().Add(time.Hour), session.ExpiresAt)

	first, err := svc.Session.Stage(ctx, session.ID, reservationSel("", "102", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)
	assert.Equal(t, "id-2", first.ID)

	_, err = svc.Session.Stage(ctx, session.ID, reservationSel("", "102", "2024-06-11", "2024-06-13"))
	var aErr *application.AvailabilityError
	require.ErrorAs(t, err, &aErr)
	assert.Equal(t, occupancy.ReasonStagedConflict, aErr.Reason)
	assert.Equal(t, first.ID, aErr.ConflictWith)

	_, err = svc.Session.Stage(ctx, session.ID, staySel("", "103", "2024-06-10", "2024-06-12",
		responsible("B1", "Ruiz"), companion("B2", "Ruiz")))
	require.NoError(t, err)

	got, err := svc.Session.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, got.Selections, 2)

	_, stays := persistedRecords(t, store)
	assert.Len(t, stays, 1, "staging persists nothing")

	result, err := svc.Session.Commit(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, result.ReservationIDs, 1)
	assert.Len(t, result.StayIDs, 1)

	_, err = svc.Session.Get(ctx, session.ID)
	assert.True(t, errors.Is(err, application.ErrSessionNotFound))
}

func TestSessionService_GuestRules(t *testing.T) {
	ctx := context.Background()
	store := tf.Stores()[0].New(t)
	sessionHotel(t, store)
	svc := tf.NewServices(store)

	session, err := svc.Session.Open(ctx)
	require.NoError(t, err)

	_, err = svc.Session.Stage(ctx, session.ID, staySel("", "102", "2024-06-05", "2024-06-08",
		application.Guest{DocumentType: "PASSPORT", DocumentNumber: "30111222", Name: "Perez", Responsible: true}))
	var aErr *application.AvailabilityError
	require.ErrorAs(t, err, &aErr)
	assert.Equal(t, occupancy.ReasonGuestDoubleBook, aErr.Reason)
	assert.Equal(t, "PASSPORT 30111222", aErr.Guest)
	assert.Equal(t, "stay-201", aErr.ConflictWith)

	_, err = svc.Session.Stage(ctx, session.ID, staySel("", "102", "2024-06-10", "2024-06-12",
		responsible("C1", "Gil"), companion("C2", "Gil")))
	require.NoError(t, err)

	_, err = svc.Session.Stage(ctx, session.ID, staySel("", "103", "2024-06-11", "2024-06-12",
		responsible("C2", "Gil")))
	require.ErrorAs(t, err, &aErr)
	assert.Equal(t, occupancy.ReasonGuestDoubleBook, aErr.Reason, "staged stays count as occupied")

	_, err = svc.Session.Stage(ctx, session.ID, staySel("", "103", "2024-06-11", "2024-06-12",
		responsible("C1", "Gil")))
	require.NoError(t, err, "a responsible guest may hold several rooms")
}

func TestSessionService_ReservationOverride(t *testing.T) {
	ctx := context.Background()
	store := tf.Stores()[0].New(t)
	sessionHotel(t, store)
	svc := tf.NewServices(store)

	session, err := svc.Session.Open(ctx)
	require.NoError(t, err)

	sel := staySel("", "101", "2024-06-03", "2024-06-04", responsible("G1", "Gomez"))
	_, err = svc.Session.Stage(ctx, session.ID, sel)
	var aErr *application.AvailabilityError
	require.ErrorAs(t, err, &aErr)
	assert.True(t, aErr.RequiresOverride)
	assert.Equal(t, []string{"res-1"}, aErr.OverriddenReservationIDs)

	sel.AcceptReservedOverride = true
	staged, err := svc.Session.Stage(ctx, session.ID, sel)
	require.NoError(t, err)
	assert.Equal(t, []string{"res-1"}, staged.OverriddenReservationIDs)

	result, err := svc.Session.Commit(ctx, session.ID)
	require.NoError(t, err)

	stay, err := store.Repositories().Stays.GetStay(ctx, result.StayIDs[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"res-1"}, stay.OverriddenReservationIDs)
}

func TestSessionService_OpenStayOverDistantReservation(t *testing.T) {
	for _, backend := range tf.Stores() {
		t.Run(backend.Name, func(t *testing.T) {
			ctx := context.Background()
			store := backend.New(t)
			sessionHotel(t, store)
			tf.Hotel{Reservations: []persistence.Reservation{
				tf.NewReservation("res-far", "103", "2024-09-01", "2024-09-03"),
			}}.Seed(t, store)
			svc := tf.NewServices(store)

			session, err := svc.Session.Open(ctx)
			require.NoError(t, err)

			sel := staySel("", "103", "2024-06-01", "", responsible("H1", "Herrera"))
			_, err = svc.Session.Stage(ctx, session.ID, sel)
			var aErr *application.AvailabilityError
			require.ErrorAs(t, err, &aErr)
			assert.True(t, aErr.RequiresOverride)
			assert.Equal(t, []string{"res-far"}, aErr.OverriddenReservationIDs)

			sel.AcceptReservedOverride = true
			staged, err := svc.Session.Stage(ctx, session.ID, sel)
			require.NoError(t, err)
			assert.Equal(t, []string{"res-far"}, staged.OverriddenReservationIDs)

			result, err := svc.Session.Commit(ctx, session.ID)
			require.NoError(t, err)

			stay, err := store.Repositories().Stays.GetStay(ctx, result.StayIDs[0])
			require.NoError(t, err)
			assert.Nil(t, stay.CheckOut)
			assert.Equal(t, []string{"res-far"}, stay.OverriddenReservationIDs)
		})
	}
}

func TestSessionService_UnstageDiscardAndLimits(t *testing.T) {
	ctx := context.Background()
	store := tf.Stores()[0].New(t)
	sessionHotel(t, store)
	svc := tf.NewServices(store, tf.WithSessionConfig(application.SessionConfig{TTL: time.Minute, MaxSelections: 1}))

	session, err := svc.Session.Open(ctx)
	require.NoError(t, err)

	staged, err := svc.Session.Stage(ctx, session.ID, reservationSel("", "102", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)

	_, err = svc.Session.Stage(ctx, session.ID, reservationSel("", "103", "2024-06-10", "2024-06-12"))
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)

	err = svc.Session.Unstage(ctx, session.ID, "missing")
	assert.True(t, errors.Is(err, application.ErrNotFound))

	require.NoError(t, svc.Session.Unstage(ctx, session.ID, staged.ID))
	_, err = svc.Session.Stage(ctx, session.ID, reservationSel("", "102", "2024-06-11", "2024-06-12"))
	require.NoError(t, err, "unstaged selections no longer conflict")

	_, err = svc.Session.Commit(ctx, "unknown")
	assert.True(t, errors.Is(err, application.ErrSessionNotFound))

	require.NoError(t, svc.Session.Discard(ctx, session.ID))
	assert.True(t, errors.Is(svc.Session.Discard(ctx, session.ID), application.ErrSessionNotFound))

	reservations, _ := persistedRecords(t, store)
	assert.Len(t, reservations, 1, "discarding persists nothing")

	expiring, err := svc.Session.Open(ctx)
	require.NoError(t, err)
	svc.Clock.Advance(2 * time.Minute)
	_, err = svc.Session.Stage(ctx, expiring.ID, reservationSel("", "102", "2024-06-20", "2024-06-21"))
	assert.True(t, errors.Is(err, application.ErrSessionNotFound))
}

func TestSessionService_ConflictKeepsSession(t *testing.T) {
	ctx := context.Background()
	store := tf.Stores()[0].New(t)
	sessionHotel(t, store)
	svc := tf.NewServices(store)

	session, err := svc.Session.Open(ctx)
	require.NoError(t, err)
	_, err = svc.Session.Stage(ctx, session.ID, reservationSel("", "102", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)

	_, err = svc.Committer.CommitSelections(ctx, []application.Selection{reservationSel("other", "102", "2024-06-11", "2024-06-12")})
	require.NoError(t, err)

	_, err = svc.Session.Commit(ctx, session.ID)
	assert.True(t, errors.Is(err, application.ErrCommitConflict))

	got, err := svc.Session.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, got.Selections, 1)
}

func TestSessionService_ConcurrentCommits(t *testing.T) {
	for _, backend := range tf.Stores() {
		t.Run(backend.Name, func(t *testing.T) {
			ctx := context.Background()
			store := backend.New(t)
			sessionHotel(t, store)
			svc := tf.NewServices(store)

			// Both sessions pass staging before either commits.
			var ids []string
			for i, from := range []string{"2024-06-10", "2024-06-12"} {
				session, err := svc.Session.Open(ctx)
				require.NoError(t, err)
				_, err = svc.Session.Stage(ctx, session.ID, staySel("", "103", from, "2024-06-14",
					responsible([]string{"H1", "H2"}[i], "Guest")))
				require.NoError(t, err)
				ids = append(ids, session.ID)
			}

			var (
				wg   sync.WaitGroup
				errs = make([]error, len(ids))
			)
			for i, id := range ids {
				wg.Add(1)
				go func(i int, id string) {
					defer wg.Done()
					_, errs[i] = svc.Session.Commit(ctx, id)
				}(i, id)
			}
			wg.Wait()

			var ok, conflicted int
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, application.ErrCommitConflict):
					conflicted++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, ok)
			assert.Equal(t, 1, conflicted)

			_, stays := persistedRecords(t, store)
			var in103 int
			for _, st := range stays {
				if st.RoomNumber == "103" {
					in103++
				}
			}
			assert.Equal(t, 1, in103, "the losing attempt leaves no rows")
		})
	}
}
