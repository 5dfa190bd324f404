package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hotel-frontdesk/internal/metrics"
	"github.com/example/hotel-frontdesk/internal/persistence"
	"github.com/example/hotel-frontdesk/internal/persistence/memory"
	tf "github.com/example/hotel-frontdesk/internal/testfixtures"
)

type testServer struct {
	router  *gin.Engine
	svc     *tf.Services
	metrics *metrics.Recorder
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	store := memory.Open()
	tf.Hotel{
		Rooms: []persistence.Room{
			tf.NewRoom("101"), tf.NewRoom("102"), tf.NewRoom("214"),
			tf.NewRoom("301", tf.OutOfService()),
		},
		Reservations: []persistence.Reservation{tf.NewReservation("res-1", "101", "2024-06-03", "2024-06-05")},
		Stays: []persistence.Stay{
			tf.NewStay("stay-214", "214", "2024-06-02", "2024-06-04",
				tf.Guest("A1", "Lopez", true),
				tf.Guest("B2", "Perez", false),
			),
		},
	}.Seed(t, store)

	recorder := metrics.New()
	svc := tf.NewServices(store, tf.WithMetrics(recorder))
	router := NewRouter(RouterConfig{
		Rooms:              NewRoomHandler(svc.Rooms, nil),
		Occupancy:          NewOccupancyHandler(svc.Occupancy, nil),
		Sessions:           NewSessionHandler(svc.Session, nil),
		Metrics:            recorder.Handler(),
		Observer:           recorder,
		RateLimitPerMinute: rateLimit,
	})
	return &testServer{router: router, svc: svc, metrics: recorder}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) openSession(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionResponse](t, rec).Session.ID
}

func reservationBody(room, from, to string) map[string]any {
	return map[string]any{
		"kind":        "reservation",
		"room_number": room,
		"from":        from,
		"to":          to,
		"responsible": map[string]any{"name": "Garcia", "phone": "600"},
	}
}

func stayBody(room, from, to string, accept bool, guests ...map[string]any) map[string]any {
	body := map[string]any{
		"kind":                     "stay",
		"room_number":              room,
		"from":                     from,
		"guests":                   guests,
		"accept_reserved_override": accept,
	}
	if to != "" {
		body["to"] = to
	}
	return body
}

func guestBody(doc string, responsible bool) map[string]any {
	return map[string]any{
		"document_type":   "PASSPORT",
		"document_number": doc,
		"name":            "Guest " + doc,
		"responsible":     responsible,
	}
}

func TestRoomHandler(t *testing.T) {
	srv := newTestServer(t, 0)

	t.Run("list", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/rooms", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rooms := decode[listRoomsResponse](t, rec).Rooms
		require.Len(t, rooms, 4)
		assert.Equal(t, "101", rooms[0].Number)
		assert.Equal(t, "OUT_OF_SERVICE", rooms[3].Maintenance)
	})

	t.Run("create", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/rooms", map[string]any{"number": "401", "capacity": 3, "nightly_rate": 9000})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		room := decode[roomResponse](t, rec).Room
		assert.Equal(t, "401", room.Number)
		assert.Equal(t, "IN_SERVICE", room.Maintenance)

		rec = srv.do(t, http.MethodPost, "/rooms", map[string]any{"number": "401", "capacity": 3})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("create validation", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/rooms", map[string]any{"number": "402", "capacity": 0, "maintenance": "BROKEN"})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decode[errorResponse](t, rec)
		assert.Equal(t, "VALIDATION_FAILED", resp.ErrorCode)
		assert.Contains(t, resp.Errors, "capacity")
		assert.Contains(t, resp.Errors, "maintenance")
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/rooms", "{")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errBadRequestBody.Error(), decode[errorResponse](t, rec).Message)
	})

	t.Run("update takes room out of service", func(t *testing.T) {
		rec := srv.do(t, http.MethodPut, "/rooms/102", map[string]any{"capacity": 2, "maintenance": "OUT_OF_SERVICE"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "OUT_OF_SERVICE", decode[roomResponse](t, rec).Room.Maintenance)

		rec = srv.do(t, http.MethodGet, "/availability?room=102&from=2024-06-10&to=2024-06-11", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OUT_OF_SERVICE", decode[decisionDTO](t, rec).Reason)
	})

	t.Run("unknown room", func(t *testing.T) {
		rec := srv.do(t, http.MethodPut, "/rooms/999", map[string]any{"capacity": 2})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = srv.do(t, http.MethodGet, "/rooms/999", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestOccupancyHandler_Grid(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(t, http.MethodGet, "/occupancy?from=2024-06-01&to=2024-06-05&rooms=101,214", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	grid := decode[gridResponse](t, rec)
	assert.Equal(t, []string{"2024-06-01", "2024-06-02", "2024-06-03", "2024-06-04", "2024-06-05"}, grid.Days)
	require.Len(t, grid.Rooms, 2)

	states := func(row gridRowDTO) []string {
		out := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			out = append(out, cell.State)
		}
		return out
	}
	assert.Equal(t, "101", grid.Rooms[0].Number)
	assert.Equal(t, []string{"FREE", "FREE", "RESERVED", "RESERVED", "FREE"}, states(grid.Rooms[0]))
	assert.Equal(t, []string{"res-1"}, grid.Rooms[0].Cells[2].ReservationIDs)
	assert.Equal(t, []string{"FREE", "OCCUPIED", "OCCUPIED", "FREE", "FREE"}, states(grid.Rooms[1]))
	assert.Equal(t, "stay-214", grid.Rooms[1].Cells[1].StayID)

	t.Run("errors", func(t *testing.T) {
		cases := []struct {
			name   string
			query  string
			status int
		}{
			{"missing to", "/occupancy?from=2024-06-01", http.StatusUnprocessableEntity},
			{"bad day", "/occupancy?from=2024-06-01&to=June", http.StatusUnprocessableEntity},
			{"inverted", "/occupancy?from=2024-06-05&to=2024-06-01", http.StatusBadRequest},
			{"unknown room", "/occupancy?from=2024-06-01&to=2024-06-05&rooms=999", http.StatusNotFound},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				rec := srv.do(t, http.MethodGet, tc.query, nil)
				assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			})
		}
	})
}

func TestOccupancyHandler_Availability(t *testing.T) {
	srv := newTestServer(t, 0)

	cases := []struct {
		name     string
		query    string
		status   int
		decision decisionDTO
	}{
		{
			name:     "free",
			query:    "/availability?room=102&from=2024-06-03&to=2024-06-05",
			status:   http.StatusOK,
			decision: decisionDTO{Available: true},
		},
		{
			name:   "reserved in reservation mode",
			query:  "/availability?room=101&from=2024-06-04&to=2024-06-06",
			status: http.StatusOK,
			decision: decisionDTO{
				Reason: "ROOM_NOT_FREE", Message: reasonMessage("ROOM_NOT_FREE", false),
				Day: "2024-06-04", ConflictWith: "res-1",
			},
		},
		{
			name:   "reserved in check-in mode needs override",
			query:  "/availability?room=101&from=2024-06-04&to=2024-06-06&mode=check_in",
			status: http.StatusOK,
			decision: decisionDTO{
				Reason: "ROOM_NOT_FREE", Message: reasonMessage("ROOM_NOT_FREE", true),
				Day: "2024-06-04", ConflictWith: "res-1",
				RequiresOverride: true, OverriddenReservationIDs: []string{"res-1"},
			},
		},
		{
			name:     "override accepted",
			query:    "/availability?room=101&from=2024-06-04&to=2024-06-06&mode=check_in&accept_reserved=true",
			status:   http.StatusOK,
			decision: decisionDTO{Available: true, OverriddenReservationIDs: []string{"res-1"}},
		},
		{
			name:     "open range outside check-in",
			query:    "/availability?room=102&from=2024-06-04",
			status:   http.StatusOK,
			decision: decisionDTO{Reason: "INVALID_RANGE", Message: reasonMessage("INVALID_RANGE", false)},
		},
		{
			name:   "bad mode",
			query:  "/availability?room=102&from=2024-06-04&mode=walk_in",
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "unknown room",
			query:  "/availability?room=999&from=2024-06-04&to=2024-06-05",
			status: http.StatusNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, tc.query, nil)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.decision, decode[decisionDTO](t, rec))
			}
		})
	}
}

func TestSessionHandler_StageAndCommit(t *testing.T) {
	srv := newTestServer(t, 0)
	id := srv.openSession(t)

	rec := srv.do(t, http.MethodPost, "/sessions/"+id+"/selections", reservationBody("102", "2024-06-10", "2024-06-12"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[selectionResponse](t, rec).Selection
	assert.Equal(t, "2024-06-10", first.From)
	require.NotNil(t, first.To)
	assert.Equal(t, "2024-06-12", *first.To)

	rec = srv.do(t, http.MethodPost, "/sessions/"+id+"/selections", reservationBody("102", "2024-06-11", "2024-06-13"))
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[availabilityErrorResponse](t, rec)
	assert.Equal(t, "STAGED_CONFLICT", conflict.ErrorCode)
	assert.Equal(t, first.ID, conflict.ConflictWith)

	rec = srv.do(t, http.MethodPost, "/sessions/"+id+"/selections",
		stayBody("214", "2024-06-10", "", false, guestBody("C1", true), guestBody("C2", false)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	open := decode[selectionResponse](t, rec).Selection
	assert.Nil(t, open.To)
	assert.Len(t, open.Guests, 2)

	rec = srv.do(t, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[sessionResponse](t, rec).Session.Selections, 2)

	rec = srv.do(t, http.MethodPost, "/sessions/"+id+"/commit", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[commitResponse](t, rec)
	assert.Len(t, result.CreatedIDs, 2)
	assert.Len(t, result.ReservationIDs, 1)
	assert.Len(t, result.StayIDs, 1)

	rec = srv.do(t, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode[errorResponse](t, rec).ErrorCode)

	rec = srv.do(t, http.MethodGet, "/occupancy?from=2024-06-10&to=2024-06-11&rooms=102,214", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grid := decode[gridResponse](t, rec)
	assert.Equal(t, "RESERVED", grid.Rooms[0].Cells[0].State)
	assert.Equal(t, "OCCUPIED", grid.Rooms[1].Cells[1].State)
}

func TestSessionHandler_Rejections(t *testing.T) {
	srv := newTestServer(t, 0)
	id := srv.openSession(t)
	stage := func(body any) *httptest.ResponseRecorder {
		return srv.do(t, http.MethodPost, "/sessions/"+id+"/selections", body)
	}

	t.Run("check-in over reservation requires override", func(t *testing.T) {
		rec := stage(stayBody("101", "2024-06-04", "2024-06-06", false, guestBody("D1", true)))
		require.Equal(t, http.StatusConflict, rec.Code)
		resp := decode[availabilityErrorResponse](t, rec)
		assert.Equal(t, "ROOM_NOT_FREE", resp.ErrorCode)
		assert.True(t, resp.RequiresOverride)
		assert.Equal(t, []string{"res-1"}, resp.OverriddenReservationIDs)

		rec = stage(stayBody("101", "2024-06-04", "2024-06-06", true, guestBody("D1", true)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, []string{"res-1"}, decode[selectionResponse](t, rec).Selection.OverriddenReservationIDs)
	})

	t.Run("accompanying guest already staying elsewhere", func(t *testing.T) {
		rec := stage(stayBody("102", "2024-06-03", "2024-06-04", false, guestBody("E1", true), guestBody("B2", false)))
		require.Equal(t, http.StatusConflict, rec.Code)
		resp := decode[availabilityErrorResponse](t, rec)
		assert.Equal(t, "GUEST_DOUBLE_BOOKED", resp.ErrorCode)
		assert.Equal(t, "stay-214", resp.ConflictWith)
		assert.Equal(t, "PASSPORT B2", resp.Guest)
	})

	t.Run("out of service", func(t *testing.T) {
		rec := stage(reservationBody("301", "2024-06-10", "2024-06-11"))
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "OUT_OF_SERVICE", decode[availabilityErrorResponse](t, rec).ErrorCode)
	})

	t.Run("structural errors", func(t *testing.T) {
		rec := stage(map[string]any{"kind": "booking", "room_number": "102", "from": "2024-06-10"})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decode[errorResponse](t, rec).Errors, "kind")

		rec = stage(map[string]any{"kind": "reservation", "room_number": "102", "from": "2024-06-10"})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		errs := decode[errorResponse](t, rec).Errors
		assert.Contains(t, errs, "to")
		assert.Contains(t, errs, "responsible.name")

		rec = stage(stayBody("102", "2024-06-10", "2024-06-11", false,
			map[string]any{"document_type": "PASSPORT", "name": "No document", "responsible": true}))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decode[errorResponse](t, rec).Errors, "guests[0].document_number")

		rec = stage(stayBody("102", "2024-06-10", "2024-06-11", false, guestBody("F1", false)))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decode[errorResponse](t, rec).Errors, "guests")
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/sessions/missing/selections", reservationBody("102", "2024-06-10", "2024-06-11"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSessionHandler_UnstageAndDiscard(t *testing.T) {
	srv := newTestServer(t, 0)
	id := srv.openSession(t)

	rec := srv.do(t, http.MethodPost, "/sessions/"+id+"/selections", reservationBody("102", "2024-06-10", "2024-06-12"))
	require.Equal(t, http.StatusCreated, rec.Code)
	sel := decode[selectionResponse](t, rec).Selection

	rec = srv.do(t, http.MethodDelete, "/sessions/"+id+"/selections/"+sel.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = srv.do(t, http.MethodDelete, "/sessions/"+id+"/selections/"+sel.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodPost, "/sessions/"+id+"/commit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = srv.do(t, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_CommitConflict(t *testing.T) {
	srv := newTestServer(t, 0)
	first := srv.openSession(t)
	second := srv.openSession(t)

	for _, id := range []string{first, second} {
		rec := srv.do(t, http.MethodPost, "/sessions/"+id+"/selections", reservationBody("102", "2024-06-20", "2024-06-22"))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := srv.do(t, http.MethodPost, "/sessions/"+first+"/commit", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/sessions/"+second+"/commit", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[commitErrorResponse](t, rec)
	assert.Equal(t, "COMMIT_CONFLICT", resp.ErrorCode)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, 0, resp.Conflicts[0].Index)
	assert.Equal(t, "102", resp.Conflicts[0].RoomNumber)
	assert.Equal(t, "ROOM_NOT_FREE", resp.Conflicts[0].Reason)

	rec = srv.do(t, http.MethodGet, "/sessions/"+second, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware(t *testing.T) {
	t.Run("request id", func(t *testing.T) {
		srv := newTestServer(t, 0)
		rec := srv.do(t, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rec = httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)
		assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	})

	t.Run("rate limit", func(t *testing.T) {
		srv := newTestServer(t, 2)
		assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/rooms", nil).Code)
		assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/rooms", nil).Code)
		rec := srv.do(t, http.MethodGet, "/rooms", nil)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, errRateLimited.Error(), decode[errorResponse](t, rec).Message)
	})

	t.Run("idle clients are forgotten", func(t *testing.T) {
		clock := tf.NewClock(tf.ReferenceTime())
		limiters := newClientLimiters(2, clock.NowFunc())

		assert.True(t, limiters.allow("10.0.0.1"))
		assert.True(t, limiters.allow("10.0.0.1"))
		assert.False(t, limiters.allow("10.0.0.1"))
		assert.True(t, limiters.allow("10.0.0.2"))
		assert.Equal(t, 2, limiters.size())

		clock.Advance(limiterIdleTTL / 2)
		assert.True(t, limiters.allow("10.0.0.2"))
		assert.Equal(t, 2, limiters.size(), "no sweep before the idle window passes")

		clock.Advance(limiterIdleTTL / 2)
		assert.True(t, limiters.allow("10.0.0.3"))
		assert.Equal(t, 2, limiters.size(), "10.0.0.1 was idle for the whole window")

		clock.Advance(limiterIdleTTL)
		assert.True(t, limiters.allow("10.0.0.3"))
		assert.Equal(t, 1, limiters.size())
	})

	t.Run("metrics", func(t *testing.T) {
		srv := newTestServer(t, 0)
		srv.do(t, http.MethodGet, "/rooms", nil)
		rec := srv.do(t, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "http_requests_total"))
	})

	t.Run("unmatched route", func(t *testing.T) {
		srv := newTestServer(t, 0)
		rec := srv.do(t, http.MethodGet, "/nowhere", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = srv.do(t, http.MethodPatch, "/rooms", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("recovery", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(Recovery(nil))
		router.GET("/panic", func(*gin.Context) { panic("boom") })
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
