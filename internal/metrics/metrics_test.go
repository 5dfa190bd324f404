package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hotel-frontdesk/internal/application"
	"github.com/example/hotel-frontdesk/internal/occupancy"
)

var _ application.Metrics = (*Recorder)(nil)

func TestRecorderCounts(t *testing.T) {
	r := New()

	r.ObserveDecision("reservation", "")
	r.ObserveDecision("reservation", occupancy.ReasonRoomNotFree)
	r.ObserveDecision("reservation", occupancy.ReasonRoomNotFree)
	r.ObserveCommit(application.CommitOutcomeConflict, 3, time.Millisecond)
	r.ObserveSession(application.SessionEventOpened)
	r.ObserveHTTPRequest(http.MethodGet, "/rooms", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("reservation", "AVAILABLE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("reservation", "ROOM_NOT_FREE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commits.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessions.WithLabelValues("opened")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "/rooms", "4xx")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveGridBuild(1, 1, time.Second)
	r.ObserveDecision("guests", occupancy.ReasonCapacityExceeded)
	r.ObserveCommit(application.CommitOutcomeSuccess, 1, time.Second)
	r.ObserveSession(application.SessionEventDiscarded)
	r.ObserveHTTPRequest(http.MethodPost, "/sessions", http.StatusCreated, time.Second)
	assert.Nil(t, r.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveGridBuild(2, 10, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "frontdesk_grid_build_duration_seconds_count 1"), body)
	assert.True(t, strings.Contains(body, "frontdesk_grid_cells_sum 20"), body)
}
