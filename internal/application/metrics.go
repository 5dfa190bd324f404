package application

import (
	"time"

	"github.com/example/hotel-frontdesk/internal/occupancy"
)

// Metrics receives operational measurements from the services.
type Metrics interface {
	ObserveGridBuild(rooms, days int, elapsed time.Duration)
	ObserveDecision(kind string, reason occupancy.Reason)
	ObserveCommit(outcome string, selections int, elapsed time.Duration)
	ObserveSession(event string)
}

// Commit outcomes reported to Metrics.
const (
	CommitOutcomeSuccess  = "success"
	CommitOutcomeConflict = "conflict"
	CommitOutcomeError    = "error"
)

// Session events reported to Metrics.
const (
	SessionEventOpened    = "opened"
	SessionEventStaged    = "staged"
	SessionEventUnstaged  = "unstaged"
	SessionEventRejected  = "rejected"
	SessionEventDiscarded = "discarded"
	SessionEventCommitted = "committed"
)

type noopMetrics struct{}

func (noopMetrics) ObserveGridBuild(int, int, time.Duration) {}
func (noopMetrics) ObserveDecision(string, occupancy.Reason) {}
func (noopMetrics) ObserveCommit(string, int, time.Duration) {}
func (noopMetrics) ObserveSession(string)                    {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
