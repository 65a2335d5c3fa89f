package engine

import (
	"sync/atomic"
	"time"
)

// Metrics collects engine counters. All fields are updated atomically; the
// engine exposes point-in-time snapshots and owns no long-term aggregation.
type Metrics struct {
	commandsExecuted atomic.Int64
	commandsFailed   atomic.Int64
	undoCount        atomic.Int64
	redoCount        atomic.Int64
	totalExecMicros  atomic.Int64
}

// MetricsSnapshot is a point-in-time view of engine counters.
type MetricsSnapshot struct {
	CommandsExecuted int64   `json:"commandsExecuted"`
	CommandsFailed   int64   `json:"commandsFailed"`
	UndoCount        int64   `json:"undoCount"`
	RedoCount        int64   `json:"redoCount"`
	ActiveSessions   int     `json:"activeSessions"`
	AvgExecutionMs   float64 `json:"avgExecutionMs"`
	ErrorRate        float64 `json:"errorRate"`
}

func (m *Metrics) recordSuccess(elapsed time.Duration) {
	m.commandsExecuted.Add(1)
	m.totalExecMicros.Add(elapsed.Microseconds())
}

func (m *Metrics) recordFailure() {
	m.commandsFailed.Add(1)
}

func (m *Metrics) snapshot(activeSessions int) MetricsSnapshot {
	executed := m.commandsExecuted.Load()
	failed := m.commandsFailed.Load()

	snap := MetricsSnapshot{
		CommandsExecuted: executed,
		CommandsFailed:   failed,
		UndoCount:        m.undoCount.Load(),
		RedoCount:        m.redoCount.Load(),
		ActiveSessions:   activeSessions,
	}

	if executed > 0 {
		snap.AvgExecutionMs = float64(m.totalExecMicros.Load()) / float64(executed) / 1000.0
	}
	if total := executed + failed; total > 0 {
		snap.ErrorRate = float64(failed) / float64(total)
	}

	return snap
}
