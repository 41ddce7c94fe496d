package build

import (
	"sync"
	"time"
)

// Metrics tracks generation runs over the life of a process, mostly useful
// in watch mode.
type Metrics struct {
	TotalRuns       int64
	SuccessfulRuns  int64
	FailedRuns      int64
	FilesWritten    int64
	FilesUnchanged  int64
	AverageDuration time.Duration
	TotalDuration   time.Duration
	mutex           sync.RWMutex
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRun adds one run to the totals. result may be nil when the run
// failed before rendering.
func (m *Metrics) RecordRun(result *Result, duration time.Duration, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRuns++
	m.TotalDuration += duration

	if result != nil {
		m.FilesWritten += int64(len(result.Written))
		m.FilesUnchanged += int64(len(result.Unchanged))
	}

	if err != nil {
		m.FailedRuns++
	} else {
		m.SuccessfulRuns++
	}

	m.AverageDuration = m.TotalDuration / time.Duration(m.TotalRuns)
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return Metrics{
		TotalRuns:       m.TotalRuns,
		SuccessfulRuns:  m.SuccessfulRuns,
		FailedRuns:      m.FailedRuns,
		FilesWritten:    m.FilesWritten,
		FilesUnchanged:  m.FilesUnchanged,
		AverageDuration: m.AverageDuration,
		TotalDuration:   m.TotalDuration,
	}
}

// Reset zeroes all counters.
func (m *Metrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRuns = 0
	m.SuccessfulRuns = 0
	m.FailedRuns = 0
	m.FilesWritten = 0
	m.FilesUnchanged = 0
	m.AverageDuration = 0
	m.TotalDuration = 0
}

// SuccessRate returns the share of successful runs as a percentage.
func (m *Metrics) SuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalRuns == 0 {
		return 0.0
	}

	return float64(m.SuccessfulRuns) / float64(m.TotalRuns) * 100.0
}
