package tripweaver

import (
	"sync"
	"time"
)

// PipelineMetrics counts run outcomes across the lifetime of a Planner.
type PipelineMetrics struct {
	RunsStarted           int
	RunsCompleted         int
	RunsFailed            int
	RunsTerminated        int
	RunsCancelled         int
	ApprovalsRequested    int
	FallbackItineraries   int
	CollectorDegradations int
	TotalDuration         time.Duration

	mu sync.Mutex
}

// Copy returns a snapshot without the mutex.
func (m *PipelineMetrics) Copy() PipelineMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return PipelineMetrics{
		RunsStarted:           m.RunsStarted,
		RunsCompleted:         m.RunsCompleted,
		RunsFailed:            m.RunsFailed,
		RunsTerminated:        m.RunsTerminated,
		RunsCancelled:         m.RunsCancelled,
		ApprovalsRequested:    m.ApprovalsRequested,
		FallbackItineraries:   m.FallbackItineraries,
		CollectorDegradations: m.CollectorDegradations,
		TotalDuration:         m.TotalDuration,
	}
}

// AverageDuration is the mean wall time of finished runs.
func (m *PipelineMetrics) AverageDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	finished := m.RunsCompleted + m.RunsFailed + m.RunsTerminated + m.RunsCancelled
	if finished == 0 {
		return 0
	}
	return m.TotalDuration / time.Duration(finished)
}

func (m *PipelineMetrics) update(fn func(m *PipelineMetrics)) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *PipelineMetrics) runStarted() {
	m.update(func(m *PipelineMetrics) { m.RunsStarted++ })
}

func (m *PipelineMetrics) runFinished(state ProcessState, d time.Duration) {
	m.update(func(m *PipelineMetrics) {
		switch state {
		case StateCompleted:
			m.RunsCompleted++
		case StateTerminated:
			m.RunsTerminated++
		case StateCancelled:
			m.RunsCancelled++
		default:
			m.RunsFailed++
		}
		m.TotalDuration += d
	})
}

func (m *PipelineMetrics) approvalRequested() {
	m.update(func(m *PipelineMetrics) { m.ApprovalsRequested++ })
}

func (m *PipelineMetrics) fallbackUsed() {
	m.update(func(m *PipelineMetrics) { m.FallbackItineraries++ })
}

func (m *PipelineMetrics) collectorDegraded() {
	m.update(func(m *PipelineMetrics) { m.CollectorDegradations++ })
}
