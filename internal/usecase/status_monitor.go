package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"RiskMonitor/internal/domain"
	"RiskMonitor/internal/metrics"
	"RiskMonitor/internal/ports"
	"RiskMonitor/internal/query"
)

// StatusMonitorDeps wires the poller to its collaborators.
type StatusMonitorDeps struct {
	Logs      ports.LogReader
	Scheduler ports.Scheduler
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// StatusMonitor derives backend status from the newest log entry. At most
// one poll is in flight at any time; a tick that finds one running is skipped.
type StatusMonitor struct {
	logs      ports.LogReader
	scheduler ports.Scheduler
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	inFlight atomic.Bool

	mu       sync.RWMutex
	state    domain.MonitorState
	snapshot domain.StatusSnapshot
}

// NewStatusMonitor constructs an idle monitor.
func NewStatusMonitor(deps StatusMonitorDeps) *StatusMonitor {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &StatusMonitor{
		logs:      deps.Logs,
		scheduler: deps.Scheduler,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       now,
		state:     domain.MonitorIdle,
		snapshot:  domain.StatusSnapshot{Status: domain.StatusIdle},
	}
}

// Start polls once and then on every scheduler interval until ctx ends or
// Stop is called.
func (m *StatusMonitor) Start(ctx context.Context) error {
	if m.scheduler == nil {
		m.Tick(ctx)
		return nil
	}
	return m.scheduler.Start(ctx, func(time.Time) {
		m.Tick(ctx)
	})
}

// Stop cancels the polling interval and waits for the in-flight poll.
func (m *StatusMonitor) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}

// Tick performs one poll. It returns false when skipped because another
// poll was still in flight.
func (m *StatusMonitor) Tick(ctx context.Context) bool {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.metrics.Poll(metrics.ResultSkipped)
		m.debug("status poll skipped, previous still in flight")
		return false
	}
	defer m.inFlight.Store(false)

	m.setState(domain.MonitorPolling)

	entries, err := m.logs.QueryLogs(ctx, query.LatestLog())
	if err != nil {
		m.setState(domain.MonitorFailed)
		m.metrics.Poll(metrics.ResultError)
		if m.logger != nil {
			m.logger.Warn("status poll failed", "error", &domain.PollError{Err: err})
		}
		return true
	}

	m.mu.Lock()
	m.state = domain.MonitorUpdated
	m.snapshot.LastPolledAt = m.now()
	if len(entries) > 0 {
		entry := entries[0]
		m.snapshot.Message = entry.Message
		m.snapshot.Level = entry.Level
		m.snapshot.Status = domain.StatusActive
	}
	m.mu.Unlock()

	m.metrics.Poll(metrics.ResultSuccess)
	return true
}

// Annotate replaces the displayed message until the next successful poll.
func (m *StatusMonitor) Annotate(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.Message = message
}

// Snapshot returns a copy of the current status.
func (m *StatusMonitor) Snapshot() domain.StatusSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// State reports the poller lifecycle state.
func (m *StatusMonitor) State() domain.MonitorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *StatusMonitor) setState(s domain.MonitorState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *StatusMonitor) debug(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}
