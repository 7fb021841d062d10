package usecase

import "RiskMonitor/internal/domain"

// SessionStatus joins the poller's snapshot with the dispatcher's lock.
type SessionStatus struct {
	Monitor    *StatusMonitor
	Dispatcher *CommandDispatcher
}

// Snapshot returns the status shown to the operator.
func (s SessionStatus) Snapshot() domain.StatusSnapshot {
	var snap domain.StatusSnapshot
	if s.Monitor != nil {
		snap = s.Monitor.Snapshot()
	}
	if s.Dispatcher != nil {
		snap.IsRequestPending = s.Dispatcher.Pending()
	}
	return snap
}
