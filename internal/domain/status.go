package domain

import "time"

// MonitorState is the lifecycle state of the status poller.
type MonitorState string

const (
	MonitorIdle    MonitorState = "Idle"
	MonitorPolling MonitorState = "Polling"
	MonitorUpdated MonitorState = "Updated"
	MonitorFailed  MonitorState = "Failed"
)

// Backend liveness as shown to the operator.
const (
	StatusIdle   = "Idle"
	StatusActive = "Active"
)

// StatusSnapshot is the last-known backend status inferred from its log stream.
type StatusSnapshot struct {
	Message          string    `json:"message"`
	Level            string    `json:"level,omitempty"`
	Status           string    `json:"status"`
	LastPolledAt     time.Time `json:"lastPolledAt"`
	IsRequestPending bool      `json:"isRequestPending"`
}

// LogEntry is one row of the backend's append-only log collection.
type LogEntry struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommandRunNow asks the backend to run its collection job immediately.
const CommandRunNow = "RUN_NOW"

// CommandPending is the status every new command is written with.
const CommandPending = "PENDING"

// CommandRecord is a write-once instruction for the backend.
type CommandRecord struct {
	ID       string    `json:"id"`
	Command  string    `json:"command"`
	Status   string    `json:"status"`
	IssuedAt time.Time `json:"issuedAt"`
}
