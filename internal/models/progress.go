package models

import "time"

// ProgressEventType is the `type` discriminator of a message pushed by the backend.
type ProgressEventType string

const (
	EventAgentUpdate ProgressEventType = "agent_update"
	EventStepUpdate  ProgressEventType = "step_update"
	EventLogUpdate   ProgressEventType = "log_update"
	EventProgress    ProgressEventType = "progress"
	EventCompleted   ProgressEventType = "completed"
)

// Known reports whether t is one of the event types the client understands.
func (t ProgressEventType) Known() bool {
	switch t {
	case EventAgentUpdate, EventStepUpdate, EventLogUpdate, EventProgress, EventCompleted:
		return true
	}
	return false
}

// ProgressEvent is a single live update for one in-flight request.
// Only the fields belonging to Type are set.
type ProgressEvent struct {
	Type      ProgressEventType `json:"type"`
	SessionID string            `json:"session_id,omitempty"`

	// agent_update
	AgentName     string   `json:"agent_name,omitempty"`
	Status        string   `json:"status,omitempty"`
	ExecutionTime *float64 `json:"execution_time,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	Errors        []string `json:"errors,omitempty"`

	// step_update
	StepInfo string `json:"step_info,omitempty"`

	// log_update
	LogLevel string `json:"log_level,omitempty"`

	// log_update and progress
	Message string `json:"message,omitempty"`

	// progress
	Current int `json:"current,omitempty"`
	Total   int `json:"total,omitempty"`
}

// Log levels used by the batch log, matching the backend's log_update levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// LogEntry is one line of the batch log shown to the user.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// ProgressUpdate is the envelope broadcast to UI clients over the hub.
type ProgressUpdate struct {
	RunID   string         `json:"run_id,omitempty"`
	Kind    string         `json:"kind"` // "log", "event", "item" or "done"
	Log     *LogEntry      `json:"log,omitempty"`
	Event   *ProgressEvent `json:"event,omitempty"`
	Current int            `json:"current,omitempty"`
	Total   int            `json:"total,omitempty"`
	Totals  *Totals        `json:"totals,omitempty"`
	Done    bool           `json:"done"`
}
