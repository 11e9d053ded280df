package events

// Event type constants for kelindar/event.
const (
	TypeStreamStateChanged uint32 = iota + 1
	TypeStreamRestarted
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StreamStateChangedEvent is published on every stream state transition.
type StreamStateChangedEvent struct {
	StreamID      string `json:"stream_id" example:"noise_pink" doc:"Stream identifier"`
	State         string `json:"state" example:"running" doc:"New state: stopped, starting, running, error"`
	PreviousState string `json:"previous_state" example:"starting" doc:"State before the transition"`
	RunID         string `json:"run_id,omitempty" doc:"Identifier of the current worker run"`
	PID           int    `json:"pid,omitempty" example:"4242" doc:"Worker process id when running"`
	Error         string `json:"error,omitempty" doc:"Error message when state is error"`
	Timestamp     string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// StreamRestartedEvent is published when the health monitor restarts a stale
// stream.
type StreamRestartedEvent struct {
	StreamID  string `json:"stream_id" example:"noise_pink" doc:"Stream identifier"`
	Reason    string `json:"reason" example:"stale_manifest" doc:"Why the stream was restarted"`
	Success   bool   `json:"success" doc:"Whether the restart succeeded"`
	Error     string `json:"error,omitempty" doc:"Error message when the restart failed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamRestartedEvent.
func (e StreamRestartedEvent) Type() uint32 { return TypeStreamRestarted }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
