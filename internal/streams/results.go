package streams

import (
	"fmt"
	"time"
)

// Messages reported in results.
const (
	msgStreamNotFound = "Stream not found"
	msgInvalidNoise   = "Invalid noise type"
	msgStartFailed    = "Failed to start stream"
	msgStopFailed     = "Failed to stop stream"
	msgSpawnFailed    = "Failed to start FFmpeg process"
	msgStarted        = "Stream started"
	msgAlreadyRunning = "Stream already running"
	msgStopped        = "Stream stopped"
	msgNotRunning     = "Stream was not running"
)

// Per-stream outcomes reported by batch operations.
const (
	OutcomeStarted        = "started"
	OutcomeAlreadyRunning = "already_running"
	OutcomeFailed         = "failed"
	OutcomeStopped        = "stopped"
	OutcomeWasNotRunning  = "was_not_running"
	OutcomeFailedToStop   = "failed_to_stop"
)

// Code classifies a failed single-stream operation.
type Code string

// Failure codes carried by Result.Code.
const (
	CodeStreamNotFound Code = "STREAM_NOT_FOUND"
	CodeInvalidNoise   Code = "INVALID_NOISE_TYPE"
	CodeStartFailed    Code = "START_FAILED"
	CodeStopFailed     Code = "STOP_FAILED"
)

// Values for errors.Is against Result.Err.
var (
	ErrStreamNotFound = &StreamError{Code: CodeStreamNotFound}
	ErrInvalidNoise   = &StreamError{Code: CodeInvalidNoise}
	ErrStartFailed    = &StreamError{Code: CodeStartFailed}
	ErrStopFailed     = &StreamError{Code: CodeStopFailed}
)

// StreamError is a failed Result in error form.
type StreamError struct {
	StreamID string
	Code     Code
	Message  string
}

func (e *StreamError) Error() string {
	if e.StreamID == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("stream %s: %s (%s)", e.StreamID, e.Message, e.Code)
}

// Is matches any StreamError with the same code.
func (e *StreamError) Is(target error) bool {
	t, ok := target.(*StreamError)
	return ok && t.Code == e.Code
}

// Result is the outcome of a single-stream operation.
type Result struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      Code   `json:"code,omitempty"`
	StreamID  string `json:"stream_id"`
	StreamURL string `json:"stream_url,omitempty"`
}

// Err returns the failure as a *StreamError, or nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &StreamError{StreamID: r.StreamID, Code: r.Code, Message: r.Error}
}

// StreamOutcome is one stream's entry in a batch result.
type StreamOutcome struct {
	StreamID  string `json:"stream_id"`
	Noise     string `json:"noise"`
	Status    string `json:"status"`
	StreamURL string `json:"stream_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchStartResult summarizes StartAll.
type BatchStartResult struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	TotalStreams int             `json:"total_streams"`
	Started      int             `json:"started"`
	Failed       int             `json:"failed"`
	Streams      []StreamOutcome `json:"streams"`
}

// BatchStopResult summarizes StopAll.
type BatchStopResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Stopped int             `json:"stopped"`
	Failed  int             `json:"failed"`
	Streams []StreamOutcome `json:"streams"`
}

// StreamInfo is a snapshot of one stream record.
type StreamInfo struct {
	StreamID     string     `json:"stream_id"`
	NoiseType    string     `json:"noise_type"`
	State        State      `json:"state"`
	Running      bool       `json:"running"`
	PID          int        `json:"pid,omitempty"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	StartedAt    *time.Time `json:"started_at"`
	ErrorMessage string     `json:"error_message,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	HLSPath      string     `json:"hls_path"`
	StreamURL    string     `json:"stream_url"`
	RunID        string     `json:"run_id,omitempty"`
	RestartCount int        `json:"restart_count"`
	CPUPercent   float64    `json:"cpu_percent,omitempty"`
	RSSBytes     uint64     `json:"rss_bytes,omitempty"`
}

// StatusSummary is the registry-wide status snapshot.
type StatusSummary struct {
	TotalStreams   int          `json:"total_streams"`
	RunningStreams int          `json:"running_streams"`
	StoppedStreams int          `json:"stopped_streams"`
	Streams        []StreamInfo `json:"streams"`
}
