// Package models holds the request and response shapes of the HTTP API.
package models

import (
	"github.com/smazurov/noisestream/internal/streams"
	"github.com/smazurov/noisestream/internal/version"
)

// Service description shown on the index route.
const (
	ServiceName        = "Noise Stream"
	ServiceDescription = "HLS audio streaming of generated noise (white/pink/brown)"
)

// Endpoints lists the main routes for discovery.
type Endpoints struct {
	Status       string `json:"status" example:"/status"`
	Health       string `json:"health" example:"/health"`
	StartAll     string `json:"start_all" example:"POST /stream/start"`
	StopAll      string `json:"stop_all" example:"POST /stream/stop"`
	StreamHealth string `json:"stream_health" example:"/stream/{stream_id}/health"`
	StreamHLS    string `json:"stream_hls" example:"/hls/{stream_id}/stream.m3u8"`
}

// DefaultEndpoints returns the route listing served on the index.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Status:       "/status",
		Health:       "/health",
		StartAll:     "POST /stream/start",
		StopAll:      "POST /stream/stop",
		StreamHealth: "/stream/{stream_id}/health",
		StreamHLS:    "/hls/{stream_id}/stream.m3u8",
	}
}

// IndexData is the body of GET /.
type IndexData struct {
	Name           string    `json:"name" example:"Noise Stream"`
	Description    string    `json:"description"`
	Version        string    `json:"version" example:"1.0.0"`
	Endpoints      Endpoints `json:"endpoints"`
	AvailableNoise []string  `json:"available_noise" example:"[\"white\",\"pink\",\"brown\"]"`
	ActiveStreams  int       `json:"active_streams" example:"3"`
	TotalStreams   int       `json:"total_streams" example:"3"`
}

// StatusData is the body of GET /status.
type StatusData struct {
	HLSDir string `json:"hls_dir" example:"/app/hls" doc:"Root directory for HLS output"`
	streams.StatusSummary
}

type StatusResponse struct {
	Body StatusData
}

type HealthResponse struct {
	Body streams.HealthReport
}

type BatchStartResponse struct {
	Body streams.BatchStartResult
}

type BatchStopResponse struct {
	Body streams.BatchStopResult
}

type StreamInfoResponse struct {
	Body streams.StreamInfo
}

type StreamHealthResponse struct {
	Body streams.StreamHealth
}

type StreamResultResponse struct {
	Body streams.Result
}

// StreamIDInput carries the stream path parameter.
type StreamIDInput struct {
	StreamID string `path:"stream_id" example:"noise_pink" doc:"Stream identifier (noise_<color>)"`
}

type VersionResponse struct {
	Body version.Info
}

// LogStreamInput selects where a log stream resumes.
type LogStreamInput struct {
	Since uint64 `query:"since" doc:"Only replay buffered entries with a sequence number above this value"`
}
