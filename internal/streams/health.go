package streams

import (
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/noisestream/internal/ffmpeg"
	"github.com/smazurov/noisestream/internal/metrics"
)

// DefaultFreshnessWindow is how recent the playlist must be for a running
// stream to count as healthy.
const DefaultFreshnessWindow = 10 * time.Second

// HealthStatus classifies a single stream.
type HealthStatus string

// Stream health values.
const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthStopped   HealthStatus = "stopped"
	HealthStarting  HealthStatus = "starting"
)

// OverallStatus classifies the whole registry.
type OverallStatus string

// Registry health values.
const (
	OverallHealthy   OverallStatus = "healthy"
	OverallDegraded  OverallStatus = "degraded"
	OverallStopped   OverallStatus = "stopped"
	OverallNoStreams OverallStatus = "no_streams"
	OverallUnknown   OverallStatus = "unknown"
)

// StreamHealth is the health evaluation of one stream.
type StreamHealth struct {
	StreamID       string       `json:"stream_id"`
	NoiseType      string       `json:"noise_type"`
	Status         HealthStatus `json:"status"`
	ProcessRunning bool         `json:"process_running"`
	HLSAvailable   bool         `json:"hls_available"`
	ManifestFresh  bool         `json:"manifest_fresh"`
	ManifestAge    *float64     `json:"manifest_age_seconds,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// HealthCounts tallies stream health values.
type HealthCounts struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Stopped   int `json:"stopped"`
	Unhealthy int `json:"unhealthy"`
	Starting  int `json:"starting"`
}

// HealthReport is the registry-wide health snapshot.
type HealthReport struct {
	Status    OverallStatus  `json:"status"`
	Summary   HealthCounts   `json:"summary"`
	Streams   []StreamHealth `json:"streams"`
	CheckedAt time.Time      `json:"checked_at"`
}

// Classify derives a stream's health from its state, process liveness and
// playlist freshness. A running state with a dead process is unhealthy.
func Classify(state State, processRunning, manifestExists bool, manifestAge, window time.Duration) HealthStatus {
	fresh := manifestExists && manifestAge < window
	switch {
	case state == StateRunning && processRunning && fresh:
		return HealthHealthy
	case state == StateRunning && processRunning:
		return HealthUnhealthy
	case state == StateStopped:
		return HealthStopped
	case state == StateStarting:
		return HealthStarting
	default:
		return HealthUnhealthy
	}
}

// Overall aggregates per-stream counts into a registry status.
func Overall(c HealthCounts) OverallStatus {
	switch {
	case c.Unhealthy > 0:
		return OverallDegraded
	case c.Healthy > 0:
		return OverallHealthy
	case c.Total > 0 && c.Stopped == c.Total:
		return OverallStopped
	case c.Total == 0:
		return OverallNoStreams
	default:
		return OverallUnknown
	}
}

func (c *HealthCounts) add(s HealthStatus) {
	c.Total++
	switch s {
	case HealthHealthy:
		c.Healthy++
	case HealthStopped:
		c.Stopped++
	case HealthUnhealthy:
		c.Unhealthy++
	case HealthStarting:
		c.Starting++
	}
}

// health evaluates rec at now. Must hold the registry lock.
func (rec *record) health(now time.Time, window time.Duration) StreamHealth {
	running := rec.runner.IsRunning()
	h := StreamHealth{
		StreamID:       rec.id,
		NoiseType:      rec.noise,
		ProcessRunning: running,
		Error:          rec.errMsg,
	}

	var age time.Duration
	if fi, err := os.Stat(filepath.Join(rec.hlsPath, ffmpeg.ManifestName)); err == nil {
		h.HLSAvailable = true
		age = now.Sub(fi.ModTime())
		secs := age.Seconds()
		h.ManifestAge = &secs
		h.ManifestFresh = age < window
		metrics.SetManifestAge(rec.id, secs)
	} else {
		metrics.SetManifestAge(rec.id, -1)
	}

	h.Status = Classify(rec.state, running, h.HLSAvailable, age, window)
	return h
}
