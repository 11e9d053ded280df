// Package metrics provides Prometheus metrics for noise streams and the
// health monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "noisestream"

// StreamStates lists the label values used by the stream state gauge.
var StreamStates = []string{"stopped", "starting", "running", "error"}

var (
	streamState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "state",
		Help:      "Current stream state (1 for the active state, 0 otherwise)",
	}, []string{"stream_id", "state"})

	workerStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "starts_total",
		Help:      "Worker start attempts by result",
	}, []string{"stream_id", "result"})

	manifestAge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "manifest_age_seconds",
		Help:      "Age of the stream playlist at the last health evaluation",
	}, []string{"stream_id"})
)

// SetStreamState marks state as the active state of a stream.
func SetStreamState(streamID, state string) {
	for _, s := range StreamStates {
		v := 0.0
		if s == state {
			v = 1
		}
		streamState.WithLabelValues(streamID, s).Set(v)
	}
}

// IncWorkerStarts counts a worker start attempt. result is "success" or
// "failure".
func IncWorkerStarts(streamID, result string) {
	workerStarts.WithLabelValues(streamID, result).Inc()
}

// SetManifestAge records the playlist age observed for a stream. A negative
// age means the playlist is missing and removes the series.
func SetManifestAge(streamID string, seconds float64) {
	if seconds < 0 {
		manifestAge.DeleteLabelValues(streamID)
		return
	}
	manifestAge.WithLabelValues(streamID).Set(seconds)
}

// DeleteStreamMetrics removes all series for a stream.
func DeleteStreamMetrics(streamID string) {
	for _, s := range StreamStates {
		streamState.DeleteLabelValues(streamID, s)
	}
	workerStarts.DeleteLabelValues(streamID, "success")
	workerStarts.DeleteLabelValues(streamID, "failure")
	manifestAge.DeleteLabelValues(streamID)
}
