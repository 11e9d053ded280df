package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	monitorCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "cycles_total",
		Help:      "Health monitor cycles by result",
	}, []string{"result"})

	monitorRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "restarts_total",
		Help:      "Stale stream restarts issued by the health monitor",
	}, []string{"stream_id", "result"})

	monitorLastCycle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "last_cycle_timestamp_seconds",
		Help:      "Unix time of the last completed health monitor cycle",
	})
)

// ObserveMonitorCycle counts a cycle. result is "ok" or "error".
func ObserveMonitorCycle(result string, at time.Time) {
	monitorCycles.WithLabelValues(result).Inc()
	if result == "ok" {
		monitorLastCycle.Set(float64(at.Unix()))
	}
}

// IncMonitorRestarts counts a restart attempt. result is "success",
// "failure" or "throttled".
func IncMonitorRestarts(streamID, result string) {
	monitorRestarts.WithLabelValues(streamID, result).Inc()
}
