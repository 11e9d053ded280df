// Package monitor restarts streams whose worker is alive but whose playlist
// has gone stale.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/smazurov/noisestream/internal/events"
	"github.com/smazurov/noisestream/internal/logging"
	"github.com/smazurov/noisestream/internal/metrics"
	"github.com/smazurov/noisestream/internal/streams"
)

// Defaults applied to zero Options fields.
const (
	DefaultInterval      = 10 * time.Second
	DefaultErrorBackoff  = 5 * time.Second
	DefaultJoinTimeout   = 2 * time.Second
	DefaultRestartRefill = time.Minute
)

// Target is the registry surface the monitor drives. The monitor only uses
// the same operations an API client would.
type Target interface {
	Health() streams.HealthReport
	Start(id string) streams.Result
	Stop(id string) streams.Result
}

// Options configures a Monitor.
type Options struct {
	// Interval between health evaluations.
	Interval time.Duration

	// ErrorBackoff replaces Interval after a failed cycle.
	ErrorBackoff time.Duration

	// JoinTimeout bounds how long Stop waits for the loop to exit.
	JoinTimeout time.Duration

	// RestartBurst is how many restarts a stream may get back to back
	// before throttling. Zero or negative restarts on every cycle.
	RestartBurst int

	// RestartRefill is the time to regain one restart token.
	RestartRefill time.Duration

	// EventBus receives restart events (optional).
	EventBus *events.Bus

	// OnCycle is called after every cycle with its error, if any.
	OnCycle func(err error)

	// Now is the clock used for throttling. Defaults to time.Now.
	Now func() time.Time

	// Logger defaults to the "monitor" module logger.
	Logger *slog.Logger
}

// CycleResult describes one health evaluation.
type CycleResult struct {
	Checked   int
	Restarted []string
	Failed    []string
	Throttled []string
}

// Monitor periodically evaluates stream health and restarts stale streams.
type Monitor struct {
	target Target
	opts   Options
	logger *slog.Logger

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped monitor.
func New(target Target, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = DefaultErrorBackoff
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	if opts.RestartRefill <= 0 {
		opts.RestartRefill = DefaultRestartRefill
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("monitor")
	}

	return &Monitor{
		target:   target,
		opts:     opts,
		logger:   opts.Logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Start launches the background loop. The first evaluation happens one
// interval after Start so freshly started workers can write a playlist.
// Returns false if the loop is already running.
func (m *Monitor) Start(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.run(ctx, done)

	m.logger.Info("Health monitor started", "interval", m.opts.Interval)
	return true
}

// Stop cancels the loop and waits up to the join timeout for it to exit.
// It returns false if the loop was still busy when the timeout expired.
func (m *Monitor) Stop() bool {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return true
	}
	cancel()

	timer := time.NewTimer(m.opts.JoinTimeout)
	defer timer.Stop()

	select {
	case <-done:
		m.logger.Info("Health monitor stopped")
		return true
	case <-timer.C:
		m.logger.Warn("Health monitor did not stop in time", "timeout", m.opts.JoinTimeout)
		return false
	}
}

// Running reports whether the loop has been started and not stopped.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(m.opts.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		delay := m.opts.Interval
		if _, err := m.runCycle(ctx); err != nil {
			m.logger.Error("Health monitor cycle failed", "error", err, "retry_in", m.opts.ErrorBackoff)
			delay = m.opts.ErrorBackoff
		}
		timer.Reset(delay)
	}
}

// RunCycle performs a single evaluation. A panic inside the cycle is
// recovered and returned as an error.
func (m *Monitor) RunCycle() (CycleResult, error) {
	return m.runCycle(context.Background())
}

func (m *Monitor) runCycle(ctx context.Context) (res CycleResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("health cycle panicked: %v", p)
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.ObserveMonitorCycle(result, m.opts.Now())
		if m.opts.OnCycle != nil {
			m.opts.OnCycle(err)
		}
	}()

	report := m.target.Health()
	m.logger.Debug("Health check", "status", report.Status, "healthy", report.Summary.Healthy, "unhealthy", report.Summary.Unhealthy)

	for _, h := range report.Streams {
		if err := ctx.Err(); err != nil {
			return res, nil
		}
		res.Checked++

		// A dead worker is a crash, not staleness; it is left for an
		// explicit start.
		if h.Status != streams.HealthUnhealthy || !h.ProcessRunning {
			continue
		}

		if !m.allow(h.StreamID) {
			m.logger.Warn("Restart throttled", "stream_id", h.StreamID)
			metrics.IncMonitorRestarts(h.StreamID, "throttled")
			res.Throttled = append(res.Throttled, h.StreamID)
			continue
		}

		if m.restart(h) {
			res.Restarted = append(res.Restarted, h.StreamID)
		} else {
			res.Failed = append(res.Failed, h.StreamID)
		}
	}
	return res, nil
}

func (m *Monitor) restart(h streams.StreamHealth) bool {
	reason := restartReason(h)
	m.logger.Warn("Restarting unhealthy stream", "stream_id", h.StreamID, "reason", reason)

	stop := m.target.Stop(h.StreamID)
	if !stop.Success {
		m.logger.Warn("Stop before restart failed", "stream_id", h.StreamID, "error", stop.Error)
	}
	start := m.target.Start(h.StreamID)

	ok := stop.Success && start.Success
	ev := events.StreamRestartedEvent{
		StreamID:  h.StreamID,
		Reason:    reason,
		Success:   ok,
		Timestamp: m.opts.Now().Format(time.RFC3339),
	}
	if ok {
		metrics.IncMonitorRestarts(h.StreamID, "success")
		m.logger.Info("Stream restarted", "stream_id", h.StreamID)
	} else {
		ev.Error = firstNonEmpty(stop.Error, start.Error)
		metrics.IncMonitorRestarts(h.StreamID, "failure")
		m.logger.Error("Stream restart failed", "stream_id", h.StreamID, "error", ev.Error)
	}
	m.opts.EventBus.Publish(ev)
	return ok
}

func (m *Monitor) allow(id string) bool {
	if m.opts.RestartBurst <= 0 {
		return true
	}
	m.limMu.Lock()
	lim, ok := m.limiters[id]
	if !ok {
		lim = rate.NewLimiter(rate.Every(m.opts.RestartRefill), m.opts.RestartBurst)
		m.limiters[id] = lim
	}
	m.limMu.Unlock()
	return lim.AllowN(m.opts.Now(), 1)
}

func restartReason(h streams.StreamHealth) string {
	if !h.HLSAvailable {
		return "missing_manifest"
	}
	return "stale_manifest"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
