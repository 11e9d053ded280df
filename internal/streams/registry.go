package streams

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/noisestream/internal/events"
	"github.com/smazurov/noisestream/internal/ffmpeg"
	"github.com/smazurov/noisestream/internal/logging"
	"github.com/smazurov/noisestream/internal/metrics"
	"github.com/smazurov/noisestream/internal/process"
)

// Options configures a Registry.
type Options struct {
	// HLSDir is the base directory; each stream writes to HLSDir/<stream_id>.
	HLSDir string

	// Noises lists the configured noise colors.
	Noises []string

	// Binary is the worker executable name or path. Defaults to "ffmpeg".
	Binary string

	// Settings are shared by every worker. Zero value selects defaults.
	Settings ffmpeg.Settings

	// Backend spawns workers. Defaults to process.ExecBackend.
	Backend process.Backend

	// EventBus receives state change events (optional).
	EventBus *events.Bus

	// FreshnessWindow bounds the playlist age of a healthy stream.
	FreshnessWindow time.Duration

	// GracePeriod and KillTimeout are passed to each runner (optional).
	GracePeriod time.Duration
	KillTimeout time.Duration

	// Now is the clock used for timestamps and health checks.
	Now func() time.Time

	// Logger for registry operations. Defaults to the "streams" module logger.
	Logger *slog.Logger

	// OutputLogger receives worker diagnostics. Defaults to the "ffmpeg"
	// module logger.
	OutputLogger *slog.Logger
}

type record struct {
	id        string
	noise     string
	runner    *process.Runner
	state     State
	startedAt time.Time
	errMsg    string
	hlsPath   string
	runID     string
	starts    int
}

// Registry tracks one record per noise stream. All operations are
// serialized by a single lock, including the batch operations.
type Registry struct {
	opts   Options
	noises []string
	logger *slog.Logger

	mu      sync.Mutex
	records map[string]*record
	order   []string
}

// NewRegistry creates an empty registry. Records are created on first start.
func NewRegistry(opts Options) *Registry {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.Settings == (ffmpeg.Settings{}) {
		opts.Settings = ffmpeg.DefaultSettings()
	}
	if opts.Backend == nil {
		opts.Backend = process.ExecBackend{}
	}
	if opts.FreshnessWindow <= 0 {
		opts.FreshnessWindow = DefaultFreshnessWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("streams")
	}
	if opts.OutputLogger == nil {
		opts.OutputLogger = logging.GetLogger("ffmpeg")
	}

	noises := make([]string, 0, len(opts.Noises))
	for _, n := range opts.Noises {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && !slices.Contains(noises, n) {
			noises = append(noises, n)
		}
	}

	return &Registry{
		opts:    opts,
		noises:  noises,
		logger:  opts.Logger,
		records: make(map[string]*record),
	}
}

// Noises returns the configured noise colors.
func (r *Registry) Noises() []string {
	return slices.Clone(r.noises)
}

// HLSDir returns the base output directory.
func (r *Registry) HLSDir() string {
	return r.opts.HLSDir
}

// StartAll starts every configured stream that is not already live.
// Partial failures are reported, not rolled back.
func (r *Registry) StartAll() BatchStartResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("Starting all noise streams", "noise_types", strings.Join(r.noises, ","))

	res := BatchStartResult{
		TotalStreams: len(r.noises),
		Streams:      make([]StreamOutcome, 0, len(r.noises)),
	}

	for _, noise := range r.noises {
		id := StreamID(noise)
		out := StreamOutcome{StreamID: id, Noise: noise}

		rec, ok := r.records[id]
		if ok && rec.runner.IsRunning() {
			out.Status = OutcomeAlreadyRunning
			out.StreamURL = StreamURL(id)
			res.Started++
			res.Streams = append(res.Streams, out)
			continue
		}
		if !ok {
			rec = r.create(noise)
		}

		if r.startRecord(rec) {
			out.Status = OutcomeStarted
			out.StreamURL = StreamURL(id)
			res.Started++
		} else {
			out.Status = OutcomeFailed
			out.Error = rec.errMsg
			res.Failed++
		}
		res.Streams = append(res.Streams, out)
	}

	res.Success = res.Started > 0
	res.Message = fmt.Sprintf("Started %d streams, %d failed", res.Started, res.Failed)
	r.logger.Info("Start all complete", "started", res.Started, "failed", res.Failed)
	return res
}

// StopAll stops every live stream. Runners are stopped concurrently while
// the registry lock is held.
func (r *Registry) StopAll() BatchStopResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("Stopping all noise streams", "total", len(r.records))

	live := make([]bool, len(r.order))
	stopped := make([]bool, len(r.order))
	var g errgroup.Group
	for i, id := range r.order {
		rec := r.records[id]
		if !rec.runner.IsRunning() {
			continue
		}
		live[i] = true
		g.Go(func() error {
			stopped[i] = rec.runner.Stop()
			return nil
		})
	}
	_ = g.Wait()

	res := BatchStopResult{Success: true, Streams: make([]StreamOutcome, 0, len(r.order))}
	for i, id := range r.order {
		rec := r.records[id]
		out := StreamOutcome{StreamID: id, Noise: rec.noise}
		switch {
		case !live[i]:
			r.clearExited(rec)
			out.Status = OutcomeWasNotRunning
		case stopped[i]:
			r.markStopped(rec)
			out.Status = OutcomeStopped
			res.Stopped++
		default:
			out.Status = OutcomeFailedToStop
			out.Error = msgStopFailed
			res.Failed++
		}
		res.Streams = append(res.Streams, out)
	}

	res.Message = fmt.Sprintf("Stopped %d streams", res.Stopped)
	r.logger.Info("Stop all complete", "stopped", res.Stopped, "failed", res.Failed)
	return res
}

// Start starts one stream, creating its record if the identifier names a
// configured noise color.
func (r *Registry) Start(id string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		noise, ok := ParseStreamID(id)
		if !ok {
			return failure(id, CodeStreamNotFound, msgStreamNotFound)
		}
		if !slices.Contains(r.noises, noise) {
			return failure(id, CodeInvalidNoise, msgInvalidNoise)
		}
		rec = r.create(noise)
	}

	if rec.runner.IsRunning() {
		return Result{Success: true, Message: msgAlreadyRunning, StreamID: id, StreamURL: StreamURL(id)}
	}

	if !r.startRecord(rec) {
		return failure(id, CodeStartFailed, msgStartFailed)
	}
	return Result{Success: true, Message: msgStarted, StreamID: id, StreamURL: StreamURL(id)}
}

// Stop stops one stream. Stopping a stream that is not live succeeds.
func (r *Registry) Stop(id string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return failure(id, CodeStreamNotFound, msgStreamNotFound)
	}

	if !rec.runner.IsRunning() {
		r.clearExited(rec)
		return Result{Success: true, Message: msgNotRunning, StreamID: id}
	}

	if !rec.runner.Stop() {
		r.logger.Error("Failed to stop stream", "stream_id", id)
		return failure(id, CodeStopFailed, msgStopFailed)
	}
	r.markStopped(rec)
	return Result{Success: true, Message: msgStopped, StreamID: id}
}

// Get returns a snapshot of one stream.
func (r *Registry) Get(id string) (StreamInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return StreamInfo{}, false
	}
	return rec.info(), true
}

// List returns snapshots of all streams in creation order.
func (r *Registry) List() []StreamInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]StreamInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].info())
	}
	return out
}

// Status returns stream counts and snapshots.
func (r *Registry) Status() StatusSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := StatusSummary{
		TotalStreams: len(r.order),
		Streams:      make([]StreamInfo, 0, len(r.order)),
	}
	for _, id := range r.order {
		info := r.records[id].info()
		if info.Running {
			s.RunningStreams++
		}
		s.Streams = append(s.Streams, info)
	}
	s.StoppedStreams = s.TotalStreams - s.RunningStreams
	return s
}

// Health evaluates every stream.
func (r *Registry) Health() HealthReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	rep := HealthReport{
		Streams:   make([]StreamHealth, 0, len(r.order)),
		CheckedAt: now,
	}
	for _, id := range r.order {
		h := r.records[id].health(now, r.opts.FreshnessWindow)
		rep.Summary.add(h.Status)
		rep.Streams = append(rep.Streams, h)
	}
	rep.Status = Overall(rep.Summary)
	return rep
}

// StreamHealth evaluates one stream.
func (r *Registry) StreamHealth(id string) (StreamHealth, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return StreamHealth{}, false
	}
	return rec.health(r.opts.Now(), r.opts.FreshnessWindow), true
}

// create registers a new stopped record. Must hold the lock.
func (r *Registry) create(noise string) *record {
	id := StreamID(noise)
	hlsPath := filepath.Join(r.opts.HLSDir, id)

	spec := process.Spec{
		ID:        id,
		Color:     noise,
		OutputDir: hlsPath,
		Binary:    r.opts.Binary,
		Settings:  r.opts.Settings,
	}
	rec := &record{
		id:      id,
		noise:   noise,
		hlsPath: hlsPath,
		state:   StateStopped,
		runner: process.NewRunner(spec, process.Options{
			Backend:      r.opts.Backend,
			Logger:       r.logger,
			OutputLogger: r.opts.OutputLogger,
			GracePeriod:  r.opts.GracePeriod,
			KillTimeout:  r.opts.KillTimeout,
		}),
	}
	r.records[id] = rec
	r.order = append(r.order, id)
	metrics.SetStreamState(id, rec.state.String())

	r.logger.Info("Created noise stream", "stream_id", id, "noise_type", noise, "hls_dir", hlsPath)
	return rec
}

// startRecord runs the STARTING -> RUNNING/ERROR transition. Must hold the
// lock.
func (r *Registry) startRecord(rec *record) bool {
	rec.errMsg = ""
	r.transition(rec, StateStarting)

	if !rec.runner.Start() {
		rec.startedAt = time.Time{}
		rec.errMsg = msgSpawnFailed
		metrics.IncWorkerStarts(rec.id, "failure")
		r.transition(rec, StateError)
		r.logger.Error("Failed to start stream", "stream_id", rec.id, "error", rec.runner.Status().LastError)
		return false
	}

	rec.starts++
	rec.startedAt = r.opts.Now()
	rec.runID = uuid.NewString()
	metrics.IncWorkerStarts(rec.id, "success")
	r.transition(rec, StateRunning)
	return true
}

// markStopped records a successful stop. Must hold the lock.
func (r *Registry) markStopped(rec *record) {
	rec.startedAt = time.Time{}
	r.transition(rec, StateStopped)
}

// clearExited releases the handle of a worker that exited on its own and
// moves a RUNNING record to STOPPED. Must hold the lock.
func (r *Registry) clearExited(rec *record) {
	if rec.runner.Stop() && rec.state == StateRunning {
		r.logger.Warn("Stream process had exited", "stream_id", rec.id)
		r.markStopped(rec)
	}
}

func (r *Registry) transition(rec *record, to State) {
	from := rec.state
	rec.state = to
	metrics.SetStreamState(rec.id, to.String())

	ev := events.StreamStateChangedEvent{
		StreamID:      rec.id,
		State:         to.String(),
		PreviousState: from.String(),
		Error:         rec.errMsg,
		Timestamp:     r.opts.Now().Format(time.RFC3339),
	}
	if to == StateRunning {
		ev.RunID = rec.runID
		ev.PID = rec.runner.Status().PID
	}
	r.opts.EventBus.Publish(ev)

	r.logger.Debug("Stream state changed", "stream_id", rec.id, "from", from, "to", to)
}

// info snapshots rec. Must hold the lock.
func (rec *record) info() StreamInfo {
	st := rec.runner.Status()
	info := StreamInfo{
		StreamID:     rec.id,
		NoiseType:    rec.noise,
		State:        rec.state,
		Running:      st.Running,
		PID:          st.PID,
		ExitCode:     st.ExitCode,
		ErrorMessage: rec.errMsg,
		LastError:    st.LastError,
		HLSPath:      rec.hlsPath,
		StreamURL:    StreamURL(rec.id),
		RunID:        rec.runID,
		RestartCount: max(rec.starts-1, 0),
		CPUPercent:   st.CPUPercent,
		RSSBytes:     st.RSSBytes,
	}
	if !rec.startedAt.IsZero() {
		t := rec.startedAt
		info.StartedAt = &t
	}
	return info
}

func failure(id string, code Code, msg string) Result {
	return Result{Success: false, Error: msg, Code: code, StreamID: id}
}
