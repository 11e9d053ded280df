package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/smazurov/noisestream/internal/ffmpeg"
)

const (
	defaultGracePeriod = 5 * time.Second
	defaultKillTimeout = 2 * time.Second
	maxDiagnosticLine  = 64 * 1024
)

// Spec is the immutable configuration of one worker.
type Spec struct {
	ID        string
	Color     string
	OutputDir string
	Binary    string
	Settings  ffmpeg.Settings
}

// Params returns the ffmpeg invocation parameters for the spec.
func (s Spec) Params() *ffmpeg.Params {
	return &ffmpeg.Params{Color: s.Color, OutputDir: s.OutputDir, Settings: s.Settings}
}

// Options configures a Runner. Zero values select defaults.
type Options struct {
	// Backend spawns the worker. Defaults to ExecBackend.
	Backend Backend

	// Logger for lifecycle messages. Defaults to slog.Default().
	Logger *slog.Logger

	// OutputLogger receives the worker's diagnostic lines. Defaults to Logger.
	OutputLogger *slog.Logger

	// GracePeriod is how long Stop waits after SIGTERM before SIGKILL.
	GracePeriod time.Duration

	// KillTimeout is how long Stop waits after SIGKILL before giving up.
	KillTimeout time.Duration
}

// Runner manages the lifecycle of one worker process.
type Runner struct {
	spec         Spec
	backend      Backend
	logger       *slog.Logger
	outputLogger *slog.Logger
	gracePeriod  time.Duration
	killTimeout  time.Duration

	// opMu serializes Start and Stop; it may be held for a full grace period.
	opMu sync.Mutex

	// mu guards the fields below and is only held briefly.
	mu        sync.Mutex
	handle    Handle
	startedAt time.Time
	gen       uint64
	lastError string
}

// NewRunner creates a runner for spec. No process is started.
func NewRunner(spec Spec, opts Options) *Runner {
	r := &Runner{
		spec:         spec,
		backend:      opts.Backend,
		logger:       opts.Logger,
		outputLogger: opts.OutputLogger,
		gracePeriod:  opts.GracePeriod,
		killTimeout:  opts.KillTimeout,
	}
	if r.backend == nil {
		r.backend = ExecBackend{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("stream_id", spec.ID)
	if r.outputLogger == nil {
		r.outputLogger = r.logger
	} else {
		r.outputLogger = r.outputLogger.With("stream_id", spec.ID)
	}
	if r.gracePeriod <= 0 {
		r.gracePeriod = defaultGracePeriod
	}
	if r.killTimeout <= 0 {
		r.killTimeout = defaultKillTimeout
	}
	return r
}

// Spec returns the worker configuration.
func (r *Runner) Spec() Spec {
	return r.spec
}

// Start spawns the worker. It returns false if a process is already live or
// the worker could not be spawned; the reason is kept as the last error.
func (r *Runner) Start() bool {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.IsRunning() {
		r.logger.Warn("Process already running", "pid", r.pid())
		return false
	}

	if err := os.MkdirAll(r.spec.OutputDir, 0o755); err != nil {
		r.fail(fmt.Errorf("create output directory: %w", err))
		return false
	}

	path, err := r.backend.LookPath(r.spec.Binary)
	if err != nil {
		r.fail(fmt.Errorf("%s not found: %w", r.spec.Binary, err))
		return false
	}

	params := r.spec.Params()
	args := ffmpeg.BuildNoiseArgs(params)

	h, stderr, err := r.backend.Spawn(path, args)
	if err != nil {
		r.fail(fmt.Errorf("spawn %s: %w", path, err))
		return false
	}

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.handle = h
	r.startedAt = time.Now()
	r.lastError = ""
	r.mu.Unlock()

	r.logger.Info("Process started", "pid", h.Pid(), "command", ffmpeg.CommandLine(path, args))

	go r.drain(stderr, gen)
	return true
}

// Stop terminates the worker. It returns false when there is nothing to stop
// or the process survived SIGKILL; otherwise the handle is cleared.
func (r *Runner) Stop() bool {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	h := r.handle
	r.mu.Unlock()

	if h == nil {
		return false
	}

	if !exited(h) {
		if !r.terminate(h) {
			return false
		}
	}

	r.logger.Info("Process stopped", "pid", h.Pid(), "exit_code", h.ExitCode())

	r.mu.Lock()
	r.handle = nil
	r.startedAt = time.Time{}
	r.mu.Unlock()
	return true
}

// terminate escalates from SIGTERM to SIGKILL and reports whether the process
// is confirmed dead.
func (r *Runner) terminate(h Handle) bool {
	pid := h.Pid()
	r.logger.Debug("Sending SIGTERM", "pid", pid)
	if err := h.Terminate(); err != nil {
		r.logger.Warn("Failed to send SIGTERM", "pid", pid, "error", err)
	}

	grace := time.NewTimer(r.gracePeriod)
	defer grace.Stop()

	select {
	case <-h.Done():
		return true
	case <-grace.C:
	}

	r.logger.Warn("Graceful shutdown timeout, forcing kill", "pid", pid, "timeout", r.gracePeriod)
	if err := h.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		r.logger.Error("Failed to kill process", "pid", pid, "error", err)
	}

	killWait := time.NewTimer(r.killTimeout)
	defer killWait.Stop()

	select {
	case <-h.Done():
		return true
	case <-killWait.C:
		r.logger.Error("Process did not exit after kill signal", "pid", pid)
		return false
	}
}

// IsRunning reports whether a process handle exists and has not exited.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle != nil && !exited(r.handle)
}

// Exited returns a channel closed when the current process exits, or nil if
// there is no process.
func (r *Runner) Exited() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil {
		return nil
	}
	return r.handle.Done()
}

func (r *Runner) pid() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil {
		return 0
	}
	return r.handle.Pid()
}

func (r *Runner) fail(err error) {
	r.logger.Error("Failed to start process", "error", err)
	r.mu.Lock()
	r.lastError = err.Error()
	r.mu.Unlock()
}

// drain logs the worker's diagnostic output until EOF. Lines from a process
// that has since been replaced do not overwrite the current last error.
// Over-long lines are truncated and reading continues until EOF.
func (r *Runner) drain(rc io.ReadCloser, gen uint64) {
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 4096)
	for {
		line, truncated, err := readLine(br, maxDiagnosticLine)
		if truncated {
			r.logger.Debug("Truncated long worker output line", "limit", maxDiagnosticLine)
		}
		if line != "" {
			r.logLine(line, gen)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.logger.Warn("Error reading process output", "error", err)
			}
			return
		}
	}
}

func (r *Runner) logLine(line string, gen uint64) {
	if ffmpeg.Classify(line) == ffmpeg.SeverityError {
		r.mu.Lock()
		if r.gen == gen {
			r.lastError = line
		}
		r.mu.Unlock()
	}

	level, msg := ffmpeg.ParseLogLevel(line)
	switch level {
	case "panic", "fatal", "error":
		r.outputLogger.Error(msg)
	case "warning":
		r.outputLogger.Warn(msg)
	case "verbose", "debug", "trace":
		r.outputLogger.Debug(msg)
	default:
		switch ffmpeg.Classify(line) {
		case ffmpeg.SeverityError:
			r.outputLogger.Error(msg)
		case ffmpeg.SeverityWarning:
			r.outputLogger.Warn(msg)
		default:
			r.outputLogger.Info(msg)
		}
	}
}

// readLine returns the next line with at most limit bytes kept. The rest of
// a longer line is consumed and discarded.
func readLine(br *bufio.Reader, limit int) (line string, truncated bool, err error) {
	var buf []byte
	for {
		frag, more, err := br.ReadLine()
		if err != nil {
			return string(buf), truncated, err
		}
		if room := limit - len(buf); len(frag) > room {
			frag = frag[:max(room, 0)]
			truncated = true
		}
		buf = append(buf, frag...)
		if !more {
			return string(buf), truncated, nil
		}
	}
}

func exited(h Handle) bool {
	select {
	case <-h.Done():
		return true
	default:
		return false
	}
}
