package monitor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/smazurov/noisestream/internal/events"
	"github.com/smazurov/noisestream/internal/ffmpeg"
	"github.com/smazurov/noisestream/internal/process/processtest"
	"github.com/smazurov/noisestream/internal/streams"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTarget serves a fixed health report and records start/stop calls.
type fakeTarget struct {
	mu        sync.Mutex
	report    streams.HealthReport
	calls     []string
	panics    int
	failStart bool
	healthN   atomic.Int32
}

func (f *fakeTarget) Health() streams.HealthReport {
	f.healthN.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics > 0 {
		f.panics--
		panic("registry exploded")
	}
	return f.report
}

func (f *fakeTarget) Start(id string) streams.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start:"+id)
	if f.failStart {
		return streams.Result{StreamID: id, Error: "Failed to start stream", Code: streams.CodeStartFailed}
	}
	return streams.Result{Success: true, StreamID: id}
}

func (f *fakeTarget) Stop(id string) streams.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop:"+id)
	return streams.Result{Success: true, StreamID: id}
}

func (f *fakeTarget) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func mixedReport() streams.HealthReport {
	return streams.HealthReport{
		Status: streams.OverallDegraded,
		Streams: []streams.StreamHealth{
			{StreamID: "noise_white", Status: streams.HealthHealthy, ProcessRunning: true, HLSAvailable: true, ManifestFresh: true},
			{StreamID: "noise_pink", Status: streams.HealthUnhealthy, ProcessRunning: true, HLSAvailable: true},
			{StreamID: "noise_brown", Status: streams.HealthStopped},
			{StreamID: "noise_red", Status: streams.HealthUnhealthy, ProcessRunning: false},
			{StreamID: "noise_blue", Status: streams.HealthStarting},
		},
	}
}

func newTestMonitor(target Target, opts Options) *Monitor {
	opts.Logger = testLogger()
	return New(target, opts)
}

func TestRunCycleRestartsOnlyStaleLiveStreams(t *testing.T) {
	target := &fakeTarget{report: mixedReport()}
	m := newTestMonitor(target, Options{})

	res, err := m.RunCycle()
	require.NoError(t, err)

	assert.Equal(t, []string{"stop:noise_pink", "start:noise_pink"}, target.Calls())
	assert.Equal(t, 5, res.Checked)
	assert.Equal(t, []string{"noise_pink"}, res.Restarted)
	assert.Empty(t, res.Failed)
	assert.Empty(t, res.Throttled)
}

func TestRunCycleReportsFailedRestart(t *testing.T) {
	target := &fakeTarget{report: mixedReport(), failStart: true}
	bus := events.New()
	got := make(chan events.StreamRestartedEvent, 1)
	defer bus.Subscribe(func(e events.StreamRestartedEvent) { got <- e })()

	m := newTestMonitor(target, Options{EventBus: bus})

	res, err := m.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, []string{"noise_pink"}, res.Failed)

	select {
	case ev := <-got:
		assert.Equal(t, "noise_pink", ev.StreamID)
		assert.False(t, ev.Success)
		assert.Equal(t, "stale_manifest", ev.Reason)
		assert.Equal(t, "Failed to start stream", ev.Error)
	case <-time.After(time.Second):
		t.Fatal("restart event not published")
	}
}

func TestRunCycleRecoversPanic(t *testing.T) {
	target := &fakeTarget{report: mixedReport(), panics: 1}
	var cycleErr error
	m := newTestMonitor(target, Options{OnCycle: func(err error) { cycleErr = err }})

	_, err := m.RunCycle()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry exploded")
	assert.Equal(t, err, cycleErr)

	_, err = m.RunCycle()
	assert.NoError(t, err, "next cycle runs normally")
}

func TestRestartThrottle(t *testing.T) {
	target := &fakeTarget{report: mixedReport()}
	now := time.Unix(1700000000, 0)
	m := newTestMonitor(target, Options{
		RestartBurst:  1,
		RestartRefill: time.Minute,
		Now:           func() time.Time { return now },
	})

	res, _ := m.RunCycle()
	assert.Equal(t, []string{"noise_pink"}, res.Restarted)

	res, _ = m.RunCycle()
	assert.Empty(t, res.Restarted)
	assert.Equal(t, []string{"noise_pink"}, res.Throttled)

	now = now.Add(time.Minute)
	res, _ = m.RunCycle()
	assert.Equal(t, []string{"noise_pink"}, res.Restarted)

	assert.Len(t, target.Calls(), 4)
}

func TestThrottleDisabled(t *testing.T) {
	target := &fakeTarget{report: mixedReport()}
	m := newTestMonitor(target, Options{RestartBurst: -1})

	for range 5 {
		res, _ := m.RunCycle()
		assert.Len(t, res.Restarted, 1)
	}
}

func TestLoopRunsAndBacksOff(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	target := &fakeTarget{report: mixedReport(), panics: 1}
	cycles := make(chan error, 8)
	m := newTestMonitor(target, Options{
		Interval:     20 * time.Millisecond,
		ErrorBackoff: 5 * time.Millisecond,
		RestartBurst: -1,
		OnCycle: func(err error) {
			select {
			case cycles <- err:
			default:
			}
		},
	})

	require.True(t, m.Start(context.Background()))
	assert.False(t, m.Start(context.Background()), "second start is refused")
	assert.True(t, m.Running())

	first := <-cycles
	assert.Error(t, first, "first cycle panics")
	second := <-cycles
	assert.NoError(t, second, "loop survives a failed cycle")

	assert.True(t, m.Stop())
	assert.False(t, m.Running())
	assert.True(t, m.Stop(), "stopping twice is harmless")
}

func TestStopIsPrompt(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	target := &fakeTarget{report: mixedReport()}
	m := newTestMonitor(target, Options{Interval: time.Hour})
	require.True(t, m.Start(context.Background()))

	start := time.Now()
	assert.True(t, m.Stop())
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, target.healthN.Load(), "no evaluation before the first interval")
}

func TestContextCancelStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	m := newTestMonitor(&fakeTarget{}, Options{Interval: time.Hour})
	require.True(t, m.Start(ctx))

	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on context cancel")
	}
	m.Stop()
}

func TestDefaultOptionsRestartEveryCycle(t *testing.T) {
	target := &fakeTarget{report: mixedReport()}
	m := newTestMonitor(target, Options{})

	for i := range 8 {
		res, err := m.RunCycle()
		require.NoError(t, err)
		assert.Equal(t, []string{"noise_pink"}, res.Restarted, "cycle %d", i)
		assert.Empty(t, res.Throttled, "cycle %d", i)
	}
	assert.Len(t, target.Calls(), 16)
}

// registryEnv wires a real registry over the fake process backend.
type registryEnv struct {
	reg     *streams.Registry
	backend *processtest.Backend
	dir     string
	now     time.Time
}

func newRegistryEnv(t *testing.T) *registryEnv {
	t.Helper()
	env := &registryEnv{
		backend: processtest.New(),
		dir:     t.TempDir(),
		now:     time.Now(),
	}
	env.reg = streams.NewRegistry(streams.Options{
		HLSDir:       env.dir,
		Noises:       []string{"white", "pink"},
		Backend:      env.backend,
		GracePeriod:  20 * time.Millisecond,
		KillTimeout:  20 * time.Millisecond,
		Now:          func() time.Time { return env.now },
		Logger:       testLogger(),
		OutputLogger: testLogger(),
	})
	t.Cleanup(func() { env.reg.StopAll() })
	return env
}

// writeManifest creates the playlist for id aged relative to the env clock.
func (e *registryEnv) writeManifest(t *testing.T, id string, age time.Duration) {
	t.Helper()
	path := filepath.Join(e.dir, id, ffmpeg.ManifestName)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#EXTM3U\n"), 0o644))
	mtime := e.now.Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestRunCycleRestartsStaleRegistryStream(t *testing.T) {
	env := newRegistryEnv(t)
	res := env.reg.StartAll()
	require.Equal(t, 2, res.Started)

	env.writeManifest(t, "noise_white", time.Second)
	env.writeManifest(t, "noise_pink", 30*time.Second)

	oldPink := env.backend.Last("pink")
	oldWhite := env.backend.Last("white")
	before, ok := env.reg.Get("noise_pink")
	require.True(t, ok)

	pink, ok := env.reg.StreamHealth("noise_pink")
	require.True(t, ok)
	require.Equal(t, streams.HealthUnhealthy, pink.Status)
	require.True(t, pink.ProcessRunning)

	m := newTestMonitor(env.reg, Options{})
	cycle, err := m.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, []string{"noise_pink"}, cycle.Restarted)
	assert.Equal(t, 2, cycle.Checked)

	assert.False(t, oldPink.Alive(), "stale worker is terminated")
	terms, _ := oldPink.Signals()
	assert.Equal(t, 1, terms)

	newPink := env.backend.Last("pink")
	require.NotSame(t, oldPink, newPink)
	assert.True(t, newPink.Alive())
	assert.Len(t, env.backend.Live("pink"), 1)

	assert.Same(t, oldWhite, env.backend.Last("white"), "healthy stream untouched")
	assert.True(t, oldWhite.Alive())
	assert.Equal(t, 3, env.backend.Spawns())

	after, ok := env.reg.Get("noise_pink")
	require.True(t, ok)
	assert.Equal(t, streams.StateRunning, after.State)
	assert.Equal(t, newPink.Pid(), after.PID)
	assert.NotEqual(t, before.RunID, after.RunID)
	assert.Equal(t, before.RestartCount+1, after.RestartCount)

	env.writeManifest(t, "noise_pink", time.Second)
	cycle, err = m.RunCycle()
	require.NoError(t, err)
	assert.Empty(t, cycle.Restarted, "fresh playlist needs no restart")
	assert.Equal(t, 3, env.backend.Spawns())
}

func TestRunCycleLeavesCrashedRegistryStream(t *testing.T) {
	env := newRegistryEnv(t)
	require.True(t, env.reg.Start("noise_pink").Success)
	env.writeManifest(t, "noise_pink", 30*time.Second)

	env.backend.Last("pink").Exit(1)

	m := newTestMonitor(env.reg, Options{})
	cycle, err := m.RunCycle()
	require.NoError(t, err)
	assert.Empty(t, cycle.Restarted)
	assert.Equal(t, 1, env.backend.Spawns())
}
