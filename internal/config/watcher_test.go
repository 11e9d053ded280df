package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type testConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadTestConfig(path string) (testConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testConfig{}, err
	}
	var cfg testConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func startTestWatcher(t *testing.T, content string, opts ...WatcherOption[testConfig]) (*Watcher[testConfig], string) {
	t.Helper()
	path := writeConfig(t, content)
	opts = append([]WatcherOption[testConfig]{WithDebounce[testConfig](50 * time.Millisecond)}, opts...)
	w := NewWatcher(path, loadTestConfig, opts...)
	return w, path
}

func run(t *testing.T, w *Watcher[testConfig]) {
	t.Helper()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	// give fsnotify a moment to register the directory
	time.Sleep(100 * time.Millisecond)
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	w, path := startTestWatcher(t, "name = \"initial\"\nvalue = 1\n")

	received := make(chan testConfig, 1)
	w.OnReload(func(cfg testConfig) { received <- cfg })
	run(t, w)

	if err := os.WriteFile(path, []byte("name = \"updated\"\nvalue = 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Name != "updated" || cfg.Value != 42 {
			t.Errorf("got %+v, want name=updated, value=42", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_AtomicReplace(t *testing.T) {
	w, path := startTestWatcher(t, "name = \"initial\"\n")

	received := make(chan testConfig, 1)
	w.OnReload(func(cfg testConfig) { received <- cfg })
	run(t, w)

	tmp := filepath.Join(filepath.Dir(path), ".config.toml.tmp")
	if err := os.WriteFile(tmp, []byte("name = \"replaced\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Name != "replaced" {
			t.Errorf("got %+v, want name=replaced", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestConfigWatcher_IgnoresSiblingFiles(t *testing.T) {
	w, path := startTestWatcher(t, "name = \"initial\"\n")

	var calls atomic.Int32
	w.OnReload(func(testConfig) { calls.Add(1) })
	run(t, w)

	sibling := filepath.Join(filepath.Dir(path), "other.toml")
	if err := os.WriteFile(sibling, []byte("name = \"x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no reloads for sibling file, got %d", n)
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	w, path := startTestWatcher(t, "value = 1\n")

	var first, second atomic.Int32
	unsubscribe := w.OnReload(func(testConfig) { first.Add(1) })
	done := make(chan struct{}, 1)
	w.OnReload(func(testConfig) {
		second.Add(1)
		done <- struct{}{}
	})
	unsubscribe()
	run(t, w)

	if err := os.WriteFile(path, []byte("value = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
	if first.Load() != 0 {
		t.Error("unsubscribed handler was called")
	}
	if second.Load() != 1 {
		t.Errorf("expected remaining handler to be called once, got %d", second.Load())
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	errs := make(chan error, 1)
	w, path := startTestWatcher(t, "value = 1\n", WithErrorHandler[testConfig](func(err error) {
		errs <- err
	}))

	var calls atomic.Int32
	w.OnReload(func(testConfig) { calls.Add(1) })
	run(t, w)

	if err := os.WriteFile(path, []byte("value = [broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected a load error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
	if calls.Load() != 0 {
		t.Error("handlers must not run when loading fails")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	w, path := startTestWatcher(t, "value = 0\n", WithDebounce[testConfig](200*time.Millisecond))

	var calls atomic.Int32
	last := make(chan testConfig, 10)
	w.OnReload(func(cfg testConfig) {
		calls.Add(1)
		last <- cfg
	})
	run(t, w)

	for i := 1; i <= 5; i++ {
		content := []byte("value = " + string(rune('0'+i)) + "\n")
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case cfg := <-last:
		if cfg.Value != 5 {
			t.Errorf("expected final value 5, got %d", cfg.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced reload")
	}

	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected a single debounced reload, got %d", n)
	}
}

func TestConfigWatcher_StartTwice(t *testing.T) {
	w, _ := startTestWatcher(t, "value = 1\n")
	run(t, w)

	if err := w.Start(context.Background()); !errors.Is(err, ErrWatcherRunning) {
		t.Errorf("expected ErrWatcherRunning, got %v", err)
	}
}

func TestConfigWatcher_StopIsIdempotent(t *testing.T) {
	w, path := startTestWatcher(t, "value = 1\n")

	var calls atomic.Int32
	w.OnReload(func(testConfig) { calls.Add(1) })
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	w.Stop()
	w.Stop()

	if err := os.WriteFile(path, []byte("value = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if calls.Load() != 0 {
		t.Error("handler called after Stop")
	}

	// a stopped watcher can be started again
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	w.Stop()
}

func TestConfigWatcher_ContextCancel(t *testing.T) {
	w, _ := startTestWatcher(t, "value = 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancel")
	}
}

func TestConfigWatcher_MissingDirectory(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing", "config.toml"), loadTestConfig)
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Error("expected an error watching a missing directory")
	}
}
