package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/noisestream/internal/logging"
)

// readData streams "data:" lines from an SSE response.
func readData(t *testing.T, ctx context.Context, url string) <-chan string {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 64)
	go func() {
		defer resp.Body.Close()
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data:"); ok {
				lines <- strings.TrimSpace(data)
			}
		}
	}()
	return lines
}

// waitFor returns the first line containing every fragment.
func waitFor(t *testing.T, lines <-chan string, fragments ...string) string {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before %v", fragments)
			}
			matched := true
			for _, f := range fragments {
				if !strings.Contains(line, f) {
					matched = false
					break
				}
			}
			if matched {
				return line
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %v", fragments)
		}
	}
}

func TestEventStreamSnapshotAndUpdates(t *testing.T) {
	env := newTestEnv(t)
	env.reg.Start("noise_white")

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines := readData(t, ctx, ts.URL+"/api/events")
	waitFor(t, lines, `"stream_id":"noise_white"`, `"state":"running"`)

	env.reg.Stop("noise_white")
	line := waitFor(t, lines, `"state":"stopped"`)
	assert.Contains(t, line, `"previous_state":"running"`)
}

func TestLogStreamReplaysAndFollows(t *testing.T) {
	env := newTestEnv(t)
	logging.SetLogCallback(func(entry logging.LogEntry) {
		env.bus.Publish(LogEntryToEvent(entry))
	})
	t.Cleanup(func() { logging.SetLogCallback(nil) })

	logger := logging.GetLogger("apitest")
	logger.Info("buffered before connect")

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines := readData(t, ctx, ts.URL+"/api/logs/stream")
	waitFor(t, lines, "buffered before connect", `"module":"apitest"`)

	logger.Warn("live after connect", "stream_id", "noise_pink")
	line := waitFor(t, lines, "live after connect")
	assert.Contains(t, line, `"level":"warn"`)
	assert.Contains(t, line, `"noise_pink"`)
}

func TestLogStreamSince(t *testing.T) {
	env := newTestEnv(t)

	logger := logging.GetLogger("apitest")
	logger.Info("older entry")
	entries := logging.GetBuffer().Tail(1)
	require.Len(t, entries, 1)
	logger.Info("newer entry")

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines := readData(t, ctx, ts.URL+"/api/logs/stream?since="+strconv.FormatUint(entries[0].Seq, 10))
	line := waitFor(t, lines, "entry")
	assert.Contains(t, line, "newer entry")
}
