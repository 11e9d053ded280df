// Package process manages the lifecycle of a single noise worker process.
//
// A Runner owns at most one live ffmpeg process at a time:
//   - Start resolves the binary, builds the HLS arguments and spawns the worker
//     in its own process group with stderr captured
//   - a drain goroutine logs every stderr line and remembers the latest error
//   - Stop sends SIGTERM to the group, waits for a grace period and then
//     escalates to SIGKILL
//   - Status and IsRunning never wait on an in-flight Start or Stop
//
// Spawning goes through the Backend interface so the supervision logic can be
// exercised without ffmpeg installed. ExecBackend is the os/exec
// implementation used in production.
//
//	r := process.NewRunner(process.Spec{
//	    ID:        "noise_pink",
//	    Color:     "pink",
//	    OutputDir: "/var/lib/noisestream/hls/noise_pink",
//	    Binary:    "ffmpeg",
//	    Settings:  ffmpeg.DefaultSettings(),
//	}, process.Options{Logger: logger})
//	if !r.Start() {
//	    logger.Error("start failed", "error", r.Status().LastError)
//	}
//	defer r.Stop()
package process
