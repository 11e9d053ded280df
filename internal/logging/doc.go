// Package logging provides structured logging with per-module log levels.
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Output goes to stdout (text or JSON), to the systemd journal when journald
// is reachable, and always to an in-memory ring buffer that backs the log
// streaming endpoint.
//
// Initialize once at startup, then ask for module loggers:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"ffmpeg":  "warn",
//			"monitor": "debug",
//		},
//	})
//
//	logger := logging.GetLogger("streams").With("stream_id", id)
//	logger.Info("Stream started", "pid", pid)
//
// Levels can be changed at runtime with SetLevels; existing loggers pick the
// new level up immediately because each module owns a slog.LevelVar.
//
// When running under systemd:
//
//	journalctl -t noisestream MODULE=monitor
//	journalctl -t noisestream STREAM_ID=noise_pink -p warning
//
// Example TOML:
//
//	[logging]
//	level = "info"
//	format = "text"
//	ffmpeg = "warn"
package logging
