package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu          sync.RWMutex
	current     Config
	initialized bool
	globalLevel = &slog.LevelVar{}
	modules     = make(map[string]*moduleLogger)
	logBuffer   = NewRingBuffer(defaultBufferSize)
	logCallback LogCallback
)

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// Initialize sets up the logging system. Loggers handed out before the call
// are rebuilt so they share the configured handler chain.
func Initialize(config Config) {
	mu.Lock()
	defer mu.Unlock()

	current = config
	initialized = true
	globalLevel.Set(levelOrDefault(config.Level, slog.LevelInfo))

	for name, m := range modules {
		m.level.Set(moduleLevel(config, name))
		m.logger = slog.New(createHandler(config.Format, m.level)).With("module", name)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevel)))
}

// SetLevels applies new global and per-module levels without rebuilding
// handlers. The output format is left untouched.
func SetLevels(config Config) {
	mu.Lock()
	defer mu.Unlock()

	current.Level = config.Level
	current.Modules = config.Modules
	globalLevel.Set(levelOrDefault(config.Level, slog.LevelInfo))
	for name, m := range modules {
		m.level.Set(moduleLevel(current, name))
	}
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	m, ok := modules[module]
	mu.RUnlock()
	if ok {
		return m.logger
	}

	mu.Lock()
	defer mu.Unlock()

	if m, ok := modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	format := "text"
	if initialized {
		level.Set(moduleLevel(current, module))
		format = current.Format
	}

	m = &moduleLogger{
		logger: slog.New(createHandler(format, level)).With("module", module),
		level:  level,
	}
	modules[module] = m
	return m.logger
}

// GetBuffer returns the ring buffer holding recent log entries.
func GetBuffer() *RingBuffer {
	return logBuffer
}

// SetLogCallback registers a function invoked for every buffered entry.
func SetLogCallback(callback LogCallback) {
	mu.Lock()
	defer mu.Unlock()
	logCallback = callback
}

func currentCallback() LogCallback {
	mu.RLock()
	defer mu.RUnlock()
	return logCallback
}

// createHandler builds the handler chain: stdout, journal when available, and
// the ring buffer.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := make([]slog.Handler, 0, 3)
	if isStdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// isStdoutAvailable reports whether stdout is a terminal, pipe, socket or
// regular file (not /dev/null).
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

func moduleLevel(config Config, module string) slog.Level {
	fallback := levelOrDefault(config.Level, slog.LevelInfo)
	if s, ok := config.Modules[module]; ok {
		return levelOrDefault(s, fallback)
	}
	return fallback
}

func levelOrDefault(s string, fallback slog.Level) slog.Level {
	if level, ok := ParseLevel(s); ok {
		return level
	}
	return fallback
}

// ParseLevel converts a level name (debug, info, warn/warning, error) to a
// slog.Level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
