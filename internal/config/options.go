package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/noisestream/internal/ffmpeg"
	"github.com/smazurov/noisestream/internal/logging"
)

// Defaults applied when a configured value is missing or out of range.
const (
	DefaultPort            = ":8000"
	DefaultHLSDir          = "/app/hls"
	DefaultNoiseTypes      = "white,pink,brown"
	DefaultBinary          = "ffmpeg"
	DefaultMonitorInterval = 10 * time.Second
	DefaultFreshnessWindow = 10 * time.Second

	MinSampleRate = 8000
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8000" toml:"server.port" env:"SERVER_PORT"`

	// HLS output settings
	HLSDir     string `help:"Root directory for HLS output" default:"/app/hls" toml:"hls.dir" env:"HLS_DIR"`
	NoiseTypes string `help:"Comma-separated noise colors to serve" default:"white,pink,brown" toml:"hls.noise_types" env:"NOISE_TYPES"`

	// Worker settings
	WorkerBinary string `help:"ffmpeg executable name or path" default:"ffmpeg" toml:"ffmpeg.binary" env:"FFMPEG_BINARY"`
	SampleRate   int    `help:"Noise sample rate in Hz" default:"44100" toml:"ffmpeg.sample_rate" env:"SAMPLE_RATE"`
	AudioBitrate string `help:"AAC bitrate" default:"128k" toml:"ffmpeg.audio_bitrate" env:"AUDIO_BITRATE"`
	SegmentTime  int    `help:"HLS segment duration in seconds" default:"2" toml:"ffmpeg.segment_time" env:"SEGMENT_TIME"`
	ListSize     int    `help:"Segments kept in the playlist" default:"5" toml:"ffmpeg.list_size" env:"LIST_SIZE"`

	// Monitor settings
	MonitorInterval        string `help:"Health check interval" default:"10s" toml:"monitor.interval" env:"MONITOR_INTERVAL"`
	MonitorFreshnessWindow string `help:"Maximum manifest age for a healthy stream" default:"10s" toml:"monitor.freshness_window" env:"MONITOR_FRESHNESS_WINDOW"`
	MonitorRestartBurst    int    `help:"Restarts allowed per stream before throttling (0 disables)" default:"0" toml:"monitor.restart_burst" env:"MONITOR_RESTART_BURST"`

	// Auth settings
	AuthUsername string `help:"Basic auth username for control operations" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password for control operations" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingStreams string `help:"Streams logging level" default:"info" toml:"logging.streams" env:"LOGGING_STREAMS"`
	LoggingWorker  string `help:"Worker output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingMonitor string `help:"Monitor logging level" default:"info" toml:"logging.monitor" env:"LOGGING_MONITOR"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

// Validate replaces out-of-range values with their defaults and returns a
// warning for each replacement plus any risky combination of settings.
func (o *Options) Validate() []string {
	var warnings []string
	defaults := ffmpeg.DefaultSettings()

	if strings.TrimSpace(o.Port) == "" {
		o.Port = DefaultPort
	}
	if strings.TrimSpace(o.HLSDir) == "" {
		o.HLSDir = DefaultHLSDir
	}
	if len(SplitList(o.NoiseTypes)) == 0 {
		warnings = append(warnings, fmt.Sprintf("no noise types configured, using %q", DefaultNoiseTypes))
		o.NoiseTypes = DefaultNoiseTypes
	}
	if strings.TrimSpace(o.WorkerBinary) == "" {
		o.WorkerBinary = DefaultBinary
	}
	if strings.TrimSpace(o.AudioBitrate) == "" {
		o.AudioBitrate = defaults.AudioBitrate
	}

	o.SampleRate = clampInt(&warnings, "ffmpeg.sample_rate", o.SampleRate, MinSampleRate, defaults.SampleRate)
	o.SegmentTime = clampInt(&warnings, "ffmpeg.segment_time", o.SegmentTime, 1, defaults.SegmentTime)
	o.ListSize = clampInt(&warnings, "ffmpeg.list_size", o.ListSize, 1, defaults.ListSize)

	interval := parseDuration(&warnings, "monitor.interval", o.MonitorInterval, DefaultMonitorInterval)
	o.MonitorInterval = interval.String()
	window := parseDuration(&warnings, "monitor.freshness_window", o.MonitorFreshnessWindow, DefaultFreshnessWindow)
	o.MonitorFreshnessWindow = window.String()

	if segment := time.Duration(o.SegmentTime) * time.Second; 2*segment >= window {
		warnings = append(warnings, fmt.Sprintf(
			"freshness window %s is not larger than two segments (%s), healthy streams may be reported stale",
			window, 2*segment))
	}

	return warnings
}

// Settings returns the worker settings described by the options.
func (o *Options) Settings() ffmpeg.Settings {
	return ffmpeg.Settings{
		SampleRate:   o.SampleRate,
		AudioBitrate: o.AudioBitrate,
		SegmentTime:  o.SegmentTime,
		ListSize:     o.ListSize,
	}
}

// Noises returns the configured noise colors.
func (o *Options) Noises() []string {
	return SplitList(o.NoiseTypes)
}

// Interval returns the monitor cadence, falling back to the default when the
// configured value does not parse.
func (o *Options) Interval() time.Duration {
	return durationOr(o.MonitorInterval, DefaultMonitorInterval)
}

// FreshnessWindow returns the maximum manifest age for a healthy stream.
func (o *Options) FreshnessWindow() time.Duration {
	return durationOr(o.MonitorFreshnessWindow, DefaultFreshnessWindow)
}

// LoggingConfig returns the logging configuration carried by the options.
func (o *Options) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"streams": o.LoggingStreams,
			"ffmpeg":  o.LoggingWorker,
			"monitor": o.LoggingMonitor,
			"api":     o.LoggingAPI,
		},
	}
}

func clampInt(warnings *[]string, key string, value, minimum, fallback int) int {
	if value < minimum {
		*warnings = append(*warnings, fmt.Sprintf("%s=%d is below %d, using %d", key, value, minimum, fallback))
		return fallback
	}
	return value
}

func parseDuration(warnings *[]string, key, value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		*warnings = append(*warnings, fmt.Sprintf("%s=%q is not a positive duration, using %s", key, value, fallback))
		return fallback
	}
	return d
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}
