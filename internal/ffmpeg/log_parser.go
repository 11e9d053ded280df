package ffmpeg

import "strings"

// Severity is the coarse classification of a diagnostic line.
type Severity int

// Diagnostic line severities.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// Classify reports whether a diagnostic line is an error or a warning using a
// case-insensitive substring match. Error wins when both words appear.
func Classify(line string) Severity {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error"):
		return SeverityError
	case strings.Contains(lower, "warning"):
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// ParseLogLevel extracts the log level from ffmpeg output.
// With -loglevel level+... ffmpeg prints "[level] message" or
// "[component @ 0x...] [level] message". The level tag is stripped, the
// component prefix is kept.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	if tag := line[1:end]; isLogLevel(tag) {
		return tag, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next != -1 && isLogLevel(rest[1:next]) {
			return rest[1:next], component + rest[next+2:]
		}
	}

	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
