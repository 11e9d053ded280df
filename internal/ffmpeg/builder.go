package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildNoiseArgs builds the ffmpeg argument list (without argv[0]) that
// renders a noise color to an HLS playlist in p.OutputDir.
func BuildNoiseArgs(p *Params) []string {
	source := fmt.Sprintf("anoisesrc=color=%s:sample_rate=%d", strings.ToLower(p.Color), p.SampleRate)

	return []string{
		"-hide_banner",
		"-loglevel", "level+warning",
		"-f", "lavfi",
		"-i", source,
		"-c:a", "aac",
		"-b:a", p.AudioBitrate,
		"-f", "hls",
		"-hls_time", strconv.Itoa(p.SegmentTime),
		"-hls_list_size", strconv.Itoa(p.ListSize),
		"-hls_flags", "delete_segments",
		"-hls_segment_filename", p.SegmentPath(),
		p.ManifestPath(),
	}
}

// CommandLine renders binary and args as a single shell-safe line for display.
func CommandLine(binary string, args []string) string {
	var cmd strings.Builder
	cmd.WriteString(quote(binary))
	for _, arg := range args {
		cmd.WriteString(" ")
		cmd.WriteString(quote(arg))
	}
	return cmd.String()
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\"'\\$`") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
