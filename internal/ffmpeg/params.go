package ffmpeg

import "path/filepath"

// Output file names written by every noise worker inside its stream directory.
const (
	ManifestName   = "stream.m3u8"
	SegmentPattern = "segment%03d.ts"
)

// Settings holds the encoder and HLS parameters shared by every stream.
type Settings struct {
	SampleRate   int    // anoisesrc sample rate in Hz
	AudioBitrate string // AAC bitrate, e.g. 128k
	SegmentTime  int    // target HLS segment duration in seconds
	ListSize     int    // number of segments kept in the playlist
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		SampleRate:   44100,
		AudioBitrate: "128k",
		SegmentTime:  2,
		ListSize:     5,
	}
}

// Params describes one noise worker invocation.
type Params struct {
	Color     string // white, pink, brown, ...
	OutputDir string // stream directory receiving the playlist and segments
	Settings
}

// ManifestPath returns the playlist path for the invocation.
func (p *Params) ManifestPath() string {
	return filepath.Join(p.OutputDir, ManifestName)
}

// SegmentPath returns the segment filename pattern for the invocation.
func (p *Params) SegmentPath() string {
	return filepath.Join(p.OutputDir, SegmentPattern)
}
