package streams

import (
	"strings"

	"github.com/smazurov/noisestream/internal/ffmpeg"
)

const idPrefix = "noise_"

// StreamID returns the stream identifier for a noise color.
func StreamID(noise string) string {
	return idPrefix + strings.ToLower(noise)
}

// ParseStreamID extracts the noise color from a stream identifier.
func ParseStreamID(id string) (string, bool) {
	noise, ok := strings.CutPrefix(id, idPrefix)
	if !ok || noise == "" {
		return "", false
	}
	return noise, true
}

// StreamURL returns the playlist URL served for a stream.
func StreamURL(id string) string {
	return "/hls/" + id + "/" + ffmpeg.ManifestName
}
