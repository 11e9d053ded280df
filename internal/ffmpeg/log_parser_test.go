package ffmpeg

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want Severity
	}{
		{"[error] Conversion failed!", SeverityError},
		{"ERROR opening output", SeverityError},
		{"[warning] Queue input is backward in time", SeverityWarning},
		{"Warning: deprecated option", SeverityWarning},
		{"error and warning in one line", SeverityError},
		{"size=N/A time=00:00:02.00 bitrate=N/A", SeverityInfo},
		{"", SeverityInfo},
	}

	for _, tt := range tests {
		if got := Classify(tt.line); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[error] Conversion failed!", "error", "Conversion failed!"},
		{"[warning] something odd", "warning", "something odd"},
		{"[hls @ 0x5581] [warning] segment too long", "warning", "[hls @ 0x5581] segment too long"},
		{"[hls @ 0x5581] Opening 'segment001.ts' for writing", "info", "[hls @ 0x5581] Opening 'segment001.ts' for writing"},
		{"plain line", "info", "plain line"},
		{"[x", "info", "[x"},
	}

	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func TestContainsFilter(t *testing.T) {
	output := `Filters:
  T.. = Timeline support
  ... anoisesrc         |->A       Generate a noise audio signal.
  ... anullsrc          |->A       Null audio source, return empty audio frames.
`
	if !containsFilter(output, "anoisesrc") {
		t.Error("expected anoisesrc to be found")
	}
	if containsFilter(output, "sine") {
		t.Error("did not expect sine to be found")
	}
}
