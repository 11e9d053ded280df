package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// HasFilter runs "<binary> -hide_banner -filters" and reports whether the
// named filter is compiled in.
func HasFilter(ctx context.Context, binary, name string) (bool, error) {
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-filters").Output()
	if err != nil {
		return false, fmt.Errorf("list ffmpeg filters: %w", err)
	}
	return containsFilter(string(out), name), nil
}

// containsFilter scans "ffmpeg -filters" output. Filter rows look like
// " ... anoisesrc         |->A       Generate a noise audio signal."
func containsFilter(output, name string) bool {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}
