package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProbeTimeout bounds a single duration probe.
const ProbeTimeout = 5 * time.Second

// Duration asks ffprobe for the length in seconds of the media at path.
func (e *Encoder) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	stdout, _, err := run(ctx, e.FfprobePath, "-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	first, _, _ := strings.Cut(strings.TrimSpace(string(stdout)), "\n")
	seconds, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", first, err)
	}
	return seconds, nil
}
