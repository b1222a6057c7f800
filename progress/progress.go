// Package progress extracts completion signals from yt-dlp and ffmpeg output.
//
// The tools print free-form text, so every function here treats a line it
// cannot understand as carrying no signal. None of them return errors.
package progress

import (
	"math"
	"strconv"
	"strings"
)

const (
	downloadTag   = "[download]"
	timeToken     = "time="
	durationToken = "Duration:"
)

// ParseTime converts HH:MM:SS[.frac], MM:SS[.frac] or SS[.frac] to seconds.
// Both ',' and '.' are accepted as the decimal separator. Anything else is 0.
func ParseTime(s string) float64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0
	}

	var seconds float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.ReplaceAll(part, ",", "."), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		seconds = seconds*60 + v
	}
	return seconds
}

// DownloadPercent reads the percentage from a yt-dlp "[download]  42.0% of ..."
// line. ok is false when the line carries no usable percentage.
func DownloadPercent(line string) (percent int, ok bool) {
	idx := strings.Index(line, downloadTag)
	if idx < 0 {
		return 0, false
	}
	rest := line[idx+len(downloadTag):]
	end := strings.Index(rest, "%")
	if end < 0 {
		return 0, false
	}

	fields := strings.Fields(rest[:end])
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(fields[len(fields)-1], ",", "."), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return int(math.Min(100, math.Max(0, v))), true
}

// Elapsed reads the "time=" token of an ffmpeg stats line.
func Elapsed(line string) (float64, bool) {
	idx := strings.Index(line, timeToken)
	if idx < 0 {
		return 0, false
	}
	token := line[idx+len(timeToken):]
	if fields := strings.Fields(token); len(fields) > 0 {
		token = fields[0]
	} else {
		return 0, false
	}
	return ParseTime(token), true
}

// Duration reads the total length from an ffmpeg "Duration: 00:01:02.50, ..."
// stream metadata line. ok is false when absent or not a positive time.
func Duration(line string) (float64, bool) {
	idx := strings.Index(line, durationToken)
	if idx < 0 {
		return 0, false
	}
	token, _, _ := strings.Cut(line[idx+len(durationToken):], ",")
	d := ParseTime(token)
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// Percent is round(100 * elapsed / total) clamped to [0, 100].
// A non-positive total yields 0.
func Percent(elapsed, total float64) int {
	if total <= 0 {
		return 0
	}
	p := math.Round(100 * elapsed / total)
	return int(math.Min(100, math.Max(0, p)))
}

// Tracker turns a stream of ffmpeg lines into percent-complete values for
// one job. The total duration comes from an inline Duration line when one has
// been seen; otherwise Probe is called once and its answer kept.
type Tracker struct {
	Probe func() float64

	total  float64
	probed bool
}

// Observe consumes one line and returns the percent when the line carries an
// elapsed time and a total duration is known.
func (t *Tracker) Observe(line string) (int, bool) {
	if d, ok := Duration(line); ok && t.total <= 0 {
		t.total = d
	}

	elapsed, ok := Elapsed(line)
	if !ok {
		return 0, false
	}

	if t.total <= 0 && !t.probed && t.Probe != nil {
		t.probed = true
		if d := t.Probe(); d > 0 {
			t.total = d
		}
	}
	if t.total <= 0 {
		return 0, false
	}
	return Percent(elapsed, t.total), true
}

// Total is the duration currently used for percent computation.
func (t *Tracker) Total() float64 {
	return t.total
}
