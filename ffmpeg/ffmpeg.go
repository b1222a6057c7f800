package ffmpeg

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"media-converter/proc"
)

// fixed output parameters for every conversion
const (
	SampleRate = "44100"
	Channels   = "2"
	Bitrate    = "192k"
)

// Encoder runs ffmpeg and ffprobe from the configured paths.
type Encoder struct {
	FfmpegPath  string
	FfprobePath string
}

func New(ffmpegPath, ffprobePath string) *Encoder {
	return &Encoder{FfmpegPath: ffmpegPath, FfprobePath: ffprobePath}
}

// ToAudioArgs builds the ffmpeg arguments that strip video and re-encode
// the audio of src into dst, overwriting dst.
func ToAudioArgs(src, dst string) []string {
	return []string{"-y",
		"-i", src,
		"-vn",
		"-ar", SampleRate,
		"-ac", Channels,
		"-b:a", Bitrate,
		dst}
}

// ToAudio converts src into dst and feeds every output line to onLine.
// A non-zero exit is reported as *proc.ExitError.
func (e *Encoder) ToAudio(ctx context.Context, src, dst string, onLine func(string)) error {
	args := ToAudioArgs(src, dst)
	log.Infoln(e.FfmpegPath, strings.Join(args, " "))
	err := proc.Stream(ctx, e.FfmpegPath, args, onLine)
	if err != nil {
		log.Errorf("ffmpeg error: %v", err)
	}
	return err
}

// Version returns the first line of `ffmpeg -version`.
func (e *Encoder) Version(ctx context.Context) (string, error) {
	stdout, _, err := run(ctx, e.FfmpegPath, "-version")
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(stdout)), "\n")
	return first, nil
}

// runs a tool with the provided args and returns (stdout, stderr, error)
func run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	log.Debugln(name, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if err != nil {
		log.Errorf("%s error: %v", name, err)
		log.Debugln("stderr:", stderr.String())
	}
	return stdout.Bytes(), stderr.Bytes(), err
}
