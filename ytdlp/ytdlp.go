package ytdlp

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"media-converter/proc"
)

// Downloader runs yt-dlp from the configured path.
type Downloader struct {
	Path string
}

func New(path string) *Downloader {
	return &Downloader{Path: path}
}

// ExtractAudioArgs requests the best audio stream of url, converted to
// format at best quality with thumbnail and metadata embedded, written to
// outputTemplate (a yt-dlp -o template such as "/data/id.%(ext)s").
func ExtractAudioArgs(url, format, outputTemplate string) []string {
	return []string{
		"-f", "bestaudio",
		"--extract-audio",
		"--audio-format", format,
		"--audio-quality", "0",
		"--embed-thumbnail",
		"--add-metadata",
		"-o", outputTemplate,
		url,
	}
}

// ExtractAudio downloads url and feeds every output line to onLine.
// A non-zero exit is reported as *proc.ExitError.
func (d *Downloader) ExtractAudio(ctx context.Context, url, format, outputTemplate string, onLine func(string)) error {
	args := ExtractAudioArgs(url, format, outputTemplate)
	log.Infoln(d.Path, strings.Join(args, " "))
	err := proc.Stream(ctx, d.Path, args, onLine)
	if err != nil {
		log.Errorf("yt-dlp error: %v", err)
	}
	return err
}

// Version returns the output of `yt-dlp --version`.
func (d *Downloader) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, d.Path, "--version")
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		log.Errorf("yt-dlp error: %v", err)
		log.Debugln("stderr:", stderr.String())
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}
