package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"media-converter/media"
	"media-converter/progress"
	"media-converter/proc"
)

// ErrNotFound is returned when yt-dlp reports success but left no file.
var ErrNotFound = errors.New("download completed but file not found")

// AudioExtractor is the part of yt-dlp the provider path needs.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, url, format, outputTemplate string, onLine func(string)) error
}

// Delegate acquires provider URLs by running yt-dlp, which downloads and
// converts in one go.
type Delegate struct {
	Extractor AudioExtractor
	Format    string // audio codec requested, e.g. "mp3"
}

func NewDelegate(extractor AudioExtractor, format string) *Delegate {
	return &Delegate{Extractor: extractor, Format: format}
}

// Fetch runs yt-dlp for u and returns the path of the produced audio file.
func (d *Delegate) Fetch(ctx context.Context, u *url.URL, dir, id string, rep Reporter) (string, error) {
	jobLog := log.WithField("job", id)
	base := media.InputPath(dir, id, "youtube-audio")

	err := d.Extractor.ExtractAudio(ctx, u.String(), d.Format, base+".%(ext)s", func(line string) {
		jobLog.Infof("[yt-dlp] %s", line)
		if percent, ok := progress.DownloadPercent(line); ok {
			rep.SetProgress(min(99, percent))
			rep.SetMessage(fmt.Sprintf("Downloading from YouTube... %d%%", percent))
		}
	})
	if err != nil {
		var exitErr *proc.ExitError
		if errors.As(err, &exitErr) {
			jobLog.Errorf("yt-dlp failed with code %d. Output:\n%s", exitErr.ExitCode, exitErr.Output)
		}
		return "", err
	}

	found := media.FindDownloaded(dir, id, base, d.Format)
	if found == "" {
		jobLog.Errorf("yt-dlp succeeded but no file matches %s.*", base)
		return "", ErrNotFound
	}
	jobLog.Infof("yt-dlp produced %s", found)
	return found, nil
}
