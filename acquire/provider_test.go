package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"media-converter/proc"
)

type fakeExtractor struct {
	lines  []string
	ext    string // extension of the file to create; empty creates nothing
	err    error
	called struct{ url, format, template string }
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, url, format, template string, onLine func(string)) error {
	f.called.url, f.called.format, f.called.template = url, format, template
	for _, l := range f.lines {
		onLine(l)
	}
	if f.ext != "" {
		path := strings.Replace(template, "%(ext)s", f.ext, 1)
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			return err
		}
	}
	return f.err
}

func TestDelegateFetch(t *testing.T) {
	dir := t.TempDir()
	ex := &fakeExtractor{
		lines: []string{
			"[youtube] abc: Downloading webpage",
			"[download]  42.0% of 10MiB",
			"[download] 100% of 10MiB",
		},
		ext: "mp3",
	}
	rec := &recorder{}

	path, err := NewDelegate(ex, "mp3").Fetch(context.Background(), mustURL(t, "https://youtu.be/abc"), dir, "job1", rec)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "job1-youtube-audio.mp3"), path)

	require.Equal(t, "https://youtu.be/abc", ex.called.url)
	require.Equal(t, "mp3", ex.called.format)
	require.Equal(t, filepath.Join(dir, "job1-youtube-audio")+".%(ext)s", ex.called.template)

	require.Equal(t, []int{42, 99}, rec.progress)
	require.Equal(t, "Downloading from YouTube... 42%", rec.messages[0])
}

func TestDelegateFetchFindsOtherExtension(t *testing.T) {
	dir := t.TempDir()
	path, err := NewDelegate(&fakeExtractor{ext: "m4a"}, "mp3").
		Fetch(context.Background(), mustURL(t, "https://youtu.be/abc"), dir, "job1", &recorder{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "job1-youtube-audio.m4a"), path)
}

func TestDelegateFetchToolFailure(t *testing.T) {
	ex := &fakeExtractor{err: &proc.ExitError{Tool: "yt-dlp", ExitCode: 1, Output: "ERROR: Video unavailable"}}
	_, err := NewDelegate(ex, "mp3").Fetch(context.Background(), mustURL(t, "https://youtu.be/abc"), t.TempDir(), "job1", &recorder{})

	var exitErr *proc.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 1, exitErr.ExitCode)
}

func TestDelegateFetchNoFile(t *testing.T) {
	_, err := NewDelegate(&fakeExtractor{}, "mp3").
		Fetch(context.Background(), mustURL(t, "https://youtu.be/abc"), t.TempDir(), "job1", &recorder{})
	require.ErrorIs(t, err, ErrNotFound)
}
