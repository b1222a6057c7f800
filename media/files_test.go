package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"my video!.mp4":    "my_video_.mp4",
		"":                 "file",
		"clip-01_final.mkv": "clip-01_final.mkv",
		"../../etc/passwd": ".._.._etc_passwd",
		"naïve.mov":        "na_ve.mov",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "clip.mp4", BaseName("C:\\Users\\me\\clip.mp4"))
	assert.Equal(t, "clip.mp4", BaseName("/home/me/clip.mp4"))
	assert.Equal(t, "clip.mp4", BaseName("clip.mp4"))
	assert.Equal(t, "", BaseName("dir/"))
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", "id1-my_video_.mp3"), OutputPath("/data", "id1", "my video!.mp4", "mp3"))
	assert.Equal(t, filepath.Join("/data", "id1-archive.tar.mp3"), OutputPath("/data", "id1", "archive.tar.gz", "mp3"))
	assert.Equal(t, filepath.Join("/data", "id1-noext.mp3"), OutputPath("/data", "id1", "noext", "mp3"))
	assert.Equal(t, filepath.Join("/data", "id1-clip.mp4"), InputPath("/data", "id1", "clip.mp4"))
	assert.Equal(t, filepath.Join("/data", "id1-src-song.mp3"), SourcePath("/data", "id1", "song.mp3"))
	assert.NotEqual(t, SourcePath("/data", "id1", "song.mp3"), OutputPath("/data", "id1", "song.mp3", "mp3"))
}

func TestAllowedUpload(t *testing.T) {
	for _, name := range []string{"a.mp4", "a.MOV", "b.mkv", "c.webm", "d.avi", "e.mpeg", "f.mpg"} {
		assert.True(t, AllowedUpload(name), name)
	}
	for _, name := range []string{"a.mp3", "a.txt", "noext", ""} {
		assert.False(t, AllowedUpload(name), name)
	}
}

func TestFindDownloadedPrefersBasePath(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "job1-youtube-audio")
	touch(t, base+".webm")
	touch(t, base+".mp3")

	require.Equal(t, base+".mp3", FindDownloaded(dir, "job1", base, "mp3"))
	require.Equal(t, base+".webm", FindDownloaded(dir, "job1", base, "webm"))
}

func TestFindDownloadedScansForPrefix(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "job1-other.jpg"))
	touch(t, filepath.Join(dir, "job1-other.m4a"))
	touch(t, filepath.Join(dir, "job2-youtube-audio.mp3"))

	got := FindDownloaded(dir, "job1", filepath.Join(dir, "job1-youtube-audio"), "mp3")
	require.Equal(t, filepath.Join(dir, "job1-other.m4a"), got)
}

func TestFindDownloadedFallsBackToAnyPrefixedFile(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "job1-thumb.jpg"))

	got := FindDownloaded(dir, "job1", filepath.Join(dir, "job1-youtube-audio"), "mp3")
	require.Equal(t, filepath.Join(dir, "job1-thumb.jpg"), got)
}

func TestFindDownloadedNothing(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "job2.mp3"))
	require.Empty(t, FindDownloaded(dir, "job1", filepath.Join(dir, "job1-youtube-audio"), "mp3"))
	require.Empty(t, FindDownloaded(filepath.Join(dir, "missing"), "job1", "x", "mp3"))
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 bytes", HumanSize(512))
	assert.Equal(t, "1.5 KiB", HumanSize(1536))
	assert.Equal(t, "800.0 MiB", HumanSize(800*1024*1024))
	assert.Equal(t, "2.0 GiB", HumanSize(2*1024*1024*1024))
}
