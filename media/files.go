package media

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)

// extensions yt-dlp may leave behind, in order of preference
var downloadExts = []string{"mp3", "m4a", "webm", "mp4"}

var uploadExts = map[string]bool{
	"mp4": true, "mov": true, "mkv": true, "webm": true,
	"avi": true, "mpeg": true, "mpg": true,
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with
// '_', spaces included. An empty name becomes "file".
func SanitizeFilename(name string) string {
	if name == "" {
		return "file"
	}
	return unsafeChars.ReplaceAllString(name, "_")
}

// BaseName strips any directory part a client may have sent with a filename.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// InputPath is where the acquired source of job id is stored.
func InputPath(dir, id, sanitizedName string) string {
	return filepath.Join(dir, id+"-"+sanitizedName)
}

// SourcePath is where a source is kept when its InputPath would be the same
// file as its OutputPath.
func SourcePath(dir, id, sanitizedName string) string {
	return filepath.Join(dir, id+"-src-"+sanitizedName)
}

// OutputPath is where the audio converted from originalName is written:
// <dir>/<id>-<sanitized base name>.<ext>
func OutputPath(dir, id, originalName, ext string) string {
	base := originalName
	if i := strings.LastIndex(originalName, "."); i >= 0 {
		base = originalName[:i]
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", id, SanitizeFilename(base), ext))
}

// AllowedUpload reports whether an uploaded filename has a video extension
// accepted for conversion.
func AllowedUpload(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return uploadExts[ext]
}

// FindDownloaded locates the file yt-dlp produced for basePath. It first
// tries basePath.<ext> for the preferred extension and the known ones, then
// scans dir for any file named with the id prefix, favouring known media
// extensions. It returns "" when nothing is found.
func FindDownloaded(dir, id, basePath, preferred string) string {
	exts := append([]string{preferred}, downloadExts...)
	for _, ext := range exts {
		candidate := basePath + "." + ext
		if fi, err := os.Stat(candidate); err == nil && fi.Mode().IsRegular() {
			return candidate
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var matches []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasPrefix(entry.Name(), id) {
			matches = append(matches, entry.Name())
		}
	}
	if len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	for _, name := range matches {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
		for _, known := range exts {
			if ext == known {
				return filepath.Join(dir, name)
			}
		}
	}
	return filepath.Join(dir, matches[0])
}

// EnsureDir creates dir with owner-only permissions if it is missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}

func HumanSize(bytes int64) string {
	const (
		KiB = 1024
		MiB = 1024 * KiB
		GiB = 1024 * MiB
	)

	if bytes >= GiB {
		return fmt.Sprintf("%.1f GiB", float64(bytes)/float64(GiB))
	} else if bytes >= MiB {
		return fmt.Sprintf("%.1f MiB", float64(bytes)/float64(MiB))
	} else if bytes >= KiB {
		return fmt.Sprintf("%.1f KiB", float64(bytes)/float64(KiB))
	}
	return fmt.Sprintf("%d bytes", bytes)
}
