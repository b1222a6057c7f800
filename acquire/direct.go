package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"media-converter/media"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	accept    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"

	chunkSize = 32 * 1024
	mib       = 1024 * 1024
)

// ErrTooLarge is returned when a remote file is larger than the cap, either
// as declared by the server or as actually transferred.
var ErrTooLarge = fmt.Errorf("%w: remote file too large", ErrInvalidInput)

// Head is what a HEAD request revealed about a URL. Empty ContentType and
// negative Length mean unknown.
type Head struct {
	ContentType string
	Length      int64
}

// Download describes a completed direct transfer.
type Download struct {
	Path  string // local file holding the body
	Name  string // sanitized name derived from the URL path
	Bytes int64
}

// Fetcher performs direct HTTP acquisition.
type Fetcher struct {
	Client      *http.Client
	MaxBytes    int64
	HeadTimeout time.Duration
	GetTimeout  time.Duration

	// minimum spacing of percent updates, and of byte-count updates when
	// the length is unknown
	PercentInterval time.Duration
	BytesInterval   time.Duration
}

func NewFetcher(maxBytes int64) *Fetcher {
	return &Fetcher{
		Client:          &http.Client{},
		MaxBytes:        maxBytes,
		HeadTimeout:     15 * time.Second,
		GetTimeout:      10 * time.Minute,
		PercentInterval: 800 * time.Millisecond,
		BytesInterval:   2500 * time.Millisecond,
	}
}

func browserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

// Probe issues a HEAD request. Any failure, including a non-success status,
// just leaves both fields unknown.
func (f *Fetcher) Probe(ctx context.Context, u *url.URL) Head {
	head := Head{Length: -1}

	ctx, cancel := context.WithTimeout(ctx, f.HeadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return head
	}
	browserHeaders(req)

	resp, err := f.Client.Do(req)
	if err != nil {
		log.Debugf("HEAD %s failed: %v", u, err)
		return head
	}
	defer resp.Body.Close()

	log.Debugf("HEAD %s: %d", u, resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return head
	}
	head.ContentType = resp.Header.Get("Content-Type")
	if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil && n >= 0 {
		head.Length = n
	}
	return head
}

// Check rejects a URL whose HEAD response shows it is not media or is over
// the size cap. The content type is not checked for provider pages, which
// are HTML.
func (f *Fetcher) Check(head Head, strategy Strategy) error {
	if head.ContentType != "" && strategy != ProviderDelegated && !IsMediaType(head.ContentType) {
		return fmt.Errorf("%w: remote content not a recognized video type: %s", ErrInvalidInput, head.ContentType)
	}
	if head.Length > f.MaxBytes {
		return fmt.Errorf("%w: %d MB", ErrTooLarge, head.Length/mib)
	}
	return nil
}

// IsMediaType reports whether a Content-Type looks like video or a binary
// container.
func IsMediaType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "video/") ||
		strings.HasPrefix(ct, "application/octet-stream") ||
		strings.Contains(ct, "mp4") ||
		strings.Contains(ct, "webm") ||
		strings.Contains(ct, "mpeg")
}

// Download streams u into dir under a name prefixed with id, reporting
// progress to rep. The partial file is removed when the size cap is hit;
// other failures leave it in place.
func (f *Fetcher) Download(ctx context.Context, u *url.URL, dir, id string, rep Reporter) (Download, error) {
	ctx, cancel := context.WithTimeout(ctx, f.GetTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Download{}, err
	}
	browserHeaders(req)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := f.Client.Do(req)
	if err != nil {
		return Download{}, err
	}
	defer resp.Body.Close()

	log.WithField("job", id).Infof("GET %s: %d", u, resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return Download{}, fmt.Errorf("HTTP status: %d", resp.StatusCode)
	}

	length := resp.ContentLength
	if length > f.MaxBytes {
		return Download{}, fmt.Errorf("%w: %d MB", ErrTooLarge, length/mib)
	}

	name := media.SanitizeFilename(remoteName(u))
	dst := media.InputPath(dir, id, name)
	out, err := os.Create(dst)
	if err != nil {
		return Download{}, err
	}

	total, err := f.copy(out, resp.Body, length, rep)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if errors.Is(err, ErrTooLarge) {
		os.Remove(dst)
	}
	if err != nil {
		return Download{}, err
	}
	return Download{Path: dst, Name: name, Bytes: total}, nil
}

func (f *Fetcher) copy(dst io.Writer, src io.Reader, length int64, rep Reporter) (int64, error) {
	percentEvery := rate.Sometimes{Interval: f.PercentInterval}
	bytesEvery := rate.Sometimes{Interval: f.BytesInterval}

	buf := make([]byte, chunkSize)
	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > f.MaxBytes {
				return total, fmt.Errorf("%w: downloaded file exceeds maximum allowed size", ErrTooLarge)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return total, err
			}

			if length > 0 {
				percent := int(total * 100 / length)
				percentEvery.Do(func() {
					rep.SetProgress(min(99, percent))
					rep.SetMessage(fmt.Sprintf("Downloading... %d%%", percent))
				})
			} else {
				mb := total / mib
				bytesEvery.Do(func() {
					rep.SetMessage(fmt.Sprintf("Downloading... %d MB", mb))
				})
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

// remoteName is the last path element of u, or "remote-file".
func remoteName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "remote-file"
	}
	return name
}
