// Package acquire brings remote source media onto local storage.
package acquire

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidInput marks requests rejected because of what the client sent:
// a bad URL, an unsupported content type, or media over the size cap.
var ErrInvalidInput = errors.New("invalid input")

// Strategy selects how a URL is acquired.
type Strategy int

const (
	// DirectHTTP streams the URL body with a plain GET.
	DirectHTTP Strategy = iota
	// ProviderDelegated hands the whole URL to yt-dlp, which produces the
	// final audio itself.
	ProviderDelegated
)

func (s Strategy) String() string {
	if s == ProviderDelegated {
		return "provider"
	}
	return "direct"
}

// markers matched case-insensitively against the host and the full URL
var providerMarkers = []string{
	"youtube.com",
	"youtu.be",
	"m.youtube.com",
	"youtube.com/watch",
	"youtu.be/",
	"youtube.com/shorts/",
}

// Source is a validated remote URL and the strategy chosen for it.
type Source struct {
	URL      *url.URL
	Strategy Strategy
}

// ParseSource validates raw as an http(s) URL and classifies it.
func ParseSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, fmt.Errorf("%w: missing url", ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Source{}, fmt.Errorf("%w: malformed url: %v", ErrInvalidInput, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Source{}, fmt.Errorf("%w: only http/https URLs are supported", ErrInvalidInput)
	}
	if u.Host == "" {
		return Source{}, fmt.Errorf("%w: url has no host", ErrInvalidInput)
	}
	return Source{URL: u, Strategy: Classify(u)}, nil
}

// Classify reports ProviderDelegated when the host or the full URL contains
// one of the provider markers. A URL without a host is always DirectHTTP.
func Classify(u *url.URL) Strategy {
	if u == nil || u.Hostname() == "" {
		return DirectHTTP
	}
	host := strings.ToLower(u.Hostname())
	full := strings.ToLower(u.String())
	for _, marker := range providerMarkers {
		if strings.Contains(host, marker) || strings.Contains(full, marker) {
			return ProviderDelegated
		}
	}
	return DirectHTTP
}
