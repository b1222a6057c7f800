package acquire

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		raw  string
		want Strategy
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", ProviderDelegated},
		{"https://youtu.be/dQw4w9WgXcQ", ProviderDelegated},
		{"https://www.youtube.com/shorts/abcdefghijk", ProviderDelegated},
		{"https://m.youtube.com/watch?v=abc", ProviderDelegated},
		{"HTTPS://WWW.YOUTUBE.COM/WATCH?V=ABC", ProviderDelegated},
		{"https://example.com/redirect?to=youtube.com/watch?v=abc", ProviderDelegated},
		{"https://example.com/video.mp4", DirectHTTP},
		{"https://cdn.example.org/media/clip.webm", DirectHTTP},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			u, err := url.Parse(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, Classify(u))
		})
	}
}

func TestClassifyWithoutHost(t *testing.T) {
	u, err := url.Parse("file:///youtube.com/watch")
	require.NoError(t, err)
	assert.Equal(t, DirectHTTP, Classify(u))
	assert.Equal(t, DirectHTTP, Classify(nil))
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource("  https://youtu.be/abc ")
	require.NoError(t, err)
	require.Equal(t, ProviderDelegated, src.Strategy)
	require.Equal(t, "youtu.be", src.URL.Host)

	src, err = ParseSource("http://example.com/a.mp4")
	require.NoError(t, err)
	require.Equal(t, DirectHTTP, src.Strategy)
	require.Equal(t, "direct", src.Strategy.String())
}

func TestParseSourceRejects(t *testing.T) {
	for _, raw := range []string{
		"ftp://example.com/video.mp4",
		"file:///etc/passwd",
		"javascript:alert(1)",
		"example.com/video.mp4",
		"http://",
		"http://[::1",
		"",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseSource(raw)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
