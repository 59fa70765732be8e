// Package deeplink extracts video identifiers from YouTube URLs and builds
// timestamped watch links.
package deeplink

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// WatchBase is the prefix of every canonical link.
const WatchBase = "https://youtube.com/watch?v="

// ErrNoVideoID reports a URL from which no video identifier could be extracted.
var ErrNoVideoID = errors.New("no video id in url")

var (
	idPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	pathPrefixes = []string{"/embed/", "/v/", "/shorts/", "/live/"}
)

func isYouTubeHost(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube.co.uk", "youtube-nocookie.com":
		return true
	}
	return false
}

// VideoID returns the video identifier embedded in raw. Recognised forms are
// watch?v=ID, youtu.be/ID, /embed/ID, /v/ID, /shorts/ID and /live/ID, with or
// without scheme and www prefix.
func VideoID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())

	var id string
	switch {
	case host == "youtu.be" || host == "www.youtu.be":
		id = firstPathElement(u.Path)
	case isYouTubeHost(host):
		if strings.TrimSuffix(u.Path, "/") == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range pathPrefixes {
			if strings.HasPrefix(u.Path, prefix) {
				id = firstPathElement(strings.TrimPrefix(u.Path, prefix))
				break
			}
		}
	default:
		return "", false
	}
	if id == "" || !idPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

func firstPathElement(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

// Canonical reduces any recognised YouTube URL to its bare watch form,
// dropping timestamps and other query parameters.
func Canonical(raw string) (string, error) {
	id, ok := VideoID(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoVideoID, raw)
	}
	return WatchBase + id, nil
}

// Build returns the canonical watch URL for raw with playback starting at
// seconds. Seconds are truncated toward zero and negative values clamp to 0.
// Build always starts from the canonical form, so rebuilding an already
// linked URL replaces its timestamp.
func Build(raw string, seconds float64) (string, error) {
	canonical, err := Canonical(raw)
	if err != nil {
		return "", err
	}
	return WithTimestamp(canonical, seconds), nil
}

// WithTimestamp appends a t parameter to a URL already in canonical form.
func WithTimestamp(canonical string, seconds float64) string {
	return canonical + "&t=" + strconv.FormatInt(truncate(seconds), 10) + "s"
}

func truncate(seconds float64) int64 {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	if seconds >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Trunc(seconds))
}
