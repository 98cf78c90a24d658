package video

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	ProviderYouTube = "youtube"
	ProviderEmbed   = "embed"
	ProviderFile    = "file"
)

var youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// YouTubeID extracts the video id from the common YouTube URL shapes, or
// returns "" when none is found.
func YouTubeID(raw string) string {
	if youtubeIDPattern.MatchString(raw) {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.TrimPrefix(u.Path, "/embed/")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		}
	}

	if !youtubeIDPattern.MatchString(id) {
		return ""
	}
	return id
}

// FrameOrigin returns the scheme://host origin that messages from an
// embedded player will carry.
func FrameOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
