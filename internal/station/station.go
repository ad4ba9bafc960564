// Package station defines the radio station entries the player works with.
package station

import (
	"net/url"
	"path"
	"strings"
)

// Station is one playlist entry: a stream URL and the title shown for it.
type Station struct {
	Title string
	URL   string
	Logo  string // optional tvg-logo attribute from #EXTINF
}

// DisplayName returns the title, falling back to the URL host and path.
func (s *Station) DisplayName() string {
	if s.Title != "" {
		return s.Title
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Host == "" {
		return s.URL
	}
	return strings.TrimSuffix(u.Host+u.Path, "/")
}

// IsPlaylist reports whether URL points at a playlist (PLS or M3U) that must
// be resolved to stream URLs before playback.
func (s *Station) IsPlaylist() bool {
	u, err := url.Parse(s.URL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".pls", ".m3u", ".m3u8":
		return true
	}
	return false
}

// FindIndexByURL returns the index of the station with the given URL, or -1.
func FindIndexByURL(stations []Station, streamURL string) int {
	for i := range stations {
		if stations[i].URL == streamURL {
			return i
		}
	}
	return -1
}
