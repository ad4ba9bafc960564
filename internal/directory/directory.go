// Package directory reads JSON channel directories, the format SomaFM
// publishes at api.somafm.com/channels.json.
package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/glebovdev/webradio/internal/playlist"
	"github.com/glebovdev/webradio/internal/station"
)

// SomaFMURL is the directory the "somafm" playlist alias points at.
const SomaFMURL = "https://api.somafm.com/channels.json"

// Stream is one endpoint of a channel. URL usually points at a PLS playlist.
type Stream struct {
	URL     string `json:"url"`
	Format  string `json:"format"`  // e.g. "mp3", "aac", "aacp"
	Quality string `json:"quality"` // e.g. "highest", "high", "low"
}

type Channel struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Genre      string   `json:"genre"` // Pipe-separated genre list
	Image      string   `json:"image"`
	LargeImage string   `json:"largeimage"`
	Playlists  []Stream `json:"playlists"`
}

type response struct {
	Channels []Channel `json:"channels"`
}

// Resolve expands the "somafm" alias; any other source is returned as is.
func Resolve(source string) string {
	if strings.EqualFold(source, "somafm") {
		return SomaFMURL
	}
	return source
}

// IsDirectory reports whether data looks like a JSON directory rather than
// an M3U or PLS playlist.
func IsDirectory(data []byte) bool {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Parse converts a directory into a playlist with one station per channel,
// using the most playable stream of each. Channels without streams are skipped.
func Parse(data []byte, name string) (*playlist.Playlist, error) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse directory: %w", err)
	}

	p := &playlist.Playlist{Name: name}
	for _, ch := range resp.Channels {
		urls := ch.StreamURLs()
		if len(urls) == 0 {
			continue
		}
		p.Stations = append(p.Stations, station.Station{
			Title: ch.Title,
			URL:   urls[0],
			Logo:  ch.LargeImage,
		})
	}

	if len(p.Stations) == 0 {
		return nil, playlist.ErrEmpty
	}
	return p, nil
}

// StreamURLs returns the channel's stream URLs by preference: MP3 at the
// highest quality, then other MP3, then AAC, then anything else.
func (c *Channel) StreamURLs() []string {
	var mp3Highest, mp3Other, aac, other []string

	for _, s := range c.Playlists {
		switch strings.ToLower(s.Format) {
		case "mp3":
			if s.Quality == "highest" {
				mp3Highest = append(mp3Highest, s.URL)
			} else {
				mp3Other = append(mp3Other, s.URL)
			}
		case "aac", "aacp":
			aac = append(aac, s.URL)
		default:
			other = append(other, s.URL)
		}
	}

	result := make([]string, 0, len(c.Playlists))
	result = append(result, mp3Highest...)
	result = append(result, mp3Other...)
	result = append(result, aac...)
	result = append(result, other...)

	return result
}
