// Package playlist reads M3U and PLS station lists from disk or HTTP.
package playlist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/glebovdev/webradio/internal/station"
)

var ErrEmpty = errors.New("playlist: no entries found")

// Playlist is an ordered list of stations with an optional name.
type Playlist struct {
	Name     string
	Stations []station.Station
}

// URLs returns the stream URLs in playlist order.
func (p *Playlist) URLs() []string {
	urls := make([]string, 0, len(p.Stations))
	for _, s := range p.Stations {
		urls = append(urls, s.URL)
	}
	return urls
}

// Parse detects the format from the content and parses it.
func Parse(data []byte) (*Playlist, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(trimmed) >= 10 && strings.EqualFold(string(trimmed[:10]), "[playlist]") {
		return ParsePLS(bytes.NewReader(data))
	}
	return ParseM3U(bytes.NewReader(data))
}

var logoAttr = regexp.MustCompile(`tvg-logo="([^"]*)"`)

// ParseM3U reads an (extended) M3U playlist. #EXTINF titles apply to the next
// URL line; #PLAYLIST: names the list.
func ParseM3U(r io.Reader) (*Playlist, error) {
	p := &Playlist{}
	var title, logo string

	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			line = strings.TrimPrefix(line, "\xef\xbb\xbf")
			first = false
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			switch {
			case strings.HasPrefix(line, "#PLAYLIST:"):
				if p.Name == "" {
					p.Name = strings.TrimSpace(strings.TrimPrefix(line, "#PLAYLIST:"))
				}
			case strings.HasPrefix(line, "#EXTINF:"):
				info, name, found := strings.Cut(strings.TrimPrefix(line, "#EXTINF:"), ",")
				if found {
					title = strings.TrimSpace(name)
				}
				if m := logoAttr.FindStringSubmatch(info); m != nil {
					logo = m[1]
				}
			}
			continue
		}

		p.Stations = append(p.Stations, station.Station{Title: title, URL: line, Logo: logo})
		title, logo = "", ""
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading M3U playlist: %w", err)
	}

	if len(p.Stations) == 0 {
		return nil, ErrEmpty
	}
	return p, nil
}

// ParsePLS reads a PLS playlist, ordering entries by their FileN index.
func ParsePLS(r io.Reader) (*Playlist, error) {
	entries := make(map[int]*station.Station)

	entry := func(n int) *station.Station {
		if e, ok := entries[n]; ok {
			return e
		}
		e := &station.Station{}
		entries[n] = e
		return e
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch {
		case strings.HasPrefix(key, "file"):
			if n, err := strconv.Atoi(key[len("file"):]); err == nil && value != "" {
				entry(n).URL = value
			}
		case strings.HasPrefix(key, "title"):
			if n, err := strconv.Atoi(key[len("title"):]); err == nil {
				entry(n).Title = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading PLS file: %w", err)
	}

	indexes := make([]int, 0, len(entries))
	for n, e := range entries {
		if e.URL != "" {
			indexes = append(indexes, n)
		}
	}
	if len(indexes) == 0 {
		return nil, ErrEmpty
	}
	sort.Ints(indexes)

	p := &Playlist{Stations: make([]station.Station, 0, len(indexes))}
	for _, n := range indexes {
		p.Stations = append(p.Stations, *entries[n])
	}
	return p, nil
}

// WriteM3U writes p as an extended M3U playlist.
func WriteM3U(w io.Writer, p *Playlist) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#EXTM3U")
	if p.Name != "" {
		fmt.Fprintf(bw, "#PLAYLIST:%s\n", p.Name)
	}
	for _, s := range p.Stations {
		switch {
		case s.Logo != "":
			fmt.Fprintf(bw, "#EXTINF:-1 tvg-logo=\"%s\",%s\n", s.Logo, s.Title)
		case s.Title != "":
			fmt.Fprintf(bw, "#EXTINF:-1,%s\n", s.Title)
		}
		fmt.Fprintln(bw, s.URL)
	}
	return bw.Flush()
}
