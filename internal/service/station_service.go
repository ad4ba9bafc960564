// Package service provides the business logic layer for managing station data.
package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glebovdev/webradio/internal/cache"
	"github.com/glebovdev/webradio/internal/directory"
	"github.com/glebovdev/webradio/internal/playlist"
	"github.com/glebovdev/webradio/internal/station"
	"github.com/rs/zerolog/log"
)

const loadTimeout = 30 * time.Second

// StationService manages the station list: loading the playlist from disk or
// the network, caching remote playlists, and periodic refresh.
type StationService struct {
	client        *playlist.Client
	source        string
	name          string
	stations      []station.Station
	mu            sync.RWMutex
	playlistCache *cache.Cache
	refreshTicker *time.Ticker
	stopRefresh   chan struct{}
	onRefresh     func([]station.Station)
}

// NewStationService creates a StationService reading from source, which is
// either a local file path or an http(s) URL. The source may be an M3U or PLS
// playlist, a JSON channel directory, or the "somafm" alias for one.
func NewStationService(client *playlist.Client, source string) *StationService {
	playlistCache, err := cache.NewCache()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize playlist cache, playlists will not be cached")
	}

	if playlistCache != nil {
		go func() {
			if err := playlistCache.CleanExpired(); err != nil {
				log.Debug().Err(err).Msg("Failed to clean expired cache")
			}
		}()
	}

	return &StationService{
		client:        client,
		source:        directory.Resolve(source),
		playlistCache: playlistCache,
	}
}

// EnsureDefaultPlaylist writes the bundled playlist to path if no file exists there.
func EnsureDefaultPlaylist(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create playlist directory: %w", err)
	}

	var buf bytes.Buffer
	if err := playlist.WriteM3U(&buf, playlist.Default()); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write default playlist: %w", err)
	}

	log.Info().Str("path", path).Msg("Wrote default playlist")
	return nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (s *StationService) parse(data []byte) (*playlist.Playlist, error) {
	if !directory.IsDirectory(data) {
		return playlist.Parse(data)
	}
	name := ""
	if s.source == directory.SomaFMURL {
		name = "SomaFM"
	}
	return directory.Parse(data, name)
}

func (s *StationService) fetch(ctx context.Context, useCache bool) (*playlist.Playlist, error) {
	if !isRemote(s.source) {
		data, err := os.ReadFile(s.source)
		if err != nil {
			return nil, fmt.Errorf("failed to read playlist: %w", err)
		}
		return s.parse(data)
	}

	if useCache && s.playlistCache != nil {
		if data, ok := s.playlistCache.GetPlaylist(s.source); ok {
			if p, err := s.parse(data); err == nil {
				log.Debug().Str("url", s.source).Msg("Playlist loaded from cache")
				return p, nil
			}
		}
	}

	data, err := s.client.Fetch(ctx, s.source)
	if err != nil {
		return nil, err
	}

	p, err := s.parse(data)
	if err != nil {
		return nil, err
	}

	if s.playlistCache != nil {
		if err := s.playlistCache.SavePlaylist(s.source, data); err != nil {
			log.Debug().Err(err).Str("url", s.source).Msg("Failed to cache playlist")
		}
	}

	return p, nil
}

// GetStations loads the playlist and replaces the station list.
func (s *StationService) GetStations() ([]station.Station, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	p, err := s.fetch(ctx, true)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.stations = p.Stations
	s.name = p.Name
	s.mu.Unlock()

	log.Debug().Str("source", s.source).Int("count", len(p.Stations)).Msg("Playlist loaded")
	return s.GetCachedStations(), nil
}

// PlaylistName returns the #PLAYLIST name, if the file declared one.
func (s *StationService) PlaylistName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *StationService) GetCachedStations() []station.Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]station.Station, len(s.stations))
	copy(result, s.stations)
	return result
}

func (s *StationService) GetValidStationURLs() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	valid := make(map[string]bool)
	for _, st := range s.stations {
		valid[st.URL] = true
	}
	return valid
}

func (s *StationService) FindIndexByURL(url string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return station.FindIndexByURL(s.stations, url)
}

func (s *StationService) StationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stations)
}

// GetStation returns a copy of the station at the given index.
// Returns nil if the index is out of bounds.
func (s *StationService) GetStation(index int) *station.Station {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.stations) {
		return nil
	}
	st := s.stations[index]
	return &st
}

func (s *StationService) StartPeriodicRefresh(interval time.Duration, callback func([]station.Station)) {
	s.StopPeriodicRefresh()

	s.mu.Lock()
	s.onRefresh = callback
	s.stopRefresh = make(chan struct{})
	s.refreshTicker = time.NewTicker(interval)
	ticker := s.refreshTicker
	stopCh := s.stopRefresh
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				s.refreshStationsInBackground()
			case <-stopCh:
				ticker.Stop()
				return
			}
		}
	}()

	log.Debug().Dur("interval", interval).Msg("Started periodic playlist refresh")
}

func (s *StationService) StopPeriodicRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopRefresh != nil {
		close(s.stopRefresh)
		s.stopRefresh = nil
	}
}

func (s *StationService) refreshStationsInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	p, err := s.fetch(ctx, false)
	if err != nil {
		log.Warn().Err(err).Msg("Background refresh failed, keeping cached data")
		return
	}

	s.mu.Lock()
	s.stations = p.Stations
	s.name = p.Name
	callback := s.onRefresh
	s.mu.Unlock()

	if callback != nil {
		callback(s.GetCachedStations())
	}

	log.Debug().Int("count", len(p.Stations)).Msg("Playlist refreshed in background")
}
