package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gdamore/tcell/v2"
	"gopkg.in/yaml.v3"
)

const (
	AppName         = "webradio"
	AppTitle        = "Web Radio"
	AppTagline      = "Terminal internet radio player"
	AppDescription  = "A terminal internet radio player with a live spectrum"
	AppProjectURL   = "https://github.com/glebovdev/webradio"
	AppProjectShort = "github.com/glebovdev/webradio"

	ConfigDir           = ".config/webradio"
	ConfigFileName      = "config.yml"
	PlaylistFileName    = "playlist.m3u"
	DefaultVolume       = 70
	MinVolume           = 0
	MaxVolume           = 100
	DefaultRingSize     = 1 << 20
	MinRingSize         = 64 << 10
	MaxRingSize         = 16 << 20
	DefaultChunkSize    = 4096
	MinChunkSize        = 512
	MaxChunkSize        = 4096
	DefaultBars         = 32
	MinBars             = 4
	MaxBars             = 128
	DefaultWindowSize   = 2048
	MinWindowSize       = 256
	MaxWindowSize       = 8192
	DefaultOutputFrames = 8192
)

// ClampVolume ensures volume is within the valid range [0, 100].
func ClampVolume(volume int) int {
	return clamp(volume, MinVolume, MaxVolume)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AppVersion can be overridden at build time using ldflags:
// go build -ldflags "-X github.com/glebovdev/webradio/internal/config.AppVersion=1.0.0"
var AppVersion = "dev"

// UserAgent is sent with every stream and playlist request.
func UserAgent() string {
	return fmt.Sprintf("WebRadio/%s", AppVersion)
}

type Theme struct {
	Background       string `yaml:"background"`
	Foreground       string `yaml:"foreground"`
	Borders          string `yaml:"borders"`
	Highlight        string `yaml:"highlight"`
	MutedVolume      string `yaml:"muted_volume"`
	HeaderBackground string `yaml:"header_background"`
	HelpBackground   string `yaml:"help_background"`
	HelpForeground   string `yaml:"help_foreground"`
	HelpHotkey       string `yaml:"help_hotkey"`
	SpectrumLow      string `yaml:"spectrum_low"`
	SpectrumHigh     string `yaml:"spectrum_high"`
}

type Buffer struct {
	RingSize     int `yaml:"ring_size"`
	ChunkSize    int `yaml:"chunk_size"`
	OutputFrames int `yaml:"output_frames"`
}

type Visualizer struct {
	Enabled    bool `yaml:"enabled"`
	Bars       int  `yaml:"bars"`
	WindowSize int  `yaml:"window_size"`
}

type Config struct {
	Volume      int        `yaml:"volume"`
	LastStation string     `yaml:"last_station"`
	Autostart   bool       `yaml:"autostart"`
	Playlist    string     `yaml:"playlist"`
	Favorites   []string   `yaml:"favorites"`
	Buffer      Buffer     `yaml:"buffer"`
	Visualizer  Visualizer `yaml:"visualizer"`
	Theme       Theme      `yaml:"theme"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(home, ConfigDir, ConfigFileName)
	return configPath, nil
}

// DefaultPlaylistPath is where the bundled playlist is written on first start.
func DefaultPlaylistPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ConfigDir, PlaylistFileName), nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.normalize()

	return cfg, nil
}

func (c *Config) normalize() {
	c.Volume = ClampVolume(c.Volume)
	c.Buffer.RingSize = clamp(c.Buffer.RingSize, MinRingSize, MaxRingSize)
	c.Buffer.ChunkSize = clamp(c.Buffer.ChunkSize, MinChunkSize, MaxChunkSize)
	if c.Buffer.OutputFrames <= 0 {
		c.Buffer.OutputFrames = DefaultOutputFrames
	}
	c.Visualizer.Bars = clamp(c.Visualizer.Bars, MinBars, MaxBars)

	// The FFT window must be a power of two.
	size := clamp(c.Visualizer.WindowSize, MinWindowSize, MaxWindowSize)
	pow := MinWindowSize
	for pow*2 <= size {
		pow *= 2
	}
	c.Visualizer.WindowSize = pow
}

// Save writes the configuration to disk atomically using temp file + rename.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpFile, err := os.CreateTemp(configDir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	tmpPath = ""
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Volume:    DefaultVolume,
		Favorites: []string{},
		Buffer: Buffer{
			RingSize:     DefaultRingSize,
			ChunkSize:    DefaultChunkSize,
			OutputFrames: DefaultOutputFrames,
		},
		Visualizer: Visualizer{
			Enabled:    true,
			Bars:       DefaultBars,
			WindowSize: DefaultWindowSize,
		},
		Theme: Theme{
			Background:       "#1a1b25",
			Foreground:       "#a3aacb",
			Borders:          "#40445b",
			Highlight:        "#ff9d65",
			MutedVolume:      "#fe0702",
			HeaderBackground: "#473533",
			HelpBackground:   "#322f45",
			HelpForeground:   "#9aa3c6",
			HelpHotkey:       "#ff9d65",
			SpectrumLow:      "#5fd7af",
			SpectrumHigh:     "#ff5f87",
		},
	}
}

// IsFavorite reports whether the station with the given stream URL is starred.
func (c *Config) IsFavorite(stationURL string) bool {
	for _, u := range c.Favorites {
		if u == stationURL {
			return true
		}
	}
	return false
}

func (c *Config) ToggleFavorite(stationURL string) {
	for i, u := range c.Favorites {
		if u == stationURL {
			c.Favorites = append(c.Favorites[:i], c.Favorites[i+1:]...)
			return
		}
	}
	c.Favorites = append(c.Favorites, stationURL)
}

// CleanupFavorites drops favorites that are no longer in the playlist.
func (c *Config) CleanupFavorites(valid map[string]bool) {
	cleaned := []string{}
	for _, u := range c.Favorites {
		if valid[u] {
			cleaned = append(cleaned, u)
		}
	}
	c.Favorites = cleaned
}

func GetColor(colorStr string) tcell.Color {
	if colorStr == "" || colorStr == "default" {
		return tcell.ColorDefault
	}
	return tcell.GetColor(colorStr)
}
