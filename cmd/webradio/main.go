package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/glebovdev/webradio/internal/cache"
	"github.com/glebovdev/webradio/internal/config"
	"github.com/glebovdev/webradio/internal/output"
	"github.com/glebovdev/webradio/internal/player"
	"github.com/glebovdev/webradio/internal/playlist"
	"github.com/glebovdev/webradio/internal/service"
	"github.com/glebovdev/webradio/internal/station"
	"github.com/glebovdev/webradio/internal/ui"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	versionFlag  = flag.Bool("version", false, "Show version information")
	debugFlag    = flag.Bool("debug", false, "Enable debug logging")
	randomFlag   = flag.Bool("random", false, "Start with a random station")
	playlistFlag = flag.String("playlist", "", "Playlist file or URL (M3U or PLS)")
	headlessFlag = flag.Bool("headless", false, "Play without the terminal UI, logging to stderr")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s v%s - %s\n\n", config.AppName, config.AppVersion, config.AppDescription)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()

		configPath, err := config.GetConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Fprintf(os.Stderr, "\nConfig file: %s\n", configPath)
			} else {
				fmt.Fprintf(os.Stderr, "\nConfig file will be created on first use.\n")
			}
		}
	}
}

func setupLogging(debug, headless bool) {
	switch {
	case headless:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	case debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)

		cacheDir, err := cache.GetCacheDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not get cache dir: %v\n", err)
			cacheDir = os.TempDir()
		}
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create log dir: %v\n", err)
		}
		logPath := filepath.Join(cacheDir, "debug.log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create log file: %v\n", err)
			logFile = os.Stderr
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile, TimeFormat: "15:04:05"})
		fmt.Printf("Debug log: %s\n", logPath)
	default:
		// Avoid TUI corruption by only logging errors to /dev/null
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		logFile, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0644)
		if err == nil {
			log.Logger = log.Output(logFile)
		}
	}
}

// playlistSource picks the playlist: the flag, then the config, then the
// bundled default written under the config directory.
func playlistSource(cfg *config.Config) (string, error) {
	if *playlistFlag != "" {
		return *playlistFlag, nil
	}
	if cfg.Playlist != "" {
		return cfg.Playlist, nil
	}

	path, err := config.DefaultPlaylistPath()
	if err != nil {
		return "", err
	}
	if err := service.EnsureDefaultPlaylist(path); err != nil {
		return "", err
	}
	return path, nil
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", config.AppName, config.AppVersion)
		fmt.Println(config.AppDescription)
		os.Exit(0)
	}

	setupLogging(*debugFlag, *headlessFlag)
	log.Info().Msgf("Starting %s v%s", config.AppName, config.AppVersion)

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
	}

	source, err := playlistSource(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if configPath, err := config.GetConfigPath(); err == nil {
		log.Debug().Msgf("Config: %s", configPath)
	}
	log.Debug().Msgf("Playlist: %s", source)

	playlistClient := playlist.NewClient(config.UserAgent())
	stationService := service.NewStationService(playlistClient, source)

	transport := player.NewHTTPTransport(config.UserAgent(), cfg.Buffer.ChunkSize)
	sink := output.NewSpeakerSink(cfg.Volume)
	radio := player.NewController(transport, sink, playlistClient, player.OptionsFromConfig(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := radio.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if *headlessFlag {
		err = runHeadless(radio, stationService, cfg, sigChan)
	} else {
		err = runUI(radio, stationService, cfg, sigChan)
	}

	// Ensure player is fully stopped before exiting
	radio.Shutdown()
	if err != nil {
		log.Error().Err(err).Msg("Exiting with error")
		if *headlessFlag {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
	log.Info().Msgf("%s stopped", config.AppName)
}

func runUI(radio *player.Controller, stationService *service.StationService, cfg *config.Config, sigChan <-chan os.Signal) error {
	radioUI := ui.NewUI(radio, stationService, cfg, *randomFlag)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, cleaning up...")
		radioUI.Shutdown()
	}()

	// Run UI in a goroutine so we can handle signals properly
	uiDone := make(chan error, 1)
	go func() {
		uiDone <- radioUI.Run()
	}()

	return <-uiDone
}

// runHeadless plays one station and logs titles until interrupted or the
// session ends.
func runHeadless(radio *player.Controller, stationService *service.StationService, cfg *config.Config, sigChan <-chan os.Signal) error {
	stations, err := stationService.GetStations()
	if err != nil {
		return fmt.Errorf("failed to load playlist: %w", err)
	}
	if len(stations) == 0 {
		return fmt.Errorf("playlist has no stations")
	}

	index := 0
	switch {
	case *randomFlag:
		index = rand.IntN(len(stations))
	case cfg.LastStation != "":
		if i := station.FindIndexByURL(stations, cfg.LastStation); i >= 0 {
			index = i
		}
	}
	st := stations[index]

	if err := radio.Play(st); err != nil {
		return err
	}
	log.Info().Str("url", st.URL).Msgf("Tuning in to %s", st.DisplayName())

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastState := radio.State()
	for {
		select {
		case <-sigChan:
			log.Info().Msg("Received shutdown signal, cleaning up...")
			return nil
		case <-ticker.C:
			if title, changed := radio.Title(); changed && title != "" {
				log.Info().Msgf("♪ %s", title)
			}

			state := radio.State()
			if state != lastState {
				meta := radio.StreamMetadata()
				log.Info().Str("codec", meta.Codec.String()).Int("bitrate", meta.Bitrate).Msgf("State: %s", state)
				lastState = state
			}
			if state == player.StateIdle {
				if msg := radio.LastError(); msg != "" {
					return fmt.Errorf("playback ended: %s", msg)
				}
				return nil
			}
		}
	}
}
