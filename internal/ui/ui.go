package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/webradio/internal/config"
	"github.com/glebovdev/webradio/internal/player"
	"github.com/glebovdev/webradio/internal/service"
	"github.com/glebovdev/webradio/internal/station"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	VolumeStep            = 5
	HeaderHeight          = 3
	FooterHeightWide      = 3 // Wide: 1 row with padding (top + text + bottom)
	FooterHeightNarrow    = 6 // Narrow: 2 rows × 3 lines each
	PlayerPanelHeight     = 12
	SpectrumWidth         = 40
	FooterBreakpoint      = 130 // Width threshold for responsive footer
	MinLoadingDisplayTime = 1200 * time.Millisecond
	MinStatusDisplayTime  = 300 * time.Millisecond
	RefreshInterval       = 100 * time.Millisecond
	PlaylistRefresh       = 10 * time.Minute
)

type UI struct {
	app              *tview.Application
	stationService   *service.StationService
	player           *player.Controller
	currentStation   *station.Station
	stationList      *tview.Table
	helpPanel        *tview.Box
	contentLayout    *tview.Flex
	playerPanel      *tview.Flex
	currentTrackView *tview.TextView
	streamInfoView   *tview.TextView
	volumeView       *tview.Box
	mainLayout       *tview.Flex
	loadingScreen    *tview.Box
	loading          loadingState
	pages            *tview.Pages
	stopUpdates      chan struct{}
	playingIndex     int
	playingURL       string
	selectedURL      string
	volume           volumeControl
	config           *config.Config
	startRandom      bool
	lastFooterWidth  int // Track width to detect layout changes
	mu               sync.Mutex
	animationFrame   int
	playingSpinner   *PlayingSpinner
	statusRenderer   *StatusRenderer
	spectrumLevels   []float64
	awaitingResult   bool // a Play was issued and its failure has not been shown
	keymap           map[rune]func()
	colors           palette
}

// palette is the resolved theme.
type palette struct {
	background, foreground    tcell.Color
	borders, highlight        tcell.Color
	headerBackground          tcell.Color
	helpBackground            tcell.Color
	helpForeground            tcell.Color
	helpHotkey                tcell.Color
	spectrumLow, spectrumHigh tcell.Color
}

func newPalette(t config.Theme) palette {
	c := config.GetColor
	return palette{
		background:       c(t.Background),
		foreground:       c(t.Foreground),
		borders:          c(t.Borders),
		highlight:        c(t.Highlight),
		headerBackground: c(t.HeaderBackground),
		helpBackground:   c(t.HelpBackground),
		helpForeground:   c(t.HelpForeground),
		helpHotkey:       c(t.HelpHotkey),
		spectrumLow:      c(t.SpectrumLow),
		spectrumHigh:     c(t.SpectrumHigh),
	}
}

func NewUI(p *player.Controller, stationService *service.StationService, cfg *config.Config, startRandom bool) *UI {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	ui := &UI{
		app:            tview.NewApplication(),
		player:         p,
		stationService: stationService,
		stopUpdates:    make(chan struct{}),
		playingIndex:   -1,
		volume:         volumeControl{level: cfg.Volume},
		config:         cfg,
		startRandom:    startRandom,
	}

	ui.colors = newPalette(cfg.Theme)

	p.SetVolume(cfg.Volume)
	log.Debug().Msgf("Loaded volume from config: %d%%", cfg.Volume)

	ui.statusRenderer = NewStatusRenderer(p)
	ui.statusRenderer.SetPrimaryColor(ui.colors.highlight.String())

	return ui
}

func (ui *UI) SaveConfig() {
	ui.mu.Lock()
	ui.config.Volume = ui.volume.level
	if ui.currentStation != nil {
		ui.config.LastStation = ui.currentStation.URL
	}
	ui.mu.Unlock()

	if err := ui.config.Save(); err != nil {
		log.Error().Err(err).Msg("Failed to save config")
	}
}

func (ui *UI) safeCloseChannel() {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if ui.stopUpdates != nil {
		select {
		case <-ui.stopUpdates:
			// Already closed
		default:
			close(ui.stopUpdates)
		}
		ui.stopUpdates = nil
	}
}

func (ui *UI) stop() {
	ui.stationService.StopPeriodicRefresh()
	ui.player.Stop()
	ui.safeCloseChannel()
	ui.app.Stop()
}

// Shutdown stops the UI gracefully from external callers (e.g., signal handlers).
func (ui *UI) Shutdown() {
	ui.app.QueueUpdateDraw(func() {
		ui.stop()
	})
}

func (ui *UI) Run() error {
	ui.setupLoadingScreen()
	ui.app.SetRoot(ui.loadingScreen, true)
	ui.configureScreen()

	go ui.initAsync()

	return ui.app.Run()
}

func (ui *UI) configureScreen() {
	bgStyle := tcell.StyleDefault.Background(ui.colors.background)
	ui.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		screen.SetStyle(bgStyle)
		screen.Clear()
		return false
	})

	var titleSet sync.Once
	ui.app.SetAfterDrawFunc(func(screen tcell.Screen) {
		titleSet.Do(func() { screen.SetTitle(config.AppTitle) })
	})
}

func (ui *UI) initAsync() {
	if err := ui.loadStationsAndInitUI(); err != nil {
		ui.app.QueueUpdateDraw(func() {
			ui.handleInitialError(err)
		})
	}
}

// loadingState is what the loading screen shows. It is written from the
// loader goroutine and read by the draw func, both under ui.mu.
type loadingState struct {
	stage   string
	percent int
}

func (ui *UI) setLoading(stage string, percent int) {
	ui.mu.Lock()
	if stage != "" {
		ui.loading.stage = stage
	}
	ui.loading.percent = percent
	ui.mu.Unlock()
	ui.app.QueueUpdateDraw(func() {})
}

func (ui *UI) setupLoadingScreen() {
	ui.loading = loadingState{stage: "Loading playlist..."}
	ui.loadingScreen = tview.NewBox().SetBackgroundColor(ui.colors.background)

	ui.loadingScreen.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ui.mu.Lock()
		st := ui.loading
		ui.mu.Unlock()

		mid := y + height/2 - 1
		tview.Print(screen, st.stage, x, mid, width, tview.AlignCenter, ui.colors.foreground)
		tview.Print(screen, renderProgressBar(st.percent), x, mid+2, width, tview.AlignCenter, ui.colors.highlight)
		return x, y, width, height
	})
}

func renderProgressBar(percent int) string {
	const width = 30
	filled := min(max(percent, 0), 100) * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// animateProgress walks the bar from one percentage to another over
// duration so fast stages still register on screen.
func (ui *UI) animateProgress(from, to int, duration time.Duration) {
	if to <= from {
		return
	}
	step := duration / time.Duration(to-from)
	for p := from + 1; p <= to; p++ {
		time.Sleep(step)
		ui.setLoading("", p)
	}
}

func (ui *UI) loadStationsAndInitUI() error {
	const totalStages = 3
	stagePercent := func(stage int) int { return (stage * 100) / totalStages }

	startTime := time.Now()

	animDone := make(chan struct{})
	go func() {
		ui.animateProgress(stagePercent(0), stagePercent(1), MinStatusDisplayTime)
		close(animDone)
	}()

	_, err := ui.stationService.GetStations()
	if err != nil {
		return fmt.Errorf("failed to load playlist: %w", err)
	}
	log.Debug().Msgf("Loaded %d stations in %v", ui.stationService.StationCount(), time.Since(startTime))

	<-animDone

	ui.setLoading("Loading configuration...", stagePercent(1))

	ui.config.CleanupFavorites(ui.stationService.GetValidStationURLs())
	ui.SaveConfig()

	ui.animateProgress(stagePercent(1), stagePercent(2), MinStatusDisplayTime)

	ui.setLoading("Building interface...", stagePercent(2))

	ui.setupUI()
	ui.stationService.StartPeriodicRefresh(PlaylistRefresh, ui.onStationsRefreshed)

	ui.animateProgress(stagePercent(2), stagePercent(3), MinStatusDisplayTime)

	// Floor, not ceiling: wait only if real work finished early.
	if elapsed := time.Since(startTime); elapsed < MinLoadingDisplayTime {
		time.Sleep(MinLoadingDisplayTime - elapsed)
	}
	log.Debug().Msgf("Total loading time: %v", time.Since(startTime))

	ui.app.QueueUpdateDraw(func() {
		ui.app.SetRoot(ui.pages, true).EnableMouse(true)
		ui.app.SetFocus(ui.stationList)
		ui.startUpdates()

		if ui.startRandom {
			ui.randomStation()
			return
		}

		if ui.config.LastStation == "" {
			ui.selectAndShowStation(0)
			return
		}

		index := ui.stationService.FindIndexByURL(ui.config.LastStation)
		if index < 0 {
			log.Debug().Msgf("Last station '%s' not found, showing first station", ui.config.LastStation)
			ui.selectAndShowStation(0)
			return
		}

		if ui.config.Autostart {
			log.Debug().Msgf("Autostart enabled, playing last station: %s", ui.config.LastStation)
			ui.stationList.Select(index+1, 0)
			ui.onStationSelected(index)
		} else {
			ui.selectAndShowStation(index)
		}
	})

	return nil
}

func (ui *UI) setupUI() {
	header := ui.createHeader()

	ui.playerPanel = tview.NewFlex().SetDirection(tview.FlexRow)
	ui.playerPanel.SetBackgroundColor(ui.colors.background)

	ui.stationList = ui.createStationListTable()

	ui.helpPanel = ui.createFooter()

	ui.contentLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, HeaderHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.playerPanel, PlayerPanelHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.stationList, 0, 1, true).
		AddItem(ui.helpPanel, FooterHeightWide, 0, false)
	ui.contentLayout.SetBackgroundColor(ui.colors.background)

	wrapper := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 3, 0, false).
		AddItem(ui.contentLayout, 0, 1, true).
		AddItem(nil, 3, 0, false)
	wrapper.SetBackgroundColor(ui.colors.background)

	ui.mainLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 1, 0, false).
		AddItem(wrapper, 0, 1, true).
		AddItem(nil, 1, 0, false)
	ui.mainLayout.SetBackgroundColor(ui.colors.background)

	ui.pages = tview.NewPages().
		AddPage("main", ui.mainLayout, true, true)
	ui.pages.SetBackgroundColor(ui.colors.background)

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if ui.pages.HasPage(pageModal) || ui.pages.HasPage(pageError) {
			return event
		}
		return ui.globalInputHandler(event)
	})
}

func (ui *UI) createHeader() tview.Primitive {
	title := config.AppTitle
	if name := ui.stationService.PlaylistName(); name != "" {
		title += " · " + tview.Escape(name)
	}
	version := "v" + config.AppVersion

	box := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)
	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ui.fillRows(screen, x, y, width, height, ui.colors.headerBackground)
		row := y + height/2
		tview.Print(screen, title, x+2, row, width-4, tview.AlignLeft, ui.colors.foreground)
		tview.Print(screen, version, x+2, row, width-4, tview.AlignRight, ui.colors.foreground)
		return x, y, width, height
	})
	return box
}

func (ui *UI) onStationSelected(index int) {
	stationCount := ui.stationService.StationCount()
	if index < 0 || index >= stationCount {
		return
	}

	if index == ui.playingIndex && ui.player.State() != player.StateIdle {
		return
	}

	previousPlayingIndex := ui.playingIndex

	ui.playingIndex = index
	ui.currentStation = ui.stationService.GetStation(index)
	ui.playingURL = ui.currentStation.URL

	if previousPlayingIndex >= 0 && previousPlayingIndex < stationCount && previousPlayingIndex != index {
		ui.setStationRow(ui.stationList, previousPlayingIndex+1, previousPlayingIndex)
	}

	ui.SaveConfig()
	ui.showPlayerPanel()
	ui.play(ui.currentStation)
}

// play hands the station to the player. Failures surface asynchronously
// through the update loop.
func (ui *UI) play(s *station.Station) {
	log.Info().Msgf("Starting playback for station: %s", s.DisplayName())
	if err := ui.player.Play(*s); err != nil {
		log.Error().Err(err).Msg("Failed to play station")
		ui.showError(err)
		return
	}
	ui.awaitingResult = true
	ui.updateStationListPlayingIndicator()
}

func (ui *UI) togglePlayback() {
	if ui.player.State() != player.StateIdle {
		ui.player.Stop()
		ui.awaitingResult = false
		ui.refreshPlayingRow()
		return
	}

	idx := ui.selectedIndex()
	if idx < 0 {
		return
	}
	if idx == ui.playingIndex && ui.currentStation != nil {
		ui.play(ui.currentStation)
		return
	}
	ui.onStationSelected(idx)
}

func (ui *UI) showPlayerPanel() {
	ui.playerPanel.Clear()
	ui.playerPanel.AddItem(ui.createContentPanel(), 0, 1, false)
}

func (ui *UI) createLabel(text string) *tview.TextView {
	label := tview.NewTextView()
	label.SetText(" " + text)
	label.SetTextColor(ui.colors.foreground)
	label.SetBackgroundColor(ui.colors.background)
	label.SetWrap(false)
	return label
}

func (ui *UI) createValue(text string, wrap bool) *tview.TextView {
	view := tview.NewTextView()
	view.SetDynamicColors(true)
	view.SetText(fmt.Sprintf(" [%s]%s[-]", ui.colors.highlight.String(), tview.Escape(text)))
	view.SetTextColor(ui.colors.highlight)
	view.SetBackgroundColor(ui.colors.background)
	view.SetWrap(wrap)
	view.SetTextStyle(tcell.StyleDefault.Background(ui.colors.background).Attributes(tcell.AttrBold))
	return view
}

func (ui *UI) createContentPanel() *tview.Flex {
	stationNameView := ui.createValue(ui.currentStation.DisplayName(), false)

	ui.currentTrackView = ui.createValue(ui.player.CurrentTitle(), true)

	ui.streamInfoView = tview.NewTextView()
	ui.streamInfoView.SetTextColor(ui.colors.foreground)
	ui.streamInfoView.SetBackgroundColor(ui.colors.background)
	ui.streamInfoView.SetWrap(false)

	urlView := tview.NewTextView()
	urlView.SetText(" " + ui.currentStation.URL)
	urlView.SetTextColor(ui.colors.foreground)
	urlView.SetBackgroundColor(ui.colors.background)
	urlView.SetWrap(false)

	infoSpacer := tview.NewBox().SetBackgroundColor(ui.colors.background)

	infoContent := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.createLabel("Station:"), 1, 0, false).
		AddItem(stationNameView, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.createLabel("Playing:"), 1, 0, false).
		AddItem(ui.currentTrackView, 2, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.createLabel("Stream:"), 1, 0, false).
		AddItem(ui.streamInfoView, 1, 0, false).
		AddItem(urlView, 1, 0, false).
		AddItem(infoSpacer, 0, 1, false)
	infoContent.SetBackgroundColor(ui.colors.background)

	ui.volumeView = ui.createVolumeBar()

	contentFlex := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(infoContent, 0, 1, false)
	if ui.config.Visualizer.Enabled {
		contentFlex.AddItem(ui.createSpectrumPanel(), SpectrumWidth, 0, false).
			AddItem(nil, 2, 0, false)
	}
	contentFlex.AddItem(ui.volumeView, VolumeBarWidth, 0, false)
	contentFlex.SetBackgroundColor(ui.colors.background)

	contentWithPadding := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 4, 0, false).
		AddItem(contentFlex, 0, 1, false).
		AddItem(nil, 4, 0, false)
	contentWithPadding.SetBackgroundColor(ui.colors.background)

	ui.updateStreamInfo()
	return contentWithPadding
}

type PlayingSpinner struct {
	Frames []string
	FPS    time.Duration
}

func NewPlayingSpinner() *PlayingSpinner {
	return &PlayingSpinner{
		Frames: []string{"⣾ ", "⣽ ", "⣻ ", "⢿ ", "⡿ ", "⣟ ", "⣯ ", "⣷ "},
		FPS:    RefreshInterval,
	}
}

func (ui *UI) getPlayingIndicator() string {
	if ui.playingSpinner == nil {
		ui.playingSpinner = NewPlayingSpinner()
	}

	frameIndex := ui.animationFrame % len(ui.playingSpinner.Frames)
	return ui.playingSpinner.Frames[frameIndex]
}

// startUpdates runs the refresh loop for the lifetime of the UI. Each tick
// pulls the title, status and spectrum from the player and redraws.
func (ui *UI) startUpdates() {
	if ui.playingSpinner == nil {
		ui.playingSpinner = NewPlayingSpinner()
	}

	ui.mu.Lock()
	stop := ui.stopUpdates
	ui.mu.Unlock()
	if stop == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(ui.playingSpinner.FPS)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ui.mu.Lock()
				ui.animationFrame++
				ui.mu.Unlock()

				ui.statusRenderer.AdvanceAnimation()

				ui.app.QueueUpdateDraw(ui.tick)
			}
		}
	}()
}

func (ui *UI) tick() {
	ui.updateStationListPlayingIndicator()
	ui.updateTrackInfo()
	ui.updateStreamInfo()

	if ui.awaitingResult && ui.player.State() == player.StateIdle {
		ui.awaitingResult = false
		if msg := ui.player.LastError(); msg != "" {
			ui.refreshPlayingRow()
			ui.showPlaybackErrorModal(friendlyErrorMessage(msg))
		}
	}
}

func (ui *UI) updateTrackInfo() {
	if ui.currentTrackView == nil {
		return
	}

	title, changed := ui.player.Title()
	if !changed {
		return
	}
	ui.currentTrackView.SetText(fmt.Sprintf(" [%s]%s[-]",
		ui.colors.highlight.String(),
		tview.Escape(title)))
}

func (ui *UI) updateStreamInfo() {
	if ui.streamInfoView == nil {
		return
	}

	meta := ui.player.StreamMetadata()
	parts := []string{ui.player.State().String()}
	if meta.Name != "" {
		parts = append(parts, meta.Name)
	}
	if info := formatStreamInfo(meta); info != "" {
		parts = append(parts, info)
	}
	if meta.Channels == 1 {
		parts = append(parts, "mono")
	} else if meta.Channels == 2 {
		parts = append(parts, "stereo")
	}
	ui.streamInfoView.SetText(" " + strings.Join(parts, " · "))
}

func (ui *UI) onStationsRefreshed(stations []station.Station) {
	ui.app.QueueUpdateDraw(func() {
		ui.refreshStationTable()
	})
}

// runeKeys maps hotkeys to actions. Lookup is case-insensitive.
func (ui *UI) runeKeys() map[rune]func() {
	return map[rune]func(){
		'q': ui.stop,
		' ': ui.togglePlayback,
		'>': ui.nextStation,
		'<': ui.prevStation,
		'r': ui.randomStation,
		'f': ui.toggleFavorite,
		'+': func() { ui.adjustVolume(VolumeStep) },
		'=': func() { ui.adjustVolume(VolumeStep) },
		'-': func() { ui.adjustVolume(-VolumeStep) },
		'_': func() { ui.adjustVolume(-VolumeStep) },
		'm': ui.toggleMute,
		'?': ui.showHelpModal,
		'a': ui.showAboutModal,
	}
}

func (ui *UI) globalInputHandler(event *tcell.EventKey) *tcell.EventKey {
	var action func()

	switch event.Key() {
	case tcell.KeyRune:
		if ui.keymap == nil {
			ui.keymap = ui.runeKeys()
		}
		action = ui.keymap[unicode.ToLower(event.Rune())]
	case tcell.KeyEnter:
		action = func() {
			if idx := ui.selectedIndex(); idx >= 0 {
				ui.onStationSelected(idx)
			}
		}
	case tcell.KeyEscape:
		action = ui.stop
	case tcell.KeyRight:
		action = func() { ui.adjustVolume(VolumeStep) }
	case tcell.KeyLeft:
		action = func() { ui.adjustVolume(-VolumeStep) }
	}

	if action == nil {
		return event
	}
	action()
	return nil
}
