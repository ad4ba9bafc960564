package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/webradio/internal/config"
	"github.com/rivo/tview"
)

const (
	pageModal = "modal"
	pageError = "error-modal"
)

var errorMessages = []struct {
	match   []string
	message string
}{
	{[]string{"no such host"}, "Unable to connect to server.\nPlease check your internet connection."},
	{[]string{"connection refused"}, "Connection refused by server.\nThe station may be temporarily unavailable."},
	{[]string{"timeout", "deadline exceeded"}, "Connection timed out.\nPlease check your internet connection."},
	{[]string{"network is unreachable", "network read error"}, "Network is unreachable.\nPlease check your internet connection."},
	{[]string{"status 401"}, "Stream access denied (401)."},
	{[]string{"status 403"}, "Stream access forbidden (403)."},
	{[]string{"status 404"}, "Stream not found (404)."},
	{[]string{"status 410"}, "Stream is gone (410)."},
	{[]string{"unsupported codec"}, "Unsupported stream format.\nOnly MP3 and AAC streams can be played."},
	{[]string{"lost sync"}, "Lost sync with the audio stream.\nThe station may not be sending valid audio."},
	{[]string{"failed to open audio output"}, "Unable to open the audio device."},
	{[]string{"failed to resolve playlist"}, "Unable to load the station playlist."},
}

func friendlyErrorMessage(errStr string) string {
	for _, m := range errorMessages {
		for _, s := range m.match {
			if strings.Contains(errStr, s) {
				return m.message
			}
		}
	}

	if idx := strings.Index(errStr, ": dial"); idx > 0 {
		return errStr[:idx]
	}
	if len(errStr) > 100 {
		return errStr[:100] + "..."
	}
	return errStr
}

// modal describes a centered dialog. onKey returns true when it consumed
// the key; without it any key closes the dialog.
type modal struct {
	page   string
	title  string
	body   string
	hint   string
	align  int
	width  int
	height int
	accent tcell.Color
	onKey  func(event *tcell.EventKey) bool
}

func (ui *UI) closeModal(page string) {
	ui.pages.RemovePage(page)
	ui.app.SetFocus(ui.stationList)
}

func (ui *UI) showModal(m modal) {
	bg := ui.colors.helpBackground

	body := tview.NewTextView().
		SetTextAlign(m.align).
		SetDynamicColors(true).
		SetWordWrap(true).
		SetText("\n" + m.body)
	body.SetTextColor(ui.colors.foreground)
	body.SetBackgroundColor(bg)

	hint := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[::d]" + m.hint + "[::-]")
	hint.SetTextColor(tcell.ColorDarkGray)
	hint.SetBackgroundColor(bg)

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, false).
		AddItem(hint, 1, 0, false).
		AddItem(nil, 1, 0, false)
	content.SetBackgroundColor(bg)

	frame := tview.NewFrame(content).SetBorders(0, 0, 1, 1, 2, 2)
	frame.SetBorder(true).
		SetBorderColor(m.accent).
		SetBackgroundColor(bg).
		SetTitle(" " + m.title + " ").
		SetTitleColor(ui.colors.highlight).
		SetTitleAlign(tview.AlignCenter)

	layout := centered(frame, m.width, m.height)
	layout.SetBackgroundColor(ui.colors.background)
	layout.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if m.onKey != nil {
			if m.onKey(event) {
				return nil
			}
			return event
		}
		ui.closeModal(m.page)
		return nil
	})

	ui.pages.AddPage(m.page, layout, true, true)
	ui.app.SetFocus(layout)
}

func centered(p tview.Primitive, width, height int) *tview.Flex {
	column := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(p, height, 0, true).
		AddItem(nil, 0, 1, false)
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(column, width, 0, true).
		AddItem(nil, 0, 1, false)
}

func (ui *UI) showError(err error) {
	ui.showPlaybackErrorModal(friendlyErrorMessage(err.Error()))
}

func (ui *UI) showPlaybackErrorModal(message string) {
	lines := strings.Count(message, "\n") + 1

	ui.showModal(modal{
		page:   pageError,
		title:  "Error",
		body:   "[::b]Playback Error[::-]\n\n" + message,
		hint:   "Press [::b]R[::d] to retry  •  Press [::b]Esc[::d] to dismiss",
		align:  tview.AlignCenter,
		width:  50,
		height: min(9+lines, 15),
		accent: ui.colors.highlight,
		onKey: func(event *tcell.EventKey) bool {
			switch {
			case event.Key() == tcell.KeyEscape, event.Key() == tcell.KeyEnter:
				ui.closeModal(pageError)
			case event.Key() == tcell.KeyRune && (event.Rune() == 'r' || event.Rune() == 'R'):
				ui.closeModal(pageError)
				if ui.currentStation != nil {
					ui.play(ui.currentStation)
				}
			default:
				return false
			}
			return true
		},
	})
}

type keyHelp struct {
	keys string
	desc string
}

var helpSections = []struct {
	name string
	keys []keyHelp
}{
	{"PLAYBACK", []keyHelp{
		{"Enter", "Play selected station"},
		{"Space", "Stop / Play"},
		{"<", "Previous station"},
		{">", "Next station"},
		{"r", "Random station"},
	}},
	{"VOLUME", []keyHelp{
		{"+ / -", "Volume up / down"},
		{"← / →", "Volume down / up"},
		{"m", "Mute / Unmute"},
	}},
	{"STATIONS", []keyHelp{
		{"↑ / ↓", "Navigate list"},
		{"f", "Toggle favorite"},
	}},
	{"APPLICATION", []keyHelp{
		{"?", "Show this help"},
		{"a", "About " + config.AppName},
		{"q / Esc", "Quit"},
	}},
}

// helpText renders the key table; keyColor is a tview color tag.
func helpText(keyColor string) string {
	var b strings.Builder
	b.WriteString("[::b]KEYBOARD SHORTCUTS[::-]\n")
	for _, section := range helpSections {
		fmt.Fprintf(&b, "\n[%s]%s[-]\n", keyColor, section.name)
		for _, k := range section.keys {
			pad := strings.Repeat(" ", max(11-len([]rune(k.keys)), 1))
			fmt.Fprintf(&b, "  [%s]%s[-]%s%s\n", keyColor, tview.Escape(k.keys), pad, k.desc)
		}
	}
	return b.String()
}

func (ui *UI) showHelpModal() {
	keyColor := ui.colors.helpHotkey.String()
	text := helpText(keyColor)
	if configPath, err := config.GetConfigPath(); err == nil {
		text += fmt.Sprintf("\n[%s]CONFIG[-]: %s", keyColor, configPath)
	}
	ui.showInfoModal("Help", text)
}

func (ui *UI) showAboutModal() {
	const linkColor, dimColor = "skyblue", "gray"

	playlistName := ui.stationService.PlaylistName()
	if playlistName == "" {
		playlistName = "untitled"
	}

	text := fmt.Sprintf(`[::b]%s[::-]
[%s]%s[-]

Version:  %s
Project:  [%s:::%s]%s[-:::-]
License:  MIT

[%s]%s[-]

Playlist: %s (%d stations)`,
		config.AppTitle,
		dimColor, config.AppTagline,
		config.AppVersion,
		linkColor, config.AppProjectURL, config.AppProjectShort,
		dimColor, config.AppDescription,
		tview.Escape(playlistName), ui.stationService.StationCount())

	ui.showModal(modal{
		page:   pageModal,
		title:  "About",
		body:   text,
		hint:   "Press any key to close",
		align:  tview.AlignLeft,
		width:  56,
		height: 18,
		accent: ui.colors.borders,
	})
}

func (ui *UI) showInfoModal(title, message string) {
	lines := strings.Count(message, "\n") + 1

	ui.showModal(modal{
		page:   pageModal,
		title:  title,
		body:   message,
		hint:   "Press any key to close",
		align:  tview.AlignLeft,
		width:  45,
		height: min(lines+6, 38),
		accent: ui.colors.borders,
	})
}

// showInitialErrorScreen replaces the whole screen when the playlist could
// not be loaded at startup.
func (ui *UI) showInitialErrorScreen(title, message string, onRetry, onQuit func()) {
	text := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText(fmt.Sprintf("[::b]%s[::-]\n\n%s", title, message))
	text.SetTextColor(ui.colors.foreground)
	text.SetBackgroundColor(ui.colors.helpBackground)

	frame := tview.NewFrame(text).SetBorders(2, 2, 2, 2, 2, 2)
	frame.SetBorder(true).
		SetBorderColor(ui.colors.highlight).
		SetBackgroundColor(ui.colors.helpBackground).
		SetTitle(" Playlist Error ").
		SetTitleColor(ui.colors.highlight)

	hint := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[::d]Press [::b]R[::d] to retry  •  Press [::b]Q[::d] to quit[::-]")
	hint.SetTextColor(ui.colors.foreground)
	hint.SetBackgroundColor(ui.colors.background)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(centered(frame, 60, 10), 0, 1, true).
		AddItem(hint, 2, 0, false)
	layout.SetBackgroundColor(ui.colors.background)

	layout.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyRune && (event.Rune() == 'r' || event.Rune() == 'R'):
			onRetry()
		case event.Key() == tcell.KeyEscape,
			event.Key() == tcell.KeyRune && (event.Rune() == 'q' || event.Rune() == 'Q'):
			onQuit()
		default:
			return event
		}
		return nil
	})

	ui.app.SetRoot(layout, true)
	ui.app.SetFocus(layout)
}

func (ui *UI) handleInitialError(err error) {
	ui.showInitialErrorScreen(
		"Unable to Load Playlist",
		friendlyErrorMessage(err.Error()),
		func() {
			ui.app.SetRoot(ui.loadingScreen, true)
			go ui.initAsync()
		},
		ui.app.Stop,
	)
}
