package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/webradio/internal/player"
	"github.com/rivo/tview"
)

type StatusRenderer struct {
	player        *player.Controller
	isMuted       bool
	animFrame     int
	maxAnimFrame  int
	tickCount     int
	ticksPerFrame int

	bufferHealth         int
	bufferTickCount      int
	bufferTicksPerUpdate int

	primaryColor string
}

func NewStatusRenderer(p *player.Controller) *StatusRenderer {
	return &StatusRenderer{
		player:               p,
		maxAnimFrame:         4,
		ticksPerFrame:        5,  // ~2 frames per second at the 100ms refresh
		bufferTicksPerUpdate: 10, // buffer gauge once per second
	}
}

func (s *StatusRenderer) SetMuted(muted bool) {
	s.isMuted = muted
}

func (s *StatusRenderer) SetPrimaryColor(color string) {
	s.primaryColor = color
}

func (s *StatusRenderer) AdvanceAnimation() {
	s.tickCount++
	if s.tickCount >= s.ticksPerFrame {
		s.tickCount = 0
		s.animFrame = (s.animFrame + 1) % s.maxAnimFrame
	}

	s.bufferTickCount++
	if s.bufferTickCount >= s.bufferTicksPerUpdate {
		s.bufferTickCount = 0
		if s.player != nil {
			s.bufferHealth = s.player.Stats().BufferFill
		}
	}
}

func (s *StatusRenderer) Render() string {
	if s.player == nil {
		return s.renderIdle()
	}

	switch s.player.State() {
	case player.StateConnecting:
		return s.renderConnecting()
	case player.StatePlaying:
		return s.renderPlaying()
	case player.StateStopping:
		return "■ STOPPING"
	default:
		if s.player.LastError() != "" {
			return s.renderError()
		}
		return s.renderIdle()
	}
}

func (s *StatusRenderer) renderIdle() string {
	if s.isMuted {
		return "○ IDLE │ [red]MUTED[-] │ Select a station"
	}
	return "○ IDLE │ Select a station"
}

func (s *StatusRenderer) renderConnecting() string {
	circles := []string{"◐", "◓", "◑", "◒"}
	return fmt.Sprintf("%s CONNECTING", circles[s.animFrame])
}

func (s *StatusRenderer) renderPlaying() string {
	dots := []string{"●", "◉", "○", "◉"}
	dot := dots[s.animFrame]

	if s.primaryColor != "" {
		dot = fmt.Sprintf("[%s]%s[-]", s.primaryColor, dot)
	}

	parts := []string{dot + " LIVE"}

	if s.isMuted {
		parts = append(parts, "[red]MUTED[-]")
	}

	if info := formatStreamInfo(s.player.StreamMetadata()); info != "" {
		parts = append(parts, info)
	}

	parts = append(parts, formatDuration(s.player.SessionDuration().Seconds()))
	parts = append(parts, s.formatBufferHealth(s.bufferHealth))

	return joinParts(parts)
}

func (s *StatusRenderer) renderError() string {
	msg := friendlyErrorMessage(s.player.LastError())
	return fmt.Sprintf("✗ %s", strings.ReplaceAll(msg, "\n", " "))
}

func (s *StatusRenderer) formatBufferHealth(percent int) string {
	signalBars := []string{"▁", "▂", "▃", "▅", "▇"}
	const numBars = 5

	filled := (percent * numBars) / 100
	if filled > numBars {
		filled = numBars
	}

	bar := ""
	for i := 0; i < numBars; i++ {
		if i < filled {
			bar += signalBars[i]
		} else {
			bar += "▁"
		}
	}

	return bar
}

// formatStreamInfo renders e.g. "MP3 128k 44.1kHz", leaving out what the
// stream has not told us yet.
func formatStreamInfo(meta player.StreamMetadata) string {
	var parts []string
	if meta.Codec.String() != "Unknown" {
		parts = append(parts, meta.Codec.String())
	}
	if meta.Bitrate > 0 {
		parts = append(parts, fmt.Sprintf("%dk", meta.Bitrate))
	}
	if meta.SampleRate > 0 {
		parts = append(parts, fmt.Sprintf("%.1fkHz", float64(meta.SampleRate)/1000.0))
	}
	return strings.Join(parts, " ")
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	h, m, sec := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

func joinParts(parts []string) string {
	return strings.Join(parts, " │ ")
}

// footerHints lists the short key hints shown in the footer.
func footerHints(state player.PlayerState, muted bool) []keyHelp {
	hints := []keyHelp{{"Space", "play"}}
	if state == player.StatePlaying || state == player.StateConnecting {
		hints = []keyHelp{{"Enter", "play"}, {"Space", "stop"}}
	}
	mute := "mute"
	if muted {
		mute = "unmute"
	}
	return append(hints,
		keyHelp{"+/-", "vol"},
		keyHelp{"m", mute},
		keyHelp{"?", "help"},
		keyHelp{"a", "about"},
		keyHelp{"q", "quit"},
	)
}

func (ui *UI) getHelpText() string {
	keyColor := ui.colors.helpHotkey.String()
	hints := footerHints(ui.player.State(), ui.volume.muted)

	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = fmt.Sprintf("[%s]%s[-] %s", keyColor, h.keys, h.desc)
	}
	return " " + strings.Join(parts, "  ") + " "
}

func (ui *UI) handleFooterResize(width int) {
	wide := width >= FooterBreakpoint
	if ui.lastFooterWidth > 0 && wide != (ui.lastFooterWidth >= FooterBreakpoint) && ui.contentLayout != nil {
		height := FooterHeightNarrow
		if wide {
			height = FooterHeightWide
		}
		ui.contentLayout.ResizeItem(ui.helpPanel, height, 0)
	}
	ui.lastFooterWidth = width
}

func (ui *UI) fillRows(screen tcell.Screen, x, y, width, height int, bg tcell.Color) {
	style := tcell.StyleDefault.Background(bg)
	for row := y; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			screen.SetContent(col, row, ' ', nil, style)
		}
	}
}

type rect struct {
	x, y, width, height int
}

// footerLayout splits the footer area into the help band and the status
// band: side by side when wide, stacked otherwise.
func footerLayout(x, y, width, height int) (help, status rect) {
	if width >= FooterBreakpoint {
		height = min(height, FooterHeightWide)
		half := width / 2
		return rect{x, y, half, height}, rect{x + half, y, width - half, height}
	}
	top := max(height/2, 1)
	return rect{x, y, width, top}, rect{x, y + top, width, height - top}
}

func (ui *UI) createFooter() *tview.Box {
	box := tview.NewBox().SetBackgroundColor(ui.colors.background)

	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ui.handleFooterResize(width)
		help, status := footerLayout(x, y, width, height)

		ui.fillRows(screen, help.x, help.y, help.width, help.height, ui.colors.helpBackground)
		tview.Print(screen, ui.getHelpText(), help.x, help.y+help.height/2, help.width, tview.AlignCenter, ui.colors.helpForeground)

		if status.height > 0 {
			ui.fillRows(screen, status.x, status.y, status.width, status.height, ui.colors.background)
			statusText := " " + ui.statusRenderer.Render() + " "
			tview.Print(screen, statusText, status.x, status.y+status.height/2, status.width-2, tview.AlignRight, ui.colors.foreground)
		}

		return x, y, width, height
	})

	return box
}
