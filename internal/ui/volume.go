package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/webradio/internal/config"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const VolumeBarWidth = 7

// volumeControl tracks the requested level and mute. While muted, level
// holds the volume that unmuting restores.
type volumeControl struct {
	level int
	muted bool
}

// effective is what the sink should play at.
func (v *volumeControl) effective() int {
	if v.muted {
		return 0
	}
	return v.level
}

// adjust changes the level. Adjusting while muted only unmutes.
func (v *volumeControl) adjust(delta int) {
	if v.muted {
		v.muted = false
		return
	}
	v.level = config.ClampVolume(v.level + delta)
}

func (v *volumeControl) toggleMute() {
	if v.muted {
		v.muted = false
		return
	}
	if v.level == 0 {
		v.level = config.DefaultVolume
	}
	v.muted = true
}

// gaugeRows returns how many of height rows are lit for level.
func gaugeRows(level, height int) int {
	if height <= 0 {
		return 0
	}
	return min(max(level*height/100, 0), height)
}

func (ui *UI) createVolumeBar() *tview.Box {
	box := tview.NewBox().SetBackgroundColor(ui.colors.background)

	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ui.mu.Lock()
		vol := ui.volume
		ui.mu.Unlock()

		if height < 3 {
			return x, y, width, height
		}

		barColor := ui.colors.highlight
		if vol.muted {
			barColor = config.GetColor(ui.config.Theme.MutedVolume)
		}

		tview.Print(screen, "max", x, y, width, tview.AlignRight, ui.colors.foreground)
		tview.Print(screen, "min", x, y+height-1, width, tview.AlignRight, ui.colors.foreground)

		// Rows between the labels, bottom up.
		rows := height - 2
		lit := gaugeRows(vol.level, rows)
		barX := x + width - 2
		for i := 0; i < rows; i++ {
			row := y + height - 2 - i
			r, color := '░', ui.colors.foreground
			if i < lit {
				r, color = '█', barColor
			}
			style := tcell.StyleDefault.Background(ui.colors.background).Foreground(color)
			screen.SetContent(barX, row, r, nil, style)
			screen.SetContent(barX+1, row, r, nil, style)
		}

		label := fmt.Sprintf("%d%%", vol.level)
		labelRow := y + height - 2 - max(lit-1, 0)
		style := tcell.StyleDefault.Background(ui.colors.background).Foreground(barColor)
		if vol.muted {
			style = style.StrikeThrough(true)
		}
		for i, r := range label {
			screen.SetContent(x+i, labelRow, r, nil, style)
		}

		return x, y, width, height
	})

	return box
}

// applyVolume pushes the effective level to the player and persists the
// level unless muted.
func (ui *UI) applyVolume() {
	ui.mu.Lock()
	vol := ui.volume
	ui.mu.Unlock()

	ui.player.SetVolume(vol.effective())
	ui.statusRenderer.SetMuted(vol.muted)
	ui.SaveConfig()
	log.Debug().Int("level", vol.level).Bool("muted", vol.muted).Msg("Volume changed")
}

func (ui *UI) adjustVolume(delta int) {
	ui.mu.Lock()
	ui.volume.adjust(delta)
	ui.mu.Unlock()
	ui.applyVolume()
}

func (ui *UI) toggleMute() {
	ui.mu.Lock()
	ui.volume.toggleMute()
	ui.mu.Unlock()
	ui.applyVolume()
}
