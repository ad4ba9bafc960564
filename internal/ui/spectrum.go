package ui

import (
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/webradio/internal/player"
	"github.com/rivo/tview"
)

// SpectrumFloorDB is the level drawn as an empty bar.
const SpectrumFloorDB = -60.0

var barRunes = []rune(" ▁▂▃▄▅▆▇█")

// barCells renders a level in dB (0 is the loudest band) as a column of
// height cells, bottom cell first.
func barCells(level, floorDB float64, height int) []rune {
	cells := make([]rune, height)
	if height <= 0 {
		return cells
	}

	fraction := 1 - level/floorDB
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	eighths := int(math.Round(fraction * float64(height*8)))
	for i := range cells {
		n := min(max(eighths-i*8, 0), 8)
		cells[i] = barRunes[n]
	}
	return cells
}

// blend mixes two colors; t=0 gives a and t=1 gives b. Colors without an
// RGB value switch over at the midpoint.
func blend(a, b tcell.Color, t float64) tcell.Color {
	t = math.Max(0, math.Min(1, t))

	ar, ag, ab := a.RGB()
	br, bg, bb := b.RGB()
	if ar < 0 || br < 0 {
		if t < 0.5 {
			return a
		}
		return b
	}

	mix := func(x, y int32) int32 {
		return x + int32(math.Round(float64(y-x)*t))
	}
	return tcell.NewRGBColor(mix(ar, br), mix(ag, bg), mix(ab, bb))
}

func silent(levels []float64) bool {
	for _, l := range levels {
		if l != 0 {
			return false
		}
	}
	return true
}

func (ui *UI) createSpectrumPanel() *tview.Box {
	box := tview.NewBox().SetBackgroundColor(ui.colors.background)

	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		if width <= 0 || height <= 0 || ui.player.State() != player.StatePlaying {
			return x, y, width, height
		}

		ui.spectrumLevels = ui.player.Spectrum(ui.spectrumLevels)
		levels := ui.spectrumLevels
		if len(levels) == 0 || silent(levels) {
			return x, y, width, height
		}

		for col := 0; col < width; col++ {
			band := col * len(levels) / width
			cells := barCells(levels[band], SpectrumFloorDB, height)
			for row, r := range cells {
				t := 0.0
				if height > 1 {
					t = float64(row) / float64(height-1)
				}
				style := tcell.StyleDefault.
					Background(ui.colors.background).
					Foreground(blend(ui.colors.spectrumLow, ui.colors.spectrumHigh, t))
				screen.SetContent(x+col, y+height-1-row, r, nil, style)
			}
		}

		return x, y, width, height
	})

	return box
}
