package ui

import (
	"fmt"
	"math/rand/v2"
	"net/url"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/webradio/internal/player"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const maxNameWidth = 40

func (ui *UI) createStationListTable() *tview.Table {
	table := tview.NewTable().
		SetBorders(false).
		SetSeparator(' ').
		SetSelectable(true, false).
		SetFixed(1, 0)

	table.SetBorder(true).
		SetTitle(fmt.Sprintf("Stations (%d)", ui.stationService.StationCount())).
		SetBorderColor(ui.colors.borders).
		SetTitleColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.background).
		SetBorderPadding(1, 0, 1, 1)

	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(ui.colors.background).
		Background(ui.colors.highlight))

	headers := []struct {
		text      string
		maxWidth  int
		expansion int
	}{
		{" ", 2, 0},
		{" ", 2, 0},
		{"Name", 0, 2},
		{"Host", 0, 1},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetTextColor(ui.colors.foreground).
			SetBackgroundColor(ui.colors.headerBackground).
			SetSelectable(false)
		if h.maxWidth > 0 {
			cell.SetMaxWidth(h.maxWidth)
		}
		if h.expansion > 0 {
			cell.SetExpansion(h.expansion)
		}
		table.SetCell(0, col, cell)
	}

	stationCount := ui.stationService.StationCount()
	for i := 0; i < stationCount; i++ {
		ui.setStationRow(table, i+1, i)
	}

	// Track the selected URL to keep the selection across refreshes
	table.SetSelectionChangedFunc(func(row, column int) {
		count := ui.stationService.StationCount()
		if row > 0 && row <= count {
			if s := ui.stationService.GetStation(row - 1); s != nil {
				ui.selectedURL = s.URL
			}
		}
	})

	return table
}

func streamHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Hostname()
}

func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func (ui *UI) isActive(stationIndex int) bool {
	return stationIndex == ui.playingIndex && ui.player.State() != player.StateIdle
}

func (ui *UI) setStationRow(table *tview.Table, row int, stationIndex int) {
	s := ui.stationService.GetStation(stationIndex)
	if s == nil {
		return
	}

	favIcon := " "
	if ui.config.IsFavorite(s.URL) {
		favIcon = "★"
	}
	table.SetCell(row, 0, tview.NewTableCell(favIcon).
		SetTextColor(ui.colors.foreground).
		SetMaxWidth(2))

	playIcon := " "
	if ui.isActive(stationIndex) {
		playIcon = "➤"
	}
	table.SetCell(row, 1, tview.NewTableCell(playIcon).
		SetTextColor(ui.colors.foreground).
		SetMaxWidth(2))

	table.SetCell(row, 2, tview.NewTableCell(tview.Escape(s.DisplayName())).
		SetTextColor(ui.colors.foreground).
		SetMaxWidth(maxNameWidth).
		SetExpansion(2))

	table.SetCell(row, 3, tview.NewTableCell(streamHost(s.URL)).
		SetTextColor(ui.colors.foreground).
		SetMaxWidth(30).
		SetExpansion(1))
}

// wrapIndex steps from the selected row by delta, wrapping at both ends.
func wrapIndex(current, delta, count int) int {
	return ((current+delta)%count + count) % count
}

// selectedIndex is the station under the cursor, or -1 on the header row.
func (ui *UI) selectedIndex() int {
	row, _ := ui.stationList.GetSelection()
	if row <= 0 || row > ui.stationService.StationCount() {
		return -1
	}
	return row - 1
}

func (ui *UI) tuneTo(index int) {
	ui.stationList.Select(index+1, 0)
	ui.onStationSelected(index)
}

func (ui *UI) stepStation(delta int) {
	count := ui.stationService.StationCount()
	if count == 0 {
		return
	}
	current := max(ui.selectedIndex(), 0)
	ui.tuneTo(wrapIndex(current, delta, count))
}

func (ui *UI) nextStation() { ui.stepStation(1) }
func (ui *UI) prevStation() { ui.stepStation(-1) }

func (ui *UI) randomStation() {
	if count := ui.stationService.StationCount(); count > 0 {
		ui.tuneTo(rand.IntN(count))
	}
}

func (ui *UI) selectAndShowStation(index int) {
	stationCount := ui.stationService.StationCount()
	if stationCount == 0 || index < 0 || index >= stationCount {
		return
	}

	ui.currentStation = ui.stationService.GetStation(index)
	ui.stationList.Select(index+1, 0)
	ui.showPlayerPanel()

	log.Debug().Msgf("Showing station info (without playing): %s", ui.currentStation.DisplayName())
}

func (ui *UI) toggleFavorite() {
	idx := ui.selectedIndex()
	if idx < 0 {
		return
	}
	s := ui.stationService.GetStation(idx)
	if s == nil {
		return
	}

	ui.config.ToggleFavorite(s.URL)
	ui.setStationRow(ui.stationList, idx+1, idx)
	ui.SaveConfig()

	log.Debug().Str("url", s.URL).Bool("favorite", ui.config.IsFavorite(s.URL)).Msg("Favorite toggled")
}

func (ui *UI) refreshStationTable() {
	stationCount := ui.stationService.StationCount()

	// The playlist may have been reordered, so find rows by URL
	if ui.playingURL != "" {
		ui.playingIndex = ui.stationService.FindIndexByURL(ui.playingURL)
	}

	for i := ui.stationList.GetRowCount() - 1; i > stationCount; i-- {
		ui.stationList.RemoveRow(i)
	}
	for i := 0; i < stationCount; i++ {
		ui.setStationRow(ui.stationList, i+1, i)
	}

	if ui.selectedURL != "" {
		if newIndex := ui.stationService.FindIndexByURL(ui.selectedURL); newIndex >= 0 {
			ui.stationList.Select(newIndex+1, 0)
		}
	}

	ui.stationList.SetTitle(fmt.Sprintf("Stations (%d)", stationCount))

	log.Debug().Int("count", stationCount).Msg("Station table refreshed")
}

// refreshPlayingRow redraws the row of the last played station without
// the activity indicator.
func (ui *UI) refreshPlayingRow() {
	if ui.playingIndex >= 0 && ui.playingIndex < ui.stationService.StationCount() {
		ui.setStationRow(ui.stationList, ui.playingIndex+1, ui.playingIndex)
	}
}

func (ui *UI) updateStationListPlayingIndicator() {
	stationCount := ui.stationService.StationCount()
	if ui.playingIndex < 0 || ui.playingIndex >= stationCount {
		return
	}

	if !ui.isActive(ui.playingIndex) {
		ui.refreshPlayingRow()
		return
	}

	row := ui.playingIndex + 1
	s := ui.stationService.GetStation(ui.playingIndex)
	if s == nil {
		return
	}

	if playCell := ui.stationList.GetCell(row, 1); playCell != nil {
		playCell.SetText("➤")
	}

	nameCell := ui.stationList.GetCell(row, 2)
	if nameCell == nil {
		return
	}

	indicator := ui.getPlayingIndicator()
	name := truncateName(s.DisplayName(), maxNameWidth-len([]rune(indicator))-1)
	nameCell.SetText(tview.Escape(name) + " " + indicator)
}
