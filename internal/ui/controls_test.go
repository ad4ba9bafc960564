package ui

import (
	"strings"
	"testing"

	"github.com/glebovdev/webradio/internal/config"
	"github.com/glebovdev/webradio/internal/player"
)

func TestVolumeControlAdjust(t *testing.T) {
	tests := []struct {
		name      string
		start     volumeControl
		delta     int
		wantLevel int
		wantMuted bool
	}{
		{"up", volumeControl{level: 50}, VolumeStep, 55, false},
		{"down", volumeControl{level: 50}, -VolumeStep, 45, false},
		{"clamps high", volumeControl{level: 98}, VolumeStep, 100, false},
		{"clamps low", volumeControl{level: 2}, -VolumeStep, 0, false},
		{"muted only unmutes", volumeControl{level: 40, muted: true}, VolumeStep, 40, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.start
			v.adjust(tt.delta)
			if v.level != tt.wantLevel || v.muted != tt.wantMuted {
				t.Errorf("adjust(%d) = {%d %v}, want {%d %v}", tt.delta, v.level, v.muted, tt.wantLevel, tt.wantMuted)
			}
		})
	}
}

func TestVolumeControlMute(t *testing.T) {
	v := volumeControl{level: 60}

	v.toggleMute()
	if !v.muted || v.effective() != 0 {
		t.Fatalf("after mute: muted=%v effective=%d, want true and 0", v.muted, v.effective())
	}
	if v.level != 60 {
		t.Errorf("mute changed level to %d", v.level)
	}

	v.toggleMute()
	if v.muted || v.effective() != 60 {
		t.Errorf("after unmute: muted=%v effective=%d, want false and 60", v.muted, v.effective())
	}
}

func TestVolumeControlMuteAtZero(t *testing.T) {
	v := volumeControl{level: 0}
	v.toggleMute()
	v.toggleMute()

	if v.level != config.DefaultVolume {
		t.Errorf("unmuting from zero restored %d, want %d", v.level, config.DefaultVolume)
	}
}

func TestGaugeRows(t *testing.T) {
	tests := []struct {
		level, height, expected int
	}{
		{0, 10, 0},
		{50, 10, 5},
		{100, 10, 10},
		{150, 10, 10},
		{-5, 10, 0},
		{70, 0, 0},
		{99, 8, 7},
	}

	for _, tt := range tests {
		if result := gaugeRows(tt.level, tt.height); result != tt.expected {
			t.Errorf("gaugeRows(%d, %d) = %d, want %d", tt.level, tt.height, result, tt.expected)
		}
	}
}

func TestHelpText(t *testing.T) {
	text := helpText("yellow")

	for _, section := range helpSections {
		if !strings.Contains(text, "[yellow]"+section.name+"[-]") {
			t.Errorf("help text missing section %q", section.name)
		}
		for _, k := range section.keys {
			if !strings.Contains(text, k.desc) {
				t.Errorf("help text missing %q", k.desc)
			}
		}
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		percent int
		filled  int
	}{
		{0, 0},
		{50, 15},
		{100, 30},
		{140, 30},
		{-10, 0},
	}

	for _, tt := range tests {
		bar := renderProgressBar(tt.percent)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("renderProgressBar(%d) filled %d cells, want %d", tt.percent, got, tt.filled)
		}
		if n := len([]rune(bar)); n != 30 {
			t.Errorf("renderProgressBar(%d) width = %d, want 30", tt.percent, n)
		}
	}
}

func TestWrapIndex(t *testing.T) {
	tests := []struct {
		current, delta, count, expected int
	}{
		{0, 1, 5, 1},
		{4, 1, 5, 0},
		{0, -1, 5, 4},
		{2, -1, 5, 1},
		{0, 1, 1, 0},
	}

	for _, tt := range tests {
		if result := wrapIndex(tt.current, tt.delta, tt.count); result != tt.expected {
			t.Errorf("wrapIndex(%d, %d, %d) = %d, want %d", tt.current, tt.delta, tt.count, result, tt.expected)
		}
	}
}

func TestFooterLayout(t *testing.T) {
	help, status := footerLayout(0, 10, FooterBreakpoint, 5)
	if help.width+status.width != FooterBreakpoint || help.y != status.y {
		t.Errorf("wide layout = %+v %+v, want side by side", help, status)
	}
	if help.height != FooterHeightWide {
		t.Errorf("wide help height = %d, want %d", help.height, FooterHeightWide)
	}

	help, status = footerLayout(0, 10, 80, FooterHeightNarrow)
	if help.width != 80 || status.width != 80 {
		t.Errorf("narrow layout widths = %d/%d, want 80", help.width, status.width)
	}
	if status.y != help.y+help.height || help.height+status.height != FooterHeightNarrow {
		t.Errorf("narrow layout = %+v %+v, want stacked", help, status)
	}
}

func TestFooterHints(t *testing.T) {
	tests := []struct {
		name  string
		state player.PlayerState
		muted bool
		want  []string
	}{
		{"idle", player.StateIdle, false, []string{"Space play", "m mute"}},
		{"playing", player.StatePlaying, false, []string{"Enter play", "Space stop"}},
		{"connecting muted", player.StateConnecting, true, []string{"Space stop", "m unmute"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, h := range footerHints(tt.state, tt.muted) {
				got = append(got, h.keys+" "+h.desc)
			}
			joined := strings.Join(got, ", ")
			for _, w := range tt.want {
				if !strings.Contains(joined, w) {
					t.Errorf("footerHints = %q, missing %q", joined, w)
				}
			}
		})
	}
}
