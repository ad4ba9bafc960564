package icy

import "testing"

func TestParseStreamTitle(t *testing.T) {
	tests := []struct {
		name   string
		block  string
		title  string
		expect bool
	}{
		{"simple", "StreamTitle='Artist - Song';", "Artist - Song", true},
		{"with url", "StreamTitle='A - B';StreamUrl='http://x';\x00\x00", "A - B", true},
		{"apostrophe in title", "StreamTitle='Guns N' Roses - Patience';", "Guns N' Roses - Patience", true},
		{"no terminator semicolon", "StreamTitle='Only quote'\x00\x00", "Only quote", true},
		{"empty title", "StreamTitle='';", "", true},
		{"empty title then url", "StreamTitle='';StreamUrl='';\x00", "", true},
		{"spaces kept", "StreamTitle='  Live  ';", "  Live  ", true},
		{"leading quote", "StreamTitle=''Quoted'';", "'Quoted'", true},
		{"missing marker", "StreamUrl='http://x';", "", false},
		{"unterminated", "StreamTitle='never ends", "", false},
		{"padding only", "\x00\x00\x00\x00", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, ok := ParseStreamTitle([]byte(tt.block))
			if ok != tt.expect {
				t.Fatalf("ParseStreamTitle(%q) ok = %v, want %v", tt.block, ok, tt.expect)
			}
			if title != tt.title {
				t.Errorf("ParseStreamTitle(%q) = %q, want %q", tt.block, title, tt.title)
			}
		})
	}
}

func TestMailbox(t *testing.T) {
	var m Mailbox

	if title, fresh := m.Take(); title != "" || fresh {
		t.Errorf("empty mailbox Take() = (%q, %v)", title, fresh)
	}

	m.Publish("First")
	m.Publish("Second")

	title, fresh := m.Take()
	if title != "Second" || !fresh {
		t.Errorf("Take() = (%q, %v), want (Second, true)", title, fresh)
	}

	if _, fresh := m.Take(); fresh {
		t.Error("second Take() should not report a new title")
	}

	m.Publish("Second")
	if _, fresh := m.Take(); fresh {
		t.Error("republishing the same title should not mark it new")
	}

	if m.Current() != "Second" {
		t.Errorf("Current() = %q", m.Current())
	}

	m.Clear()
	title, fresh = m.Take()
	if title != "" || !fresh {
		t.Errorf("Take() after Clear = (%q, %v), want (\"\", true)", title, fresh)
	}
}

func TestMailboxEmptyTitleClearsDisplay(t *testing.T) {
	var m Mailbox
	m.Publish("Artist - Song")
	m.Take()

	title, ok := ParseStreamTitle([]byte("StreamTitle='';"))
	if !ok {
		t.Fatal("empty StreamTitle should parse")
	}
	m.Publish(title)

	got, fresh := m.Take()
	if got != "" || !fresh {
		t.Errorf("Take() after empty title = (%q, %v), want (\"\", true)", got, fresh)
	}
}
