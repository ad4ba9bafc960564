package icy

import (
	"bytes"
	"sync"
)

var streamTitleMarker = []byte("StreamTitle='")

// ParseStreamTitle extracts the value of StreamTitle='...' from a metadata
// block. The title ends at the closing "';" when present, otherwise at the
// next single quote. The value is returned as sent, so an empty title is
// valid and clears the display. Blocks without the marker or a closing quote
// report false.
func ParseStreamTitle(block []byte) (string, bool) {
	start := bytes.Index(block, streamTitleMarker)
	if start < 0 {
		return "", false
	}
	rest := block[start+len(streamTitleMarker):]

	end := bytes.Index(rest, []byte("';"))
	if end < 0 {
		end = bytes.IndexByte(rest, '\'')
	}
	if end < 0 {
		return "", false
	}
	return string(rest[:end]), true
}

// Mailbox is a single-slot holder for the latest stream title. The network
// side publishes, the UI side takes.
type Mailbox struct {
	mu    sync.Mutex
	title string
	fresh bool
}

// Publish replaces the stored title and marks it as new.
func (m *Mailbox) Publish(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if title == m.title && !m.fresh {
		return
	}
	m.title = title
	m.fresh = true
}

// Take returns the stored title and whether it changed since the last Take.
func (m *Mailbox) Take() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fresh := m.fresh
	m.fresh = false
	return m.title, fresh
}

// Current returns the stored title without touching the new flag.
func (m *Mailbox) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.title
}

// Clear forgets the stored title. A cleared mailbox reports a change on the
// next Take so the reader can blank its display.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fresh = m.title != ""
	m.title = ""
}
