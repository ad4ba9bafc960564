package player

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/webradio/internal/station"
	"github.com/google/uuid"
)

// Session is one attempt to play one station. Everything the pipeline holds
// for a station is tied to a session and thrown away when it is replaced.
type Session struct {
	ID      string
	Station station.Station

	ctx    context.Context
	cancel context.CancelFunc

	// done is closed when the producer goroutine returns. It stays open if
	// the session was replaced before its producer was started.
	done    chan struct{}
	started bool

	// conn counts accepted connections. The producer holds back the bytes
	// of a new connection until the consumer has drained the previous one
	// and stored its number in drained.
	conn    atomic.Uint64
	drained atomic.Uint64

	mu        sync.RWMutex
	meta      StreamMetadata
	connected time.Time
}

func newSession(parent context.Context, st station.Station) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:      uuid.NewString(),
		Station: st,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (s *Session) Metadata() StreamMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

func (s *Session) setMetadata(meta StreamMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Format fields belong to the decoder and survive reconnects.
	meta.SampleRate, meta.Channels = s.meta.SampleRate, s.meta.Channels
	s.meta = meta
}

func (s *Session) setFormat(sampleRate, channels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.SampleRate = sampleRate
	s.meta.Channels = channels
}

func (s *Session) markConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected.IsZero() {
		s.connected = time.Now()
	}
}

// Duration returns how long the session has been connected.
func (s *Session) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.connected.IsZero() {
		return 0
	}
	return time.Since(s.connected)
}

// join waits for the producer, if one was started.
func (s *Session) join() {
	if s.started {
		<-s.done
	}
}
