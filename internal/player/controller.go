// Package player runs the streaming pipeline: a network producer per session
// feeding a ring buffer, and one long-lived consumer that resynchronizes,
// decodes and plays what the producer delivered.
package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/webradio/internal/config"
	"github.com/glebovdev/webradio/internal/icy"
	"github.com/glebovdev/webradio/internal/output"
	"github.com/glebovdev/webradio/internal/ringbuf"
	"github.com/glebovdev/webradio/internal/spectrum"
	"github.com/glebovdev/webradio/internal/station"
	"github.com/rs/zerolog/log"
)

const (
	MaxRetries = 3
	RetryDelay = time.Second * 2
	IdleSleep  = 100 * time.Millisecond

	// A full ring buffer is retried every FullRetryInterval; after
	// FullStallLimit without progress the rest of the chunk is dropped.
	FullRetryInterval = 20 * time.Millisecond
	FullStallLimit    = 2 * time.Second

	resolveTimeout = 10 * time.Second
)

var (
	ErrShutdown   = errors.New("player: shut down")
	ErrNotStarted = errors.New("player: not started")

	errCodecChanged = errors.New("codec changed on reconnect")
)

// StreamResolver turns a playlist URL (PLS, M3U) into stream URLs.
type StreamResolver interface {
	ResolveStreams(ctx context.Context, url string) ([]string, error)
}

type Options struct {
	RingSize     int
	ChunkSize    int
	OutputFrames int
	Bars         int
	WindowSize   int
	Volume       int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RingSize:     cfg.Buffer.RingSize,
		ChunkSize:    cfg.Buffer.ChunkSize,
		OutputFrames: cfg.Buffer.OutputFrames,
		Bars:         cfg.Visualizer.Bars,
		WindowSize:   cfg.Visualizer.WindowSize,
		Volume:       cfg.Volume,
	}
}

func (o Options) withDefaults() Options {
	if o.RingSize <= 0 {
		o.RingSize = ringbuf.DefaultCapacity
	}
	if o.ChunkSize <= 0 || o.ChunkSize > ringbuf.MaxChunk {
		o.ChunkSize = ringbuf.MaxChunk
	}
	if o.OutputFrames <= 0 {
		o.OutputFrames = config.DefaultOutputFrames
	}
	if o.Bars <= 0 {
		o.Bars = spectrum.DefaultBars
	}
	if o.WindowSize <= 0 {
		o.WindowSize = spectrum.DefaultWindowSize
	}
	return o
}

// Controller owns the player state and the session lifecycle.
type Controller struct {
	transport Transport
	resolver  StreamResolver
	sink      output.Sink
	ring      *ringbuf.Buffer
	analyzer  *spectrum.Analyzer
	titles    icy.Mailbox
	opts      Options

	maxRetries int
	retryDelay time.Duration
	idleSleep  time.Duration
	fullRetry  time.Duration
	fullStall  time.Duration

	mu        sync.Mutex
	session   *Session
	state     PlayerState
	lastError string
	volume    int
	started   bool

	ctx          context.Context
	cancel       context.CancelFunc
	wake         chan struct{}
	consumerDone chan struct{}
	shutdownOnce sync.Once

	bytesReceived atomic.Int64
	bytesDropped  atomic.Int64
	framesDecoded atomic.Int64
	bytesSkipped  atomic.Int64
	reconnects    atomic.Int64
}

// NewController wires the pipeline. resolver may be nil if stations never
// point at playlists.
func NewController(transport Transport, sink output.Sink, resolver StreamResolver, opts Options) *Controller {
	opts = opts.withDefaults()
	volume := config.ClampVolume(opts.Volume)
	sink.SetVolume(volume)

	return &Controller{
		transport:    transport,
		resolver:     resolver,
		sink:         sink,
		ring:         ringbuf.New(opts.RingSize),
		analyzer:     spectrum.New(opts.WindowSize, opts.Bars),
		opts:         opts,
		maxRetries:   MaxRetries,
		retryDelay:   RetryDelay,
		idleSleep:    IdleSleep,
		fullRetry:    FullRetryInterval,
		fullStall:    FullStallLimit,
		state:        StateIdle,
		volume:       volume,
		wake:         make(chan struct{}, 1),
		consumerDone: make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Cancelling ctx has the same effect
// as Shutdown without the wait.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopping {
		return ErrShutdown
	}
	if c.started {
		return nil
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	go c.consume()

	log.Debug().Msg("Player started")
	return nil
}

// Play switches to st. The previous session, if any, is cancelled; its
// buffers are torn down by the consumer before the new stream is fetched.
func (c *Controller) Play(st station.Station) error {
	c.mu.Lock()
	if c.state == StateStopping {
		c.mu.Unlock()
		return ErrShutdown
	}
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}

	if c.session != nil {
		c.session.cancel()
	}
	s := newSession(c.ctx, st)
	c.session = s
	c.lastError = ""
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	c.poke()
	log.Info().Str("session", s.ID).Str("url", st.URL).Msgf("Playing %s", st.DisplayName())
	return nil
}

// Stop ends the current session and returns to Idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}
	c.session.cancel()
	c.session = nil
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	c.poke()
	log.Debug().Msg("Playback stopped")
}

// Shutdown stops playback for good and waits for the pipeline to wind down.
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.setStateLocked(StateStopping)
		if c.session != nil {
			c.session.cancel()
			c.session = nil
		}
		started := c.started
		c.mu.Unlock()

		if started {
			c.cancel()
			<-c.consumerDone
		}
		log.Debug().Msg("Player shut down")
	})
}

func (c *Controller) setStateLocked(state PlayerState) {
	if c.state == StateStopping || c.state == state {
		return
	}
	log.Debug().Msgf("Player state: %s -> %s", c.state.String(), state.String())
	c.state = state
}

func (c *Controller) poke() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) currentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// endSession drops s if it is still current and records why.
func (c *Controller) endSession(s *Session, err error) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	s.cancel()
	c.session = nil
	c.setStateLocked(StateIdle)
	if err != nil {
		c.lastError = err.Error()
	}
	c.mu.Unlock()

	c.poke()
	log.Error().Err(err).Str("session", s.ID).Msg("Session ended")
}

func (c *Controller) markConnected(s *Session) {
	s.markConnected()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == s {
		c.setStateLocked(StatePlaying)
		c.lastError = ""
	}
}

func (c *Controller) markReconnecting(s *Session) {
	c.reconnects.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == s {
		c.setStateLocked(StateConnecting)
	}
}

func (c *Controller) resetStats() {
	c.bytesReceived.Store(0)
	c.bytesDropped.Store(0)
	c.framesDecoded.Store(0)
	c.bytesSkipped.Store(0)
	c.reconnects.Store(0)
}

func (c *Controller) State() PlayerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// Session returns the current session, or nil when idle.
func (c *Controller) Session() *Session {
	return c.currentSession()
}

func (c *Controller) CurrentStation() *station.Station {
	s := c.currentSession()
	if s == nil {
		return nil
	}
	st := s.Station
	return &st
}

func (c *Controller) StreamMetadata() StreamMetadata {
	if s := c.currentSession(); s != nil {
		return s.Metadata()
	}
	return StreamMetadata{}
}

func (c *Controller) SessionDuration() time.Duration {
	if s := c.currentSession(); s != nil {
		return s.Duration()
	}
	return 0
}

func (c *Controller) Stats() Stats {
	return Stats{
		BufferFill:    c.ring.FillPercent(),
		BytesReceived: c.bytesReceived.Load(),
		BytesDropped:  c.bytesDropped.Load(),
		FramesDecoded: c.framesDecoded.Load(),
		BytesSkipped:  c.bytesSkipped.Load(),
		Reconnects:    c.reconnects.Load(),
	}
}

func (c *Controller) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// SetVolume clamps percent to 0-100, applies it and returns the value used.
func (c *Controller) SetVolume(percent int) int {
	percent = config.ClampVolume(percent)

	c.mu.Lock()
	c.volume = percent
	c.mu.Unlock()

	c.sink.SetVolume(percent)
	return percent
}

// Title returns the latest stream title and whether it changed since the
// previous call.
func (c *Controller) Title() (string, bool) {
	return c.titles.Take()
}

func (c *Controller) CurrentTitle() string {
	return c.titles.Current()
}

// Spectrum fills dst with the current band levels in dB relative to the
// loudest band.
func (c *Controller) Spectrum(dst []float64) []float64 {
	return c.analyzer.Spectrum(dst)
}

func (c *Controller) Bars() int {
	return c.analyzer.Bars()
}
