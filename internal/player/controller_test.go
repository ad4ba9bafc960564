package player

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebovdev/webradio/internal/output"
	"github.com/glebovdev/webradio/internal/station"
)

const (
	urlA = "http://a.example.com/stream"
	urlB = "http://b.example.com/stream"

	samplesPerFrame = 1152 * 2
)

// silentFrame is an MPEG-1 Layer III frame with empty side info, which
// decodes to 1152 stereo samples of silence.
func silentFrame(header []byte, length int) []byte {
	f := make([]byte, length)
	copy(f, header)
	return f
}

var (
	frame44k = silentFrame([]byte{0xFF, 0xFB, 0x90, 0x00}, 417)
	frame48k = silentFrame([]byte{0xFF, 0xFB, 0x94, 0x00}, 384)
)

func frames(f []byte, n int) []byte {
	return bytes.Repeat(f, n)
}

// withMetadata interleaves ICY metadata into audio: a title block after the
// first interval, empty blocks after the rest.
func withMetadata(audio []byte, metaint int, title string) []byte {
	text := []byte("StreamTitle='" + title + "';")
	blocks := (len(text) + 15) / 16
	meta := make([]byte, 1+blocks*16)
	meta[0] = byte(blocks)
	copy(meta[1:], text)

	var out []byte
	first := true
	for len(audio) > 0 {
		n := min(metaint, len(audio))
		out = append(out, audio[:n]...)
		audio = audio[n:]
		if n < metaint {
			break
		}
		if first {
			out = append(out, meta...)
			first = false
		} else {
			out = append(out, 0)
		}
	}
	return out
}

func mpegHeader(extra ...string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "audio/mpeg")
	for i := 0; i+1 < len(extra); i += 2 {
		h.Set(extra[i], extra[i+1])
	}
	return h
}

type fakeStream struct {
	header http.Header
	body   []byte
	err    error
	hold   bool
}

type fakeTransport struct {
	mu      sync.Mutex
	streams map[string]fakeStream
	calls   []string
}

func (f *fakeTransport) Stream(ctx context.Context, url string, cb Callbacks) error {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	st, ok := f.streams[url]
	f.mu.Unlock()

	if !ok {
		return &httpStatusError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}
	}
	if st.err != nil {
		return st.err
	}
	if err := cb.OnHeader(st.header); err != nil {
		return err
	}
	for p := st.body; len(p) > 0; {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n := min(len(p), 1000)
		if err := cb.OnBody(p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	if st.hold {
		<-ctx.Done()
		return ctx.Err()
	}
	return ErrStreamEnded
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSink struct {
	mu      sync.Mutex
	rates   []int
	counts  []int
	closes  int
	open    bool
	volume  int
	openErr error
}

func (f *fakeSink) Open(sampleRate, channels, bufferSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.rates = append(f.rates, sampleRate)
	f.counts = append(f.counts, 0)
	f.open = true
	return nil
}

func (f *fakeSink) Output(ctx context.Context, pcm []int16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return output.ErrClosed
	}
	f.counts[len(f.counts)-1] += len(pcm)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		f.closes++
	}
	f.open = false
	return nil
}

func (f *fakeSink) SetVolume(percent int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = percent
}

type sinkSnapshot struct {
	rates  []int
	counts []int
	closes int
	open   bool
}

func (f *fakeSink) snapshot() sinkSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sinkSnapshot{
		rates:  append([]int(nil), f.rates...),
		counts: append([]int(nil), f.counts...),
		closes: f.closes,
		open:   f.open,
	}
}

type fakeResolver struct {
	urls []string
	err  error
}

func (r *fakeResolver) ResolveStreams(ctx context.Context, url string) ([]string, error) {
	return r.urls, r.err
}

func newTestController(t *testing.T, tr Transport, sink *fakeSink, resolver StreamResolver) *Controller {
	t.Helper()
	c := NewController(tr, sink, resolver, Options{Volume: 50})
	c.retryDelay = time.Millisecond
	c.idleSleep = 5 * time.Millisecond
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(c.Shutdown)
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestControllerPlaysStream(t *testing.T) {
	tr := &fakeTransport{streams: map[string]fakeStream{
		urlA: {header: mpegHeader("icy-name", "Station A", "icy-br", "128"), body: frames(frame44k, 20), hold: true},
	}}
	sink := &fakeSink{}
	c := newTestController(t, tr, sink, nil)

	if c.State() != StateIdle {
		t.Fatalf("initial state = %s, want IDLE", c.State())
	}
	if err := c.Play(station.Station{Title: "A", URL: urlA}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	waitFor(t, "all frames played", func() bool {
		s := sink.snapshot()
		return len(s.counts) == 1 && s.counts[0] == 20*samplesPerFrame
	})

	if c.State() != StatePlaying {
		t.Errorf("State() = %s, want LIVE", c.State())
	}
	if s := sink.snapshot(); s.rates[0] != 44100 {
		t.Errorf("sink opened at %d Hz, want 44100", s.rates[0])
	}

	meta := c.StreamMetadata()
	if meta.Name != "Station A" || meta.Bitrate != 128 || meta.SampleRate != 44100 || meta.Channels != 2 {
		t.Errorf("StreamMetadata() = %+v", meta)
	}

	stats := c.Stats()
	if stats.FramesDecoded != 20 {
		t.Errorf("Stats().FramesDecoded = %d, want 20", stats.FramesDecoded)
	}
	if stats.BytesReceived != int64(20*len(frame44k)) {
		t.Errorf("Stats().BytesReceived = %d", stats.BytesReceived)
	}
	if stats.BytesSkipped != 0 || stats.BytesDropped != 0 {
		t.Errorf("Stats() = %+v, want no skipped or dropped bytes", stats)
	}
	if st := c.CurrentStation(); st == nil || st.URL != urlA {
		t.Errorf("CurrentStation() = %v", st)
	}
}

func TestControllerStripsMetadataAndPublishesTitle(t *testing.T) {
	audio := frames(frame44k, 10)
	tr := &fakeTransport{streams: map[string]fakeStream{
		urlA: {header: mpegHeader("icy-metaint", "1000"), body: withMetadata(audio, 1000, "Artist - Song"), hold: true},
	}}
	sink := &fakeSink{}
	c := newTestController(t, tr, sink, nil)

	if err := c.Play(station.Station{URL: urlA}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "all frames played", func() bool {
		s := sink.snapshot()
		return len(s.counts) == 1 && s.counts[0] == 10*samplesPerFrame
	})

	title, fresh := c.Title()
	if title != "Artist - Song" || !fresh {
		t.Errorf("Title() = %q, %v", title, fresh)
	}
	if _, fresh := c.Title(); fresh {
		t.Error("second Title() should not report a change")
	}
	if c.Stats().BytesSkipped != 0 {
		t.Errorf("metadata leaked into audio: %d bytes skipped", c.Stats().BytesSkipped)
	}
}

func TestControllerSwitchDoesNotMixSessions(t *testing.T) {
	// Station A ends on half a frame. If it survived the switch it would
	// swallow the start of station B.
	bodyA := append(frames(frame44k, 20), frame44k[:200]...)
	tr := &fakeTransport{streams: map[string]fakeStream{
		urlA: {header: mpegHeader(), body: bodyA, hold: true},
		urlB: {header: mpegHeader(), body: frames(frame48k, 20), hold: true},
	}}
	sink := &fakeSink{}
	c := newTestController(t, tr, sink, nil)

	if err := c.Play(station.Station{URL: urlA}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "station A played", func() bool {
		s := sink.snapshot()
		return len(s.counts) == 1 && s.counts[0] == 20*samplesPerFrame
	})
	first := c.Session()

	if err := c.Play(station.Station{URL: urlB}); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateConnecting && c.State() != StatePlaying {
		t.Errorf("State() after switch = %s", c.State())
	}

	waitFor(t, "station B played", func() bool {
		s := sink.snapshot()
		return len(s.counts) == 2 && s.counts[1] == 20*samplesPerFrame
	})

	s := sink.snapshot()
	if s.rates[0] != 44100 || s.rates[1] != 48000 {
		t.Errorf("sink opened at %v, want [44100 48000]", s.rates)
	}
	if s.counts[0] != 20*samplesPerFrame {
		t.Errorf("station A samples = %d after switch", s.counts[0])
	}
	if s.closes < 1 {
		t.Error("sink was not closed between sessions")
	}

	if c.Session() == first || c.Session().ID == first.ID {
		t.Error("switch kept the old session")
	}
	if first.ctx.Err() == nil {
		t.Error("old session was not cancelled")
	}
	stats := c.Stats()
	if stats.FramesDecoded != 20 || stats.BytesSkipped != 0 {
		t.Errorf("Stats() after switch = %+v, want 20 frames and nothing skipped", stats)
	}
}

func TestControllerStop(t *testing.T) {
	tr := &fakeTransport{streams: map[string]fakeStream{
		urlA: {header: mpegHeader("icy-metaint", "1000"), body: withMetadata(frames(frame44k, 10), 1000, "Now"), hold: true},
	}}
	sink := &fakeSink{}
	c := newTestController(t, tr, sink, nil)

	if err := c.Play(station.Station{URL: urlA}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playback", func() bool { return c.CurrentTitle() == "Now" && sink.snapshot().open })

	c.Stop()
	if c.State() != StateIdle {
		t.Errorf("State() after Stop = %s, want IDLE", c.State())
	}
	if c.CurrentStation() != nil {
		t.Error("CurrentStation() should be nil after Stop")
	}

	waitFor(t, "teardown", func() bool {
		return !sink.snapshot().open && c.CurrentTitle() == "" && c.Stats().BufferFill == 0
	})
	if c.SessionDuration() != 0 {
		t.Error("SessionDuration() should be zero when idle")
	}

	// Stopping twice is harmless.
	c.Stop()
}

func TestControllerNonRetryableStatus(t *testing.T) {
	tr := &fakeTransport{streams: map[string]fakeStream{}}
	c := newTestController(t, tr, &fakeSink{}, nil)

	if err := c.Play(station.Station{URL: urlA}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "idle after 404", func() bool { return c.State() == StateIdle && c.LastError() != "" })

	if !strings.Contains(c.LastError(), "404") {
		t.Errorf("LastError() = %q, want it to mention 404", c.LastError())
	}
	if n := tr.callCount(); n != 1 {
		t.Errorf("transport called %d times, want 1", n)
	}
}

func TestControllerRetriesThenGivesUp(t *testing.T) {
	tr := &fakeTransport{streams: map[string]fakeStream{
		urlA: {err: errors.New("connection refused")},
	}}
	c := newTestController(t, tr, &fakeSink{}, nil)

	if err := c.Play(station.Station{URL: urlA}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "idle after retries", func() bool { return c.State() == StateIdle && c.LastError() != "" })

	if n := tr.callCount(); n != MaxRetries+1 {
		t.Errorf("transport called %d times, want %d", n, MaxRetries+1)
	}
	if !strings.Contains(c.LastError(), "all streams failed") {
		t.Errorf("LastError() = %q", c.LastError())
	}
}

func TestControllerUnsupportedCodec(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/ogg")
	tr := &fakeTransport{streams: map[string]fakeStream{
		urlA: {header: h, body: []byte("OggS"), hold: true},
	}}
	c := newTestController(t, tr, &fakeSink{}, nil)

	if err := c.Play(station.Station{URL: urlA}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "idle", func() bool { return c.State() == StateIdle && c.LastError() != "" })

	if !strings.Contains(c.LastError(), "unsupported") {
		t.Errorf("LastError() = %q", c.LastError())
	}
	if n := tr.callCount(); n != 1 {
		t.Errorf("transport called %d times, want 1", n)
	}
}

func TestControllerSinkOpenFailureEndsSession(t *testing.T) {
	tr := &fakeTransport{streams: map[string]fakeStream{
		urlA: {header: mpegHeader(), body: frames(frame44k, 5), hold: true},
	}}
	sink := &fakeSink{openErr: errors.New("no audio device")}
	c := newTestController(t, tr, sink, nil)

	if err := c.Play(station.Station{URL: urlA}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "idle", func() bool { return c.State() == StateIdle && c.LastError() != "" })

	if !strings.Contains(c.LastError(), "no audio device") {
		t.Errorf("LastError() = %q", c.LastError())
	}

	// The controller can still play another station.
	sink.mu.Lock()
	sink.openErr = nil
	sink.mu.Unlock()
	if err := c.Play(station.Station{URL: urlA}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "second attempt plays", func() bool {
		s := sink.snapshot()
		return len(s.counts) == 1 && s.counts[0] == 5*samplesPerFrame
	})
}

func TestControllerLostSyncEndsSession(t *testing.T) {
	garbage := bytes.Repeat([]byte{0x12, 0x34}, 40000)
	tr := &fakeTransport{streams: map[string]fakeStream{
		urlA: {header: mpegHeader(), body: garbage, hold: true},
	}}
	c := newTestController(t, tr, &fakeSink{}, nil)

	if err := c.Play(station.Station{URL: urlA}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "idle", func() bool { return c.State() == StateIdle && c.LastError() != "" })

	if !strings.Contains(c.LastError(), "lost sync") {
		t.Errorf("LastError() = %q", c.LastError())
	}
}

func TestControllerResolvesPlaylist(t *testing.T) {
	tr := &fakeTransport{streams: map[string]fakeStream{
		urlB: {header: mpegHeader(), body: frames(frame48k, 3), hold: true},
	}}
	sink := &fakeSink{}
	resolver := &fakeResolver{urls: []string{urlA, urlB}}
	c := newTestController(t, tr, sink, resolver)

	if err := c.Play(station.Station{URL: "http://example.com/station.pls"}); err != nil {
		t.Fatal(err)
	}

	// urlA is unknown to the transport (404) and gets dropped from rotation.
	waitFor(t, "second stream played", func() bool {
		s := sink.snapshot()
		return len(s.counts) == 1 && s.counts[0] == 3*samplesPerFrame
	})

	tr.mu.Lock()
	calls := append([]string(nil), tr.calls...)
	tr.mu.Unlock()
	if len(calls) != 2 || calls[0] != urlA || calls[1] != urlB {
		t.Errorf("transport calls = %v", calls)
	}
}

func TestControllerResolveFailure(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("playlist returned status 500")}
	c := newTestController(t, &fakeTransport{}, &fakeSink{}, resolver)

	if err := c.Play(station.Station{URL: "http://example.com/station.m3u"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "idle", func() bool { return c.State() == StateIdle && c.LastError() != "" })

	if !strings.Contains(c.LastError(), "resolve playlist") {
		t.Errorf("LastError() = %q", c.LastError())
	}
}

func TestControllerLifecycleErrors(t *testing.T) {
	c := NewController(&fakeTransport{}, &fakeSink{}, nil, Options{})

	if err := c.Play(station.Station{URL: urlA}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Play() before Start = %v, want ErrNotStarted", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Errorf("second Start() = %v", err)
	}

	c.Shutdown()
	if c.State() != StateStopping {
		t.Errorf("State() after Shutdown = %s, want STOPPING", c.State())
	}
	if err := c.Play(station.Station{URL: urlA}); !errors.Is(err, ErrShutdown) {
		t.Errorf("Play() after Shutdown = %v, want ErrShutdown", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Errorf("Start() after Shutdown = %v, want ErrShutdown", err)
	}
	c.Shutdown()
}

func TestControllerShutdownWhilePlaying(t *testing.T) {
	tr := &fakeTransport{streams: map[string]fakeStream{
		urlA: {header: mpegHeader(), body: frames(frame44k, 5), hold: true},
	}}
	sink := &fakeSink{}
	c := NewController(tr, sink, nil, Options{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(station.Station{URL: urlA}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playback", func() bool { return sink.snapshot().open })

	done := make(chan struct{})
	go func() {
		c.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown() did not return")
	}
	if sink.snapshot().open {
		t.Error("sink still open after Shutdown")
	}
	if c.State() != StateStopping {
		t.Errorf("State() = %s, want STOPPING", c.State())
	}
}

func TestControllerVolume(t *testing.T) {
	sink := &fakeSink{}
	c := NewController(&fakeTransport{}, sink, nil, Options{Volume: 40})

	if c.Volume() != 40 || sink.volume != 40 {
		t.Errorf("initial volume = %d (sink %d), want 40", c.Volume(), sink.volume)
	}

	tests := []struct {
		set, want int
	}{
		{75, 75},
		{150, 100},
		{-5, 0},
	}
	for _, tt := range tests {
		if got := c.SetVolume(tt.set); got != tt.want {
			t.Errorf("SetVolume(%d) = %d, want %d", tt.set, got, tt.want)
		}
		if c.Volume() != tt.want || sink.volume != tt.want {
			t.Errorf("after SetVolume(%d): Volume() = %d, sink = %d", tt.set, c.Volume(), sink.volume)
		}
	}
}

func TestWriteAudioDropsWhenFull(t *testing.T) {
	c := NewController(&fakeTransport{}, &fakeSink{}, nil, Options{RingSize: 100})
	c.fullRetry = time.Millisecond
	c.fullStall = 5 * time.Millisecond

	s := newSession(context.Background(), station.Station{URL: urlA})
	defer s.cancel()

	start := time.Now()
	c.writeAudio(s, make([]byte, 300))

	if got := c.Stats().BytesDropped; got != 201 {
		t.Errorf("BytesDropped = %d, want 201", got)
	}
	if c.ring.Available() != 99 {
		t.Errorf("ring holds %d bytes, want 99", c.ring.Available())
	}
	if time.Since(start) < c.fullStall {
		t.Error("writeAudio dropped without waiting for the consumer")
	}
}

func TestWriteAudioStopsOnCancel(t *testing.T) {
	c := NewController(&fakeTransport{}, &fakeSink{}, nil, Options{RingSize: 100})
	c.fullStall = time.Hour

	s := newSession(context.Background(), station.Station{URL: urlA})
	s.cancel()

	c.writeAudio(s, make([]byte, 300))
	if got := c.Stats().BytesDropped; got != 0 {
		t.Errorf("BytesDropped = %d, want 0 for a cancelled session", got)
	}
}

func TestSpectrumBeforePlayback(t *testing.T) {
	c := NewController(&fakeTransport{}, &fakeSink{}, nil, Options{Bars: 16})
	bands := c.Spectrum(nil)
	if len(bands) != 16 || c.Bars() != 16 {
		t.Fatalf("Spectrum() returned %d bands, want 16", len(bands))
	}
	for i, v := range bands {
		if v != 0 {
			t.Errorf("band %d = %v, want 0 before playback", i, v)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{ChunkSize: 1 << 20}.withDefaults()
	if o.ChunkSize != 4096 || o.RingSize <= 0 || o.OutputFrames <= 0 || o.Bars <= 0 || o.WindowSize <= 0 {
		t.Errorf("withDefaults() = %+v", o)
	}
}

func TestControllerReconnectDropsPartialFrame(t *testing.T) {
	tests := []struct {
		name    string
		partial int
	}{
		{"frame boundary", 0},
		{"header only", 4},
		{"mid frame", 200},
		{"one byte short", len(frame44k) - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := append(frames(frame44k, 20), frame44k[:tt.partial]...)
			tr := &fakeTransport{streams: map[string]fakeStream{
				urlA: {header: mpegHeader(), body: first},
				urlB: {header: mpegHeader(), body: frames(frame44k, 20), hold: true},
			}}
			sink := &fakeSink{}
			resolver := &fakeResolver{urls: []string{urlA, urlB}}
			c := newTestController(t, tr, sink, resolver)

			if err := c.Play(station.Station{URL: "http://example.com/station.pls"}); err != nil {
				t.Fatal(err)
			}
			waitFor(t, "both connections played", func() bool {
				s := sink.snapshot()
				return len(s.counts) == 1 && s.counts[0] == 40*samplesPerFrame
			})

			stats := c.Stats()
			if stats.FramesDecoded != 40 {
				t.Errorf("FramesDecoded = %d, want 40", stats.FramesDecoded)
			}
			if stats.BytesSkipped != 0 {
				t.Errorf("BytesSkipped = %d, want 0", stats.BytesSkipped)
			}
		})
	}
}
