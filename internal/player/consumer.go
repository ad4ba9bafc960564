package player

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebovdev/webradio/internal/decoder"
	"github.com/glebovdev/webradio/internal/frame"
	"github.com/rs/zerolog/log"
)

// pcmBufferSize is the number of int16 samples taken per Decode call: one
// stereo MP3 frame.
const pcmBufferSize = 1152 * 2

// pipeline is the consumer's view of the session it is serving. Only the
// consumer goroutine touches it.
type pipeline struct {
	session  *Session
	dec      decoder.Decoder
	resync   *frame.Resync
	sinkOpen bool
	pcm      []int16
	conn     uint64 // connection whose bytes are in the frame window
}

// consume is the long-lived audio loop. It notices session changes between
// chunks and never lets bytes of two sessions meet in the same buffer.
func (c *Controller) consume() {
	defer close(c.consumerDone)

	p := &pipeline{pcm: make([]int16, pcmBufferSize)}
	resyncs := map[decoder.CodecKind]*frame.Resync{
		decoder.KindMP3: frame.NewMP3Resync(),
		decoder.KindAAC: frame.NewADTSResync(),
	}
	chunk := make([]byte, c.opts.ChunkSize)

	for {
		if c.ctx.Err() != nil {
			c.teardown(p, resyncs)
			c.mu.Lock()
			c.session = nil
			c.setStateLocked(StateStopping)
			c.mu.Unlock()
			return
		}

		if target := c.currentSession(); target != p.session {
			c.teardown(p, resyncs)
			if target != nil && target.ctx.Err() == nil {
				p.session = target
				target.started = true
				go c.produce(target)
				log.Debug().Str("session", target.ID).Msg("Network producer started")
			}
			continue
		}

		if p.session == nil {
			c.sleep()
			continue
		}

		if conn := p.session.conn.Load(); conn != p.conn && c.ring.Available() == 0 {
			if p.resync != nil {
				p.resync.Discard()
			}
			p.conn = conn
			p.session.drained.Store(conn)
		}

		n := c.ring.ReadInto(chunk)
		if n == 0 {
			c.sleep()
			continue
		}

		if p.resync == nil {
			codec := p.session.Metadata().Codec
			dec, err := decoder.New(codec)
			if err != nil {
				c.endSession(p.session, err)
				continue
			}
			p.dec = dec
			p.resync = resyncs[codec]
		}

		if err := c.process(p, chunk[:n]); err != nil {
			c.endSession(p.session, err)
		}
	}
}

// teardown releases everything held for the current session. The producer
// is joined first so nothing writes into the ring while it is reset.
func (c *Controller) teardown(p *pipeline, resyncs map[decoder.CodecKind]*frame.Resync) {
	if p.session == nil {
		return
	}

	s := p.session
	s.cancel()
	s.join()

	if p.dec != nil {
		if err := p.dec.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close decoder")
		}
	}
	if p.sinkOpen {
		if err := c.sink.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close audio output")
		}
	}

	c.ring.Reset()
	for _, r := range resyncs {
		r.Reset()
	}
	c.analyzer.Reset()
	c.titles.Clear()
	c.resetStats()

	p.session = nil
	p.dec = nil
	p.resync = nil
	p.sinkOpen = false
	p.conn = 0

	log.Debug().Str("session", s.ID).Msg("Session torn down")
}

func (c *Controller) sleep() {
	timer := time.NewTimer(c.idleSleep)
	defer timer.Stop()

	select {
	case <-c.wake:
	case <-timer.C:
	case <-c.ctx.Done():
	}
}

// process runs one chunk through the resynchronizer and decoder. The returned
// error ends the session.
func (c *Controller) process(p *pipeline, data []byte) error {
	var fatal error

	err := p.resync.Feed(data, func(f []byte) {
		if fatal != nil || p.session.ctx.Err() != nil {
			return
		}
		fatal = c.decodeFrame(p, f)
	})
	c.bytesSkipped.Store(p.resync.Skipped())

	if err != nil {
		return err
	}
	return fatal
}

func (c *Controller) decodeFrame(p *pipeline, f []byte) error {
	if err := p.dec.Feed(f); err != nil {
		if errors.Is(err, decoder.ErrInit) {
			return err
		}
		log.Debug().Err(err).Msg("Skipping undecodable frame")
		return nil
	}
	c.framesDecoded.Add(1)

	for p.session.ctx.Err() == nil {
		n, changed, err := p.dec.Decode(p.pcm)
		if err != nil {
			if errors.Is(err, decoder.ErrInit) {
				return err
			}
			log.Debug().Err(err).Msg("Decode error")
			return nil
		}

		if changed {
			if err := c.openOutput(p); err != nil {
				return err
			}
		}
		if n == 0 {
			return nil
		}

		c.analyzer.Push(p.pcm[:n])
		if err := c.sink.Output(p.session.ctx, p.pcm[:n]); err != nil {
			if p.session.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("audio output: %w", err)
		}
	}
	return nil
}

// openOutput (re)opens the sink and the analyzer for the decoder's format.
func (c *Controller) openOutput(p *pipeline) error {
	f := p.dec.Format()

	if p.sinkOpen {
		if err := c.sink.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close audio output")
		}
		p.sinkOpen = false
	}

	if err := c.sink.Open(f.SampleRate, f.Channels, c.opts.OutputFrames); err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}
	p.sinkOpen = true

	c.analyzer.Configure(f.SampleRate, f.Channels)
	p.session.setFormat(f.SampleRate, f.Channels)

	log.Debug().Str("format", f.String()).Msg("Audio format changed")
	return nil
}
