package player

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/glebovdev/webradio/internal/decoder"
	"github.com/glebovdev/webradio/internal/icy"
	"github.com/rs/zerolog/log"
)

// produce is the network side of a session. It connects, strips ICY metadata
// and writes audio bytes into the ring buffer until the session is cancelled
// or every retry has failed.
func (c *Controller) produce(s *Session) {
	defer close(s.done)
	defer log.Debug().Str("session", s.ID).Msg("Network producer stopped")

	urls, err := c.resolveStreams(s)
	if err != nil {
		if s.ctx.Err() == nil {
			c.endSession(s, err)
		}
		return
	}

	var lastErr error
	attempt := 0
	idx := 0

	for {
		streamURL := urls[idx]
		log.Debug().Msgf("Trying stream %d/%d (attempt %d/%d): %s", idx+1, len(urls), attempt, c.maxRetries, streamURL)

		connected, err := c.stream(s, streamURL)
		if s.ctx.Err() != nil {
			return
		}
		lastErr = err

		// A stream that played before dropping gets a fresh set of retries.
		if connected {
			attempt = 0
		}

		if isNonRetryableError(err) {
			log.Warn().Err(err).Msgf("Non-retryable error for %s, moving to next URL", streamURL)
			urls = append(urls[:idx], urls[idx+1:]...)
			if len(urls) == 0 {
				break
			}
			idx %= len(urls)
			continue
		}

		attempt++
		if attempt > c.maxRetries {
			break
		}
		idx = (idx + 1) % len(urls)

		c.markReconnecting(s)
		log.Warn().Err(err).Msgf("Stream failed, retrying in %v... (%d/%d)", c.retryDelay, attempt, c.maxRetries)

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(c.retryDelay):
		}
	}

	c.endSession(s, fmt.Errorf("all streams failed: %w", lastErr))
}

// stream runs one connection. connected reports whether the headers were
// accepted, i.e. whether the session reached Playing on this attempt.
func (c *Controller) stream(s *Session, streamURL string) (connected bool, err error) {
	var splitter *icy.Splitter

	err = c.transport.Stream(s.ctx, streamURL, Callbacks{
		OnHeader: func(h http.Header) error {
			meta := metadataFromHeader(h, streamURL)
			if meta.Codec != decoder.KindMP3 && meta.Codec != decoder.KindAAC {
				return fmt.Errorf("%w: %q", decoder.ErrUnsupported, meta.ContentType)
			}
			// The consumer already picked a decoder for this session.
			if prev := s.Metadata().Codec; prev != decoder.KindUnknown && prev != meta.Codec {
				return fmt.Errorf("%w: %s to %s", errCodecChanged, prev, meta.Codec)
			}

			s.setMetadata(meta)
			splitter = icy.NewSplitter(meta.MetaInt,
				func(p []byte) { c.writeAudio(s, p) },
				c.titles.Publish,
			)

			connected = true
			c.markConnected(s)
			log.Debug().Msgf("Stream info: %s %dk, metaint %d, %q", meta.Codec, meta.Bitrate, meta.MetaInt, meta.Name)

			if gen := s.conn.Add(1); gen > 1 {
				return c.awaitDrain(s, gen)
			}
			return nil
		},
		OnBody: func(p []byte) error {
			if splitter == nil {
				return errors.New("stream body before headers")
			}
			c.bytesReceived.Add(int64(len(p)))
			_, err := splitter.Write(p)
			return err
		},
	})
	return connected, err
}

func (c *Controller) resolveStreams(s *Session) ([]string, error) {
	if !s.Station.IsPlaylist() {
		return []string{s.Station.URL}, nil
	}
	if c.resolver == nil {
		return nil, fmt.Errorf("no playlist resolver for %s", s.Station.URL)
	}

	ctx, cancel := context.WithTimeout(s.ctx, resolveTimeout)
	defer cancel()

	urls, err := c.resolver.ResolveStreams(ctx, s.Station.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve playlist: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no stream URLs in playlist %s", s.Station.URL)
	}

	log.Debug().Msgf("Found %d stream URLs in playlist", len(urls))
	return urls, nil
}

// awaitDrain blocks until the consumer has processed every byte of the
// previous connection and dropped its partial frame, so a frame is never
// assembled from two connections.
func (c *Controller) awaitDrain(s *Session, gen uint64) error {
	for s.drained.Load() < gen {
		c.poke()
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-time.After(c.fullRetry):
		}
	}
	return nil
}

// writeAudio pushes p into the ring buffer. A full buffer is retried while
// the consumer makes room; after a stall of fullStall the rest is dropped.
func (c *Controller) writeAudio(s *Session, p []byte) {
	var stalled time.Duration

	for len(p) > 0 {
		n := c.ring.Write(p)
		p = p[n:]
		if n > 0 {
			c.poke()
			stalled = 0
		}
		if len(p) == 0 {
			return
		}

		if stalled >= c.fullStall {
			c.bytesDropped.Add(int64(len(p)))
			log.Warn().Int("bytes", len(p)).Msg("Ring buffer full, dropping audio")
			return
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(c.fullRetry):
		}
		stalled += c.fullRetry
	}
}
