package output

import (
	"context"
	"sync"
	"time"
)

const fadeInDuration = 50 * time.Millisecond

// pcmStreamer is the beep.Streamer end of a sink. Output pushes sample frames
// into a channel; Stream drains it without blocking, so an empty queue plays
// silence instead of holding the speaker lock while the network catches up.
type pcmStreamer struct {
	frames chan [2]float64
	done   chan struct{}
	once   sync.Once

	fadeInRemaining int
	fadeInTotal     int
}

func newPCMStreamer(queue, fadeIn int) *pcmStreamer {
	return &pcmStreamer{
		frames:          make(chan [2]float64, max(queue, 1)),
		done:            make(chan struct{}),
		fadeInRemaining: fadeIn,
		fadeInTotal:     fadeIn,
	}
}

// push converts interleaved int16 PCM and queues it. Mono is played on both
// sides; channels beyond the second are dropped.
func (s *pcmStreamer) push(ctx context.Context, pcm []int16, channels int) error {
	if channels < 1 {
		channels = 1
	}
	for i := 0; i+channels <= len(pcm); i += channels {
		var frame [2]float64
		frame[0] = float64(pcm[i]) / 32768
		if channels > 1 {
			frame[1] = float64(pcm[i+1]) / 32768
		} else {
			frame[1] = frame[0]
		}

		select {
		case s.frames <- frame:
		case <-s.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *pcmStreamer) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *pcmStreamer) buffered() int {
	return len(s.frames)
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	audioEnd := 0

	select {
	case <-s.done:
	default:
	fill:
		for i := range samples {
			select {
			case frame := <-s.frames:
				samples[i] = frame
				audioEnd = i + 1
			default:
				break fill
			}
		}
	}

	for i := audioEnd; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}

	if s.fadeInRemaining > 0 {
		for i := 0; i < audioEnd && s.fadeInRemaining > 0; i++ {
			pos := s.fadeInTotal - s.fadeInRemaining
			scale := float64(pos) / float64(s.fadeInTotal)
			samples[i][0] *= scale
			samples[i][1] *= scale
			s.fadeInRemaining--
		}
	}

	return len(samples), true
}

func (s *pcmStreamer) Err() error {
	return nil
}
