package frame

import (
	"errors"
	"fmt"
)

const (
	// MaxFrameSize is the largest frame the window can hold (13-bit ADTS length).
	MaxFrameSize = 8191
	// DefaultMaxSkip is how many bytes may be discarded in a row before the
	// stream is considered unreadable.
	DefaultMaxSkip = 64 * 1024
)

// ErrLostSync is returned by Feed when no valid frame header was found within
// the skip limit.
var ErrLostSync = errors.New("frame: lost sync, no valid header found")

// HeaderCheck validates a candidate header at the start of window and returns the
// full length of the frame it announces.
type HeaderCheck func(window []byte) (int, error)

type resyncState int

const (
	stateSeeking resyncState = iota
	stateHaveHeader
)

// Resync is a sliding-window frame finder. While seeking it appends one byte at
// a time and tries to validate a header at the window start; on failure the
// oldest byte is dropped. Once a header validates it collects bytes up to the
// declared frame length and hands the complete frame to the caller.
//
// The window is a fixed array with a start index, so dropping a byte is an
// index increment rather than a memory move.
type Resync struct {
	name       string
	check      HeaderCheck
	headerSize int
	maxSkip    int

	buf      []byte
	start    int
	end      int
	state    resyncState
	frameLen int

	skipRun int
	skipped int64
	frames  int64
}

// NewResync creates a resynchronizer around a format-specific check.
func NewResync(name string, headerSize int, check HeaderCheck) *Resync {
	return &Resync{
		name:       name,
		check:      check,
		headerSize: headerSize,
		maxSkip:    DefaultMaxSkip,
		buf:        make([]byte, MaxFrameSize+headerSize),
	}
}

// NewADTSResync finds ADTS (AAC) frames.
func NewADTSResync() *Resync {
	return NewResync("adts", ADTSHeaderSize, func(window []byte) (int, error) {
		h, err := ParseADTSHeader(window)
		if err != nil {
			return 0, err
		}
		return h.FrameLength, nil
	})
}

// NewMP3Resync finds MPEG audio Layer III frames.
func NewMP3Resync() *Resync {
	return NewResync("mp3", MPEGHeaderSize, func(window []byte) (int, error) {
		h, err := ParseMPEGHeader(window)
		if err != nil {
			return 0, err
		}
		if h.Layer != 3 {
			return 0, ErrBadLayer
		}
		return h.FrameLength, nil
	})
}

// SetMaxSkip changes how many bytes may be discarded in a row before Feed
// reports ErrLostSync. Zero or less disables the limit.
func (r *Resync) SetMaxSkip(n int) {
	r.maxSkip = n
}

// Feed pushes stream bytes through the resynchronizer. Every complete frame is
// passed to emit; the slice is only valid for the duration of the call.
func (r *Resync) Feed(p []byte, emit func(frame []byte)) error {
	for len(p) > 0 {
		switch r.state {
		case stateSeeking:
			if r.end == len(r.buf) {
				r.compact()
			}
			r.buf[r.end] = p[0]
			r.end++
			p = p[1:]

			if r.end-r.start < r.headerSize {
				continue
			}

			length, err := r.check(r.buf[r.start:r.end])
			if err != nil || length > MaxFrameSize {
				r.start++
				r.skipped++
				r.skipRun++
				if r.maxSkip > 0 && r.skipRun > r.maxSkip {
					r.skipRun = 0
					return fmt.Errorf("%w (%s, %d bytes skipped)", ErrLostSync, r.name, r.maxSkip)
				}
				continue
			}

			r.compact()
			r.frameLen = length
			r.state = stateHaveHeader

		case stateHaveHeader:
			need := r.frameLen - (r.end - r.start)
			n := min(need, len(p))
			copy(r.buf[r.end:], p[:n])
			r.end += n
			p = p[n:]
		}

		if r.state == stateHaveHeader && r.end-r.start == r.frameLen {
			r.frames++
			r.skipRun = 0
			emit(r.buf[r.start:r.end])
			r.start, r.end = 0, 0
			r.state = stateSeeking
		}
	}
	return nil
}

func (r *Resync) compact() {
	if r.start == 0 {
		return
	}
	n := copy(r.buf, r.buf[r.start:r.end])
	r.start, r.end = 0, n
}

// Discard drops any partial frame and returns to seeking. Counters are kept.
func (r *Resync) Discard() {
	r.start, r.end = 0, 0
	r.state = stateSeeking
	r.frameLen = 0
	r.skipRun = 0
}

// Reset discards any partial frame, returns to seeking and zeroes the
// counters.
func (r *Resync) Reset() {
	r.Discard()
	r.skipped = 0
	r.frames = 0
}

// Buffered returns the number of bytes held in the window.
func (r *Resync) Buffered() int {
	return r.end - r.start
}

// Frames returns how many frames have been emitted.
func (r *Resync) Frames() int64 {
	return r.frames
}

// Skipped returns how many bytes were discarded while seeking.
func (r *Resync) Skipped() int64 {
	return r.skipped
}
