// Package ringbuf provides the fixed-capacity byte queue that sits between the
// network producer and the audio consumer.
package ringbuf

import "sync"

const (
	// DefaultCapacity holds roughly a minute of a 128 kbps stream.
	DefaultCapacity = 1 << 20
	// MaxChunk bounds a single ReadInto copy.
	MaxChunk = 4096
)

// Buffer is a single-producer, single-consumer circular byte queue.
//
// One slot is always kept empty so that a full buffer can be told apart from an
// empty one: a buffer of capacity C holds at most C-1 bytes. The mutex only
// guards the indices; the byte copies run outside of it. This is safe because
// the writer only ever touches free space and the reader only ever touches
// committed data, and each side publishes its progress under the lock.
//
// Exactly one goroutine may call Write and exactly one may call ReadInto.
type Buffer struct {
	mu   sync.Mutex
	buf  []byte
	rpos int
	wpos int
}

// New creates a buffer with the given capacity in bytes. Capacities below 2
// are raised to 2 so that at least one byte can be stored.
func New(capacity int) *Buffer {
	if capacity < 2 {
		capacity = 2
	}
	return &Buffer{buf: make([]byte, capacity)}
}

// Cap returns the capacity passed to New.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Write copies as much of p as fits and returns the number of bytes accepted.
// It never blocks and never overwrites unread data; the caller decides what
// to do with the rest.
func (b *Buffer) Write(p []byte) int {
	b.mu.Lock()
	r, w := b.rpos, b.wpos
	b.mu.Unlock()

	size := len(b.buf)
	free := (r - w - 1 + size) % size
	n := len(p)
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	first := size - w
	if first >= n {
		copy(b.buf[w:w+n], p[:n])
	} else {
		copy(b.buf[w:], p[:first])
		copy(b.buf[:n-first], p[first:n])
	}

	b.mu.Lock()
	b.wpos = (w + n) % size
	b.mu.Unlock()

	return n
}

// Available returns the number of unread bytes.
func (b *Buffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used()
}

// Free returns how many bytes Write would currently accept.
func (b *Buffer) Free() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf) - 1 - b.used()
}

// FillPercent returns the fill level in the range [0, 100].
func (b *Buffer) FillPercent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used() * 100 / (len(b.buf) - 1)
}

func (b *Buffer) used() int {
	return (b.wpos - b.rpos + len(b.buf)) % len(b.buf)
}

// ReadInto copies up to len(p) unread bytes into p, bounded by MaxChunk, and
// returns the number copied.
func (b *Buffer) ReadInto(p []byte) int {
	b.mu.Lock()
	r, w := b.rpos, b.wpos
	b.mu.Unlock()

	size := len(b.buf)
	n := (w - r + size) % size
	if n > len(p) {
		n = len(p)
	}
	if n > MaxChunk {
		n = MaxChunk
	}
	if n == 0 {
		return 0
	}

	first := size - r
	if first >= n {
		copy(p[:n], b.buf[r:r+n])
	} else {
		copy(p[:first], b.buf[r:])
		copy(p[first:n], b.buf[:n-first])
	}

	b.mu.Lock()
	b.rpos = (r + n) % size
	b.mu.Unlock()

	return n
}

// Reset discards all unread data and moves both indices back to zero.
// Neither the writer nor the reader may be inside Write or ReadInto.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.rpos = 0
	b.wpos = 0
	b.mu.Unlock()
}
