// Package icy separates SHOUTcast/Icecast in-band metadata from the audio
// bytes of a stream.
package icy

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// MaxMetadataLength is the largest block a length byte can announce (255 * 16).
const MaxMetadataLength = 255 * 16

type splitState int

const (
	stateAudio splitState = iota
	stateLength
	stateMeta
)

// Splitter routes the audio bytes of an ICY stream to one callback and the
// parsed stream titles to another.
//
// After every metaint audio bytes the server inserts one length byte followed
// by length*16 bytes of metadata. The protocol position is carried across
// Write calls, so a metadata block may be split over any number of reads.
type Splitter struct {
	metaint int
	count   int
	state   splitState
	metaLen int
	meta    []byte

	onAudio func([]byte)
	onTitle func(string)

	audioBytes int64
	metaBlocks int64
}

// NewSplitter creates a splitter for the given metadata interval. A metaint of
// zero disables metadata handling and every byte is treated as audio.
// onTitle may be nil.
func NewSplitter(metaint int, onAudio func([]byte), onTitle func(string)) *Splitter {
	if metaint < 0 {
		metaint = 0
	}
	return &Splitter{
		metaint: metaint,
		count:   metaint,
		state:   stateAudio,
		onAudio: onAudio,
		onTitle: onTitle,
		meta:    make([]byte, 0, MaxMetadataLength),
	}
}

// Write consumes a raw chunk from the network. It always accepts the whole chunk.
func (s *Splitter) Write(p []byte) (int, error) {
	total := len(p)

	if s.metaint == 0 {
		s.emitAudio(p)
		return total, nil
	}

	for len(p) > 0 {
		switch s.state {
		case stateAudio:
			n := s.count
			if n > len(p) {
				n = len(p)
			}
			s.emitAudio(p[:n])
			s.count -= n
			p = p[n:]
			if s.count == 0 {
				s.state = stateLength
			}

		case stateLength:
			s.metaLen = int(p[0]) * 16
			p = p[1:]
			s.meta = s.meta[:0]
			if s.metaLen == 0 {
				s.count = s.metaint
				s.state = stateAudio
			} else {
				s.state = stateMeta
			}

		case stateMeta:
			n := s.metaLen - len(s.meta)
			if n > len(p) {
				n = len(p)
			}
			s.meta = append(s.meta, p[:n]...)
			p = p[n:]
			if len(s.meta) == s.metaLen {
				s.handleMetadata(s.meta)
				s.meta = s.meta[:0]
				s.count = s.metaint
				s.state = stateAudio
			}
		}
	}

	return total, nil
}

// Remaining returns how many audio bytes are left before the next length byte.
func (s *Splitter) Remaining() int {
	return s.count
}

// AudioBytes returns the total number of audio bytes emitted.
func (s *Splitter) AudioBytes() int64 {
	return s.audioBytes
}

// MetadataBlocks returns the number of non-empty metadata blocks seen.
func (s *Splitter) MetadataBlocks() int64 {
	return s.metaBlocks
}

func (s *Splitter) emitAudio(p []byte) {
	if len(p) == 0 {
		return
	}
	s.audioBytes += int64(len(p))
	if s.onAudio != nil {
		s.onAudio(p)
	}
}

func (s *Splitter) handleMetadata(block []byte) {
	s.metaBlocks++
	title, ok := ParseStreamTitle(block)
	if !ok {
		log.Debug().Int("len", len(block)).Msg("ICY metadata without StreamTitle, ignoring")
		return
	}
	if s.onTitle != nil {
		s.onTitle(title)
	}
}

// ParseMetaInt returns the icy-metaint interval advertised in the response
// headers, or 0 when it is missing or malformed.
func ParseMetaInt(h http.Header) int {
	val := strings.TrimSpace(h.Get("icy-metaint"))
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		log.Debug().Str("icy-metaint", val).Msg("Ignoring malformed metadata interval")
		return 0
	}
	return n
}
