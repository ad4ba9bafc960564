// Package decoder turns compressed audio frames into interleaved 16-bit PCM.
package decoder

import (
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
)

var (
	// ErrInit is returned when no decoder instance can be established for the
	// stream. It ends the session.
	ErrInit = errors.New("decoder: initialization failed")
	// ErrUnsupported is returned by New for codecs without an adapter.
	ErrUnsupported = errors.New("decoder: unsupported codec")
)

type CodecKind int

const (
	KindUnknown CodecKind = iota
	KindMP3
	KindAAC
	KindOther
)

func (k CodecKind) String() string {
	switch k {
	case KindMP3:
		return "MP3"
	case KindAAC:
		return "AAC"
	case KindOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Format describes the PCM produced by a decoder.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) IsZero() bool {
	return f.SampleRate == 0 || f.Channels == 0
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch", f.SampleRate, f.Channels)
}

// Decoder is the uniform contract over the codec libraries.
//
// Feed hands over one complete compressed frame. Decode copies decoded,
// interleaved samples into out and returns how many were written; zero with a
// nil error means more input is needed. formatChanged is true exactly once
// per new format, before any sample of that format is returned.
type Decoder interface {
	Feed(frame []byte) error
	Decode(out []int16) (n int, formatChanged bool, err error)
	Format() Format
	Close() error
}

var contentTypes = map[string]CodecKind{
	"audio/mpeg":      KindMP3,
	"audio/mp3":       KindMP3,
	"audio/mpeg3":     KindMP3,
	"audio/x-mpeg":    KindMP3,
	"audio/aac":       KindAAC,
	"audio/aacp":      KindAAC,
	"audio/x-aac":     KindAAC,
	"audio/mp4a-latm": KindAAC,
}

// KindFromContentType maps an HTTP Content-Type header to a codec.
func KindFromContentType(contentType string) CodecKind {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return KindUnknown
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}

	if kind, ok := contentTypes[strings.ToLower(strings.TrimSpace(mediaType))]; ok {
		return kind
	}
	return KindOther
}

// KindFromURL guesses the codec from the stream URL's extension. Used when the
// server sends no Content-Type.
func KindFromURL(rawURL string) CodecKind {
	p, _, _ := strings.Cut(rawURL, "?")
	switch strings.ToLower(path.Ext(p)) {
	case ".mp3":
		return KindMP3
	case ".aac", ".aacp", ".adts":
		return KindAAC
	default:
		return KindUnknown
	}
}

// New returns the adapter for kind.
func New(kind CodecKind) (Decoder, error) {
	switch kind {
	case KindMP3:
		return newMP3Decoder(), nil
	case KindAAC:
		return newAACDecoder(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
}
