package player

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/glebovdev/webradio/internal/decoder"
	"github.com/glebovdev/webradio/internal/icy"
)

type PlayerState int

const (
	StateIdle PlayerState = iota
	StateConnecting
	StatePlaying
	StateStopping
)

func (s PlayerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StatePlaying:
		return "LIVE"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// StreamMetadata describes the stream of the current session. Codec and the
// ICY fields come from the response headers; SampleRate and Channels are
// filled in once the decoder reports its format.
type StreamMetadata struct {
	Codec       decoder.CodecKind
	ContentType string
	MetaInt     int
	Name        string
	Bitrate     int
	SampleRate  int
	Channels    int
}

func metadataFromHeader(h http.Header, streamURL string) StreamMetadata {
	meta := StreamMetadata{
		ContentType: h.Get("Content-Type"),
		MetaInt:     icy.ParseMetaInt(h),
		Name:        strings.TrimSpace(h.Get("icy-name")),
	}

	if br := h.Get("icy-br"); br != "" {
		// Some servers send "128,128".
		first, _, _ := strings.Cut(br, ",")
		meta.Bitrate, _ = strconv.Atoi(strings.TrimSpace(first))
	}

	meta.Codec = decoder.KindFromContentType(meta.ContentType)
	if meta.Codec == decoder.KindUnknown || meta.Codec == decoder.KindOther {
		if byURL := decoder.KindFromURL(streamURL); byURL != decoder.KindUnknown {
			meta.Codec = byURL
		}
	}
	// Shoutcast servers without a Content-Type are almost always MP3.
	if meta.Codec == decoder.KindUnknown {
		meta.Codec = decoder.KindMP3
	}

	return meta
}

// Stats is a snapshot of the pipeline counters for the current session.
type Stats struct {
	BufferFill    int // ring buffer fill, percent
	BytesReceived int64
	BytesDropped  int64
	FramesDecoded int64
	BytesSkipped  int64
	Reconnects    int64
}
