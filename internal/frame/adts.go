// Package frame finds compressed audio frame boundaries in a raw byte stream.
package frame

import "errors"

var (
	ErrShortHeader   = errors.New("frame: not enough bytes for a header")
	ErrNoSync        = errors.New("frame: sync word not found")
	ErrBadSampleRate = errors.New("frame: invalid sample rate index")
	ErrBadLength     = errors.New("frame: declared frame length is invalid")
	ErrBadBitrate    = errors.New("frame: invalid bitrate index")
	ErrBadVersion    = errors.New("frame: reserved MPEG version")
	ErrBadLayer      = errors.New("frame: unsupported layer")
	ErrBadEmphasis   = errors.New("frame: reserved emphasis")
)

// ADTSHeaderSize is the size of an ADTS header without CRC.
const ADTSHeaderSize = 7

var adtsSampleRates = [13]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// ADTSHeader holds the fields of an ADTS frame header the pipeline needs.
type ADTSHeader struct {
	Profile     int
	SampleRate  int
	Channels    int
	FrameLength int // header included
	HeaderSize  int // 7, or 9 when a CRC follows
}

// ParseADTSHeader validates the first bytes of data as an ADTS header.
func ParseADTSHeader(data []byte) (ADTSHeader, error) {
	var h ADTSHeader
	if len(data) < ADTSHeaderSize {
		return h, ErrShortHeader
	}
	if data[0] != 0xFF || data[1]&0xF0 != 0xF0 {
		return h, ErrNoSync
	}

	// Layer is always 0 in ADTS.
	if data[1]&0x06 != 0 {
		return h, ErrBadLayer
	}

	protectionAbsent := data[1] & 0x01
	sfIndex := int(data[2]>>2) & 0x0F
	if sfIndex > 12 {
		return h, ErrBadSampleRate
	}

	h.Profile = int(data[2]>>6) & 0x03
	h.SampleRate = adtsSampleRates[sfIndex]
	h.Channels = int(data[2]&0x01)<<2 | int(data[3]>>6)&0x03
	h.FrameLength = int(data[3]&0x03)<<11 | int(data[4])<<3 | int(data[5]>>5)&0x07

	h.HeaderSize = 9
	if protectionAbsent == 1 {
		h.HeaderSize = 7
	}
	if h.FrameLength < h.HeaderSize {
		return h, ErrBadLength
	}

	return h, nil
}
