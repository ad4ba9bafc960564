package frame

// MPEGHeaderSize is the size of an MPEG audio frame header.
const MPEGHeaderSize = 4

// MPEG versions as encoded in the header.
const (
	MPEG25 = 0
	MPEG2  = 2
	MPEG1  = 3
)

var mpegBitrates = [5][16]int{
	{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0}, // V1 L1
	{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},    // V1 L2
	{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},     // V1 L3
	{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},    // V2 L1
	{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},         // V2 L2/L3
}

var mpegSampleRates = [4][3]int{
	MPEG25: {11025, 12000, 8000},
	MPEG2:  {22050, 24000, 16000},
	MPEG1:  {44100, 48000, 32000},
}

// MPEGHeader holds the fields of an MPEG-1/2/2.5 audio frame header.
type MPEGHeader struct {
	Version     int
	Layer       int // 1, 2 or 3
	Bitrate     int // kbps
	SampleRate  int
	Padding     bool
	Channels    int
	FrameLength int
	Samples     int // PCM samples per channel
}

// ParseMPEGHeader validates the first four bytes of data as an MPEG audio
// frame header and computes the frame length. Free-format frames are rejected
// since their length cannot be derived from the header.
func ParseMPEGHeader(data []byte) (MPEGHeader, error) {
	var h MPEGHeader
	if len(data) < MPEGHeaderSize {
		return h, ErrShortHeader
	}
	if data[0] != 0xFF || data[1]&0xE0 != 0xE0 {
		return h, ErrNoSync
	}

	h.Version = int(data[1]>>3) & 0x03
	if h.Version == 1 {
		return h, ErrBadVersion
	}

	layerBits := int(data[1]>>1) & 0x03
	if layerBits == 0 {
		return h, ErrBadLayer
	}
	h.Layer = 4 - layerBits

	bitrateIndex := int(data[2]>>4) & 0x0F
	if bitrateIndex == 0 || bitrateIndex == 15 {
		return h, ErrBadBitrate
	}

	srIndex := int(data[2]>>2) & 0x03
	if srIndex == 3 {
		return h, ErrBadSampleRate
	}

	if data[3]&0x03 == 2 {
		return h, ErrBadEmphasis
	}

	h.Bitrate = mpegBitrates[bitrateTable(h.Version, h.Layer)][bitrateIndex]
	h.SampleRate = mpegSampleRates[h.Version][srIndex]
	h.Padding = data[2]&0x02 != 0

	h.Channels = 2
	if data[3]>>6 == 3 {
		h.Channels = 1
	}

	pad := 0
	if h.Padding {
		pad = 1
	}
	br := h.Bitrate * 1000

	switch {
	case h.Layer == 1:
		h.FrameLength = (12*br/h.SampleRate + pad) * 4
		h.Samples = 384
	case h.Layer == 3 && h.Version != MPEG1:
		h.FrameLength = 72*br/h.SampleRate + pad
		h.Samples = 576
	default:
		h.FrameLength = 144*br/h.SampleRate + pad
		h.Samples = 1152
	}

	if h.FrameLength <= MPEGHeaderSize {
		return h, ErrBadLength
	}

	return h, nil
}

func bitrateTable(version, layer int) int {
	if version == MPEG1 {
		return layer - 1
	}
	if layer == 1 {
		return 3
	}
	return 4
}
