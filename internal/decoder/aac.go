package decoder

import (
	"fmt"

	"github.com/glebovdev/webradio/internal/frame"
	"github.com/llehouerou/go-aac"
	"github.com/rs/zerolog/log"
)

// aacCodec is the part of go-aac the adapter uses.
type aacCodec interface {
	init(f []byte) (sampleRate, channels int, err error)
	decode(f []byte) ([]int16, error)
	close()
}

type goAACCodec struct {
	dec *aac.Decoder
}

func (c *goAACCodec) init(f []byte) (int, int, error) {
	sampleRate, channels, err := c.dec.SimpleInit(f)
	return int(sampleRate), int(channels), err
}

func (c *goAACCodec) decode(f []byte) ([]int16, error) {
	return c.dec.DecodeInt16(f)
}

func (c *goAACCodec) close() {
	c.dec.Close()
}

var newAACCodec = func() aacCodec {
	return &goAACCodec{dec: aac.NewDecoder()}
}

// aacDecoder decodes ADTS frames. A decoder is set up from the first frame
// and again when the ADTS header announces a different sample rate or
// channel layout. A new decoder replaces the running one only after it has
// decoded the frame that prompted it, so one corrupt header does not throw
// away a working decoder.
type aacDecoder struct {
	codec  aacCodec
	header frame.ADTSHeader

	format    Format
	announced Format
	pending   []int16
	failures  int
}

func newAACDecoder() *aacDecoder {
	return &aacDecoder{}
}

func (d *aacDecoder) Feed(f []byte) error {
	h, err := frame.ParseADTSHeader(f)
	if err != nil {
		return fmt.Errorf("adts frame: %w", err)
	}

	if d.codec != nil && h.SampleRate == d.header.SampleRate && h.Channels == d.header.Channels {
		samples, err := d.codec.decode(f)
		if err != nil {
			return fmt.Errorf("aac decode: %w", err)
		}
		d.accept(samples)
		return nil
	}

	codec, format, samples, err := d.open(f)
	if err != nil {
		return d.fail(err)
	}

	if d.codec != nil {
		log.Debug().Msgf("AAC header changed (%d Hz, %d ch), switching decoder", h.SampleRate, h.Channels)
		d.codec.close()
	}
	d.codec = codec
	d.header = h
	d.format = format
	d.pending = d.pending[:0]
	d.accept(samples)
	return nil
}

// open sets up a decoder for f and decodes f with it.
func (d *aacDecoder) open(f []byte) (aacCodec, Format, []int16, error) {
	codec := newAACCodec()
	sampleRate, channels, err := codec.init(f)
	if err != nil {
		codec.close()
		return nil, Format{}, nil, fmt.Errorf("aac init: %w", err)
	}
	samples, err := codec.decode(f)
	if err != nil {
		codec.close()
		return nil, Format{}, nil, fmt.Errorf("aac decode: %w", err)
	}
	return codec, Format{SampleRate: sampleRate, Channels: channels}, samples, nil
}

func (d *aacDecoder) accept(samples []int16) {
	d.failures = 0
	d.pending = append(d.pending, samples...)
}

// fail counts a frame no decoder could be set up for and escalates to
// ErrInit after maxInitAttempts of them in a row.
func (d *aacDecoder) fail(err error) error {
	d.failures++
	if d.failures >= maxInitAttempts {
		d.failures = 0
		return fmt.Errorf("%w: %v", ErrInit, err)
	}
	return err
}

func (d *aacDecoder) Decode(out []int16) (int, bool, error) {
	if len(d.pending) == 0 || len(out) == 0 {
		return 0, false, nil
	}

	n := copy(out, d.pending)
	d.pending = d.pending[n:]
	if len(d.pending) == 0 {
		d.pending = nil
	}

	changed := false
	if d.format != d.announced {
		d.announced = d.format
		changed = true
	}
	return n, changed, nil
}

func (d *aacDecoder) Format() Format {
	return d.format
}

func (d *aacDecoder) Close() error {
	if d.codec != nil {
		d.codec.close()
		d.codec = nil
	}
	d.pending = nil
	return nil
}
