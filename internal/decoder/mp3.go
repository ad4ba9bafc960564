package decoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/glebovdev/webradio/internal/frame"
	"github.com/hajimehoshi/go-mp3"
	"github.com/rs/zerolog/log"
)

// maxInitAttempts bounds how many frames in a row may fail to start a decoder
// before the stream is given up on. Any decoded output restarts the count.
const maxInitAttempts = 16

// mp3Decoder runs go-mp3 over a queue of whole frames.
//
// go-mp3 forgets its overlap and reservoir state whenever its reader reports
// io.EOF, so Decode never reads more PCM than the queued frames are known to
// produce. go-mp3 always outputs 16-bit stereo: 4 bytes per sample frame.
type mp3Decoder struct {
	queue bytes.Buffer
	dec   *mp3.Decoder

	format    Format
	announced Format
	rate      int // sample rate of the frames currently queued
	pending   int // PCM bytes obtainable without touching an empty queue
	raw       []byte
	failures  int
}

func newMP3Decoder() *mp3Decoder {
	return &mp3Decoder{}
}

func (d *mp3Decoder) Feed(f []byte) error {
	h, err := frame.ParseMPEGHeader(f)
	if err != nil {
		return fmt.Errorf("mp3 frame: %w", err)
	}
	if h.Version != frame.MPEG1 || h.Layer != 3 {
		return d.fail(fmt.Errorf("mp3 frame: only MPEG-1 Layer III is decoded (version %d, layer %d)", h.Version, h.Layer))
	}

	if d.rate != 0 && h.SampleRate != d.rate {
		log.Debug().Msgf("MP3 sample rate changed from %d to %d, restarting decoder", d.rate, h.SampleRate)
		d.restart()
	}
	d.rate = h.SampleRate

	d.queue.Write(f)
	d.pending += h.Samples * 4
	return nil
}

func (d *mp3Decoder) Decode(out []int16) (int, bool, error) {
	need := min(len(out)*2, d.pending) &^ 3
	if need == 0 {
		return 0, false, nil
	}

	if d.dec == nil {
		dec, err := mp3.NewDecoder(&d.queue)
		if err != nil {
			d.restart()
			return 0, false, d.fail(fmt.Errorf("mp3 decoder start: %w", err))
		}
		d.failures = 0
		d.dec = dec
		d.format = Format{SampleRate: dec.SampleRate(), Channels: 2}
	}

	if cap(d.raw) < need {
		d.raw = make([]byte, need)
	}
	raw := d.raw[:need]

	n, err := d.dec.Read(raw)
	d.pending -= n
	if err != nil {
		d.restart()
		if !errors.Is(err, io.EOF) {
			return 0, false, fmt.Errorf("mp3 decode: %w", err)
		}
	}

	samples := n / 2
	if samples > 0 {
		d.failures = 0
	}
	for i := 0; i < samples; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}

	changed := false
	if samples > 0 && d.format != d.announced {
		d.announced = d.format
		changed = true
	}
	return samples, changed, nil
}

// fail counts a frame that could not start decoding and escalates to ErrInit
// once the limit is reached.
func (d *mp3Decoder) fail(err error) error {
	d.failures++
	if d.failures >= maxInitAttempts {
		d.failures = 0
		return fmt.Errorf("%w: %v", ErrInit, err)
	}
	return err
}

func (d *mp3Decoder) restart() {
	d.dec = nil
	d.queue.Reset()
	d.pending = 0
}

func (d *mp3Decoder) Format() Format {
	return d.format
}

func (d *mp3Decoder) Close() error {
	d.restart()
	d.raw = nil
	return nil
}
