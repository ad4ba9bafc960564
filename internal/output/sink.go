// Package output plays decoded PCM on the audio device.
package output

import (
	"context"
	"errors"
	"math"
)

const (
	VolumeCurveExponent = 0.5
	MinVolumeDB         = -10.0
)

// ErrClosed is returned by Output when the sink is not open.
var ErrClosed = errors.New("output: sink is closed")

// Sink receives interleaved 16-bit PCM for playback.
//
// Open prepares the device for the given layout; bufferSize is the number of
// sample frames the sink may queue. Output blocks until the device has taken
// the whole buffer or ctx is done. SetVolume takes a percentage and is kept
// across Open and Close.
type Sink interface {
	Open(sampleRate, channels, bufferSize int) error
	Output(ctx context.Context, pcm []int16) error
	Close() error
	SetVolume(percent int)
}

// percentToExponent maps a 0-100 volume to the exponent used with base 2 by
// effects.Volume, on a square-root curve so low settings stay usable.
func percentToExponent(p float64) float64 {
	if p <= 0 {
		return MinVolumeDB
	}
	if p >= 100 {
		return 0
	}

	normalized := p / 100.0
	adjusted := math.Pow(normalized, VolumeCurveExponent)
	return (1.0 - adjusted) * MinVolumeDB
}
