// Package spectrum computes a log-spaced band spectrum of recently decoded
// audio for the visualizer.
package spectrum

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	DefaultWindowSize = 2048
	DefaultBars       = 32

	minFrequency = 20.0
	epsilon      = 1e-12
)

// Analyzer keeps a rolling window of the most recent left-channel samples.
// The audio goroutine pushes samples continuously; the UI pulls a spectrum
// whenever it redraws. The lock covers only copies into and out of the window.
type Analyzer struct {
	mu         sync.Mutex
	samples    []float64 // ring of the last len(samples) values
	pos        int
	filled     int
	sampleRate int
	channels   int

	bars int
	hann []float64
}

// New creates an analyzer with a window of size samples and the given number
// of bands. Non-positive values fall back to the defaults.
func New(size, bars int) *Analyzer {
	if size < 2 {
		size = DefaultWindowSize
	}
	if bars < 1 {
		bars = DefaultBars
	}
	return &Analyzer{
		samples: make([]float64, size),
		bars:    bars,
		hann:    window.Hann(size),
	}
}

// Configure sets the PCM layout of the samples that follow and clears the
// window.
func (a *Analyzer) Configure(sampleRate, channels int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sampleRate = sampleRate
	a.channels = max(channels, 1)
	a.clear()
}

// Reset forgets the window and the configuration.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sampleRate = 0
	a.channels = 0
	a.clear()
}

func (a *Analyzer) clear() {
	for i := range a.samples {
		a.samples[i] = 0
	}
	a.pos = 0
	a.filled = 0
}

func (a *Analyzer) Bars() int {
	return a.bars
}

func (a *Analyzer) WindowSize() int {
	return len(a.samples)
}

// Push appends interleaved PCM. Only the first channel of each sample frame
// is kept.
func (a *Analyzer) Push(pcm []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.channels == 0 {
		return
	}

	size := len(a.samples)
	frames := len(pcm) / a.channels
	start := 0
	if frames > size {
		start = frames - size
	}

	for i := start; i < frames; i++ {
		a.samples[a.pos] = float64(pcm[i*a.channels]) / 32768
		a.pos++
		if a.pos == size {
			a.pos = 0
		}
	}
	a.filled = min(a.filled+frames-start, size)
}

// Spectrum computes the band levels in dB relative to the loudest band, so
// the maximum is 0 and every other band is negative. The result is written
// to dst when it has room. An unconfigured analyzer yields all zeros.
func (a *Analyzer) Spectrum(dst []float64) []float64 {
	if cap(dst) < a.bars {
		dst = make([]float64, a.bars)
	}
	dst = dst[:a.bars]
	for i := range dst {
		dst[i] = 0
	}

	size := len(a.samples)
	snapshot := make([]float64, size)

	a.mu.Lock()
	sampleRate := a.sampleRate
	filled := a.filled
	// Oldest sample first.
	n := copy(snapshot, a.samples[a.pos:])
	copy(snapshot[n:], a.samples[:a.pos])
	a.mu.Unlock()

	if sampleRate == 0 || filled == 0 {
		return dst
	}

	for i := range snapshot {
		snapshot[i] *= a.hann[i]
	}

	bins := fft.FFTReal(snapshot)
	half := size / 2
	power := make([]float64, half+1)
	for k := 0; k <= half; k++ {
		m := cmplx.Abs(bins[k])
		power[k] = m * m
	}

	nyquist := float64(sampleRate) / 2
	lo := math.Log10(minFrequency)
	hi := math.Log10(nyquist)
	binWidth := float64(sampleRate) / float64(size)

	edge := func(i int) int {
		f := math.Pow(10, lo+float64(i)/float64(a.bars)*(hi-lo))
		return int(f / binWidth)
	}

	peak := math.Inf(-1)
	for i := range dst {
		from := min(edge(i), half)
		to := min(max(edge(i+1), from+1), half+1)

		sum := 0.0
		for k := from; k < to; k++ {
			sum += power[k]
		}
		dst[i] = 10 * math.Log10(sum+epsilon)
		peak = max(peak, dst[i])
	}

	for i := range dst {
		dst[i] -= peak
	}
	return dst
}
