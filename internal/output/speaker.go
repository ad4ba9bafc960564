package output

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog/log"
)

const (
	DeviceSampleRate  = beep.SampleRate(44100)
	SpeakerBufferSize = time.Millisecond * 250
	ResampleQuality   = 4
	DefaultQueueSize  = 8192
)

// The audio backend allows a single context per process, so the speaker is
// initialized once at a fixed rate and streams are resampled to it.
var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(DeviceSampleRate, DeviceSampleRate.N(SpeakerBufferSize))
		if speakerErr != nil {
			speakerErr = fmt.Errorf("failed to initialize speaker: %w", speakerErr)
			return
		}
		log.Debug().Msgf("Speaker initialized with sample rate: %d Hz, buffer: %v", DeviceSampleRate, SpeakerBufferSize)
	})
	return speakerErr
}

// SpeakerSink plays PCM through the beep speaker.
type SpeakerSink struct {
	mu            sync.Mutex
	stream        *pcmStreamer
	volume        *effects.Volume
	ctrl          *beep.Ctrl
	channels      int
	volumePercent int
}

func NewSpeakerSink(volumePercent int) *SpeakerSink {
	return &SpeakerSink{volumePercent: volumePercent}
}

func (s *SpeakerSink) Open(sampleRate, channels, bufferSize int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid output format: %d Hz, %d channels", sampleRate, channels)
	}
	if err := initSpeaker(); err != nil {
		return err
	}

	s.Close()

	if bufferSize <= 0 {
		bufferSize = DefaultQueueSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fadeIn := beep.SampleRate(sampleRate).N(fadeInDuration)
	stream := newPCMStreamer(bufferSize, fadeIn)

	var streamer beep.Streamer = stream
	if rate := beep.SampleRate(sampleRate); rate != DeviceSampleRate {
		streamer = beep.Resample(ResampleQuality, rate, DeviceSampleRate, stream)
		log.Debug().Msgf("Resampling %d Hz to %d Hz", sampleRate, DeviceSampleRate)
	}

	s.volume = &effects.Volume{
		Streamer: streamer,
		Base:     2,
		Volume:   percentToExponent(float64(s.volumePercent)),
		Silent:   s.volumePercent == 0,
	}
	s.ctrl = &beep.Ctrl{Streamer: s.volume}
	s.stream = stream
	s.channels = channels

	speaker.Play(s.ctrl)
	log.Debug().Msgf("Audio output opened: %d Hz, %d channels, queue %d frames", sampleRate, channels, bufferSize)
	return nil
}

func (s *SpeakerSink) Output(ctx context.Context, pcm []int16) error {
	s.mu.Lock()
	stream, channels := s.stream, s.channels
	s.mu.Unlock()

	if stream == nil {
		return ErrClosed
	}
	return stream.push(ctx, pcm, channels)
}

func (s *SpeakerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}

	s.stream.close()
	speaker.Clear()
	s.stream = nil
	s.volume = nil
	s.ctrl = nil
	log.Debug().Msg("Audio output closed")
	return nil
}

func (s *SpeakerSink) SetVolume(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volumePercent = percent

	if s.volume == nil {
		log.Debug().Msgf("Volume stored as %d%% (will be applied when playback starts)", percent)
		return
	}

	level := percentToExponent(float64(percent))

	speaker.Lock()
	s.volume.Volume = level
	s.volume.Silent = percent == 0
	speaker.Unlock()

	log.Debug().Msgf("Volume set to %d%% (%.2f dB)", percent, level)
}

// QueueFill reports how full the playback queue is, in percent.
func (s *SpeakerSink) QueueFill() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil || cap(s.stream.frames) == 0 {
		return 0
	}
	return s.stream.buffered() * 100 / cap(s.stream.frames)
}
