// Package audiocapture turns raw microphone samples into 16 kHz mono PCM16
// chunks ready for streaming transcription.
package audiocapture

import (
	"errors"
	"time"
)

var (
	// ErrRunning is returned when Start is called on a running capturer.
	ErrRunning = errors.New("audiocapture: already running")
	// ErrNoInputDevice is returned when the host has no default input device.
	ErrNoInputDevice = errors.New("audiocapture: no input device available")
	// ErrNilHandler is returned when Start is called without a handler.
	ErrNilHandler = errors.New("audiocapture: nil handler")
	// ErrInvalidConfig is returned for impossible rates or chunk sizes.
	ErrInvalidConfig = errors.New("audiocapture: invalid config")
)

// AudioHandler receives mono float32 samples in [-1, 1]. It runs on the OS
// audio thread and must not block.
type AudioHandler func(samples []float32)

// Capturer delivers raw microphone audio.
type Capturer interface {
	Start(handler AudioHandler) error
	Stop() error
	// SampleRate is the native device rate the handler receives.
	SampleRate() int
}

// Resampler converts mono float32 audio between two fixed rates. It may
// buffer internally and return fewer samples than expected on any call.
type Resampler interface {
	Process(in []float32) ([]float32, error)
	Close() error
}

// Flusher is implemented by resamplers that hold a filter tail. Flush
// returns the tail; no more input is accepted afterwards.
type Flusher interface {
	Flush() ([]float32, error)
}

// Chunk is one slice of 16 kHz mono PCM16 audio.
type Chunk struct {
	Samples        []int16
	CapturedAt     time.Time
	ProcessingTime time.Duration
}

// Config holds the processing stage settings.
type Config struct {
	InputSampleRate  int           // native device rate
	TargetSampleRate int           // default 16000
	ChunkDuration    time.Duration // default 100ms
	RingDuration     time.Duration // default 1s
	Denoise          bool
	PollInterval     time.Duration // default 10ms
	OutputBuffer     int           // default 16 chunks
}

// DefaultConfig returns the default processing configuration.
func DefaultConfig() Config {
	return Config{
		InputSampleRate:  48000,
		TargetSampleRate: 16000,
		ChunkDuration:    100 * time.Millisecond,
		RingDuration:     time.Second,
		PollInterval:     10 * time.Millisecond,
		OutputBuffer:     16,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.InputSampleRate == 0 {
		c.InputSampleRate = d.InputSampleRate
	}
	if c.TargetSampleRate == 0 {
		c.TargetSampleRate = d.TargetSampleRate
	}
	if c.ChunkDuration == 0 {
		c.ChunkDuration = d.ChunkDuration
	}
	if c.RingDuration == 0 {
		c.RingDuration = d.RingDuration
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.OutputBuffer == 0 {
		c.OutputBuffer = d.OutputBuffer
	}
}

// InputChunkSamples returns the number of device-rate samples per chunk.
func (c Config) InputChunkSamples() int {
	return max(int(int64(c.InputSampleRate)*c.ChunkDuration.Milliseconds()/1000), 1)
}

// RingCapacity returns the ring size in samples.
func (c Config) RingCapacity() int {
	return max(int(float64(c.InputSampleRate)*c.RingDuration.Seconds()), c.InputChunkSamples())
}
