// Package device captures microphone audio from the default input device
// through PortAudio.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"go.aimuz.me/dictate/audiocapture"
)

// callbackPeriod is the PortAudio buffer duration.
const callbackPeriod = 10 * time.Millisecond

// Capturer reads the default input device at its native rate and hands mono
// float32 frames to the handler.
type Capturer struct {
	mu       sync.Mutex
	dev      *portaudio.DeviceInfo
	channels int
	stream   *portaudio.Stream
	mono     []float32
	closed   bool
}

var _ audiocapture.Capturer = (*Capturer)(nil)

// New initializes PortAudio and selects the default input device. Call Close
// to release PortAudio.
func New() (*Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil || dev.MaxInputChannels < 1 {
		_ = portaudio.Terminate()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", audiocapture.ErrNoInputDevice, err)
		}
		return nil, audiocapture.ErrNoInputDevice
	}

	slog.Info("audio input device selected",
		"name", dev.Name,
		"sample_rate", dev.DefaultSampleRate,
		"channels", dev.MaxInputChannels)

	return &Capturer{dev: dev, channels: min(dev.MaxInputChannels, 2)}, nil
}

// SampleRate returns the device's native rate.
func (c *Capturer) SampleRate() int { return int(c.dev.DefaultSampleRate) }

// Start opens and starts the input stream.
func (c *Capturer) Start(handler audiocapture.AudioHandler) error {
	if handler == nil {
		return audiocapture.ErrNilHandler
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("device: capturer closed")
	}
	if c.stream != nil {
		return audiocapture.ErrRunning
	}

	frames := max(int(c.dev.DefaultSampleRate*callbackPeriod.Seconds()), 1)
	params := portaudio.LowLatencyParameters(c.dev, nil)
	params.Input.Channels = c.channels
	params.SampleRate = c.dev.DefaultSampleRate
	params.FramesPerBuffer = frames

	c.mono = make([]float32, frames)
	channels := c.channels
	mono := c.mono
	stream, err := portaudio.OpenStream(params, func(in []float32) {
		handler(audiocapture.Downmix(mono, in, channels))
	})
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}
	c.stream = stream
	return nil
}

// Stop stops and closes the stream. It is safe to call when not running.
func (c *Capturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil
	}
	err := errors.Join(c.stream.Stop(), c.stream.Close())
	c.stream = nil
	if err != nil {
		return fmt.Errorf("stop input stream: %w", err)
	}
	return nil
}

// Close stops any stream and terminates PortAudio.
func (c *Capturer) Close() error {
	stopErr := c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return stopErr
	}
	c.closed = true
	return errors.Join(stopErr, portaudio.Terminate())
}
