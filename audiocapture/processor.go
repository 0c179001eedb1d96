package audiocapture

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// BackpressureWarnEvery controls how often chunk drops are logged.
const BackpressureWarnEvery = 50

// Processor drains a Ring, cuts the audio into fixed chunks and emits
// 16 kHz PCM16 Chunks on a bounded channel.
type Processor struct {
	cfg       Config
	ring      *Ring
	resampler Resampler
	denoiser  *Denoiser
	out       chan Chunk

	dropped atomic.Uint64
	now     func() time.Time
}

// NewProcessor creates a processor reading from ring. rs may be nil only
// when the input and target rates match.
func NewProcessor(cfg Config, ring *Ring, rs Resampler) (*Processor, error) {
	cfg.applyDefaults()
	if cfg.InputSampleRate < 0 || cfg.TargetSampleRate < 0 || cfg.ChunkDuration < 0 {
		return nil, fmt.Errorf("%w: negative rate or duration", ErrInvalidConfig)
	}
	if rs == nil && cfg.InputSampleRate != cfg.TargetSampleRate {
		return nil, fmt.Errorf("%w: resampler required for %d Hz -> %d Hz",
			ErrInvalidConfig, cfg.InputSampleRate, cfg.TargetSampleRate)
	}
	p := &Processor{
		cfg:       cfg,
		ring:      ring,
		resampler: rs,
		out:       make(chan Chunk, cfg.OutputBuffer),
		now:       time.Now,
	}
	if cfg.Denoise {
		p.denoiser = NewDenoiser()
	}
	return p, nil
}

// Output returns the chunk channel. It is closed when Run returns.
func (p *Processor) Output() <-chan Chunk { return p.out }

// Dropped returns the number of chunks discarded because the output was full.
func (p *Processor) Dropped() uint64 { return p.dropped.Load() }

// Overruns returns the samples the capture callback overwrote before they
// were read, and the same loss rounded up to whole chunks.
func (p *Processor) Overruns() (samples, chunks uint64) {
	samples = p.ring.Dropped()
	n := uint64(p.cfg.InputChunkSamples())
	return samples, (samples + n - 1) / n
}

// Run polls the ring until ctx is done. Audio still buffered at
// cancellation, including a partial last chunk and the resampler and
// denoiser tails, is processed before returning.
func (p *Processor) Run(ctx context.Context) error {
	defer close(p.out)

	chunkLen := p.cfg.InputChunkSamples()
	scratch := make([]float32, chunkLen)
	acc := make([]float32, 0, chunkLen*2)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var err error
		acc, err = p.drain(acc, scratch, chunkLen)
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			if acc, err = p.drain(acc, scratch, chunkLen); err != nil {
				return err
			}
			return p.flush(acc)
		case <-ticker.C:
		}
	}
}

func (p *Processor) drain(acc, scratch []float32, chunkLen int) ([]float32, error) {
	for {
		n := p.ring.Pop(scratch)
		if n == 0 {
			break
		}
		acc = append(acc, scratch[:n]...)
	}

	for len(acc) >= chunkLen {
		if err := p.process(acc[:chunkLen]); err != nil {
			return acc, err
		}
		acc = append(acc[:0], acc[chunkLen:]...)
	}
	return acc, nil
}

// flush emits the partial chunk left in acc and whatever the denoiser and
// resampler still hold.
func (p *Processor) flush(acc []float32) error {
	if p.denoiser != nil {
		// The denoiser output lags its input; push the rest through now.
		if len(acc) > 0 {
			p.denoiser.Process(acc)
		}
		acc = append(acc, p.denoiser.Flush()...)
		p.denoiser = nil
	}
	if len(acc) > 0 {
		if err := p.process(acc); err != nil {
			return err
		}
	}

	f, ok := p.resampler.(Flusher)
	if !ok {
		return nil
	}
	capturedAt := p.now()
	start := time.Now()
	tail, err := f.Flush()
	if err != nil {
		return fmt.Errorf("flush resampler: %w", err)
	}
	p.emit(0, tail, capturedAt, start)
	return nil
}

func (p *Processor) process(in []float32) error {
	capturedAt := p.now()
	if p.denoiser != nil {
		p.denoiser.Process(in)
	}

	start := time.Now()
	samples := in
	if p.resampler != nil {
		var err error
		samples, err = p.resampler.Process(in)
		if err != nil {
			return fmt.Errorf("resample chunk: %w", err)
		}
	}
	p.emit(len(in), samples, capturedAt, start)
	return nil
}

func (p *Processor) emit(inLen int, samples []float32, capturedAt, start time.Time) {
	if len(samples) == 0 {
		return
	}

	chunk := Chunk{
		Samples:        FloatToPCM16(make([]int16, 0, len(samples)), samples),
		CapturedAt:     capturedAt,
		ProcessingTime: time.Since(start),
	}
	slog.Debug("audio chunk processed",
		"input_samples", inLen,
		"output_samples", len(chunk.Samples),
		"processing_us", chunk.ProcessingTime.Microseconds())

	select {
	case p.out <- chunk:
	default:
		if n := p.dropped.Add(1); n%BackpressureWarnEvery == 0 {
			slog.Warn("dropping processed chunks because sender is saturated", "dropped_audio_chunks", n)
		}
	}
}
