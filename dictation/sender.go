package dictation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.aimuz.me/dictate/audiocapture"
)

// Batching and silence suppression limits.
const (
	BatchChunks       = 3
	BatchFlushEvery   = 180 * time.Millisecond
	SlowSendThreshold = 250 * time.Millisecond
	SilenceGrace      = 12
	silenceLogEvery   = 50
)

// AudioSink accepts 16 kHz mono PCM.
type AudioSink interface {
	SendAudio(ctx context.Context, samples []int16) error
}

// PCMWriter receives a copy of every sent batch.
type PCMWriter interface {
	Write(samples []int16) error
}

// SenderConfig configures a Sender.
type SenderConfig struct {
	SuppressSilence bool
	// Tap, when set, receives every batch that was sent.
	Tap PCMWriter
}

// Sender coalesces processed chunks into batches and sends them.
type Sender struct {
	state *State
	sink  AudioSink
	cfg   SenderConfig

	batch         []audiocapture.Chunk
	silentStreak  int
	skippedChunks uint64
}

// NewSender returns a sender writing to sink.
func NewSender(state *State, sink AudioSink, cfg SenderConfig) *Sender {
	return &Sender{state: state, sink: sink, cfg: cfg, batch: make([]audiocapture.Chunk, 0, BatchChunks)}
}

// Run sends chunks from in until it is closed, flushing the final partial
// batch before returning. A failed send ends the loop.
func (s *Sender) Run(ctx context.Context, in <-chan audiocapture.Chunk) error {
	ticker := time.NewTicker(BatchFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-in:
			if !ok {
				return s.flush(ctx)
			}
			if !s.accept(chunk) {
				continue
			}
			s.batch = append(s.batch, chunk)
			if len(s.batch) >= BatchChunks {
				if err := s.flush(ctx); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := s.flush(ctx); err != nil {
				return err
			}
		}
	}
}

// accept updates voice activity and reports whether chunk should be sent.
func (s *Sender) accept(chunk audiocapture.Chunk) bool {
	s.state.Metrics.RecordAudioProcessing(chunk.ProcessingTime)
	if audiocapture.HasVoiceActivity(chunk.Samples) {
		s.state.MarkVoiceActivity(s.state.Now())
	}

	if !s.cfg.SuppressSilence {
		return true
	}
	if !audiocapture.IsSilent(chunk.Samples) {
		s.silentStreak = 0
		return true
	}
	s.silentStreak++
	if s.silentStreak <= SilenceGrace {
		return true
	}
	s.skippedChunks++
	if s.skippedChunks%silenceLogEvery == 1 {
		slog.Debug("suppressing silent audio", "skipped_chunks", s.skippedChunks)
	}
	return false
}

func (s *Sender) flush(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}

	n := 0
	for _, c := range s.batch {
		n += len(c.Samples)
	}
	samples := make([]int16, 0, n)
	for _, c := range s.batch {
		samples = append(samples, c.Samples...)
	}
	chunks := len(s.batch)
	clear(s.batch)
	s.batch = s.batch[:0]

	start := time.Now()
	err := s.sink.SendAudio(ctx, samples)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("send audio: %w", err)
	}

	s.state.Metrics.RecordNetworkSend(elapsed, chunks)
	if elapsed >= SlowSendThreshold {
		slog.Warn("slow audio send", "send_ms", elapsed.Milliseconds(), "chunks", chunks, "samples", n)
	}
	if s.cfg.Tap != nil {
		if err := s.cfg.Tap.Write(samples); err != nil {
			slog.Warn("write debug recording", "error", err)
			s.cfg.Tap = nil
		}
	}
	return nil
}
