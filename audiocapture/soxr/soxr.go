// Package soxr provides a high-quality sinc resampler backed by libsoxr.
package soxr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/zaf/resample"

	"go.aimuz.me/dictate/audiocapture"
)

// ErrClosed is returned by Process after Close.
var ErrClosed = errors.New("soxr: resampler closed")

// Resampler converts mono float32 audio between two rates.
type Resampler struct {
	mu  sync.Mutex
	r   *resample.Resampler
	out *bytes.Buffer
	in  []byte
}

var (
	_ audiocapture.Resampler = (*Resampler)(nil)
	_ audiocapture.Flusher   = (*Resampler)(nil)
)

// New returns a mono resampler from inRate to outRate.
func New(inRate, outRate int) (*Resampler, error) {
	out := &bytes.Buffer{}
	r, err := resample.New(out, float64(inRate), float64(outRate), 1, resample.F32, resample.HighQ)
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	return &Resampler{r: r, out: out}, nil
}

// Process resamples one block. libsoxr keeps filter state between calls, so
// the output length can differ slightly from len(in)*outRate/inRate.
func (s *Resampler) Process(in []float32) ([]float32, error) {
	if len(in) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.r == nil {
		return nil, ErrClosed
	}

	size := len(in) * 4
	if cap(s.in) < size {
		s.in = make([]byte, size)
	}
	buf := s.in[:size]
	for i, v := range in {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}

	s.out.Reset()
	if _, err := s.r.Write(buf); err != nil {
		return nil, fmt.Errorf("resampler write: %w", err)
	}

	return decode(s.out.Bytes()), nil
}

// Flush drains the filter delay line and releases the handle. Later
// calls to Process fail with ErrClosed.
func (s *Resampler) Flush() ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.r == nil {
		return nil, nil
	}
	s.out.Reset()
	err := s.r.Close()
	s.r = nil
	if err != nil {
		return nil, fmt.Errorf("resampler flush: %w", err)
	}
	return decode(s.out.Bytes()), nil
}

// Close releases the libsoxr handle.
func (s *Resampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.r == nil {
		return nil
	}
	err := s.r.Close()
	s.r = nil
	return err
}

func decode(raw []byte) []float32 {
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples
}
