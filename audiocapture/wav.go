package audiocapture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVRecorder writes mono PCM16 chunks to a WAV file for debugging.
type WAVRecorder struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	enc    *wav.Encoder
	format *audio.Format
	buf    []int
}

// NewWAVRecorder creates <dir>/<name>.wav.
func NewWAVRecorder(dir, name string, sampleRate int) (*WAVRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	path := filepath.Join(dir, name+".wav")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	return &WAVRecorder{
		path:   path,
		file:   f,
		enc:    wav.NewEncoder(f, sampleRate, 16, 1, 1),
		format: &audio.Format{NumChannels: 1, SampleRate: sampleRate},
	}, nil
}

// Path returns the output file path.
func (r *WAVRecorder) Path() string { return r.path }

// Write appends samples.
func (r *WAVRecorder) Write(samples []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return os.ErrClosed
	}

	r.buf = r.buf[:0]
	for _, s := range samples {
		r.buf = append(r.buf, int(s))
	}
	buf := &audio.IntBuffer{Format: r.format, Data: r.buf, SourceBitDepth: 16}
	if err := r.enc.Write(buf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	return nil
}

// Close finalizes the header and closes the file.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return nil
	}
	err := r.enc.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.enc = nil
	if err != nil {
		return fmt.Errorf("wav close: %w", err)
	}
	return nil
}
