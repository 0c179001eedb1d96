// Package clipboard reads and writes system clipboard text.
package clipboard

import (
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// System is the OS clipboard. Access is serialized because the Windows
// clipboard must be opened exclusively.
type System struct {
	mu sync.Mutex
}

// New returns the system clipboard.
func New() *System {
	return &System{}
}

// Available reports whether a clipboard backend exists. On Linux this
// needs xclip, xsel or wl-clipboard.
func Available() bool {
	return !clipboard.Unsupported
}

// ReadText returns the clipboard text.
func (s *System) ReadText() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

// WriteText replaces the clipboard contents with text.
func (s *System) WriteText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}
