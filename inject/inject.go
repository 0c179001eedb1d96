// Package inject inserts text into the focused application by simulated
// typing or by pasting through the clipboard.
package inject

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var (
	// ErrUnrepresentable is returned when the keyboard cannot type a character.
	ErrUnrepresentable = errors.New("inject: text cannot be typed on this keyboard")
	// ErrTooLong is returned for text over MaxLength runes.
	ErrTooLong = errors.New("inject: text too long")
	// ErrUnsupported is returned where no keyboard backend exists.
	ErrUnsupported = errors.New("inject: unsupported platform")
	// ErrShellPattern is returned for text carrying shell operators, which
	// could run a command if the focused window is a terminal.
	ErrShellPattern = errors.New("inject: text contains shell operators")
)

var shellPatterns = []string{"$(", "`", ";", "&&", "||", "|", ">", "<"}

const (
	// DefaultThreshold is the rune count from which text is pasted instead of typed.
	DefaultThreshold = 10
	// MaxLength is the longest text accepted for injection.
	MaxLength = 10000

	defaultPasteSettle = 100 * time.Millisecond
)

// Keyboard sends key strokes to the focused window.
type Keyboard interface {
	// Type types text. It returns ErrUnrepresentable without typing
	// anything when some character has no key.
	Type(text string) error
	Backspace(n int) error
	// Paste sends the platform paste shortcut.
	Paste() error
}

// Clipboard reads and writes clipboard text.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// Config controls how text is inserted.
type Config struct {
	// Threshold is the rune count from which ASCII text is pasted.
	Threshold int
	// MirrorClipboard leaves injected text on the clipboard.
	MirrorClipboard bool
	// PasteSettle is how long the pasted text stays on the clipboard
	// before the previous contents are restored.
	PasteSettle time.Duration
}

// DefaultConfig returns the default injection settings.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, PasteSettle: defaultPasteSettle}
}

// Injector serializes all text insertion.
type Injector struct {
	mu   sync.Mutex
	cfg  Config
	kb   Keyboard
	clip Clipboard
}

// New returns an injector. A nil keyboard means paste only.
func New(cfg Config, kb Keyboard, clip Clipboard) *Injector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.PasteSettle <= 0 {
		cfg.PasteSettle = defaultPasteSettle
	}
	return &Injector{cfg: cfg, kb: kb, clip: clip}
}

var stripControls = runes.Remove(runes.Predicate(func(r rune) bool {
	return unicode.IsControl(r) && !unicode.IsSpace(r)
}))

// Validate strips control characters other than whitespace, enforces
// MaxLength and rejects shell operators.
func Validate(text string) (string, error) {
	if n := utf8.RuneCountInString(text); n > MaxLength {
		return "", fmt.Errorf("%w: %d runes, max %d", ErrTooLong, n, MaxLength)
	}
	clean, _, err := transform.String(stripControls, text)
	if err != nil {
		return "", fmt.Errorf("sanitize text: %w", err)
	}
	for _, p := range shellPatterns {
		if strings.Contains(clean, p) {
			return "", fmt.Errorf("%w: %q", ErrShellPattern, p)
		}
	}
	return clean, nil
}

// Inject types short ASCII text and pastes everything else.
func (i *Injector) Inject(text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.insert(text)
}

// Rewrite deletes backspaces characters before the caret, then inserts text.
func (i *Injector) Rewrite(backspaces int, insert string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if backspaces > 0 {
		if i.kb == nil {
			return ErrUnsupported
		}
		if err := i.kb.Backspace(backspaces); err != nil {
			return fmt.Errorf("backspace: %w", err)
		}
	}
	return i.insert(insert)
}

func (i *Injector) insert(text string) error {
	clean, err := Validate(text)
	if err != nil {
		return err
	}
	if clean == "" {
		return nil
	}

	if i.kb != nil && isASCII(clean) && utf8.RuneCountInString(clean) < i.cfg.Threshold {
		err := i.kb.Type(clean)
		if err == nil {
			if i.cfg.MirrorClipboard && i.clip != nil {
				_ = i.clip.WriteText(clean)
			}
			return nil
		}
		if errors.Is(err, ErrUnrepresentable) {
			slog.Debug("keyboard cannot type text, pasting", "text_len", len(clean))
		} else {
			slog.Warn("keyboard injection failed, pasting", "error", err)
		}
	}
	return i.paste(clean)
}

func (i *Injector) paste(text string) error {
	if i.clip == nil || i.kb == nil {
		return ErrUnsupported
	}

	previous, readErr := i.clip.ReadText()
	if err := i.clip.WriteText(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	if err := i.kb.Paste(); err != nil {
		return fmt.Errorf("send paste shortcut: %w", err)
	}
	time.Sleep(i.cfg.PasteSettle)

	if i.cfg.MirrorClipboard || readErr != nil {
		return nil
	}
	if err := i.clip.WriteText(previous); err != nil {
		slog.Warn("restore clipboard", "error", err)
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
