package inject

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

type fakeKeyboard struct {
	typed      []string
	backspaces int
	pastes     int
	typeErr    error
	onPaste    func()
}

func (k *fakeKeyboard) Type(text string) error {
	if k.typeErr != nil {
		return k.typeErr
	}
	k.typed = append(k.typed, text)
	return nil
}

func (k *fakeKeyboard) Backspace(n int) error {
	k.backspaces += n
	return nil
}

func (k *fakeKeyboard) Paste() error {
	k.pastes++
	if k.onPaste != nil {
		k.onPaste()
	}
	return nil
}

type fakeClipboard struct {
	text   string
	writes []string
}

func (c *fakeClipboard) ReadText() (string, error) { return c.text, nil }

func (c *fakeClipboard) WriteText(text string) error {
	c.text = text
	c.writes = append(c.writes, text)
	return nil
}

func newTestInjector(cfg Config) (*Injector, *fakeKeyboard, *fakeClipboard) {
	kb := &fakeKeyboard{}
	clip := &fakeClipboard{text: "previous"}
	cfg.PasteSettle = time.Millisecond
	return New(cfg, kb, clip), kb, clip
}

func TestInjectRouting(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		typeErr    error
		wantTyped  []string
		wantPastes int
	}{
		{"short ascii is typed", "hello", nil, []string{"hello"}, 0},
		{"long ascii is pasted", "hello world again", nil, nil, 1},
		{"threshold is exclusive", "0123456789", nil, nil, 1},
		{"non-ascii is pasted", "你好", nil, nil, 1},
		{"unrepresentable falls back", "hi.", ErrUnrepresentable, nil, 1},
		{"keyboard failure falls back", "hi", errors.New("uinput gone"), nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inj, kb, clip := newTestInjector(DefaultConfig())
			kb.typeErr = tt.typeErr
			var pastedText string
			kb.onPaste = func() { pastedText = clip.text }

			if err := inj.Inject(tt.text); err != nil {
				t.Fatalf("Inject: %v", err)
			}
			if !slices.Equal(kb.typed, tt.wantTyped) {
				t.Errorf("typed = %q, want %q", kb.typed, tt.wantTyped)
			}
			if kb.pastes != tt.wantPastes {
				t.Errorf("pastes = %d, want %d", kb.pastes, tt.wantPastes)
			}
			if tt.wantPastes > 0 {
				if pastedText != tt.text {
					t.Errorf("clipboard at paste = %q, want %q", pastedText, tt.text)
				}
				if clip.text != "previous" {
					t.Errorf("clipboard not restored: %q", clip.text)
				}
			}
		})
	}
}

func TestInjectMirrorClipboard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MirrorClipboard = true
	inj, _, clip := newTestInjector(cfg)

	if err := inj.Inject("a longer sentence here"); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if clip.text != "a longer sentence here" {
		t.Errorf("clipboard = %q, want injected text kept", clip.text)
	}
	if err := inj.Inject("ok"); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if clip.text != "ok" {
		t.Errorf("clipboard = %q after typed text", clip.text)
	}
}

func TestRewrite(t *testing.T) {
	inj, kb, _ := newTestInjector(DefaultConfig())
	if err := inj.Rewrite(7, "l test"); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if kb.backspaces != 7 || !slices.Equal(kb.typed, []string{"l test"}) {
		t.Errorf("backspaces %d typed %q", kb.backspaces, kb.typed)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"plain", "hello", "hello", nil},
		{"controls stripped", "he\x00l\x1blo", "hello", nil},
		{"whitespace kept", "a\tb\nc", "a\tb\nc", nil},
		{"at limit", strings.Repeat("x", MaxLength), strings.Repeat("x", MaxLength), nil},
		{"too long", strings.Repeat("字", MaxLength+1), "", ErrTooLong},
		{"command chain", "hello && rm -rf /", "", ErrShellPattern},
		{"substitution", "echo $(whoami)", "", ErrShellPattern},
		{"backtick", "run `id` now", "", ErrShellPattern},
		{"redirect", "cat secrets > out", "", ErrShellPattern},
		{"pipe", "ls | sh", "", ErrShellPattern},
		{"semicolon", "one; two", "", ErrShellPattern},
		{"operator hidden by control char", "a&\x00&b", "", ErrShellPattern},
		{"ordinary punctuation", "Yes, it's 5 o'clock! Right? (maybe)", "Yes, it's 5 o'clock! Right? (maybe)", nil},
		{"full-width punctuation", "你好；世界", "你好；世界", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Validate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInjectRejectsOversizedText(t *testing.T) {
	inj, kb, _ := newTestInjector(DefaultConfig())
	err := inj.Inject(strings.Repeat("a", MaxLength+1))
	if !errors.Is(err, ErrTooLong) {
		t.Fatalf("Inject = %v, want ErrTooLong", err)
	}
	if kb.pastes != 0 || len(kb.typed) != 0 {
		t.Error("oversized text must not reach the keyboard")
	}
}

func TestInjectRejectsShellOperators(t *testing.T) {
	inj, kb, clip := newTestInjector(DefaultConfig())
	err := inj.Inject("hello && rm -rf /")
	if !errors.Is(err, ErrShellPattern) {
		t.Fatalf("Inject = %v, want ErrShellPattern", err)
	}
	if kb.pastes != 0 || len(kb.typed) != 0 || len(clip.writes) != 0 {
		t.Error("rejected text must not reach the keyboard or clipboard")
	}
}

func TestAssumedCursor(t *testing.T) {
	if assumedCursor(true).IsTextCursorAvailable() != true || assumedCursor(false).IsTextCursorAvailable() != false {
		t.Error("assumedCursor should report its value")
	}
}
