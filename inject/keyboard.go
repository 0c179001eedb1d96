//go:build windows || linux || darwin

package inject

import (
	"fmt"
	"runtime"
	"time"
	"unicode"

	"github.com/micmonay/keybd_event"
)

type keyStroke struct {
	key   int
	shift bool
}

var letterKeys = map[rune]int{
	'a': keybd_event.VK_A, 'b': keybd_event.VK_B, 'c': keybd_event.VK_C, 'd': keybd_event.VK_D,
	'e': keybd_event.VK_E, 'f': keybd_event.VK_F, 'g': keybd_event.VK_G, 'h': keybd_event.VK_H,
	'i': keybd_event.VK_I, 'j': keybd_event.VK_J, 'k': keybd_event.VK_K, 'l': keybd_event.VK_L,
	'm': keybd_event.VK_M, 'n': keybd_event.VK_N, 'o': keybd_event.VK_O, 'p': keybd_event.VK_P,
	'q': keybd_event.VK_Q, 'r': keybd_event.VK_R, 's': keybd_event.VK_S, 't': keybd_event.VK_T,
	'u': keybd_event.VK_U, 'v': keybd_event.VK_V, 'w': keybd_event.VK_W, 'x': keybd_event.VK_X,
	'y': keybd_event.VK_Y, 'z': keybd_event.VK_Z,
	'0': keybd_event.VK_0, '1': keybd_event.VK_1, '2': keybd_event.VK_2, '3': keybd_event.VK_3,
	'4': keybd_event.VK_4, '5': keybd_event.VK_5, '6': keybd_event.VK_6, '7': keybd_event.VK_7,
	'8': keybd_event.VK_8, '9': keybd_event.VK_9,
	' ': keybd_event.VK_SPACE,
}

// strokesFor maps text to key strokes on a US layout.
func strokesFor(text string) ([]keyStroke, error) {
	strokes := make([]keyStroke, 0, len(text))
	for _, r := range text {
		key, ok := letterKeys[unicode.ToLower(r)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnrepresentable, r)
		}
		strokes = append(strokes, keyStroke{key: key, shift: unicode.IsUpper(r)})
	}
	return strokes, nil
}

// KeybdKeyboard sends OS key events through keybd_event.
type KeybdKeyboard struct {
	kb keybd_event.KeyBonding
}

var _ Keyboard = (*KeybdKeyboard)(nil)

// NewKeyboard creates the OS keyboard. On Linux the virtual device needs a
// moment before the first event is seen.
func NewKeyboard() (Keyboard, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("create keyboard: %w", err)
	}
	if runtime.GOOS == "linux" {
		time.Sleep(2 * time.Second)
	}
	return &KeybdKeyboard{kb: kb}, nil
}

// Type types letters, digits and spaces.
func (k *KeybdKeyboard) Type(text string) error {
	strokes, err := strokesFor(text)
	if err != nil {
		return err
	}
	for _, s := range strokes {
		k.kb.Clear()
		k.kb.HasSHIFT(s.shift)
		k.kb.SetKeys(s.key)
		if err := k.kb.Launching(); err != nil {
			return fmt.Errorf("type key: %w", err)
		}
	}
	k.kb.HasSHIFT(false)
	return nil
}

// Backspace presses Backspace n times.
func (k *KeybdKeyboard) Backspace(n int) error {
	k.kb.Clear()
	k.kb.HasSHIFT(false)
	k.kb.SetKeys(backspaceKey)
	for range n {
		if err := k.kb.Launching(); err != nil {
			return fmt.Errorf("press backspace: %w", err)
		}
	}
	return nil
}

// Paste sends Ctrl+V, or Cmd+V on macOS.
func (k *KeybdKeyboard) Paste() error {
	k.kb.Clear()
	k.kb.HasSHIFT(false)
	setPasteModifier(&k.kb, true)
	k.kb.SetKeys(keybd_event.VK_V)
	err := k.kb.Launching()
	setPasteModifier(&k.kb, false)
	if err != nil {
		return fmt.Errorf("paste shortcut: %w", err)
	}
	return nil
}
