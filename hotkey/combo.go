// Package hotkey parses push-to-talk shortcuts and tracks when they are held.
package hotkey

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
)

// Default is the shortcut used when none is configured.
const Default = "Ctrl+N"

// ErrInvalid is returned for shortcuts that cannot be parsed.
var ErrInvalid = errors.New("hotkey: invalid shortcut")

var modifierOrder = []string{"ctrl", "alt", "shift", "cmd"}

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",
	"cmd":     "cmd",
	"command": "cmd",
	"super":   "cmd",
	"meta":    "cmd",
	"win":     "cmd",
}

var keyAliases = map[string]string{
	"escape": "esc",
	"return": "enter",
}

// Combo is a parsed shortcut: zero or more modifiers and one key, all in
// canonical lower-case names.
type Combo struct {
	Modifiers []string
	Key       string
}

// Parse parses shortcuts like "Ctrl+N", "CmdOrCtrl+Shift+Space" or "F9".
func Parse(s string) (Combo, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Combo{}, fmt.Errorf("%w: empty", ErrInvalid)
	}

	var c Combo
	for _, part := range strings.Split(s, "+") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			return Combo{}, fmt.Errorf("%w: %q has an empty part", ErrInvalid, s)
		}
		if mod, ok := modifierFor(name); ok {
			if !slices.Contains(c.Modifiers, mod) {
				c.Modifiers = append(c.Modifiers, mod)
			}
			continue
		}
		if alias, ok := keyAliases[name]; ok {
			name = alias
		}
		if !isKeyName(name) {
			return Combo{}, fmt.Errorf("%w: unknown key %q", ErrInvalid, part)
		}
		if c.Key != "" {
			return Combo{}, fmt.Errorf("%w: %q has more than one key", ErrInvalid, s)
		}
		c.Key = name
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("%w: %q has no key", ErrInvalid, s)
	}

	slices.SortFunc(c.Modifiers, func(a, b string) int {
		return slices.Index(modifierOrder, a) - slices.Index(modifierOrder, b)
	})
	return c, nil
}

func modifierFor(name string) (string, bool) {
	switch name {
	case "cmdorctrl", "commandorcontrol":
		if runtime.GOOS == "darwin" {
			return "cmd", true
		}
		return "ctrl", true
	}
	mod, ok := modifierAliases[name]
	return mod, ok
}

func isKeyName(name string) bool {
	if len(name) == 1 {
		c := name[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	switch name {
	case "space", "enter", "tab", "esc":
		return true
	}
	if n, ok := strings.CutPrefix(name, "f"); ok {
		switch n {
		case "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12":
			return true
		}
	}
	return false
}

// Keys returns every key that must be held, modifiers first.
func (c Combo) Keys() []string {
	return append(slices.Clone(c.Modifiers), c.Key)
}

// String formats the combo as "Ctrl+Shift+N".
func (c Combo) String() string {
	parts := make([]string, 0, len(c.Modifiers)+1)
	for _, k := range c.Keys() {
		parts = append(parts, displayName(k))
	}
	return strings.Join(parts, "+")
}

func displayName(k string) string {
	switch k {
	case "ctrl", "alt", "shift", "cmd", "space", "enter", "tab", "esc":
		return strings.ToUpper(k[:1]) + k[1:]
	}
	return strings.ToUpper(k)
}
