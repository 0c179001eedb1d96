//go:build windows || linux

package inject

import "github.com/micmonay/keybd_event"

const backspaceKey = keybd_event.VK_BACKSPACE

func setPasteModifier(kb *keybd_event.KeyBonding, on bool) { kb.HasCTRL(on) }
