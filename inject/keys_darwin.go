package inject

import "github.com/micmonay/keybd_event"

const backspaceKey = keybd_event.VK_DELETE

func setPasteModifier(kb *keybd_event.KeyBonding, on bool) { kb.HasSuper(on) }
