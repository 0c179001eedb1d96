package hotkey

import (
	"slices"
	"sync"
)

// PushToTalk turns key transitions into press and release of a combo.
// Key repeat while the combo is held does not fire again.
type PushToTalk struct {
	mu        sync.Mutex
	keys      []string
	held      map[string]bool
	active    bool
	onPress   func()
	onRelease func()
}

// NewPushToTalk returns a tracker for combo.
func NewPushToTalk(combo Combo, onPress, onRelease func()) *PushToTalk {
	return &PushToTalk{
		keys:      combo.Keys(),
		held:      make(map[string]bool),
		onPress:   onPress,
		onRelease: onRelease,
	}
}

// KeyDown records a key press by canonical name.
func (p *PushToTalk) KeyDown(name string) {
	p.mu.Lock()
	p.held[name] = true
	fire := !p.active && p.allHeld()
	if fire {
		p.active = true
	}
	p.mu.Unlock()

	if fire && p.onPress != nil {
		p.onPress()
	}
}

// KeyUp records a key release. Releasing any key of an active combo
// releases it.
func (p *PushToTalk) KeyUp(name string) {
	p.mu.Lock()
	delete(p.held, name)
	fire := p.active && slices.Contains(p.keys, name)
	if fire {
		p.active = false
	}
	p.mu.Unlock()

	if fire && p.onRelease != nil {
		p.onRelease()
	}
}

// Active reports whether the combo is currently held.
func (p *PushToTalk) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *PushToTalk) allHeld() bool {
	for _, k := range p.keys {
		if !p.held[k] {
			return false
		}
	}
	return true
}
