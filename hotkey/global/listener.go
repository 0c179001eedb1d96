// Package global listens for the push-to-talk shortcut system-wide.
package global

import (
	"fmt"
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"
	"go.aimuz.me/dictate/hotkey"
)

// hookNames lists the gohook key names that count as each canonical key.
var hookNames = map[string][]string{
	"ctrl":  {"ctrl", "rctrl"},
	"alt":   {"alt", "ralt"},
	"shift": {"shift", "rshift"},
	"cmd":   {"cmd", "rcmd"},
}

// Listener watches global keyboard events and reports press and release
// of one combo. Callbacks run one at a time on a worker goroutine, in
// event order, so a slow start never reorders a following stop.
type Listener struct {
	combo   hotkey.Combo
	ptt     *hotkey.PushToTalk
	codes   map[uint16]string
	actions chan func()

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewListener resolves the combo to key codes.
func NewListener(combo hotkey.Combo, onPress, onRelease func()) (*Listener, error) {
	l := &Listener{
		combo:   combo,
		codes:   make(map[uint16]string),
		actions: make(chan func(), 16),
	}
	for _, k := range combo.Keys() {
		names, ok := hookNames[k]
		if !ok {
			names = []string{k}
		}
		found := false
		for _, n := range names {
			if code, ok := hook.Keycode[n]; ok {
				l.codes[code] = k
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: no key code for %q", hotkey.ErrInvalid, k)
		}
	}
	l.ptt = hotkey.NewPushToTalk(combo,
		func() { l.dispatch(onPress) },
		func() { l.dispatch(onRelease) },
	)
	return l, nil
}

// Start begins listening. It returns immediately.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}

	events := hook.Start()
	l.running = true
	l.done = make(chan struct{})
	go l.work(l.done)
	go l.loop(events)

	slog.Info("hotkey listener started", "hotkey", l.combo.String())
	return nil
}

// Stop ends listening and waits for pending callbacks.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	done := l.done
	l.mu.Unlock()

	hook.End()
	close(done)
	slog.Info("hotkey listener stopped")
}

func (l *Listener) loop(events chan hook.Event) {
	for ev := range events {
		name, ok := l.codes[ev.Keycode]
		if !ok {
			continue
		}
		switch ev.Kind {
		case hook.KeyDown, hook.KeyHold:
			l.ptt.KeyDown(name)
		case hook.KeyUp:
			l.ptt.KeyUp(name)
		}
	}
}

func (l *Listener) dispatch(fn func()) {
	if fn == nil {
		return
	}
	select {
	case l.actions <- fn:
	default:
		slog.Warn("hotkey action dropped, worker busy")
	}
}

func (l *Listener) work(done chan struct{}) {
	for {
		select {
		case fn := <-l.actions:
			fn()
		case <-done:
			return
		}
	}
}
