// Package notify shows desktop notifications.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// DefaultMinInterval limits how often notifications are shown.
const DefaultMinInterval = 2 * time.Second

// Desktop sends notifications through beeep, dropping ones that come
// faster than the minimum interval.
type Desktop struct {
	mu          sync.Mutex
	last        time.Time
	minInterval time.Duration
	icon        string
	send        func(title, message, icon string) error
	now         func() time.Time
}

// New returns a notifier. icon may be empty.
func New(icon string) *Desktop {
	return &Desktop{
		minInterval: DefaultMinInterval,
		icon:        icon,
		send: func(title, message, icon string) error {
			return beeep.Notify(title, message, icon)
		},
		now: time.Now,
	}
}

// Notify shows a notification unless one was shown within the minimum
// interval.
func (d *Desktop) Notify(title, message string) error {
	d.mu.Lock()
	now := d.now()
	if !d.last.IsZero() && now.Sub(d.last) < d.minInterval {
		d.mu.Unlock()
		slog.Debug("notification throttled", "title", title)
		return nil
	}
	d.last = now
	d.mu.Unlock()

	if err := d.send(title, message, d.icon); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	return nil
}
