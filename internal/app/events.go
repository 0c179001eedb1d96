package app

import (
	"time"

	"go.aimuz.me/dictate/internal/types"
)

var _ types.Emitter = (*Service)(nil)

// Emit sends an event to the window and to the bus mirror, if any.
func (s *Service) Emit(name string, data any) {
	s.mu.Lock()
	app, mirror := s.app, s.mirror
	s.mu.Unlock()

	if app != nil {
		app.Event.Emit(name, data)
	}
	if mirror != nil {
		mirror.Emit(name, data)
	}
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
