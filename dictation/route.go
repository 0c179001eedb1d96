package dictation

import (
	"log/slog"
	"sync"

	"go.aimuz.me/dictate/internal/types"
)

// RouteTracker holds the current input route and emits
// input_route_changed when it changes.
type RouteTracker struct {
	mu      sync.Mutex
	route   types.InputRoute
	emitter types.Emitter
}

// NewRouteTracker starts in RouteUndetermined.
func NewRouteTracker(emitter types.Emitter) *RouteTracker {
	return &RouteTracker{route: types.RouteUndetermined, emitter: emitter}
}

// Set updates the route and reports whether it changed.
func (r *RouteTracker) Set(route types.InputRoute) bool {
	r.mu.Lock()
	if r.route == route {
		r.mu.Unlock()
		return false
	}
	r.route = route
	r.mu.Unlock()

	slog.Debug("input route changed", "route", route)
	if r.emitter != nil {
		r.emitter.Emit(types.EventInputRouteChanged, string(route))
	}
	return true
}

// Route returns the current route.
func (r *RouteTracker) Route() types.InputRoute {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.route
}

// Reset returns to RouteUndetermined.
func (r *RouteTracker) Reset() {
	r.Set(types.RouteUndetermined)
}
