package dictation

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.aimuz.me/dictate/internal/types"
)

// epochMsFloor separates real Unix millisecond timestamps from
// backend-relative offsets.
const epochMsFloor = 1_000_000_000_000

// InjectionDispatcher drains the committed queue into the injector on a
// single goroutine.
type InjectionDispatcher struct {
	state    *State
	injector TextInjector
	emitter  types.Emitter
	busy     atomic.Bool
}

// NewInjectionDispatcher returns a dispatcher reading from state.Queue.
func NewInjectionDispatcher(state *State, injector TextInjector, emitter types.Emitter) *InjectionDispatcher {
	return &InjectionDispatcher{state: state, injector: injector, emitter: emitter}
}

// Run injects queued transcripts until ctx is done.
func (d *InjectionDispatcher) Run(ctx context.Context) {
	for {
		d.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-d.state.Queue.Wait():
		}
	}
}

func (d *InjectionDispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		d.busy.Store(true)
		item, ok := d.state.Queue.Pop()
		if !ok {
			d.busy.Store(false)
			return
		}
		d.inject(item)
		d.busy.Store(false)
	}
}

func (d *InjectionDispatcher) inject(item CommittedTranscript) {
	d.emit(types.EventRecordingState, string(types.StateInjecting))

	start := time.Now()
	err := d.injector.Inject(item.Text)
	d.state.Metrics.RecordInjection(time.Since(start))

	if item.CreatedAtMs > epochMsFloor {
		if now := d.state.Now(); now.UnixMilli() > item.CreatedAtMs {
			d.state.Metrics.RecordEndToEnd(now.Sub(time.UnixMilli(item.CreatedAtMs)))
		}
	}

	if err != nil {
		slog.Warn("inject committed transcript", "error", err, "runes", len([]rune(item.Text)))
		d.emit(types.EventRecordingError, err.Error())
		return
	}
	d.emit(types.EventRecordingState, string(types.StateIdle))
}

// Idle reports whether the queue is empty and nothing is being injected.
func (d *InjectionDispatcher) Idle() bool {
	return !d.busy.Load() && d.state.Queue.Len() == 0
}

// WaitIdle blocks until Idle or ctx is done.
func (d *InjectionDispatcher) WaitIdle(ctx context.Context) error {
	if d.Idle() {
		return nil
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if d.Idle() {
				return nil
			}
		}
	}
}

func (d *InjectionDispatcher) emit(name string, data any) {
	if d.emitter != nil {
		d.emitter.Emit(name, data)
	}
}
