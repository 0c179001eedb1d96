package dictation

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"go.aimuz.me/dictate/internal/types"
	"go.aimuz.me/dictate/metrics"
)

// pickyInjector fails for the texts listed in reject.
type pickyInjector struct {
	mu       sync.Mutex
	reject   map[string]error
	injected []string
}

func (p *pickyInjector) Inject(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reject[text]; err != nil {
		return err
	}
	p.injected = append(p.injected, text)
	return nil
}

func (p *pickyInjector) Rewrite(int, string) error { return nil }

func (p *pickyInjector) texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.injected...)
}

func TestInjectionDispatcherDrain(t *testing.T) {
	errFocus := errors.New("focus lost")

	tests := []struct {
		name       string
		items      []string
		reject     map[string]error
		wantTyped  []string
		wantErrors []string
		wantLast   string
	}{
		{
			name:      "all succeed in order",
			items:     []string{"one.", " two.", " three."},
			wantTyped: []string{"one.", " two.", " three."},
			wantLast:  string(types.StateIdle),
		},
		{
			name:       "failure keeps draining",
			items:      []string{"one.", " two.", " three."},
			reject:     map[string]error{" two.": errFocus},
			wantTyped:  []string{"one.", " three."},
			wantErrors: []string{"focus lost"},
			wantLast:   string(types.StateIdle),
		},
		{
			name:       "last item fails",
			items:      []string{"one.", " two."},
			reject:     map[string]error{" two.": errFocus},
			wantTyped:  []string{"one."},
			wantErrors: []string{"focus lost"},
			wantLast:   string(types.StateInjecting),
		},
		{
			name:       "every item fails",
			items:      []string{"a.", "b."},
			reject:     map[string]error{"a.": errFocus, "b.": errInjectFailed},
			wantErrors: []string{"focus lost", errInjectFailed.Error()},
			wantLast:   string(types.StateInjecting),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emitter := &emitRecorder{}
			state := NewState(emitter, metrics.NewRecorder(16), DefaultRewritePolicy())
			inj := &pickyInjector{reject: tt.reject}
			d := NewInjectionDispatcher(state, inj, emitter)

			for _, text := range tt.items {
				state.Queue.Push(CommittedTranscript{Text: text})
			}
			d.drain(context.Background())

			if got := inj.texts(); !slices.Equal(got, tt.wantTyped) {
				t.Errorf("typed = %q, want %q", got, tt.wantTyped)
			}
			if got := emitter.values(types.EventRecordingError); !slices.Equal(got, tt.wantErrors) {
				t.Errorf("errors = %q, want %q", got, tt.wantErrors)
			}
			if got := emitter.last(types.EventRecordingState); got != tt.wantLast {
				t.Errorf("last state = %q, want %q", got, tt.wantLast)
			}
			if !d.Idle() {
				t.Error("dispatcher not idle after drain")
			}
			if n := state.Metrics.Report().Injection.Samples; n != len(tt.items) {
				t.Errorf("injection samples = %d, want %d", n, len(tt.items))
			}
		})
	}
}

func TestInjectionDispatcherRun(t *testing.T) {
	emitter := &emitRecorder{}
	state := NewState(emitter, metrics.NewRecorder(16), DefaultRewritePolicy())
	inj := &pickyInjector{reject: map[string]error{"bad.": errInjectFailed}}
	d := NewInjectionDispatcher(state, inj, emitter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	state.Queue.Push(CommittedTranscript{Text: "bad."})
	state.Queue.Push(CommittedTranscript{Text: "good."})

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	deadline := time.Now().Add(2 * time.Second)
	for len(inj.texts()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := d.WaitIdle(waitCtx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if got := inj.texts(); !slices.Equal(got, []string{"good."}) {
		t.Errorf("typed = %q", got)
	}
	if got := emitter.values(types.EventRecordingError); len(got) != 1 {
		t.Errorf("errors = %q, want one", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
