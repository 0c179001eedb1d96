package dictation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.aimuz.me/dictate/audiocapture"
	"go.aimuz.me/dictate/internal/types"
	"go.aimuz.me/dictate/scribe"
)

type emitted struct {
	name string
	data any
}

type emitRecorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *emitRecorder) Emit(name string, data any) {
	r.mu.Lock()
	r.events = append(r.events, emitted{name, data})
	r.mu.Unlock()
}

func (r *emitRecorder) values(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.name == name {
			s, _ := e.data.(string)
			out = append(out, s)
		}
	}
	return out
}

func (r *emitRecorder) last(name string) string {
	v := r.values(name)
	if len(v) == 0 {
		return ""
	}
	return v[len(v)-1]
}

type fakeInjector struct {
	mu       sync.Mutex
	injected []string
	rewrites []Edit
	err      error
}

func (f *fakeInjector) Inject(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.injected = append(f.injected, text)
	return nil
}

func (f *fakeInjector) Rewrite(backspaces int, insert string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rewrites = append(f.rewrites, Edit{Backspaces: backspaces, Insert: insert})
	return nil
}

func (f *fakeInjector) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.injected...)
}

type cursor bool

func (c cursor) IsTextCursorAvailable() bool { return bool(c) }

// switchCursor lets a test move focus in and out of a text field.
type switchCursor struct{ on atomic.Bool }

func (c *switchCursor) IsTextCursorAvailable() bool { return c.on.Load() }

type fakeClipboard struct {
	mu     sync.Mutex
	text   string
	writes int
}

func (f *fakeClipboard) WriteText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	f.writes++
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	count int
}

func (f *fakeNotifier) Notify(title, message string) error {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	return nil
}

type sinkRecorder struct {
	mu   sync.Mutex
	recs []types.TranscriptRecord
}

func (s *sinkRecorder) RecordTranscript(_ context.Context, rec types.TranscriptRecord) error {
	s.mu.Lock()
	s.recs = append(s.recs, rec)
	s.mu.Unlock()
	return nil
}

type fixedState scribe.State

func (s fixedState) State() scribe.State { return scribe.State(s) }

// fakeCapturer hands samples fed by the test to the registered handler.
type fakeCapturer struct {
	mu       sync.Mutex
	handler  audiocapture.AudioHandler
	startErr error
	stops    int
}

func (c *fakeCapturer) Start(h audiocapture.AudioHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.handler = h
	return nil
}

func (c *fakeCapturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = nil
	c.stops++
	return nil
}

func (c *fakeCapturer) SampleRate() int { return scribe.SampleRate }

func (c *fakeCapturer) feed(samples []float32) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(samples)
	}
}

// fakeSession stands in for a scribe client.
type fakeSession struct {
	mu          sync.Mutex
	state       scribe.State
	connects    int
	disconnects int
	sent        int
	lateSends   int
	subs        map[int]chan scribe.Event
	nextID      int
	connectErr  error
	sendErr     error
}

func newFakeSession() *fakeSession {
	return &fakeSession{subs: make(map[int]chan scribe.Event)}
}

func (s *fakeSession) State() scribe.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) Connect(context.Context) error {
	s.mu.Lock()
	s.connects++
	if s.connectErr != nil {
		s.state = scribe.StateFailed
		s.mu.Unlock()
		return s.connectErr
	}
	s.state = scribe.StateOpen
	s.mu.Unlock()
	s.broadcast(scribe.SessionStartedEvent{SessionID: "sess-1"})
	return nil
}

func (s *fakeSession) SendAudio(_ context.Context, samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != scribe.StateOpen {
		s.lateSends++
		return scribe.ErrNotConnected
	}
	if s.sendErr != nil {
		s.state = scribe.StateFailed
		return s.sendErr
	}
	s.sent += len(samples)
	return nil
}

func (s *fakeSession) Flush(context.Context) error { return nil }

func (s *fakeSession) Disconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	s.state = scribe.StateClosed
	return nil
}

func (s *fakeSession) Subscribe() (<-chan scribe.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan scribe.Event, 64)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *fakeSession) broadcast(ev scribe.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *fakeSession) fail() {
	s.mu.Lock()
	s.state = scribe.StateFailed
	s.mu.Unlock()
}

func (s *fakeSession) failSends(err error) {
	s.mu.Lock()
	s.sendErr = err
	s.mu.Unlock()
}

func (s *fakeSession) sentSamples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errInjectFailed = errors.New("inject failed")
