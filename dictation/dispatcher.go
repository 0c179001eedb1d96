package dictation

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.aimuz.me/dictate/internal/types"
	"go.aimuz.me/dictate/scribe"
)

// Transcript filters.
const (
	CommitInactivity  = 6 * time.Second
	PartialInactivity = 2 * time.Second
	MinConfidence     = 0.10
)

// TextInjector types text into the focused application.
type TextInjector interface {
	Inject(text string) error
	Rewrite(backspaces int, insert string) error
}

// CursorDetector reports whether the focused window has a text caret.
type CursorDetector interface {
	IsTextCursorAvailable() bool
}

// ClipboardWriter replaces the system clipboard text.
type ClipboardWriter interface {
	WriteText(text string) error
}

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(title, message string) error
}

// TranscriptSink persists committed transcripts.
type TranscriptSink interface {
	RecordTranscript(ctx context.Context, rec types.TranscriptRecord) error
}

// StateReporter exposes the connection state of a protocol session.
type StateReporter interface {
	State() scribe.State
}

// DispatcherConfig wires a Dispatcher to its collaborators. Nil
// collaborators are skipped.
type DispatcherConfig struct {
	Language  string
	Emitter   types.Emitter
	Injector  TextInjector
	Cursor    CursorDetector
	Clipboard ClipboardWriter
	Notifier  Notifier
	Sinks     []TranscriptSink
	// Session distinguishes handshake retries from a dead connection.
	Session StateReporter
	// OnFatal is called once the session can no longer be used.
	OnFatal func(message string)
}

// Dispatcher turns protocol events into UI events, live partial edits
// and queued committed transcripts.
type Dispatcher struct {
	state *State
	cfg   DispatcherConfig

	mu        sync.Mutex
	sessionID string
}

// NewDispatcher returns a dispatcher bound to state.
func NewDispatcher(state *State, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{state: state, cfg: cfg}
}

// SessionID returns the backend session id, if one was announced.
func (d *Dispatcher) SessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

// Run handles events until ctx is done, then handles whatever is already
// buffered and returns.
func (d *Dispatcher) Run(ctx context.Context, events <-chan scribe.Event) {
	for {
		select {
		case ev := <-events:
			d.Handle(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-events:
					d.Handle(context.WithoutCancel(ctx), ev)
				default:
					return
				}
			}
		}
	}
}

// Handle processes a single event.
func (d *Dispatcher) Handle(ctx context.Context, ev scribe.Event) {
	switch e := ev.(type) {
	case scribe.SessionStartedEvent:
		d.mu.Lock()
		d.sessionID = e.SessionID
		d.mu.Unlock()
		slog.Info("scribe session started", "session_id", e.SessionID)
		d.emit(types.EventRecordingState, string(types.StateListening))
		d.emit(types.EventSessionStarted, e.SessionID)
	case scribe.PartialTranscriptEvent:
		d.handlePartial(e)
	case scribe.CommittedTranscriptEvent:
		d.handleCommitted(ctx, e)
	case scribe.InputErrorEvent:
		d.sessionError("input_error", e.Message())
	case scribe.ErrorEvent:
		d.sessionError("error", e.Message())
	case scribe.AuthErrorEvent:
		d.sessionError("auth_error", e.Message())
	case scribe.TransportErrorEvent:
		if d.cfg.Session != nil {
			if st := d.cfg.Session.State(); st == scribe.StateConnecting || st == scribe.StateOpen {
				slog.Warn("transient transport error", "message", e.Message)
				return
			}
		}
		d.sessionError("transport_error", e.Message)
	case scribe.UnknownEvent:
		slog.Info("ignored scribe event", "type", e.Type)
	default:
		slog.Debug("unhandled event", "event", ev)
	}
}

func (d *Dispatcher) handlePartial(e scribe.PartialTranscriptEvent) {
	text := Normalize(e.Text, d.cfg.Language)
	d.emit(types.EventPartialTranscript, text)
	if text == "" {
		return
	}

	now := d.state.Now()
	if !d.state.voiceActiveWithin(PartialInactivity, now) {
		return
	}

	tracker := d.state.Tracker
	if tracker.Late(text) {
		slog.Debug("ignored partial repeating the last commit")
		return
	}
	if tracker.Route(d.cursorAvailable()) == ModeClipboardOnly {
		d.state.Route.Set(types.RouteClipboardMode)
		return
	}
	d.state.Route.Set(types.RouteCursorInput)

	edit, ok := tracker.Plan(text, now)
	if !ok || d.cfg.Injector == nil {
		return
	}

	start := time.Now()
	var err error
	if edit.Backspaces == 0 {
		err = d.cfg.Injector.Inject(edit.Insert)
	} else {
		err = d.cfg.Injector.Rewrite(edit.Backspaces, edit.Insert)
	}
	d.state.Metrics.RecordInjection(time.Since(start))

	if err != nil {
		slog.Warn("inject partial transcript", "error", err)
		tracker.Fail()
		if tracker.Mode() == ModeClipboardOnly {
			d.state.Route.Set(types.RouteClipboardMode)
		}
		return
	}
	tracker.Apply(text)
}

func (d *Dispatcher) handleCommitted(ctx context.Context, e scribe.CommittedTranscriptEvent) {
	now := d.state.Now()
	if !d.state.voiceActiveWithin(CommitInactivity, now) {
		slog.Info("dropped committed transcript without recent voice activity",
			"last_voice_activity", d.state.LastVoiceActivity(), "max_inactive", CommitInactivity)
		return
	}
	if math.IsNaN(e.Confidence) || math.IsInf(e.Confidence, 0) {
		slog.Warn("dropped committed transcript with non-finite confidence")
		return
	}
	// Confidence <= 0 means the backend did not report one.
	if e.Confidence > 0 && e.Confidence < MinConfidence {
		slog.Info("dropped low-confidence committed transcript",
			"confidence", e.Confidence, "min_confidence", MinConfidence)
		return
	}

	committed := AppendTerminalPunctuation(Normalize(e.Text, d.cfg.Language))
	if committed == "" {
		return
	}

	tracker := d.state.Tracker
	mode := tracker.Route(d.cursorAvailable())
	injected := tracker.TakeInjected(committed)

	var text string
	route := types.RouteCursorInput
	switch {
	case strings.TrimSpace(injected) != "":
		text = ResolveCommittedPunctuationDelta(committed, injected)
	case mode != ModeClipboardOnly:
		d.state.Route.Set(types.RouteCursorInput)
		text = committed
	default:
		route = types.RouteClipboardMode
		d.state.Route.Set(route)
		d.toClipboard(tracker.AppendPending(committed))
	}

	if strings.TrimSpace(text) != "" {
		dropped := d.state.Queue.Push(CommittedTranscript{
			Text:        text,
			Confidence:  e.Confidence,
			CreatedAtMs: e.CreatedAtMs,
		})
		if dropped > 0 {
			d.state.Metrics.RecordCommittedDrop(uint64(dropped))
		}
	}
	d.emit(types.EventCommittedTranscript, committed)

	rec := types.TranscriptRecord{
		ID:         uuid.NewString(),
		SessionID:  d.SessionID(),
		Text:       committed,
		Confidence: e.Confidence,
		Route:      string(route),
		CreatedAt:  now.UnixMilli(),
	}
	for _, sink := range d.cfg.Sinks {
		if err := sink.RecordTranscript(ctx, rec); err != nil {
			slog.Warn("record transcript", "error", err)
		}
	}
}

func (d *Dispatcher) toClipboard(pending string) {
	if d.cfg.Clipboard == nil {
		return
	}
	if err := d.cfg.Clipboard.WriteText(pending); err != nil {
		slog.Warn("update clipboard buffer", "error", err)
		d.emit(types.EventRecordingState, string(types.StateError))
		d.emit(types.EventRecordingError, err.Error())
		return
	}
	slog.Info("committed transcript appended to clipboard buffer")
	if d.cfg.Notifier != nil {
		if err := d.cfg.Notifier.Notify("Dictation ready", "Transcript copied to clipboard. Paste it where you need it."); err != nil {
			slog.Debug("notify", "error", err)
		}
	}
}

func (d *Dispatcher) sessionError(kind, message string) {
	slog.Warn("scribe session error", "kind", kind, "message", message)
	d.state.Tracker.Disable()
	d.emit(types.EventRecordingState, string(types.StateError))
	d.emit(types.EventRecordingError, message)
	if d.cfg.OnFatal != nil {
		d.cfg.OnFatal(message)
	}
}

func (d *Dispatcher) cursorAvailable() bool {
	return d.cfg.Cursor != nil && d.cfg.Cursor.IsTextCursorAvailable()
}

func (d *Dispatcher) emit(name string, data any) {
	if d.cfg.Emitter != nil {
		d.cfg.Emitter.Emit(name, data)
	}
}
