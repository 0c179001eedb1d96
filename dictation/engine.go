// Package dictation turns streaming transcripts into text typed at the
// cursor, or buffered on the clipboard when there is no cursor.
package dictation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"go.aimuz.me/dictate/audiocapture"
	"go.aimuz.me/dictate/internal/types"
	"go.aimuz.me/dictate/metrics"
	"go.aimuz.me/dictate/scribe"
)

// Lifecycle timing.
const (
	TailWait           = 120 * time.Millisecond
	WorkerReadyTimeout = 5 * time.Second
	DrainTimeout       = 5 * time.Second
)

var tracer = otel.Tracer("go.aimuz.me/dictate/dictation")

var (
	// ErrMissingAPIKey is returned by StartRecording without a key.
	ErrMissingAPIKey = errors.New("dictation: api key is not configured")
	// ErrWorkerTimeout is returned when audio capture does not start in time.
	ErrWorkerTimeout = errors.New("dictation: audio worker did not become ready")
)

// Session is a streaming transcription connection.
type Session interface {
	StateReporter
	AudioSink
	Connect(ctx context.Context) error
	Flush(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Subscribe() (<-chan scribe.Event, func())
}

// SessionFactory creates a session for an API key and backend language.
type SessionFactory func(apiKey, language string) Session

// ResamplerFactory creates a resampler between two fixed rates.
type ResamplerFactory func(inRate, outRate int) (audiocapture.Resampler, error)

// SessionJournal records the recording timeline.
type SessionJournal interface {
	RecordSessionEvent(ctx context.Context, ev types.SessionEvent) error
}

// ScribeSessions returns a SessionFactory backed by scribe clients built
// from base.
func ScribeSessions(base scribe.Config) SessionFactory {
	return func(apiKey, language string) Session {
		cfg := base
		cfg.APIKey = apiKey
		cfg.LanguageCode = language
		return scribe.NewClient(cfg)
	}
}

// Settings are the user-facing engine settings.
type Settings struct {
	APIKey          string
	Language        string // eng, zho or auto
	Rewrite         RewritePolicy
	SuppressSilence bool
	Denoise         bool
	RecordDir       string
}

// BackendLanguage maps a configured language to the backend's
// language_code. Automatic detection sends none.
func BackendLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == LangAuto {
		return ""
	}
	return lang
}

// Options are the engine's collaborators.
type Options struct {
	Emitter      types.Emitter
	Metrics      *metrics.Recorder
	Capturer     audiocapture.Capturer
	NewSession   SessionFactory
	NewResampler ResamplerFactory
	Injector     TextInjector
	Cursor       CursorDetector
	Clipboard    ClipboardWriter
	Notifier     Notifier
	Sinks        []TranscriptSink
	Journal      SessionJournal
}

// Engine owns the recording lifecycle: one session, one capture pipeline
// and a long-lived injection goroutine.
type Engine struct {
	state     *State
	opts      Options
	injection *InjectionDispatcher
	cancel    context.CancelFunc
	done      chan struct{}

	mu        sync.Mutex
	settings  Settings
	client    Session
	clientKey string
	rec       *recording
}

type recording struct {
	id          string
	client      Session
	unsubscribe func()
	processor   *audiocapture.Processor
	resampler   audiocapture.Resampler
	wav         *audiocapture.WAVRecorder
	dispatcher  *Dispatcher
	// reported is set once a fatal error reached the UI.
	reported atomic.Bool

	cancelProc   context.CancelFunc
	cancel       context.CancelFunc
	procDone     chan struct{}
	sendDone     chan struct{}
	dispatchDone chan struct{}
}

// NewEngine starts the injection goroutine. Call Close to stop it.
func NewEngine(settings Settings, opts Options) *Engine {
	if opts.NewSession == nil {
		opts.NewSession = ScribeSessions(scribe.DefaultConfig())
	}
	state := NewState(opts.Emitter, opts.Metrics, settings.Rewrite)
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		state:     state,
		opts:      opts,
		injection: NewInjectionDispatcher(state, opts.Injector, opts.Emitter),
		cancel:    cancel,
		done:      make(chan struct{}),
		settings:  settings,
	}
	go func() {
		defer close(e.done)
		e.injection.Run(ctx)
	}()
	return e
}

// State returns the shared runtime state.
func (e *Engine) State() *State { return e.state }

// IsRecording reports whether a recording is active.
func (e *Engine) IsRecording() bool { return e.state.IsRecording() }

// Report returns the current performance report.
func (e *Engine) Report() types.PerformanceReport { return e.state.Metrics.Report() }

// QueueLen returns the number of committed transcripts awaiting injection.
func (e *Engine) QueueLen() int { return e.state.Queue.Len() }

// UpdateSettings applies to the next recording. The rewrite policy applies
// immediately.
func (e *Engine) UpdateSettings(s Settings) {
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
	e.state.Tracker.SetPolicy(s.Rewrite)
}

// StartRecording connects a session and starts capturing. It is a no-op
// while a recording is active.
func (e *Engine) StartRecording(ctx context.Context) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec != nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "dictation.start_recording")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	e.state.resetSession()
	e.emit(types.EventRecordingState, string(types.StateConnecting))

	settings := e.settings
	if strings.TrimSpace(settings.APIKey) == "" {
		return e.startFailed(ErrMissingAPIKey)
	}
	if e.opts.Capturer == nil {
		return e.startFailed(audiocapture.ErrNoInputDevice)
	}

	client := e.sessionFor(ctx, settings)
	events, unsubscribe := client.Subscribe()
	if err := client.Connect(ctx); err != nil {
		unsubscribe()
		e.client = nil
		return e.startFailed(fmt.Errorf("connect: %w", err))
	}

	rec, err := e.startWorker(ctx, settings, client, events, unsubscribe)
	if err != nil {
		unsubscribe()
		if derr := client.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			slog.Warn("disconnect after failed start", "error", derr)
		}
		return e.startFailed(err)
	}

	span.SetAttributes(attribute.String("recording.id", rec.id), attribute.String("language", settings.Language))
	e.rec = rec
	e.state.recording.Store(true)
	e.emit(types.EventRecordingState, string(types.StateRecording))
	e.journal(ctx, rec, types.SessionStarted, settings.Language)
	slog.Info("recording started", "recording_id", rec.id, "language", settings.Language)
	return nil
}

func (e *Engine) startFailed(err error) error {
	slog.Error("start recording", "error", err)
	e.emit(types.EventRecordingState, string(types.StateError))
	e.emit(types.EventRecordingError, err.Error())
	return err
}

// sessionFor reuses the cached client when key and language are unchanged.
func (e *Engine) sessionFor(ctx context.Context, s Settings) Session {
	lang := BackendLanguage(s.Language)
	key := s.APIKey + "\x00" + lang
	if e.client != nil && e.clientKey == key {
		return e.client
	}
	if e.client != nil {
		slog.Info("session settings changed, replacing client")
		if err := e.client.Disconnect(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("disconnect stale client", "error", err)
		}
	}
	e.client = e.opts.NewSession(s.APIKey, lang)
	e.clientKey = key
	return e.client
}

func (e *Engine) startWorker(ctx context.Context, s Settings, client Session, events <-chan scribe.Event, unsubscribe func()) (*recording, error) {
	acfg := audiocapture.DefaultConfig()
	acfg.InputSampleRate = e.opts.Capturer.SampleRate()
	acfg.TargetSampleRate = scribe.SampleRate
	acfg.Denoise = s.Denoise

	var rs audiocapture.Resampler
	if acfg.InputSampleRate != acfg.TargetSampleRate {
		if e.opts.NewResampler == nil {
			return nil, fmt.Errorf("%w: no resampler for %d Hz", audiocapture.ErrInvalidConfig, acfg.InputSampleRate)
		}
		var err error
		rs, err = e.opts.NewResampler(acfg.InputSampleRate, acfg.TargetSampleRate)
		if err != nil {
			return nil, fmt.Errorf("create resampler: %w", err)
		}
	}

	ring := audiocapture.NewRing(acfg.RingCapacity())
	proc, err := audiocapture.NewProcessor(acfg, ring, rs)
	if err != nil {
		if rs != nil {
			_ = rs.Close()
		}
		return nil, fmt.Errorf("create processor: %w", err)
	}

	rec := &recording{
		id:           uuid.NewString(),
		client:       client,
		unsubscribe:  unsubscribe,
		processor:    proc,
		resampler:    rs,
		procDone:     make(chan struct{}),
		sendDone:     make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}

	senderCfg := SenderConfig{SuppressSilence: s.SuppressSilence}
	if s.RecordDir != "" {
		wav, err := audiocapture.NewWAVRecorder(s.RecordDir, rec.id, scribe.SampleRate)
		if err != nil {
			slog.Warn("debug recording disabled", "error", err)
		} else {
			rec.wav = wav
			senderCfg.Tap = wav
			slog.Info("debug recording", "path", wav.Path())
		}
	}

	rec.dispatcher = NewDispatcher(e.state, DispatcherConfig{
		Language:  s.Language,
		Emitter:   e.opts.Emitter,
		Injector:  e.opts.Injector,
		Cursor:    e.opts.Cursor,
		Clipboard: e.opts.Clipboard,
		Notifier:  e.opts.Notifier,
		Sinks:     e.opts.Sinks,
		Session:   client,
		OnFatal: func(msg string) {
			rec.reported.Store(true)
			go e.abort(rec, msg)
		},
	})
	sender := NewSender(e.state, client, senderCfg)

	base := context.WithoutCancel(ctx)
	procCtx, cancelProc := context.WithCancel(base)
	runCtx, cancel := context.WithCancel(base)
	rec.cancelProc, rec.cancel = cancelProc, cancel

	go func() {
		defer close(rec.procDone)
		if err := proc.Run(procCtx); err != nil {
			slog.Error("audio processor stopped", "error", err)
		}
	}()
	go func() {
		defer close(rec.sendDone)
		if err := sender.Run(runCtx, proc.Output()); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("audio sender stopped", "error", err)
			go e.senderFailed(rec, err)
		}
	}()
	go func() {
		defer close(rec.dispatchDone)
		rec.dispatcher.Run(runCtx, events)
	}()

	ready := make(chan error, 1)
	go func() { ready <- e.opts.Capturer.Start(ring.Push) }()
	select {
	case err = <-ready:
	case <-time.After(WorkerReadyTimeout):
		err = ErrWorkerTimeout
		go func() {
			if <-ready == nil {
				_ = e.opts.Capturer.Stop()
			}
		}()
	}
	if err != nil {
		cancelProc()
		<-rec.procDone
		cancel()
		<-rec.sendDone
		<-rec.dispatchDone
		rec.close()
		return nil, fmt.Errorf("start audio capture: %w", err)
	}
	return rec, nil
}

// StopRecording stops capture, flushes the tail of the audio, closes the
// session and waits for queued transcripts to be injected.
func (e *Engine) StopRecording(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.rec
	if rec == nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "dictation.stop_recording",
		trace.WithAttributes(attribute.String("recording.id", rec.id)))
	defer span.End()

	err := e.stopLocked(ctx, rec)
	if err != nil {
		span.RecordError(err)
	}
	e.emit(types.EventRecordingState, string(types.StateIdle))
	return err
}

func (e *Engine) stopLocked(ctx context.Context, rec *recording) error {
	e.rec = nil
	e.state.recording.Store(false)
	e.emit(types.EventRecordingState, string(types.StateProcessing))

	var errs []error
	if err := e.opts.Capturer.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop audio capture: %w", err))
	}

	select {
	case <-time.After(TailWait):
	case <-ctx.Done():
	}

	rec.cancelProc()
	<-rec.procDone
	<-rec.sendDone

	bg := context.WithoutCancel(ctx)
	if err := rec.client.Flush(bg); err != nil {
		errs = append(errs, fmt.Errorf("flush session: %w", err))
	}
	if err := rec.client.Disconnect(bg); err != nil {
		errs = append(errs, fmt.Errorf("disconnect session: %w", err))
	}
	rec.unsubscribe()
	rec.cancel()
	<-rec.dispatchDone

	if n := rec.processor.Dropped(); n > 0 {
		e.state.Metrics.RecordAudioDrop(n)
	}
	if samples, chunks := rec.processor.Overruns(); samples > 0 {
		slog.Warn("audio ring overrun", "recording_id", rec.id,
			"dropped_samples", samples, "dropped_chunks", chunks)
		e.state.Metrics.RecordAudioDrop(chunks)
	}

	drainCtx, cancel := context.WithTimeout(bg, DrainTimeout)
	defer cancel()
	if err := e.injection.WaitIdle(drainCtx); err != nil {
		slog.Warn("committed queue not drained", "pending", e.state.Queue.Len())
	}

	rec.close()
	report := e.state.Metrics.Report()
	if detail, err := json.Marshal(report); err == nil {
		e.journal(bg, rec, types.SessionStopped, string(detail))
	}
	slog.Info("recording stopped", "recording_id", rec.id,
		"dropped_audio_chunks", report.DroppedAudioChunks,
		"sent_audio_batches", report.SentAudioBatches)
	return errors.Join(errs...)
}

// senderFailed surfaces a failed audio send and ends the recording. The
// error is reported unless the dispatcher already reported one.
func (e *Engine) senderFailed(rec *recording, err error) {
	e.mu.Lock()
	current := e.rec == rec
	e.mu.Unlock()
	if !current {
		return
	}
	if rec.reported.CompareAndSwap(false, true) {
		e.emit(types.EventRecordingState, string(types.StateError))
		e.emit(types.EventRecordingError, err.Error())
	}
	e.abort(rec, err.Error())
}

// abort tears down rec after a fatal session error.
func (e *Engine) abort(rec *recording, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != rec {
		return
	}
	slog.Warn("tearing down session", "recording_id", rec.id, "reason", reason)
	if err := e.stopLocked(context.Background(), rec); err != nil {
		slog.Warn("teardown", "error", err)
	}
	if e.client == rec.client {
		e.client = nil
	}
	e.journal(context.Background(), rec, types.SessionFailed, reason)
	e.emit(types.EventRecordingState, string(types.StateError))
}

func (r *recording) close() {
	if r.wav != nil {
		if err := r.wav.Close(); err != nil {
			slog.Warn("close debug recording", "error", err)
		}
	}
	if r.resampler != nil {
		_ = r.resampler.Close()
	}
}

// Close stops any recording and the injection goroutine.
func (e *Engine) Close() error {
	err := e.StopRecording(context.Background())
	e.cancel()
	<-e.done

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		err = errors.Join(err, e.client.Disconnect(context.Background()))
		e.client = nil
	}
	if c, ok := e.opts.Capturer.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func (e *Engine) journal(ctx context.Context, rec *recording, kind, detail string) {
	if e.opts.Journal == nil {
		return
	}
	ev := types.SessionEvent{
		RecordingID: rec.id,
		SessionID:   rec.dispatcher.SessionID(),
		Kind:        kind,
		Detail:      detail,
		AtMs:        time.Now().UnixMilli(),
	}
	if err := e.opts.Journal.RecordSessionEvent(ctx, ev); err != nil {
		slog.Warn("record session event", "kind", kind, "error", err)
	}
}

func (e *Engine) emit(name string, data any) {
	if e.opts.Emitter != nil {
		e.opts.Emitter.Emit(name, data)
	}
}
