package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/dictate/audiocapture"
	"go.aimuz.me/dictate/audiocapture/device"
	"go.aimuz.me/dictate/audiocapture/soxr"
	"go.aimuz.me/dictate/clipboard"
	"go.aimuz.me/dictate/config"
	"go.aimuz.me/dictate/dictation"
	"go.aimuz.me/dictate/history"
	"go.aimuz.me/dictate/hotkey"
	"go.aimuz.me/dictate/hotkey/global"
	"go.aimuz.me/dictate/inject"
	"go.aimuz.me/dictate/internal/bus"
	"go.aimuz.me/dictate/internal/eventstore"
	"go.aimuz.me/dictate/metrics"
	"go.aimuz.me/dictate/notify"
)

const storeOpenTimeout = 10 * time.Second

// Init wires the engine and its collaborators. Optional pieces that fail
// to start are logged and left out; recording still works without them.
func (s *Service) Init(app *application.App) {
	s.mu.Lock()
	s.app = app
	cfg := *s.cfg
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
	defer cancel()

	opts := dictation.Options{
		Emitter:      s,
		Metrics:      metrics.NewRecorder(metrics.DefaultWindowSize),
		NewResampler: newResampler,
		Cursor:       inject.NewCursorDetector(cfg.Route.AssumeCursor),
		Notifier:     notify.New(""),
	}

	if clipboard.Available() {
		clip := clipboard.New()
		opts.Clipboard = clip
		kb, err := inject.NewKeyboard()
		if err != nil {
			slog.Warn("keyboard simulation unavailable, using paste only", "error", err)
		}
		opts.Injector = inject.New(inject.Config{
			Threshold:       cfg.Inject.Threshold,
			MirrorClipboard: cfg.Inject.MirrorClipboard,
		}, kb, clip)
	} else {
		slog.Warn("system clipboard unavailable, text injection disabled")
	}

	if capturer, err := device.New(); err != nil {
		slog.Error("open audio input", "error", err)
	} else {
		opts.Capturer = capturer
		s.onClose(capturer.Close)
	}

	if cfg.History.Enabled {
		if store, err := openHistory(cfg.History); err != nil {
			slog.Error("open history", "error", err)
		} else {
			s.mu.Lock()
			s.history = store
			s.mu.Unlock()
			opts.Sinks = append(opts.Sinks, store)
			s.onClose(store.Close)
		}
	}

	if cfg.EventStore.Path != "" {
		if store, err := eventstore.Open(ctx, cfg.EventStore); err != nil {
			slog.Error("open event store", "error", err)
		} else {
			opts.Journal = store
			opts.Sinks = append(opts.Sinks, store)
			s.onClose(store.Close)
		}
	}

	engine := dictation.NewEngine(EngineSettings(&cfg), opts)
	s.onClose(engine.Close)
	s.mu.Lock()
	s.engine = engine
	s.rebind = s.bindHotkey
	s.mu.Unlock()

	if cfg.Bus.Enabled {
		s.connectBus(ctx, cfg.Bus, engine)
	}

	s.onClose(s.stopListener)
	if err := s.bindHotkey(cfg.Hotkey); err != nil {
		slog.Error("register hotkey", "hotkey", cfg.Hotkey, "error", err)
	}
	slog.Info("dictation ready", "language", cfg.Language, "hotkey", cfg.Hotkey)
}

func (s *Service) connectBus(ctx context.Context, cfg config.BusConfig, engine *dictation.Engine) {
	client, err := bus.Connect(ctx, cfg)
	if err != nil {
		slog.Warn("event bus unavailable", "error", err)
		return
	}
	if err := client.HandleControl(engine.StartRecording, engine.StopRecording); err != nil {
		slog.Warn("bus control disabled", "error", err)
	}
	s.mu.Lock()
	s.mirror = client
	s.mu.Unlock()
	s.onClose(func() error {
		client.Close()
		return nil
	})
}

// bindHotkey replaces the push-to-talk listener.
func (s *Service) bindHotkey(shortcut string) error {
	combo, err := hotkey.Parse(shortcut)
	if err != nil {
		return err
	}
	l, err := global.NewListener(combo, s.pressed, s.released)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.listener
	s.listener = l
	s.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	if err := l.Start(); err != nil {
		return fmt.Errorf("start listener: %w", err)
	}
	slog.Info("push-to-talk registered", "hotkey", combo.String())
	return nil
}

func (s *Service) stopListener() error {
	s.mu.Lock()
	l := s.listener
	s.listener = nil
	s.mu.Unlock()
	if l != nil {
		l.Stop()
	}
	return nil
}

func (s *Service) pressed() {
	if err := s.StartRecording(); err != nil {
		slog.Warn("push-to-talk start", "error", err)
	}
}

func (s *Service) released() {
	if err := s.StopRecording(); err != nil {
		slog.Warn("push-to-talk stop", "error", err)
	}
}

func openHistory(cfg config.HistoryConfig) (*history.Store, error) {
	dir := cfg.Path
	if dir == "" {
		base, err := config.Dir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "history")
	}
	return history.Open(dir)
}

func newResampler(inRate, outRate int) (audiocapture.Resampler, error) {
	rs, err := soxr.New(inRate, outRate)
	if err != nil {
		return nil, err
	}
	return rs, nil
}
