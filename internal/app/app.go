// Package app provides the core application service for Wails bindings.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/dictate/config"
	"go.aimuz.me/dictate/dictation"
	"go.aimuz.me/dictate/hotkey/global"
	"go.aimuz.me/dictate/internal/types"
)

// Recorder is the engine surface the UI drives.
type Recorder interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	IsRecording() bool
	Report() types.PerformanceReport
	QueueLen() int
	UpdateSettings(s dictation.Settings)
}

// TranscriptHistory lists and clears stored transcripts.
type TranscriptHistory interface {
	Recent(limit int) ([]types.TranscriptRecord, error)
	Clear() error
}

// ErrNotReady is returned by commands called before Init finished.
var ErrNotReady = errors.New("app: service not initialized")

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; the pipeline lives in dictation.
type Service struct {
	mu       sync.Mutex
	cfg      *config.Config
	engine   Recorder
	history  TranscriptHistory
	save     func(*config.Config) error
	rebind   func(hotkey string) error
	listener *global.Listener
	closers  []func() error
	shutdown sync.Once

	// UI references - set via Init
	app    *application.App
	mirror types.Emitter

	// Version info (set by caller)
	version string
}

// New creates a new Service. Call Init() after Wails app is created.
func New(version string, cfg *config.Config) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Service{
		version: version,
		cfg:     cfg,
		save:    (*config.Config).Save,
	}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// StartRecording starts a dictation session.
func (s *Service) StartRecording() error {
	engine, err := s.recorder()
	if err != nil {
		return err
	}
	return engine.StartRecording(context.Background())
}

// StopRecording stops the session and waits for queued text.
func (s *Service) StopRecording() error {
	engine, err := s.recorder()
	if err != nil {
		return err
	}
	return engine.StopRecording(context.Background())
}

// ToggleRecording starts or stops, for the tray menu.
func (s *Service) ToggleRecording() error {
	engine, err := s.recorder()
	if err != nil {
		return err
	}
	if engine.IsRecording() {
		return engine.StopRecording(context.Background())
	}
	return engine.StartRecording(context.Background())
}

// IsRecording reports whether a session is active.
func (s *Service) IsRecording() bool {
	engine, err := s.recorder()
	return err == nil && engine.IsRecording()
}

// GetPerformanceReport returns pipeline latency and drop statistics.
func (s *Service) GetPerformanceReport() types.PerformanceReport {
	engine, err := s.recorder()
	if err != nil {
		return types.PerformanceReport{Warnings: []string{}}
	}
	return engine.Report()
}

// CommittedQueueLen returns how many transcripts wait for injection.
func (s *Service) CommittedQueueLen() int {
	engine, err := s.recorder()
	if err != nil {
		return 0
	}
	return engine.QueueLen()
}

// GetSettings returns a copy of the current configuration.
func (s *Service) GetSettings() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.cfg
}

// SaveSettings validates, persists and applies cfg. Engine settings take
// effect on the next recording; the hotkey is rebound at once.
func (s *Service) SaveSettings(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	cfg.Normalize()

	s.mu.Lock()
	prevHotkey := s.cfg.Hotkey
	if err := s.save(&cfg); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save settings: %w", err)
	}
	s.cfg = &cfg
	engine, rebind := s.engine, s.rebind
	s.mu.Unlock()

	if engine != nil {
		engine.UpdateSettings(EngineSettings(&cfg))
	}
	if rebind != nil && cfg.Hotkey != prevHotkey {
		if err := rebind(cfg.Hotkey); err != nil {
			return fmt.Errorf("rebind hotkey: %w", err)
		}
	}
	slog.Info("settings saved", "language", cfg.Language, "hotkey", cfg.Hotkey)
	return nil
}

// RecentTranscripts returns up to limit committed transcripts, newest first.
func (s *Service) RecentTranscripts(limit int) ([]types.TranscriptRecord, error) {
	s.mu.Lock()
	h := s.history
	s.mu.Unlock()
	if h == nil {
		return []types.TranscriptRecord{}, nil
	}
	return h.Recent(limit)
}

// ClearHistory removes all stored transcripts.
func (s *Service) ClearHistory() error {
	s.mu.Lock()
	h := s.history
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Clear()
}

// Shutdown stops recording and releases every resource, newest first.
func (s *Service) Shutdown() {
	s.shutdown.Do(func() {
		s.mu.Lock()
		engine := s.engine
		closers := s.closers
		s.closers = nil
		s.mu.Unlock()

		if engine != nil {
			if err := engine.StopRecording(context.Background()); err != nil {
				slog.Warn("stop recording on shutdown", "error", err)
			}
		}
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Error("shutdown", "error", err)
			}
		}
	})
}

func (s *Service) recorder() (Recorder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, ErrNotReady
	}
	return s.engine, nil
}

func (s *Service) onClose(fn func() error) {
	s.mu.Lock()
	s.closers = append(s.closers, fn)
	s.mu.Unlock()
}

// EngineSettings maps configuration to engine settings.
func EngineSettings(cfg *config.Config) dictation.Settings {
	return dictation.Settings{
		APIKey:   cfg.APIKey,
		Language: cfg.Language,
		Rewrite: dictation.RewritePolicy{
			Enabled:      cfg.Rewrite.Enabled,
			MaxBackspace: cfg.Rewrite.MaxBackspace,
			MinInterval:  msDuration(cfg.Rewrite.WindowMS),
		},
		SuppressSilence: cfg.Audio.SuppressSilence,
		Denoise:         cfg.Audio.Denoise,
		RecordDir:       cfg.Debug.RecordDir,
	}
}
