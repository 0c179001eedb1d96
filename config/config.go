// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.aimuz.me/dictate/hotkey"
	"gopkg.in/yaml.v3"
)

const (
	appName        = "dictate"
	configFileName = "config.yaml"
)

// Language codes accepted by the engine.
const (
	LanguageEnglish = "eng"
	LanguageChinese = "zho"
	LanguageAuto    = "auto"
)

// Rewrite limits.
const (
	DefaultMaxBackspace = 12
	MaxMaxBackspace     = 64
	DefaultWindowMS     = 140
	MaxWindowMS         = 2000
)

// Config represents the application configuration.
type Config struct {
	APIKey     string           `yaml:"api_key"`
	Language   string           `yaml:"language"`
	Hotkey     string           `yaml:"hotkey"`
	Rewrite    RewriteConfig    `yaml:"rewrite"`
	Audio      AudioConfig      `yaml:"audio"`
	Inject     InjectConfig     `yaml:"inject"`
	Route      RouteConfig      `yaml:"route"`
	History    HistoryConfig    `yaml:"history"`
	EventStore EventStoreConfig `yaml:"event_store"`
	Bus        BusConfig        `yaml:"bus"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Debug      DebugConfig      `yaml:"debug"`
}

// RewriteConfig controls live partial rewriting.
type RewriteConfig struct {
	Enabled      bool `yaml:"enabled"`
	MaxBackspace int  `yaml:"max_backspace"`
	WindowMS     int  `yaml:"window_ms"`
}

type AudioConfig struct {
	SuppressSilence bool `yaml:"suppress_silence"`
	Denoise         bool `yaml:"denoise"`
}

type InjectConfig struct {
	Threshold       int  `yaml:"threshold"`
	MirrorClipboard bool `yaml:"mirror_clipboard"`
}

// RouteConfig matters only where the caret cannot be queried.
type RouteConfig struct {
	AssumeCursor bool `yaml:"assume_cursor"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // empty: <config dir>/history
}

type EventStoreConfig struct {
	Path          string `yaml:"path"` // empty disables the store
	RetentionDays int    `yaml:"retention_days"`
	MaxRecordings int    `yaml:"max_recordings"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	Subject        string   `yaml:"subject"`
	Token          string   `yaml:"token"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type TelemetryConfig struct {
	PrometheusBind string `yaml:"prometheus_bind"` // empty disables /metrics
	TraceStdout    bool   `yaml:"trace_stdout"`
}

type DebugConfig struct {
	RecordDir string `yaml:"record_dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Language: LanguageEnglish,
		Hotkey:   hotkey.Default,
		Rewrite: RewriteConfig{
			Enabled:      true,
			MaxBackspace: DefaultMaxBackspace,
			WindowMS:     DefaultWindowMS,
		},
		Inject:  InjectConfig{Threshold: 10},
		History: HistoryConfig{Enabled: true},
		EventStore: EventStoreConfig{
			RetentionDays: 30,
			MaxRecordings: 1000,
		},
		Bus: BusConfig{
			Servers:        []string{"nats://localhost:4222"},
			Subject:        "dictate.events",
			ConnectTimeout: 2000,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load loads configuration from the default path.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, importing a legacy JSON file
// found next to it, then applies env overrides and normalizes.
func LoadFile(path string) (*Config, error) {
	if err := importLegacy(path); err != nil {
		return nil, fmt.Errorf("import legacy config: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Normalize()
	return cfg, nil
}

// Save persists the configuration to the default path.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.SaveFile(path)
}

// SaveFile persists the configuration to path.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// The file holds the API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Dir returns the application config directory.
func Dir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// Normalize repairs loaded values. Out-of-range rewrite settings and bad
// hotkeys fall back to defaults with a warning.
func (c *Config) Normalize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Language = NormalizeLanguage(c.Language)

	if strings.TrimSpace(c.Hotkey) == "" {
		c.Hotkey = hotkey.Default
	} else if combo, err := hotkey.Parse(c.Hotkey); err != nil {
		slog.Warn("configured hotkey is invalid, using default", "hotkey", c.Hotkey, "error", err)
		c.Hotkey = hotkey.Default
	} else {
		c.Hotkey = combo.String()
	}

	if c.Rewrite.MaxBackspace < 0 || c.Rewrite.MaxBackspace > MaxMaxBackspace {
		slog.Warn("rewrite max_backspace out of range, using default", "max_backspace", c.Rewrite.MaxBackspace)
		c.Rewrite.MaxBackspace = DefaultMaxBackspace
	}
	if c.Rewrite.WindowMS < 0 || c.Rewrite.WindowMS > MaxWindowMS {
		slog.Warn("rewrite window_ms out of range, using default", "window_ms", c.Rewrite.WindowMS)
		c.Rewrite.WindowMS = DefaultWindowMS
	}
	if c.Inject.Threshold <= 0 {
		c.Inject.Threshold = 10
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format != "json" {
		c.Log.Format = "text"
	}
}

// Validate checks settings submitted from the UI. Unlike Normalize it
// rejects bad values instead of repairing them.
func (c *Config) Validate() error {
	var errs []error
	switch NormalizeLanguage(c.Language) {
	case LanguageEnglish, LanguageChinese, LanguageAuto:
	default:
		errs = append(errs, fmt.Errorf("language must be one of eng, zho or auto, got %q", c.Language))
	}
	if _, err := hotkey.Parse(c.Hotkey); err != nil {
		errs = append(errs, fmt.Errorf("hotkey: %w", err))
	}
	if c.Rewrite.MaxBackspace < 0 || c.Rewrite.MaxBackspace > MaxMaxBackspace {
		errs = append(errs, fmt.Errorf("rewrite.max_backspace must be between 0 and %d", MaxMaxBackspace))
	}
	if c.Rewrite.WindowMS < 0 || c.Rewrite.WindowMS > MaxWindowMS {
		errs = append(errs, fmt.Errorf("rewrite.window_ms must be between 0 and %d", MaxWindowMS))
	}
	if c.EventStore.RetentionDays < 0 || c.EventStore.MaxRecordings < 0 {
		errs = append(errs, errors.New("event_store retention values must be >= 0"))
	}
	if c.Bus.Enabled && len(c.Bus.Servers) == 0 {
		errs = append(errs, errors.New("bus.servers must not be empty when the bus is enabled"))
	}
	return errors.Join(errs...)
}

// NormalizeLanguage maps language aliases to eng, zho or auto.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	switch lang {
	case "", "en", "eng", "english":
		return LanguageEnglish
	case "zh", "zh-cn", "zh-hans", "zh-tw", "zh-hant", "cn", "chinese", "zho":
		return LanguageChinese
	case "auto":
		return LanguageAuto
	}
	return lang
}

func applyEnvOverrides(cfg *Config) {
	// ELEVENLABS_KEY wins over ELEVENLABS_API_KEY.
	overrideString(&cfg.APIKey, "ELEVENLABS_API_KEY")
	overrideString(&cfg.APIKey, "ELEVENLABS_KEY")
	overrideString(&cfg.Language, "DICTATE_LANGUAGE")
	overrideString(&cfg.Hotkey, "DICTATE_HOTKEY")
	overrideBool(&cfg.Rewrite.Enabled, "DICTATE_REWRITE_ENABLED")
	overrideInt(&cfg.Rewrite.MaxBackspace, "DICTATE_REWRITE_MAX_BACKSPACE")
	overrideInt(&cfg.Rewrite.WindowMS, "DICTATE_REWRITE_WINDOW_MS")
	overrideBool(&cfg.Audio.SuppressSilence, "DICTATE_SUPPRESS_SILENCE")
	overrideBool(&cfg.Audio.Denoise, "DICTATE_DENOISE")
	overrideBool(&cfg.Inject.MirrorClipboard, "DICTATE_MIRROR_CLIPBOARD")
	overrideBool(&cfg.Route.AssumeCursor, "DICTATE_ASSUME_CURSOR")
	overrideString(&cfg.EventStore.Path, "DICTATE_EVENT_STORE_PATH")
	overrideBool(&cfg.Bus.Enabled, "DICTATE_BUS_ENABLED")
	overrideStringSlice(&cfg.Bus.Servers, "DICTATE_BUS_SERVERS")
	overrideString(&cfg.Bus.Subject, "DICTATE_BUS_SUBJECT")
	overrideString(&cfg.Bus.Token, "DICTATE_BUS_TOKEN")
	overrideString(&cfg.Log.Level, "DICTATE_LOG_LEVEL")
	overrideString(&cfg.Log.Format, "DICTATE_LOG_FORMAT")
	overrideString(&cfg.Telemetry.PrometheusBind, "DICTATE_PROMETHEUS_BIND")
	overrideString(&cfg.Debug.RecordDir, "DICTATE_RECORD_DIR")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	value, ok := os.LookupEnv(envKey)
	if !ok {
		return
	}
	var trimmed []string
	for _, p := range strings.Split(value, ",") {
		if s := strings.TrimSpace(p); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) > 0 {
		*target = trimmed
	}
}
