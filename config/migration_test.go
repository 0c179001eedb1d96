package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLegacyImport(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, configFileName)
	legacyPath := filepath.Join(dir, legacyFileName)

	legacy := `{
  "apiKey": "  sk-legacy  ",
  "languageCode": "zh-CN",
  "hotkey": "ctrl+shift+space",
  "partialRewriteEnabled": false,
  "partialRewriteMaxBackspace": 99,
  "partialRewriteWindowMs": 300
}`
	if err := os.WriteFile(legacyPath, []byte(legacy), 0644); err != nil {
		t.Fatalf("write legacy config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.APIKey != "sk-legacy" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.Language != LanguageChinese {
		t.Errorf("Language = %q, want zho", cfg.Language)
	}
	if cfg.Hotkey != "Ctrl+Shift+Space" {
		t.Errorf("Hotkey = %q", cfg.Hotkey)
	}
	if cfg.Rewrite.Enabled {
		t.Error("rewrite should stay disabled")
	}
	if cfg.Rewrite.MaxBackspace != DefaultMaxBackspace {
		t.Errorf("out of range max backspace not reset: %d", cfg.Rewrite.MaxBackspace)
	}
	if cfg.Rewrite.WindowMS != 300 {
		t.Errorf("WindowMS = %d, want 300", cfg.Rewrite.WindowMS)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("yaml config not written: %v", err)
	}
	if _, err := os.Stat(legacyPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("legacy config still present: %v", err)
	}
	if _, err := os.Stat(legacyPath + ".bak"); err != nil {
		t.Errorf("legacy backup missing: %v", err)
	}
}

func TestLegacyImportSkippedWhenYAMLExists(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, configFileName)
	legacyPath := filepath.Join(dir, legacyFileName)

	if err := os.WriteFile(path, []byte("api_key: from-yaml\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(legacyPath, []byte(`{"apiKey":"from-json"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.APIKey != "from-yaml" {
		t.Errorf("APIKey = %q, want from-yaml", cfg.APIKey)
	}
	if _, err := os.Stat(legacyPath); err != nil {
		t.Errorf("legacy config should be left alone: %v", err)
	}
}

func TestLegacyImportBadJSON(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, legacyFileName), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(filepath.Join(dir, configFileName)); err == nil {
		t.Fatal("expected error for malformed legacy config")
	}
}
