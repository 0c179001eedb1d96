package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const legacyFileName = "config.json"

// legacySettings is the camelCase JSON written by earlier releases.
type legacySettings struct {
	APIKey                     string `json:"apiKey"`
	LanguageCode               string `json:"languageCode"`
	Hotkey                     string `json:"hotkey"`
	PartialRewriteEnabled      *bool  `json:"partialRewriteEnabled"`
	PartialRewriteMaxBackspace *int   `json:"partialRewriteMaxBackspace"`
	PartialRewriteWindowMs     *int   `json:"partialRewriteWindowMs"`
}

// importLegacy converts config.json next to path into YAML when path does
// not exist yet. The JSON file is renamed to config.json.bak afterwards.
func importLegacy(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}

	legacyPath := filepath.Join(filepath.Dir(path), legacyFileName)
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read legacy config: %w", err)
	}

	var legacy legacySettings
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("unmarshal legacy config: %w", err)
	}

	cfg := legacy.toConfig()
	cfg.Normalize()
	if err := cfg.SaveFile(path); err != nil {
		return err
	}
	if err := os.Rename(legacyPath, legacyPath+".bak"); err != nil {
		return fmt.Errorf("back up legacy config: %w", err)
	}

	slog.Info("imported legacy config", "from", legacyPath, "to", path)
	return nil
}

func (l legacySettings) toConfig() *Config {
	cfg := Default()
	cfg.APIKey = l.APIKey
	if l.LanguageCode != "" {
		cfg.Language = l.LanguageCode
	}
	if l.Hotkey != "" {
		cfg.Hotkey = l.Hotkey
	}
	if l.PartialRewriteEnabled != nil {
		cfg.Rewrite.Enabled = *l.PartialRewriteEnabled
	}
	if l.PartialRewriteMaxBackspace != nil {
		cfg.Rewrite.MaxBackspace = *l.PartialRewriteMaxBackspace
	}
	if l.PartialRewriteWindowMs != nil {
		cfg.Rewrite.WindowMS = *l.PartialRewriteWindowMs
	}
	return cfg
}
