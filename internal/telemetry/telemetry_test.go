package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.aimuz.me/dictate/config"
	"go.aimuz.me/dictate/metrics"
)

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name      string
		cfg       config.LogConfig
		checkFunc func(*testing.T, string)
	}{
		{
			name: "json at debug",
			cfg:  config.LogConfig{Level: "debug", Format: "json"},
			checkFunc: func(t *testing.T, out string) {
				lines := strings.Split(strings.TrimSpace(out), "\n")
				if len(lines) != 3 {
					t.Fatalf("got %d lines, want 3: %q", len(lines), out)
				}
				var rec map[string]any
				if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
					t.Fatalf("not json: %v", err)
				}
				if rec["msg"] != "debug line" || rec["k"] != "v" {
					t.Errorf("record = %v", rec)
				}
			},
		},
		{
			name: "text at warn",
			cfg:  config.LogConfig{Level: "warn", Format: "text"},
			checkFunc: func(t *testing.T, out string) {
				if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
					t.Errorf("lower levels logged: %q", out)
				}
				if !strings.Contains(out, "msg=\"warn line\"") {
					t.Errorf("warn missing: %q", out)
				}
			},
		},
		{
			name: "bad level falls back to info",
			cfg:  config.LogConfig{Level: "loud"},
			checkFunc: func(t *testing.T, out string) {
				if strings.Contains(out, "debug line") || !strings.Contains(out, "info line") {
					t.Errorf("output = %q", out)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetupLogging(tt.cfg, &buf)
			slog.Debug("debug line", "k", "v")
			slog.Info("info line")
			slog.Warn("warn line")
			tt.checkFunc(t, buf.String())
		})
	}
}

func TestMetricsExported(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, config.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(ctx) })

	rec := metrics.NewRecorder(metrics.DefaultWindowSize)
	rec.RecordNetworkSend(40*time.Millisecond, 3)
	rec.RecordAudioDrop(2)

	srv := httptest.NewServer(tel.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"dictate_stage_latency", "dictate_dropped", "dictate_audio_sent", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServe(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, config.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	addr, err := tel.Serve("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
