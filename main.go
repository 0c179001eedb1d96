package main

import (
	"context"
	"embed"
	"log/slog"
	"os"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"go.aimuz.me/dictate/config"
	"go.aimuz.me/dictate/internal/app"
	"go.aimuz.me/dictate/internal/telemetry"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = config.Default()
	}
	telemetry.SetupLogging(cfg.Log, os.Stderr)
	slog.Info("starting app", "version", version, "commit", commit, "date", date)

	ctx := context.Background()
	tel, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		slog.Error("setup telemetry", "error", err)
	} else if cfg.Telemetry.PrometheusBind != "" {
		if _, err := tel.Serve(cfg.Telemetry.PrometheusBind); err != nil {
			slog.Error("serve metrics", "error", err)
		}
	}

	appService := app.New(version, cfg)

	wailsApp := application.New(application.Options{
		Name:        "Dictate",
		Description: "Real-time dictation into any text field",
		Services: []application.Service{
			application.NewService(appService),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// The tray keeps the app alive.
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
		OnShutdown: func() {
			appService.Shutdown()
			if tel == nil {
				return
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown telemetry", "error", err)
			}
		},
	})

	mainWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:  "Dictate",
		Width:  480,
		Height: 640,
		URL:    "/",
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
	})

	// Hide instead of destroy so the tray can reopen it.
	mainWindow.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		e.Cancel()
		mainWindow.Hide()
	})

	appService.Init(wailsApp)

	systemTray := wailsApp.SystemTray.New()
	systemTray.SetLabel("Dictate")

	trayMenu := wailsApp.NewMenu()
	trayMenu.Add("Show Window").OnClick(func(ctx *application.Context) {
		mainWindow.Show()
		mainWindow.Focus()
	})
	trayMenu.Add("Start / Stop Dictation").OnClick(func(ctx *application.Context) {
		go func() {
			if err := appService.ToggleRecording(); err != nil {
				slog.Error("toggle recording from tray", "error", err)
			}
		}()
	})
	trayMenu.AddSeparator()
	trayMenu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			wailsApp.Quit()
		})
	systemTray.SetMenu(trayMenu)

	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}
}
