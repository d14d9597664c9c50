package main

import (
	"embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"go.aimuz.me/murmur/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

//go:embed assets/tray.png
var trayIconBytes []byte

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		configPath  string
		logLevel    string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "config file path (default: $MURMUR_CONFIG or the user config dir)")
	pflag.StringVar(&logLevel, "log-level", envOr("MURMUR_LOG_LEVEL", "info"), "log level: debug, info, warn or error")
	pflag.BoolVarP(&showVersion, "version", "v", false, "print version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("murmur %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	setupLogger(logLevel)
	slog.Info("starting app", "version", version, "commit", commit, "date", date)

	appService := app.New(version, configPath)

	wailsApp := application.New(application.Options{
		Name:        "Murmur",
		Description: "Hold-to-dictate voice typing",
		Services: []application.Service{
			application.NewService(appService),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// Don't quit when all windows are closed (we have a system tray)
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	panel := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:  "Murmur",
		Width:  420,
		Height: 560,
		URL:    "/",
		Hidden: true,
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
	})

	// Intercept window close: hide instead of destroy so tray can reopen
	panel.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		e.Cancel()
		panel.Hide()
	})

	appService.Init(wailsApp, panel)

	tray := wailsApp.SystemTray.New()
	tray.SetIcon(trayIconBytes)

	menu := wailsApp.NewMenu()
	menu.Add("Show Panel").OnClick(func(ctx *application.Context) {
		appService.ShowPanel()
	})
	menu.Add("Start/Stop Recording").OnClick(func(ctx *application.Context) {
		appService.ToggleRecording()
	})
	menu.AddSeparator()
	menu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			wailsApp.Quit()
		})
	tray.SetMenu(menu)

	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	})))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
