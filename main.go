package main

import (
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"go.aimuz.me/scribe/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var traySpeeds = []float64{0.5, 0.75, 1, 1.25, 1.5, 2}

func main() {
	slog.Info("starting app", "version", version, "commit", commit, "date", date)
	appService := app.New(version)

	wailsApp := application.New(application.Options{
		Name:        "Scribe",
		Description: "Transcribe audio and follow along at any speed",
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

	// Create main window
	mainWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:  "Scribe",
		Width:  1024,
		Height: 768,
		URL:    "/",
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
		DevToolsEnabled: true,
	})

	// Intercept window close: hide instead of destroy so tray can reopen
	mainWindow.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		e.Cancel()
		mainWindow.Hide()
	})

	// Initialize service with app and window references
	appService.Init(wailsApp, mainWindow)

	if dsn := appService.Config().SentryDSN; dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:     dsn,
			Release: "scribe@" + version,
		})
		if err != nil {
			slog.Error("init sentry", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	systemTray := wailsApp.SystemTray.New()
	systemTray.SetLabel("Scribe")

	trayMenu := wailsApp.NewMenu()
	trayMenu.Add("Show Window").OnClick(func(ctx *application.Context) {
		appService.ShowWindow()
	})
	trayMenu.Add("Play / Pause").
		SetAccelerator("CmdOrCtrl+Shift+Space").
		OnClick(func(ctx *application.Context) {
			if err := appService.TogglePlayPause(); err != nil {
				slog.Warn("toggle playback from tray", "error", err)
			}
		})

	speedMenu := trayMenu.AddSubmenu("Speed")
	for _, speed := range traySpeeds {
		speedMenu.AddRadio(fmt.Sprintf("%gx", speed), speed == 1).OnClick(func(ctx *application.Context) {
			appService.SetSpeed(speed)
		})
	}

	trayMenu.AddSeparator()
	trayMenu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			appService.Shutdown()
			wailsApp.Quit()
		})

	systemTray.SetMenu(trayMenu)

	// Run application
	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
		sentry.CaptureException(err)
	}
}
