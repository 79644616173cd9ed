package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cc_usage_mon/internal/alert"
	"cc_usage_mon/internal/config"
	"cc_usage_mon/internal/ingest"
	"cc_usage_mon/internal/live"
	"cc_usage_mon/internal/logger"
	"cc_usage_mon/internal/tui"
)

func main() {
	cfg := config.LoadFromDefaultPath()

	// The terminal belongs to the TUI; diagnostics go to a log file
	// when one can be opened, otherwise they are dropped.
	logFile, err := os.OpenFile("cc_usage_mon.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err == nil {
		defer logFile.Close()
		logger.SetOutput(slog.New(slog.NewTextHandler(logFile, nil)))
	} else {
		logger.SetOutput(slog.New(slog.NewTextHandler(io.Discard, nil)))
	}

	parser := ingest.NewParser(cfg.PricingTable())
	tracker := live.NewTracker(cfg.BurnHistorySize, cfg.RecentActivitySize)

	watcher, err := live.NewWatcher(cfg.ProjectsRoot, parser, tracker, live.Options{
		TailLines:       cfg.TailLines,
		RefreshInterval: time.Duration(cfg.RefreshInterval),
		Thresholds:      cfg.Thresholds(),
		Notifier:        alert.NewNotifier(cfg.Alerts.DesktopNotifications),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting watcher: %v\n", err)
		os.Exit(1)
	}
	watcher.Start()
	defer watcher.Stop()

	p := tea.NewProgram(tui.NewModel(cfg, watcher), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
