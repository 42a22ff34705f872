package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/wfkeeper/internal/backup"
	"github.com/roach88/wfkeeper/internal/config"
	"github.com/roach88/wfkeeper/internal/gitsync"
	"github.com/roach88/wfkeeper/internal/history"
	"github.com/roach88/wfkeeper/internal/monitor"
	"github.com/roach88/wfkeeper/internal/n8n"
	"github.com/roach88/wfkeeper/internal/notify"
	"github.com/roach88/wfkeeper/internal/redact"
	"github.com/roach88/wfkeeper/internal/snapshot"
)

// app holds the components built from one Config.
type app struct {
	cfg      config.Config
	client   *n8n.Client
	snaps    *snapshot.Store
	backup   *backup.Orchestrator
	history  *history.Store // nil when history.path is empty
	monitor  *monitor.Monitor
	closeLog func() error
}

// loadApp loads the config, configures logging and wires every component.
// Callers must call close.
func loadApp(opts *RootOptions, cmd *cobra.Command, withHistory bool) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	closeLog, err := setupLogging(cmd.ErrOrStderr(), opts.Verbose, cfg.Log.File)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open log file", err)
	}

	a := &app{cfg: cfg, closeLog: closeLog}
	slog.Debug("config loaded",
		"n8n", cfg.N8N.URL,
		"api_key", maskedKey(cfg.N8N.APIKey),
		"repo", cfg.Git.RepoPath,
		"webhook", cfg.Notifications.Webhook.Enabled,
	)

	a.client = n8n.New(cfg.N8N.URL, cfg.N8N.APIKey)
	a.client.Timeout = cfg.RequestTimeout()
	a.client.MaxRetries = cfg.MaxRetries

	a.snaps = snapshot.New(cfg.Git.RepoPath)

	git := gitsync.New(cfg.Git.RepoPath)
	git.Remote = cfg.Git.Remote
	git.Branch = cfg.Git.Branch

	a.backup = &backup.Orchestrator{
		Source:    a.client,
		Snapshots: a.snaps,
		Syncer:    git,
		Redactor:  redact.New(),
		IDs:       backup.UUIDv7Generator{},
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		a.close()
		return nil, WrapExitError(ExitCommandError, "invalid notification settings", err)
	}

	a.monitor = &monitor.Monitor{
		Health:       a.client,
		Backup:       a.backup,
		Notifier:     notifier,
		Schedule:     cfg.MonitorSchedule(),
		RunOnStartup: cfg.Schedule.RunOnStartup,
	}

	if withHistory && cfg.History.Path != "" {
		a.history, err = history.Open(cfg.History.Path)
		if err != nil {
			a.close()
			return nil, WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		a.monitor.Recorder = a.history
		slog.Debug("history enabled", "path", cfg.History.Path)
	}

	return a, nil
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Error("error closing history database", "error", err)
		}
	}
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

func newNotifier(cfg config.Config) (notify.Notifier, error) {
	hook := cfg.Notifications.Webhook
	if !hook.Enabled || hook.URL == "" {
		return notify.Nop{}, nil
	}
	platform, err := notify.ParsePlatform(hook.Platform)
	if err != nil {
		return nil, err
	}
	return &notify.Webhook{
		URL:       hook.URL,
		Platform:  platform,
		ServerURL: cfg.N8N.URL,
		BackupURL: cfg.Notifications.BackupURL,
	}, nil
}

// maskedKey renders an API key for logs. Keys of a known shape keep their
// ends; anything else is replaced outright.
func maskedKey(key string) string {
	if masked := redact.New().Value(key); masked != key {
		return masked
	}
	return redact.Marker
}

// setupLogging installs the default slog handler. With a log file the text
// output goes to both stderr and the file.
func setupLogging(stderr io.Writer, verbose bool, file string) (func() error, error) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	w := stderr
	closer := func() error { return nil }
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(stderr, f)
		closer = f.Close
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
	return closer, nil
}
