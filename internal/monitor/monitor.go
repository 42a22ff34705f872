package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/wfkeeper/internal/backup"
	"github.com/roach88/wfkeeper/internal/n8n"
	"github.com/roach88/wfkeeper/internal/notify"
)

// HealthChecker probes the server.
type HealthChecker interface {
	CheckHealth(ctx context.Context) n8n.HealthStatus
}

// BackupRunner runs one backup cycle.
type BackupRunner interface {
	Run(ctx context.Context) (backup.Result, error)
}

// Recorder persists cycle outcomes. Errors are logged, never fatal.
type Recorder interface {
	RecordCycle(ctx context.Context, res backup.Result) error
	RecordHealth(ctx context.Context, st n8n.HealthStatus, transition bool) error
}

// ErrSkipped is returned by RunOnce when the backup was skipped because the
// server is not healthy.
var ErrSkipped = errors.New("backup skipped: server not healthy")

// Status is a point-in-time view of the monitor for the status endpoint.
type Status struct {
	Health     *n8n.HealthStatus
	LastBackup *backup.Result
	NextWake   time.Time
	Cycles     int
	Probes     int
}

// Monitor owns the scheduling loop.
type Monitor struct {
	Health   HealthChecker
	Backup   BackupRunner
	Notifier notify.Notifier
	Recorder Recorder
	Schedule Schedule
	Clock    Clock
	// RunOnStartup runs a full cycle before the first aligned wake.
	RunOnStartup bool

	tracker HealthTracker

	mu     sync.RWMutex
	status Status
}

// Run loops until ctx is cancelled and returns ctx.Err(). Cycle failures are
// logged and never end the loop.
func (m *Monitor) Run(ctx context.Context) error {
	clock := m.clock()
	slog.Info("monitor starting",
		"probe_interval", m.Schedule.ProbeInterval,
		"backup_interval", m.Schedule.BackupInterval,
		"run_on_startup", m.RunOnStartup,
	)

	if m.RunOnStartup {
		m.fullCycle(ctx)
	}

	for {
		now := clock.Now()
		wake := m.Schedule.NextWake(now)
		m.setNextWake(wake)
		backupWake := m.Schedule.IsBackupWake(wake)
		slog.Debug("sleeping until next wake", "wake", wake.Format(time.RFC3339), "backup", backupWake)

		if err := clock.Sleep(ctx, wake.Sub(now)); err != nil {
			slog.Info("monitor stopping", "reason", err)
			return err
		}

		if backupWake {
			m.fullCycle(ctx)
		} else {
			m.Probe(ctx)
		}
		if err := ctx.Err(); err != nil {
			slog.Info("monitor stopping", "reason", err)
			return err
		}
	}
}

func (m *Monitor) fullCycle(ctx context.Context) {
	if _, err := m.RunOnce(ctx); err != nil && !errors.Is(err, ErrSkipped) {
		slog.Error("cycle failed, waiting for next wake", "error", err)
	}
}

// Probe checks health and notifies on a healthy/unhealthy transition.
func (m *Monitor) Probe(ctx context.Context) n8n.HealthStatus {
	st := m.Health.CheckHealth(ctx)
	prev, hadPrev := m.tracker.Last()
	transition := m.tracker.Observe(st)

	m.mu.Lock()
	m.status.Health = &st
	m.status.Probes++
	m.mu.Unlock()

	if transition {
		if st.Healthy() {
			slog.Info("server recovered", "was", prev.Status)
		} else if hadPrev {
			slog.Error("server unavailable", "status", st.Status, "error", st.Error, "was", prev.Status)
		} else {
			slog.Error("server unavailable", "status", st.Status, "error", st.Error)
		}
		m.notifier().Send(ctx, notify.HealthMessage(st))
	}
	if m.Recorder != nil {
		if err := m.Recorder.RecordHealth(ctx, st, transition); err != nil {
			slog.Warn("record health failed", "error", err)
		}
	}
	return st
}

// RunOnce runs one full cycle: probe, then back up when healthy. A backup
// notification is sent when something changed or the backup failed.
func (m *Monitor) RunOnce(ctx context.Context) (backup.Result, error) {
	st := m.Probe(ctx)
	if !st.Healthy() {
		slog.Warn("server not healthy, skipping backup", "status", st.Status)
		return backup.Result{}, ErrSkipped
	}

	res, err := m.Backup.Run(ctx)

	m.mu.Lock()
	m.status.LastBackup = &res
	m.status.Cycles++
	m.mu.Unlock()

	if res.ChangedCount > 0 || !res.Success {
		m.notifier().Send(ctx, notify.BackupMessage(Summary(res), m.clock().Now()))
	}
	if m.Recorder != nil {
		if rerr := m.Recorder.RecordCycle(ctx, res); rerr != nil {
			slog.Warn("record cycle failed", "cycle_id", res.CycleID, "error", rerr)
		}
	}
	return res, err
}

// Status returns a copy of the current status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Summary extracts the reportable part of a backup result.
func Summary(res backup.Result) notify.BackupSummary {
	return notify.BackupSummary{
		TotalCount:       res.TotalCount,
		ChangedCount:     res.ChangedCount,
		ChangedWorkflows: res.ChangedWorkflows,
		WorkflowChanges:  res.WorkflowChanges,
		Error:            res.Error,
	}
}

func (m *Monitor) setNextWake(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.NextWake = t
}

func (m *Monitor) clock() Clock {
	if m.Clock != nil {
		return m.Clock
	}
	return SystemClock{}
}

func (m *Monitor) notifier() notify.Notifier {
	if m.Notifier != nil {
		return m.Notifier
	}
	return notify.Nop{}
}
