package monitor

import (
	"fmt"
	"time"
)

// Reference cadences: probe every ten minutes, back up hourly.
const (
	DefaultProbeInterval  = 10 * time.Minute
	DefaultBackupInterval = time.Hour
)

// Schedule holds the two cadences. BackupInterval must be a positive
// multiple of ProbeInterval.
type Schedule struct {
	ProbeInterval  time.Duration
	BackupInterval time.Duration
}

// Validate checks the interval relationship.
func (s Schedule) Validate() error {
	if s.ProbeInterval <= 0 {
		return fmt.Errorf("probe interval must be positive, got %s", s.ProbeInterval)
	}
	if s.BackupInterval <= 0 {
		return fmt.Errorf("backup interval must be positive, got %s", s.BackupInterval)
	}
	if s.BackupInterval%s.ProbeInterval != 0 {
		return fmt.Errorf("backup interval %s is not a multiple of probe interval %s", s.BackupInterval, s.ProbeInterval)
	}
	return nil
}

// NextWake returns the first probe-aligned instant strictly after now.
// Alignment counts from local midnight of now's day, so a long cycle never
// shifts later wakes.
func (s Schedule) NextWake(now time.Time) time.Time {
	base := midnight(now)
	elapsed := now.Sub(base)
	steps := elapsed/s.ProbeInterval + 1
	return base.Add(steps * s.ProbeInterval)
}

// IsBackupWake reports whether t falls on a backup boundary.
func (s Schedule) IsBackupWake(t time.Time) bool {
	return t.Sub(midnight(t))%s.BackupInterval == 0
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
