package statusapi

import (
	"time"

	"github.com/roach88/wfkeeper/internal/backup"
	"github.com/roach88/wfkeeper/internal/history"
	"github.com/roach88/wfkeeper/internal/monitor"
	"github.com/roach88/wfkeeper/internal/n8n"
)

type statusView struct {
	N8N        *n8n.HealthStatus `json:"n8n"`
	LastBackup *cycleView        `json:"last_backup"`
	NextWake   string            `json:"next_wake,omitempty"`
	Cycles     int               `json:"cycles"`
	Probes     int               `json:"probes"`
}

type cycleView struct {
	CycleID          string   `json:"cycle_id"`
	StartedAt        string   `json:"started_at"`
	FinishedAt       string   `json:"finished_at"`
	DurationMS       int64    `json:"duration_ms"`
	TotalCount       int      `json:"total_count"`
	ChangedCount     int      `json:"changed_count"`
	ChangedWorkflows []string `json:"changed_workflows"`
	HiddenCount      int      `json:"hidden_count"`
	SkippedCount     int      `json:"skipped_count"`
	Success          bool     `json:"success"`
	Error            string   `json:"error,omitempty"`
	GitState         string   `json:"git_state,omitempty"`
}

type healthEventView struct {
	ObservedAt string `json:"observed_at"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	ResponseMS int64  `json:"response_ms"`
}

type historyView struct {
	Cycles []cycleView       `json:"cycles"`
	Health []healthEventView `json:"health"`
}

func newStatusView(st monitor.Status) statusView {
	v := statusView{
		N8N:    st.Health,
		Cycles: st.Cycles,
		Probes: st.Probes,
	}
	if !st.NextWake.IsZero() {
		v.NextWake = st.NextWake.Format(time.RFC3339)
	}
	if st.LastBackup != nil {
		cv := resultView(*st.LastBackup)
		v.LastBackup = &cv
	}
	return v
}

func resultView(res backup.Result) cycleView {
	return cycleView{
		CycleID:          res.CycleID,
		StartedAt:        formatTime(res.StartedAt),
		FinishedAt:       formatTime(res.FinishedAt),
		DurationMS:       res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
		TotalCount:       res.TotalCount,
		ChangedCount:     res.ChangedCount,
		ChangedWorkflows: nonNil(res.ChangedWorkflows),
		HiddenCount:      res.Hidden,
		SkippedCount:     len(res.Skipped),
		Success:          res.Success,
		Error:            res.Error,
		GitState:         string(res.Sync.State),
	}
}

func newHistoryView(cycles []history.Cycle, events []history.HealthEvent) historyView {
	v := historyView{
		Cycles: make([]cycleView, 0, len(cycles)),
		Health: make([]healthEventView, 0, len(events)),
	}
	for _, c := range cycles {
		v.Cycles = append(v.Cycles, cycleView{
			CycleID:          c.CycleID,
			StartedAt:        formatTime(c.StartedAt),
			FinishedAt:       formatTime(c.FinishedAt),
			DurationMS:       c.FinishedAt.Sub(c.StartedAt).Milliseconds(),
			TotalCount:       c.TotalCount,
			ChangedCount:     c.ChangedCount,
			ChangedWorkflows: nonNil(c.ChangedWorkflows),
			HiddenCount:      c.HiddenCount,
			SkippedCount:     c.SkippedCount,
			Success:          c.Success,
			Error:            c.Error,
			GitState:         c.GitState,
		})
	}
	for _, e := range events {
		v.Health = append(v.Health, healthEventView{
			ObservedAt: formatTime(e.ObservedAt),
			Status:     e.Status,
			Error:      e.Error,
			ResponseMS: e.Response.Milliseconds(),
		})
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
