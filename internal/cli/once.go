package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/wfkeeper/internal/backup"
	"github.com/roach88/wfkeeper/internal/monitor"
)

// OnceOptions holds flags for the once command.
type OnceOptions struct {
	*RootOptions

	configure func(*app)
}

// CycleReport is the outcome of one cycle as printed by once.
type CycleReport struct {
	CycleID          string            `json:"cycle_id"`
	TotalCount       int               `json:"total_count"`
	ChangedCount     int               `json:"changed_count"`
	ChangedWorkflows []string          `json:"changed_workflows"`
	WorkflowChanges  map[string]string `json:"workflow_changes"`
	HiddenCount      int               `json:"hidden_count"`
	Skipped          []string          `json:"skipped,omitempty"`
	GitState         string            `json:"git_state"`
	Success          bool              `json:"success"`
	Error            string            `json:"error,omitempty"`
	Duration         string            `json:"duration"`
}

// NewOnceCommand creates the once command.
func NewOnceCommand(rootOpts *RootOptions) *cobra.Command {
	return newOnceCommand(&OnceOptions{RootOptions: rootOpts})
}

func newOnceCommand(opts *OnceOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single backup cycle",
		Long: `Run one full cycle and exit: probe n8n, back up changed workflows when the
server is healthy, commit and push, then send notifications.

Exits 1 when the server is unhealthy or the backup fails.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts.RootOptions, cmd, true)
			if err != nil {
				return err
			}
			defer a.close()
			if opts.configure != nil {
				opts.configure(a)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runCycle(ctx, a, newFormatter(opts.RootOptions, cmd))
		},
	}

	return cmd
}

func runCycle(ctx context.Context, a *app, formatter *OutputFormatter) error {
	res, err := a.monitor.RunOnce(ctx)
	if errors.Is(err, monitor.ErrSkipped) {
		msg := "backup skipped: n8n is not healthy"
		if h := a.monitor.Status().Health; h != nil {
			msg = fmt.Sprintf("backup skipped: n8n is %s", h.Status)
			if h.Error != "" {
				msg += ": " + h.Error
			}
		}
		return formatter.Fail(ErrCodeUnhealthy, msg, nil, NewExitError(ExitFailure, msg))
	}

	report := newCycleReport(res)
	if err != nil || !res.Success {
		return formatter.Fail(ErrCodeBackupFailed, report.Error, report,
			NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodeBackupFailed, report.Error)))
	}

	formatter.VerboseLog("cycle %s", report.CycleID)
	return formatter.Report(report)
}

func newCycleReport(res backup.Result) CycleReport {
	return CycleReport{
		CycleID:          res.CycleID,
		TotalCount:       res.TotalCount,
		ChangedCount:     res.ChangedCount,
		ChangedWorkflows: res.ChangedWorkflows,
		WorkflowChanges:  res.WorkflowChanges,
		HiddenCount:      res.Hidden,
		Skipped:          res.Skipped,
		GitState:         string(res.Sync.State),
		Success:          res.Success,
		Error:            res.Error,
		Duration:         res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String(),
	}
}

// WriteText prints the changed workflows with their node summaries.
func (r CycleReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "✓ Backup complete: %d of %d workflows changed (git: %s, %s)\n",
		r.ChangedCount, r.TotalCount, r.GitState, r.Duration)
	for _, name := range r.ChangedWorkflows {
		fmt.Fprintf(w, "  - %s\n", name)
		if summary := r.WorkflowChanges[name]; summary != "" {
			fmt.Fprintf(w, "      %s\n", indent(summary))
		}
	}
	if r.HiddenCount > 0 {
		fmt.Fprintf(w, "  %d workflow(s) changed without visible node changes\n", r.HiddenCount)
	}
	if len(r.Skipped) > 0 {
		skipped := append([]string(nil), r.Skipped...)
		sort.Strings(skipped)
		fmt.Fprintf(w, "  skipped (fetch failed): %v\n", skipped)
	}
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n      ")
}
