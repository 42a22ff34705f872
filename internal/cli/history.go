package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/wfkeeper/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// HistoryReport is the JSON shape of the history command.
type HistoryReport struct {
	Cycles []history.Cycle       `json:"cycles"`
	Health []history.HealthEvent `json:"health"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent backup cycles and health transitions",
		Long: `Show the most recent backup cycles and health transitions recorded in the
history database (history.path).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "number of entries to show")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, "--limit must be positive")
	}

	a, err := loadApp(opts.RootOptions, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()
	if a.history == nil {
		return formatter.Fail(ErrCodeHistory, "history is disabled: set history.path", nil,
			NewExitError(ExitCommandError, "history is disabled"))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cycles, err := a.history.RecentCycles(ctx, opts.Limit)
	if err != nil {
		return formatter.Fail(ErrCodeHistory, err.Error(), nil,
			WrapExitError(ExitCommandError, "failed to read history", err))
	}
	events, err := a.history.RecentHealth(ctx, opts.Limit)
	if err != nil {
		return formatter.Fail(ErrCodeHistory, err.Error(), nil,
			WrapExitError(ExitCommandError, "failed to read history", err))
	}

	report := HistoryReport{Cycles: cycles, Health: events}
	if report.Cycles == nil {
		report.Cycles = []history.Cycle{}
	}
	if report.Health == nil {
		report.Health = []history.HealthEvent{}
	}
	return formatter.Report(report)
}

// WriteText prints one line per cycle and per health transition.
func (r HistoryReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Backup cycles (%d):\n", len(r.Cycles))
	for _, c := range r.Cycles {
		outcome := "ok"
		if !c.Success {
			outcome = "FAILED: " + c.Error
		}
		fmt.Fprintf(w, "  %s  %-16s %d/%d changed  git=%s  %s\n",
			c.CycleID, humanize.Time(c.StartedAt), c.ChangedCount, c.TotalCount, c.GitState, outcome)
	}
	fmt.Fprintf(w, "\nHealth transitions (%d):\n", len(r.Health))
	for _, e := range r.Health {
		line := fmt.Sprintf("  %-16s %s", humanize.Time(e.ObservedAt), e.Status)
		if e.Error != "" {
			line += ": " + e.Error
		}
		fmt.Fprintln(w, line)
	}
}
