package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/wfkeeper/internal/n8n"
)

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the n8n server once",
		Long: `Probe the n8n liveness endpoint once and print the result.

Exits 1 when the server is not healthy. No notification is sent.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(rootOpts, cmd)
		},
	}

	return cmd
}

func runHealth(opts *RootOptions, cmd *cobra.Command) error {
	a, err := loadApp(opts, cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter := newFormatter(opts, cmd)
	formatter.VerboseLog("probing %s", a.cfg.N8N.URL)
	st := a.client.CheckHealth(ctx)

	if !st.Healthy() {
		msg := fmt.Sprintf("n8n is %s", st.Status)
		if st.Error != "" {
			msg += ": " + st.Error
		}
		return formatter.Fail(ErrCodeUnhealthy, msg, st, NewExitError(ExitFailure, msg))
	}
	return formatter.Report(HealthReport{st})
}

// HealthReport is a successful probe.
type HealthReport struct {
	n8n.HealthStatus
}

// WriteText prints the probe latency.
func (r HealthReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "✓ n8n is healthy (%s)\n", r.ResponseTime.Round(time.Millisecond))
}
