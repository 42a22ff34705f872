package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/wfkeeper/internal/statusapi"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	// Listen overrides status.listen from the config.
	Listen string

	// configure lets tests swap components after wiring.
	configure func(*app)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the monitor loop",
		Long: `Start the scheduling loop: probe n8n on every probe interval and run a full
backup cycle on every backup interval, both aligned to wall-clock multiples
of the interval since midnight.

When status.listen (or --listen) is set, an HTTP status endpoint is served
alongside the loop. With schedule.enabled=false a single cycle runs and the
command exits.

Example:
  wfkeeper run --config ./config.yaml
  wfkeeper run --listen 127.0.0.1:8089 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "status endpoint address (overrides status.listen)")

	return cmd
}

func runMonitor(opts *RunOptions, cmd *cobra.Command) error {
	a, err := loadApp(opts.RootOptions, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()
	if opts.configure != nil {
		opts.configure(a)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if !a.cfg.Schedule.Enabled {
		slog.Info("schedule disabled, running a single cycle")
		return runCycle(ctx, a, newFormatter(opts.RootOptions, cmd))
	}

	listen := opts.Listen
	if listen == "" {
		listen = a.cfg.Status.Listen
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.monitor.Run(gctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})
	if listen != "" {
		var hist statusapi.HistorySource
		if a.history != nil {
			hist = a.history
		}
		srv := statusapi.New(a.monitor, hist)
		g.Go(func() error {
			err := srv.ListenAndServe(gctx, listen)
			if err != nil {
				// A dead status endpoint takes the loop down with it.
				cancel()
			}
			return err
		})
	}

	slog.Info("wfkeeper started",
		"n8n", a.cfg.N8N.URL,
		"repo", a.cfg.Git.RepoPath,
		"status_listen", listen,
	)
	fmt.Fprintln(cmd.OutOrStdout(), "Monitor started. Press Ctrl-C to stop.")

	if err := g.Wait(); err != nil {
		return newFormatter(opts.RootOptions, cmd).Fail(ErrCodeGeneric, err.Error(), nil,
			WrapExitError(ExitFailure, "monitor error", err))
	}

	slog.Info("monitor stopped gracefully")
	return nil
}
