package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/wfkeeper/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigCheckCommand(rootOpts))
	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample config file",
		Long: `Write a commented sample config with the built-in defaults.

The path defaults to ./config.yaml. An existing file is kept unless --force
is given.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			formatter := newFormatter(rootOpts, cmd)
			if err := config.WriteSample(path, force); err != nil {
				return formatter.Fail(ErrCodeWriteFailed, err.Error(), nil,
					WrapExitError(ExitCommandError, "failed to write config", err))
			}
			return formatter.Report(WroteReport{Path: path})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "check",
		Short:         "Validate the config and environment overrides",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				var details interface{}
				if ve, ok := config.AsValidationError(err); ok {
					details = ve.Issues
				}
				return formatter.Fail(ErrCodeConfig, err.Error(), details,
					WrapExitError(ExitCommandError, "invalid config", err))
			}
			return formatter.Report(ConfigReport{
				Valid:          true,
				N8NURL:         cfg.N8N.URL,
				RepoPath:       cfg.Git.RepoPath,
				ProbeInterval:  cfg.Schedule.ProbeInterval.String(),
				BackupInterval: cfg.Schedule.BackupInterval.String(),
			})
		},
	}
}

// WroteReport is the result of config init.
type WroteReport struct {
	Path string `json:"path"`
}

// WriteText prints the written path.
func (r WroteReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "✓ Wrote %s\n", r.Path)
}

// ConfigReport summarizes a config that passed validation.
type ConfigReport struct {
	Valid          bool   `json:"valid"`
	N8NURL         string `json:"n8n_url"`
	RepoPath       string `json:"repo_path"`
	ProbeInterval  string `json:"probe_interval"`
	BackupInterval string `json:"backup_interval"`
}

// WriteText prints the effective endpoints and intervals.
func (r ConfigReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "✓ Config valid (n8n %s, repo %s, probe %s, backup %s)\n",
		r.N8NURL, r.RepoPath, r.ProbeInterval, r.BackupInterval)
}
