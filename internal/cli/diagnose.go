package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/wfkeeper/internal/n8n"
)

// DiagnoseReport compares the live listing with the local archive.
type DiagnoseReport struct {
	ServerURL string           `json:"server_url"`
	Health    n8n.HealthStatus `json:"health"`
	Live      int              `json:"live_count"`
	Archived  int              `json:"archived_count"`
	Tracked   int              `json:"tracked_count"`
	New       []WorkflowRef    `json:"new"`
	Deleted   []WorkflowRef    `json:"deleted"`
	Files     []FileInfo       `json:"files"`
	TotalSize int64            `json:"total_size"`
}

// WorkflowRef names one workflow.
type WorkflowRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FileInfo is one persisted workflow file.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// NewDiagnoseCommand creates the diagnose command.
func NewDiagnoseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Compare live workflows with the local backup",
		Long: `List workflows on the server and compare them with the local archive:
workflows that are new on the server, workflows deleted from it, and the
workflow files currently in the backup repository.

Nothing is written, committed or sent.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(rootOpts, cmd)
		},
	}

	return cmd
}

func runDiagnose(opts *RootOptions, cmd *cobra.Command) error {
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

	report := DiagnoseReport{
		ServerURL: a.cfg.N8N.URL,
		Health:    a.client.CheckHealth(ctx),
		New:       []WorkflowRef{},
		Deleted:   []WorkflowRef{},
		Files:     []FileInfo{},
	}

	summaries, err := a.client.ListWorkflows(ctx)
	if err != nil {
		msg := err.Error()
		if n8n.IsUnauthorized(err) {
			msg += " (check n8n.api_key)"
		}
		return formatter.Fail(ErrCodeListFailed, msg, nil,
			WrapExitError(ExitFailure, "failed to list workflows", err))
	}
	_, archive, err := a.snaps.Load()
	if err != nil {
		return formatter.Fail(ErrCodeSnapshot, err.Error(), nil,
			WrapExitError(ExitCommandError, "failed to read local backup", err))
	}

	report.Live = len(summaries)
	report.Archived = len(archive)
	live := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		live[s.ID] = true
		if _, ok := archive[s.ID]; ok {
			report.Tracked++
			continue
		}
		report.New = append(report.New, WorkflowRef{ID: s.ID, Name: s.Name})
	}
	for id, doc := range archive {
		if !live[id] {
			report.Deleted = append(report.Deleted, WorkflowRef{ID: id, Name: doc.Name})
		}
	}
	sort.Slice(report.New, func(i, j int) bool { return report.New[i].ID < report.New[j].ID })
	sort.Slice(report.Deleted, func(i, j int) bool { return report.Deleted[i].ID < report.Deleted[j].ID })

	files, err := a.snaps.Files()
	if err != nil {
		return formatter.Fail(ErrCodeSnapshot, err.Error(), nil,
			WrapExitError(ExitCommandError, "failed to list workflow files", err))
	}
	for _, f := range files {
		report.Files = append(report.Files, FileInfo{Name: f.Name, Size: f.Size})
		report.TotalSize += f.Size
	}

	return formatter.Report(report)
}

// WriteText prints the comparison and the local file sizes.
func (r DiagnoseReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Server:   %s (%s)\n", r.ServerURL, r.Health.Status)
	fmt.Fprintf(w, "Live:     %d workflows\n", r.Live)
	fmt.Fprintf(w, "Archived: %d workflows (%d tracked)\n", r.Archived, r.Tracked)

	fmt.Fprintf(w, "\nNew on server (%d):\n", len(r.New))
	for _, ref := range r.New {
		fmt.Fprintf(w, "  + %s  %s\n", ref.ID, ref.Name)
	}
	fmt.Fprintf(w, "\nDeleted from server (%d):\n", len(r.Deleted))
	for _, ref := range r.Deleted {
		fmt.Fprintf(w, "  - %s  %s\n", ref.ID, ref.Name)
	}

	fmt.Fprintf(w, "\nLocal files (%d, %s):\n", len(r.Files), humanize.Bytes(uint64(r.TotalSize)))
	for _, file := range r.Files {
		fmt.Fprintf(w, "  %-60s %s\n", file.Name, humanize.Bytes(uint64(file.Size)))
	}
}
