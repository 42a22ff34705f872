package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/wfkeeper/internal/diff"
	"github.com/roach88/wfkeeper/internal/gitsync"
	"github.com/roach88/wfkeeper/internal/n8n"
	"github.com/roach88/wfkeeper/internal/redact"
	"github.com/roach88/wfkeeper/internal/snapshot"
	"github.com/roach88/wfkeeper/internal/workflow"
)

// Source lists and fetches workflows from the remote server.
type Source interface {
	ListWorkflows(ctx context.Context) ([]workflow.Summary, error)
	GetWorkflow(ctx context.Context, id string) (*workflow.Document, error)
}

// Snapshots persists the fingerprint index, the document archive and the
// per-workflow files.
type Snapshots interface {
	Load() (snapshot.Index, snapshot.Archive, error)
	Save(index snapshot.Index, archive snapshot.Archive) error
	WriteWorkflow(doc *workflow.Document) (string, error)
}

// Syncer commits and pushes the working tree.
type Syncer interface {
	Sync(ctx context.Context, changed []string) (gitsync.Result, error)
}

// Result summarizes one cycle.
type Result struct {
	CycleID    string
	StartedAt  time.Time
	FinishedAt time.Time

	TotalCount       int
	ChangedCount     int
	ChangedWorkflows []string
	// WorkflowChanges maps a changed workflow's name to its change summary
	// or diff.NewlyCreated.
	WorkflowChanges map[string]string
	// Hidden counts workflows whose fingerprint changed without any visible
	// node change. They are persisted but not reported.
	Hidden int
	// Skipped lists ids whose detail fetch failed.
	Skipped []string

	Success bool
	Error   string
	Sync    gitsync.Result
}

// Orchestrator wires the collaborators of a backup cycle.
type Orchestrator struct {
	Source    Source
	Snapshots Snapshots
	Syncer    Syncer
	Redactor  *redact.Redactor
	IDs       IDGenerator
	Now       func() time.Time
}

// Run executes one cycle.
//
// The returned error is non-nil when the cycle was aborted (listing failure,
// snapshot I/O) or the push failed terminally; Result.Error carries the same
// message. An abandoned push that reset the branch is reported through
// Result.Success and Result.Error only.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	res := Result{
		CycleID:          o.ids().Generate(),
		StartedAt:        o.now(),
		ChangedWorkflows: []string{},
		WorkflowChanges:  map[string]string{},
	}
	log := slog.With("cycle_id", res.CycleID)
	log.Info("backup cycle starting")

	fail := func(err error) (Result, error) {
		res.Success = false
		res.Error = err.Error()
		res.FinishedAt = o.now()
		log.Error("backup cycle failed", "error", err)
		return res, err
	}

	summaries, err := o.Source.ListWorkflows(ctx)
	if err != nil {
		return fail(fmt.Errorf("list workflows: %w", err))
	}
	res.TotalCount = len(summaries)

	index, archive, err := o.Snapshots.Load()
	if err != nil {
		return fail(fmt.Errorf("load snapshots: %w", err))
	}

	nextIndex := make(snapshot.Index, len(summaries))
	nextArchive := make(snapshot.Archive, len(summaries))
	red := o.redactor()

	for _, sum := range summaries {
		wlog := log.With("workflow_id", sum.ID)
		doc, err := o.Source.GetWorkflow(ctx, sum.ID)
		if err != nil {
			if n8n.IsNotFound(err) {
				wlog.Info("workflow disappeared before fetch", "name", sum.Name)
			} else {
				wlog.Warn("fetch failed, keeping previous snapshot", "error", err)
			}
			res.Skipped = append(res.Skipped, sum.ID)
			if fp, ok := index[sum.ID]; ok {
				nextIndex[sum.ID] = fp
			}
			if prev, ok := archive[sum.ID]; ok {
				nextArchive[sum.ID] = prev
			}
			continue
		}
		if doc.ID == "" {
			doc.ID = sum.ID
		}
		name := doc.Name
		if name == "" {
			name = sum.Name
		}

		fp := workflow.FingerprintOf(doc)
		clean := red.Redact(doc)
		nextIndex[sum.ID] = fp
		nextArchive[sum.ID] = clean

		if old, ok := index[sum.ID]; ok && old == fp {
			continue
		}

		prev, known := archive[sum.ID]
		if !known {
			wlog.Info("new workflow detected", "name", name)
			if err := o.write(wlog, clean); err != nil {
				return fail(err)
			}
			res.record(name, diff.NewlyCreated)
			continue
		}

		changes := diff.Analyze(prev, clean)
		if changes.Empty() {
			wlog.Info("fingerprint changed without visible change", "name", name)
			if err := o.write(wlog, clean); err != nil {
				return fail(err)
			}
			res.Hidden++
			continue
		}
		wlog.Info("workflow changed", "name", name,
			"added", len(changes.Added), "modified", len(changes.Modified), "removed", len(changes.Removed))
		if wlog.Enabled(ctx, slog.LevelDebug) {
			wlog.Debug("workflow patch", "patch", patchOf(name, prev, clean))
		}
		if err := o.write(wlog, clean); err != nil {
			return fail(err)
		}
		res.record(name, changes.Summary())
	}

	if err := o.Snapshots.Save(nextIndex, nextArchive); err != nil {
		return fail(fmt.Errorf("save snapshots: %w", err))
	}

	syncRes, err := o.Syncer.Sync(ctx, res.ChangedWorkflows)
	res.Sync = syncRes
	if err != nil {
		return fail(fmt.Errorf("sync: %w", err))
	}
	res.FinishedAt = o.now()
	if syncRes.Outcome != gitsync.Success {
		res.Error = syncRes.Reason
		log.Warn("backup cycle finished without push", "state", syncRes.State, "reason", syncRes.Reason)
		return res, nil
	}

	res.Success = true
	log.Info("backup cycle finished",
		"total", res.TotalCount,
		"changed", res.ChangedCount,
		"hidden", res.Hidden,
		"skipped", len(res.Skipped),
		"git_state", syncRes.State,
		"pushed", syncRes.Pushed(),
		"took", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond),
	)
	return res, nil
}

func (r *Result) record(name, summary string) {
	r.ChangedWorkflows = append(r.ChangedWorkflows, name)
	r.WorkflowChanges[name] = summary
	r.ChangedCount = len(r.ChangedWorkflows)
}

func (o *Orchestrator) write(log *slog.Logger, doc *workflow.Document) error {
	path, err := o.Snapshots.WriteWorkflow(doc)
	if err != nil {
		return fmt.Errorf("write workflow %s: %w", doc.ID, err)
	}
	log.Debug("workflow written", "path", path)
	return nil
}

func patchOf(name string, prev, curr *workflow.Document) string {
	before, err := prev.MarshalIndent()
	if err != nil {
		return ""
	}
	after, err := curr.MarshalIndent()
	if err != nil {
		return ""
	}
	return diff.Patch(name+".json", before, after)
}

func (o *Orchestrator) redactor() *redact.Redactor {
	if o.Redactor != nil {
		return o.Redactor
	}
	return redact.New()
}

func (o *Orchestrator) ids() IDGenerator {
	if o.IDs != nil {
		return o.IDs
	}
	return UUIDv7Generator{}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
