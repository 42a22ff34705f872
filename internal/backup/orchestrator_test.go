package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wfkeeper/internal/diff"
	"github.com/roach88/wfkeeper/internal/gitsync"
	"github.com/roach88/wfkeeper/internal/snapshot"
	"github.com/roach88/wfkeeper/internal/testutil"
	"github.com/roach88/wfkeeper/internal/workflow"
)

const ordersV1 = `{
  "id": "wf-1",
  "name": "Orders",
  "updatedAt": "2026-01-01T00:00:00.000Z",
  "nodes": [
    {"id": "n1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "position": [0, 0], "parameters": {"path": "orders"}},
    {"id": "n2", "name": "HTTP Request", "type": "n8n-nodes-base.httpRequest", "position": [200, 0], "parameters": {"url": "https://api.old.com"}}
  ],
  "settings": {"timezone": "UTC"}
}`

// ordersV2 changes the HTTP Request url and adds a Slack node.
const ordersV2 = `{
  "id": "wf-1",
  "name": "Orders",
  "updatedAt": "2026-02-01T00:00:00.000Z",
  "nodes": [
    {"id": "n1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "position": [0, 0], "parameters": {"path": "orders"}},
    {"id": "n2", "name": "HTTP Request", "type": "n8n-nodes-base.httpRequest", "position": [200, 0], "parameters": {"url": "https://api.new.com"}},
    {"id": "n3", "name": "Slack 通知", "type": "n8n-nodes-base.slack", "position": [400, 0], "parameters": {"channel": "#ops"}}
  ],
  "settings": {"timezone": "UTC"}
}`

// ordersLayout only moves nodes and bumps volatile fields.
const ordersLayout = `{
  "id": "wf-1",
  "name": "Orders",
  "updatedAt": "2026-03-01T00:00:00.000Z",
  "versionId": "v9",
  "nodes": [
    {"id": "n1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "position": [50, 50], "parameters": {"path": "orders"}},
    {"id": "n2", "name": "HTTP Request", "type": "n8n-nodes-base.httpRequest", "position": [300, 50], "parameters": {"url": "https://api.old.com"}}
  ],
  "settings": {"timezone": "UTC"}
}`

// ordersSettings changes only workflow-level settings.
const ordersSettings = `{
  "id": "wf-1",
  "name": "Orders",
  "nodes": [
    {"id": "n1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "parameters": {"path": "orders"}},
    {"id": "n2", "name": "HTTP Request", "type": "n8n-nodes-base.httpRequest", "parameters": {"url": "https://api.old.com"}}
  ],
  "settings": {"timezone": "Asia/Taipei"}
}`

const invoices = `{
  "id": "wf-2",
  "name": "Invoices",
  "nodes": [
    {"id": "m1", "name": "Cron", "type": "n8n-nodes-base.cron", "parameters": {}},
    {"id": "m2", "name": "Call API", "type": "n8n-nodes-base.httpRequest", "parameters": {"apiKey": "sk-live-0123456789abcdef"}}
  ]
}`

type fakeSource struct {
	summaries []workflow.Summary
	docs      map[string]string
	listErr   error
	fetchErr  map[string]error
}

func (f *fakeSource) ListWorkflows(context.Context) ([]workflow.Summary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.summaries, nil
}

func (f *fakeSource) GetWorkflow(_ context.Context, id string) (*workflow.Document, error) {
	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}
	raw, ok := f.docs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return workflow.ParseDocument([]byte(raw))
}

type fakeSyncer struct {
	calls  [][]string
	result gitsync.Result
	err    error
}

func (f *fakeSyncer) Sync(_ context.Context, changed []string) (gitsync.Result, error) {
	f.calls = append(f.calls, append([]string(nil), changed...))
	if f.result.State == "" {
		return gitsync.Result{State: gitsync.Pushed, Outcome: gitsync.Success}, f.err
	}
	return f.result, f.err
}

type fixture struct {
	dir    string
	source *fakeSource
	syncer *fakeSyncer
	orch   *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir: dir,
		source: &fakeSource{
			summaries: []workflow.Summary{{ID: "wf-1", Name: "Orders"}, {ID: "wf-2", Name: "Invoices"}},
			docs:      map[string]string{"wf-1": ordersV1, "wf-2": invoices},
			fetchErr:  map[string]error{},
		},
		syncer: &fakeSyncer{},
	}
	clock := testutil.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	f.orch = &Orchestrator{
		Source:    f.source,
		Snapshots: snapshot.New(dir),
		Syncer:    f.syncer,
		IDs:       testutil.NewFixedIDGenerator("cycle-1", "cycle-2", "cycle-3", "cycle-4"),
		Now:       clock.Now,
	}
	return f
}

func (f *fixture) run(t *testing.T) Result {
	t.Helper()
	res, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	return res
}

func (f *fixture) load(t *testing.T) (snapshot.Index, snapshot.Archive) {
	t.Helper()
	index, archive, err := snapshot.New(f.dir).Load()
	require.NoError(t, err)
	return index, archive
}

func TestRun_FirstCycleTreatsEverythingAsNew(t *testing.T) {
	f := newFixture(t)

	res := f.run(t)
	assert.Equal(t, "cycle-1", res.CycleID)
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, 2, res.TotalCount)
	assert.Equal(t, 2, res.ChangedCount)
	assert.Equal(t, []string{"Orders", "Invoices"}, res.ChangedWorkflows)
	assert.Equal(t, map[string]string{"Orders": diff.NewlyCreated, "Invoices": diff.NewlyCreated}, res.WorkflowChanges)
	assert.Equal(t, gitsync.Pushed, res.Sync.State)

	require.Len(t, f.syncer.calls, 1)
	assert.Equal(t, []string{"Orders", "Invoices"}, f.syncer.calls[0])

	index, archive := f.load(t)
	assert.Len(t, index, 2)
	assert.Len(t, archive, 2)
	assert.FileExists(t, filepath.Join(f.dir, snapshot.WorkflowDir, "wf-1_Orders.json"))
	assert.FileExists(t, filepath.Join(f.dir, snapshot.WorkflowDir, "wf-2_Invoices.json"))
}

func TestRun_UnchangedSecondCycle(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	res := f.run(t)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ChangedCount)
	assert.Empty(t, res.ChangedWorkflows)
	assert.Empty(t, res.WorkflowChanges)

	require.Len(t, f.syncer.calls, 2)
	assert.Empty(t, f.syncer.calls[1], "sync still runs so earlier unpushed commits go out")
}

func TestRun_VolatileAndLayoutChangesAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	f.source.docs["wf-1"] = ordersLayout
	res := f.run(t)
	assert.Equal(t, 0, res.ChangedCount)
	assert.Equal(t, 0, res.Hidden)
}

func TestRun_DiffsAgainstArchive(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	f.source.docs["wf-1"] = ordersV2
	res := f.run(t)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"Orders"}, res.ChangedWorkflows)
	assert.Equal(t, "Added: Slack 通知 (slack)\nModified: HTTP Request (httpRequest)", res.WorkflowChanges["Orders"])

	data, err := os.ReadFile(filepath.Join(f.dir, snapshot.WorkflowDir, "wf-1_Orders.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://api.new.com")

	_, archive := f.load(t)
	assert.Len(t, archive["wf-1"].Nodes, 3)
}

func TestRun_HiddenChangeIsPersistedButNotReported(t *testing.T) {
	f := newFixture(t)
	f.run(t)
	before, _ := f.load(t)

	f.source.docs["wf-1"] = ordersSettings
	res := f.run(t)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ChangedCount)
	assert.Equal(t, 1, res.Hidden)

	after, archive := f.load(t)
	assert.NotEqual(t, before["wf-1"], after["wf-1"], "index tracks the new fingerprint")
	assert.Equal(t, workflow.String("Asia/Taipei"), archive["wf-1"].Extra["settings"].(workflow.Object)["timezone"])

	data, err := os.ReadFile(filepath.Join(f.dir, snapshot.WorkflowDir, "wf-1_Orders.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Asia/Taipei", "workflow file follows the hidden change")
	assert.NotContains(t, string(data), `"UTC"`)

	res = f.run(t)
	assert.Equal(t, 0, res.Hidden, "settled after one cycle")
	data, err = os.ReadFile(filepath.Join(f.dir, snapshot.WorkflowDir, "wf-1_Orders.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Asia/Taipei")
}

func TestRun_FetchFailureSkipsWorkflow(t *testing.T) {
	f := newFixture(t)
	f.run(t)
	before, _ := f.load(t)

	f.source.docs["wf-1"] = ordersV2
	f.source.docs["wf-2"] = strings.Replace(invoices, "Call API", "Call API v2", 1)
	f.source.fetchErr["wf-1"] = errors.New("HTTP 502")

	res := f.run(t)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"wf-1"}, res.Skipped)
	assert.Equal(t, []string{"Invoices"}, res.ChangedWorkflows)

	after, archive := f.load(t)
	assert.Equal(t, before["wf-1"], after["wf-1"], "skipped workflow keeps its previous fingerprint")
	require.Contains(t, archive, "wf-1")
	assert.Len(t, archive["wf-1"].Nodes, 2)
}

func TestRun_FetchFailureOnNewWorkflow(t *testing.T) {
	f := newFixture(t)
	f.source.fetchErr["wf-2"] = errors.New("timeout")

	res := f.run(t)
	assert.Equal(t, []string{"Orders"}, res.ChangedWorkflows)

	index, _ := f.load(t)
	assert.NotContains(t, index, "wf-2")
}

func TestRun_ListingFailureAbortsCycle(t *testing.T) {
	f := newFixture(t)
	f.source.listErr = errors.New("connection refused")

	res, err := f.orch.Run(context.Background())
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "list workflows")
	assert.Empty(t, f.syncer.calls)
	assert.NoFileExists(t, filepath.Join(f.dir, snapshot.IndexFile))
}

func TestRun_RemovedWorkflowDropsFromLedger(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	f.source.summaries = f.source.summaries[:1]
	res := f.run(t)
	assert.Equal(t, 1, res.TotalCount)

	index, archive := f.load(t)
	assert.NotContains(t, index, "wf-2")
	assert.NotContains(t, archive, "wf-2")
}

func TestRun_SecretsAreRedactedBeforePersisting(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	data, err := os.ReadFile(filepath.Join(f.dir, snapshot.WorkflowDir, "wf-2_Invoices.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-live-0123456789abcdef")
	assert.Contains(t, string(data), "***REDACTED***")

	archive, err := os.ReadFile(filepath.Join(f.dir, snapshot.ArchiveFile))
	require.NoError(t, err)
	assert.NotContains(t, string(archive), "sk-live-0123456789abcdef")
}

func TestRun_RedactedParametersDoNotReportChanges(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	f.source.docs["wf-2"] = strings.Replace(invoices, "sk-live-0123456789abcdef", "sk-live-fedcba9876543210", 1)
	res := f.run(t)
	assert.Equal(t, 0, res.ChangedCount)
	assert.Equal(t, 1, res.Hidden)
}

func TestRun_ResetIsReportedWithoutError(t *testing.T) {
	f := newFixture(t)
	f.syncer.result = gitsync.Result{State: gitsync.Reset, Outcome: gitsync.Failure, Reason: "push abandoned after failed merge"}

	res, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "push abandoned after failed merge", res.Error)
	assert.Equal(t, 2, res.ChangedCount)
	assert.FileExists(t, filepath.Join(f.dir, snapshot.WorkflowDir, "wf-1_Orders.json"))
}

func TestRun_SyncFailure(t *testing.T) {
	f := newFixture(t)
	f.syncer.result = gitsync.Result{State: gitsync.Committed, Outcome: gitsync.Failure}
	f.syncer.err = gitsync.ErrPushFailed

	res, err := f.orch.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, gitsync.ErrPushFailed)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "sync")

	index, _ := f.load(t)
	assert.Len(t, index, 2, "snapshots are not rolled back")
}

func TestRun_SnapshotLoadFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, snapshot.IndexFile), []byte("not json"), 0644))

	_, err := f.orch.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load snapshots")
	assert.Empty(t, f.syncer.calls)
}
