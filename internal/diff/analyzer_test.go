package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wfkeeper/internal/workflow"
)

func parse(t *testing.T, raw string) *workflow.Document {
	t.Helper()
	doc, err := workflow.ParseDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

const oldWorkflow = `{
  "id": "test123",
  "name": "Test workflow",
  "nodes": [
    {"id": "node1", "name": "HTTP Request", "type": "n8n-nodes-base.httpRequest", "parameters": {"url": "https://api.old.com"}},
    {"id": "node2", "name": "Transform", "type": "n8n-nodes-base.set", "parameters": {"value1": "test"}}
  ]
}`

const newWorkflow = `{
  "id": "test123",
  "name": "Test workflow",
  "nodes": [
    {"id": "node1", "name": "HTTP Request", "type": "n8n-nodes-base.httpRequest", "parameters": {"url": "https://api.new.com"}},
    {"id": "node2", "name": "Transform", "type": "n8n-nodes-base.set", "parameters": {"value1": "test"}},
    {"id": "node3", "name": "Slack 通知", "type": "n8n-nodes-base.slack", "parameters": {"channel": "#general"}}
  ]
}`

func TestAnalyzeModifiedAndAdded(t *testing.T) {
	cs := Analyze(parse(t, oldWorkflow), parse(t, newWorkflow))

	assert.Equal(t, []string{"HTTP Request (httpRequest)"}, cs.Modified)
	assert.Equal(t, []string{"Slack 通知 (slack)"}, cs.Added)
	assert.Empty(t, cs.Removed)
}

func TestAnalyzeSingleParameterChange(t *testing.T) {
	before := parse(t, oldWorkflow)
	after := before.Clone()
	after.Nodes[1].Parameters = workflow.Object{"value1": workflow.String("changed")}

	cs := Analyze(before, after)

	assert.Equal(t, ChangeSet{
		Added:    []string{},
		Removed:  []string{},
		Modified: []string{"Transform (set)"},
	}, cs)
}

func TestAnalyzeRemoved(t *testing.T) {
	cs := Analyze(parse(t, newWorkflow), parse(t, oldWorkflow))

	assert.Equal(t, []string{"Slack 通知 (slack)"}, cs.Removed)
	assert.Equal(t, []string{"HTTP Request (httpRequest)"}, cs.Modified)
	assert.Empty(t, cs.Added)
}

func TestAnalyzeNameAndTypeChanges(t *testing.T) {
	before := parse(t, oldWorkflow)

	renamed := before.Clone()
	renamed.Nodes[1].Name = "Convert"
	assert.Equal(t, []string{"Convert (set)"}, Analyze(before, renamed).Modified)

	retyped := before.Clone()
	retyped.Nodes[1].Type = "n8n-nodes-base.code"
	assert.Equal(t, []string{"Transform (code)"}, Analyze(before, retyped).Modified)
}

func TestAnalyzeIgnoresLayoutAndOrder(t *testing.T) {
	before := parse(t, oldWorkflow)

	after := before.Clone()
	after.Nodes[0].Position = workflow.Array{workflow.Number("10"), workflow.Number("20")}
	after.Nodes[0], after.Nodes[1] = after.Nodes[1], after.Nodes[0]
	after.UpdatedAt = "2026-01-01T00:00:00Z"

	cs := Analyze(before, after)
	assert.True(t, cs.Empty())
	assert.Equal(t, NoVisibleChange, cs.Summary())
}

func TestAnalyzeNilDocuments(t *testing.T) {
	doc := parse(t, oldWorkflow)

	assert.Len(t, Analyze(nil, doc).Added, 2)
	assert.Len(t, Analyze(doc, nil).Removed, 2)
	assert.True(t, Analyze(nil, nil).Empty())
}

func TestAnalyzeDoesNotMutateInputs(t *testing.T) {
	before := parse(t, oldWorkflow)
	after := parse(t, newWorkflow)
	beforeFP := workflow.FingerprintOf(before)
	afterFP := workflow.FingerprintOf(after)

	Analyze(before, after)

	assert.Equal(t, beforeFP, workflow.FingerprintOf(before))
	assert.Equal(t, afterFP, workflow.FingerprintOf(after))
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name     string
		node     workflow.Node
		expected string
	}{
		{"dotted type", workflow.Node{Name: "Webhook", Type: "n8n-nodes-base.webhook"}, "Webhook (webhook)"},
		{"plain type", workflow.Node{Name: "Step", Type: "custom"}, "Step (custom)"},
		{"scoped package", workflow.Node{Name: "Agent", Type: "@n8n/n8n-nodes-langchain.agent"}, "Agent (agent)"},
		{"no name", workflow.Node{Type: "n8n-nodes-base.set"}, "Unknown (set)"},
		{"no type", workflow.Node{Name: "Mystery"}, "Mystery (Unknown)"},
		{"trailing dot", workflow.Node{Name: "Odd", Type: "n8n-nodes-base."}, "Odd (Unknown)"},
		{"nothing", workflow.Node{}, "Unknown (Unknown)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Label(tt.node))
		})
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name     string
		cs       ChangeSet
		expected string
	}{
		{"empty", ChangeSet{}, NoVisibleChange},
		{
			"fixed category order",
			ChangeSet{Removed: []string{"C (x)"}, Added: []string{"A (x)"}, Modified: []string{"B (x)"}},
			"Added: A (x)\nModified: B (x)\nRemoved: C (x)",
		},
		{
			"exactly three inline",
			ChangeSet{Added: []string{"a", "b", "c"}},
			"Added: a, b, c",
		},
		{
			"overflow folded into count",
			ChangeSet{Modified: []string{"a", "b", "c", "d", "e"}},
			"Modified: a, b, c and 2 more (5 total)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cs.Summary())
		})
	}
}
