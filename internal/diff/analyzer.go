package diff

import (
	"fmt"
	"strings"

	"github.com/roach88/wfkeeper/internal/workflow"
)

const (
	// NoVisibleChange is the summary of an empty ChangeSet.
	NoVisibleChange = "no visible change"

	// NewlyCreated replaces the summary for workflows with no previous
	// snapshot to diff against.
	NewlyCreated = "newly created"

	// Unknown stands in for a missing node name or type.
	Unknown = "Unknown"

	// maxInline is the number of labels listed per category before the
	// remainder is folded into a count.
	maxInline = 3
)

// ChangeSet holds node labels classified by kind of change.
type ChangeSet struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// Empty reports whether no node was added, removed or modified.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Analyze compares two documents node by node. Added and modified labels
// follow the new document's node order, removed labels the old one's.
// Either document may be nil, which is treated as having no nodes.
func Analyze(prev, curr *workflow.Document) ChangeSet {
	oldNodes := nodesOf(prev)
	newNodes := nodesOf(curr)

	oldByID := indexByID(oldNodes)
	newByID := indexByID(newNodes)

	cs := ChangeSet{
		Added:    []string{},
		Removed:  []string{},
		Modified: []string{},
	}

	for _, n := range newNodes {
		before, ok := oldByID[n.ID]
		if !ok {
			cs.Added = append(cs.Added, Label(n))
			continue
		}
		if nodeChanged(before, n) {
			cs.Modified = append(cs.Modified, Label(n))
		}
	}
	for _, n := range oldNodes {
		if _, ok := newByID[n.ID]; !ok {
			cs.Removed = append(cs.Removed, Label(n))
		}
	}
	return cs
}

func nodesOf(d *workflow.Document) []workflow.Node {
	if d == nil {
		return nil
	}
	return d.Nodes
}

// indexByID keeps the first node for a duplicated id.
func indexByID(nodes []workflow.Node) map[string]workflow.Node {
	m := make(map[string]workflow.Node, len(nodes))
	for _, n := range nodes {
		if _, dup := m[n.ID]; dup {
			continue
		}
		m[n.ID] = n
	}
	return m
}

func nodeChanged(a, b workflow.Node) bool {
	if a.Name != b.Name || a.Type != b.Type {
		return true
	}
	return !workflow.Equal(a.Parameters, b.Parameters)
}

// Label renders a node as "<name> (<type suffix>)", where the suffix is the
// last dot-separated segment of the node type.
func Label(n workflow.Node) string {
	name := strings.TrimSpace(n.Name)
	if name == "" {
		name = Unknown
	}
	return fmt.Sprintf("%s (%s)", name, typeSuffix(n.Type))
}

func typeSuffix(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	if t == "" {
		return Unknown
	}
	return t
}

// Summary renders the ChangeSet on one line per category in the order
// added, modified, removed. Each category lists at most three labels and
// folds the rest into a count.
func (c ChangeSet) Summary() string {
	if c.Empty() {
		return NoVisibleChange
	}

	var lines []string
	for _, cat := range []struct {
		title  string
		labels []string
	}{
		{"Added", c.Added},
		{"Modified", c.Modified},
		{"Removed", c.Removed},
	} {
		if len(cat.labels) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", cat.title, inline(cat.labels)))
	}
	return strings.Join(lines, "\n")
}

func inline(labels []string) string {
	if len(labels) <= maxInline {
		return strings.Join(labels, ", ")
	}
	return fmt.Sprintf("%s and %d more (%d total)",
		strings.Join(labels[:maxInline], ", "), len(labels)-maxInline, len(labels))
}
