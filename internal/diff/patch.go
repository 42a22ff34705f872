package diff

import (
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// patchContext is the number of context lines around each hunk.
const patchContext = 3

// Patch produces a unified diff between two renderings of the same
// workflow file. An empty string means the inputs are identical.
func Patch(name string, before, after []byte) string {
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(string(before)),
		B:        splitLinesKeepNL(string(after)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  patchContext,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return ""
	}
	return s
}

// splitLinesKeepNL keeps the trailing newline on each line, which gives
// cleaner hunks.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}
