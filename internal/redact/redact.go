package redact

import (
	"strings"

	"github.com/roach88/wfkeeper/internal/workflow"
)

const (
	// Marker replaces a sensitive-key value that matches no known shape.
	Marker = "***REDACTED***"

	// minSensitiveLen is the length a sensitive-key value must exceed
	// before it is touched.
	minSensitiveLen = 10
)

// SensitiveKeywords are matched case-insensitively as substrings of
// parameter keys.
var SensitiveKeywords = []string{"apikey", "api_key", "password", "token", "secret", "credential"}

// Redactor applies the key-based and value-based policies.
type Redactor struct {
	rules    []Rule
	keywords []string
}

// New creates a Redactor with the given rules, or DefaultRules when none
// are supplied.
func New(rules ...Rule) *Redactor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Redactor{rules: rules, keywords: SensitiveKeywords}
}

// Redact returns a deep copy of doc with secrets masked in every node's
// parameters. doc itself is not modified.
func (r *Redactor) Redact(doc *workflow.Document) *workflow.Document {
	out := doc.Clone()
	if out == nil {
		return nil
	}
	for i := range out.Nodes {
		if out.Nodes[i].Parameters != nil {
			out.Nodes[i].Parameters = r.redactObject(out.Nodes[i].Parameters)
		}
	}
	return out
}

// Value masks a single string as the value-based policy would. It is used
// for free-form text such as error messages before they leave the process.
func (r *Redactor) Value(s string) string {
	if masked, ok := r.obfuscate(s); ok {
		return masked
	}
	return s
}

func (r *Redactor) redactObject(obj workflow.Object) workflow.Object {
	out := make(workflow.Object, len(obj))
	for k, v := range obj {
		out[k] = r.redactEntry(k, v)
	}
	return out
}

func (r *Redactor) redactEntry(key string, v workflow.Value) workflow.Value {
	switch val := v.(type) {
	case workflow.String:
		s := string(val)
		if r.sensitive(key) && len(s) > minSensitiveLen {
			if masked, ok := r.obfuscate(s); ok {
				return workflow.String(masked)
			}
			if alreadyMasked(s) {
				return val
			}
			return workflow.String(Marker)
		}
		if masked, ok := r.obfuscate(s); ok {
			return workflow.String(masked)
		}
		return val
	case workflow.Object:
		return r.redactObject(val)
	case workflow.Array:
		out := make(workflow.Array, len(val))
		for i, elem := range val {
			if obj, ok := elem.(workflow.Object); ok {
				out[i] = r.redactObject(obj)
				continue
			}
			out[i] = workflow.Clone(elem)
		}
		return out
	default:
		return v
	}
}

func (r *Redactor) sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// obfuscate applies the first matching rule.
func (r *Redactor) obfuscate(s string) (string, bool) {
	for _, rule := range r.rules {
		if rule.Match(s) {
			return rule.Obfuscate(s), true
		}
	}
	return s, false
}

// alreadyMasked recognizes the output of a previous redaction so the
// key-based fallback does not overwrite it with Marker.
func alreadyMasked(s string) bool {
	return strings.Contains(s, "***")
}
