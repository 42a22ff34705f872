package redact

import (
	"regexp"
	"strings"
)

// Rule recognizes one secret shape and knows how to obfuscate it.
// Add new shapes by appending a Rule; call sites never change.
type Rule interface {
	Name() string
	Match(value string) bool
	Obfuscate(value string) string
}

// patternRule is a Rule backed by an anchored regular expression.
type patternRule struct {
	name      string
	pattern   *regexp.Regexp
	obfuscate func(string) string
}

func (r patternRule) Name() string                  { return r.name }
func (r patternRule) Match(value string) bool       { return r.pattern.MatchString(value) }
func (r patternRule) Obfuscate(value string) string { return r.obfuscate(value) }

// DefaultRules returns the built-in secret shapes in match priority order.
func DefaultRules() []Rule {
	return []Rule{
		patternRule{
			name:      "anthropic-key",
			pattern:   regexp.MustCompile(`^=?sk-ant-[A-Za-z0-9_-]+`),
			obfuscate: maskAnthropicKey,
		},
		patternRule{
			name:      "openai-key",
			pattern:   regexp.MustCompile(`^sk-[A-Za-z0-9]{48}$`),
			obfuscate: func(v string) string { return keepEnds(v, 8, 5, 35) },
		},
		patternRule{
			name:      "jwt",
			pattern:   regexp.MustCompile(`^eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`),
			obfuscate: maskJWT,
		},
		patternRule{
			name:      "github-token",
			pattern:   regexp.MustCompile(`^gh[po]_[A-Za-z0-9]{36}$`),
			obfuscate: func(v string) string { return keepEnds(v, 8, 5, 25) },
		},
	}
}

// maskAnthropicKey keeps the first 10 and last 4 characters around a fixed
// run of 20 asterisks. Values too short to keep both ends keep only the
// first 6 characters.
func maskAnthropicKey(v string) string {
	if len(v) > 14 {
		return keepEnds(v, 10, 4, 20)
	}
	if len(v) <= 6 {
		return v
	}
	return v[:6] + strings.Repeat("*", len(v)-6)
}

// maskJWT keeps the head of the first segment and the tail of the last one,
// dropping the payload entirely.
func maskJWT(v string) string {
	parts := strings.Split(v, ".")
	head := parts[0]
	if len(head) > 10 {
		head = head[:10]
	}
	tail := parts[len(parts)-1]
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	return head + "...****..." + tail
}

// keepEnds keeps prefix and suffix characters around a fixed-width mask.
func keepEnds(v string, prefix, suffix, width int) string {
	if len(v) < prefix+suffix {
		return v[:min(prefix, len(v))] + strings.Repeat("*", width)
	}
	return v[:prefix] + strings.Repeat("*", width) + v[len(v)-suffix:]
}
