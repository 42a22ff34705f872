// Package redact masks likely secrets in workflow parameter trees before
// they are persisted or transmitted.
//
// Two policies are applied to every parameter map, recursively:
//
//  1. Key-based: keys whose lowercased name contains a sensitive keyword
//     and whose string value is longer than ten characters are obfuscated
//     with the first matching Rule, or replaced by Marker when no rule
//     recognizes the value.
//  2. Value-based: every other string value is checked against the same
//     ordered Rule list and obfuscated on the first match.
//
// Redaction is pure and idempotent: the input document is never touched and
// redacting an already-redacted document changes nothing.
package redact
