// Package snapshot persists the last-seen state of every backed-up workflow
// inside the git working tree.
//
// Two ledger files live at the repository root:
//
//	.workflow_hashes.json  workflow id -> fingerprint
//	.workflow_data.json    workflow id -> redacted workflow document
//
// Both are rewritten in full on every Save (never patched) and each write is
// atomic (temp file + rename). A crash between the two writes can leave the
// index one cycle ahead of the archive; the next cycle repairs it.
//
// Individual workflows are written under workflows/ as
// <id>_<sanitized-name>.json so the git history reads naturally.
package snapshot
