// Package history keeps a local SQLite ledger of backup cycles and health
// transitions.
//
// The ledger is informational: the monitor logs and ignores write failures,
// and nothing in the backup path reads it back. The history command and
// the status endpoint use it to show recent activity.
package history
