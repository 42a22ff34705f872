// Package backup runs one backup cycle: list the remote workflows, fetch
// each one, detect changes by fingerprint, diff and redact what changed,
// persist snapshots and hand the working tree to the sync coordinator.
//
// Fetch failures for individual workflows are tolerated; the workflow keeps
// its previous snapshot entry for the cycle. A listing failure aborts the
// cycle before anything is written. Snapshot I/O errors abort the cycle and
// are returned to the caller.
package backup
