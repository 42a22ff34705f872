// Package gitsync commits snapshot changes in a local working tree and
// pushes them to a remote, resolving light contention from other writers.
//
// A sync walks a small state machine:
//
//	Clean -> Staged -> Committed -> Pushed
//	                             \-> Reset
//
// Stage runs "git add ."; an empty "git status --porcelain" ends the sync in
// Clean with no commit. Push is attempted at most three times:
//
//   - a missing upstream is established once with --set-upstream; that
//     retry is made even when it falls past the third attempt
//   - a rejected push (remote ahead) pulls with "-X theirs" and retries
//   - a failed pull aborts the merge and moves the branch to the remote tip,
//     ending in Reset; files in the working tree are left as written
//   - any other failure backs off 1s, 2s, 4s
//
// The coordinator assumes a single writer per working tree. It does no
// locking of its own.
package gitsync
