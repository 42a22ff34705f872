// Package diff classifies node-level changes between two versions of a
// workflow document and renders them as short human-readable summaries.
//
// Classification is keyed by node id:
//   - id only in the new document: added
//   - id only in the old document: removed
//   - id in both and name, type or parameters differ: modified
//
// Everything else (position, typeVersion, credentials, node order) is not
// reported. A fingerprint change with an empty ChangeSet is rendered as
// NoVisibleChange rather than an invented diff.
package diff
