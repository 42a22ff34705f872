// Package workflow provides the document model for remote workflow
// definitions and the fingerprint engine used for change detection.
//
// Every other internal package imports workflow; workflow imports nothing
// internal.
//
// Key constraints:
//   - Parameter trees use the sealed Value variant (Null, String, Number,
//     Bool, Array, Object). Numbers keep their exact JSON text.
//   - Documents are never mutated in place. Transforms return new documents
//     built with Clone.
//   - Fingerprints are computed over canonical JSON (UTF-16 key order, NFC
//     strings, no HTML escaping) with volatile fields stripped.
package workflow
