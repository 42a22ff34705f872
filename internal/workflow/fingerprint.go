package workflow

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainFingerprint separates workflow fingerprints from any other hash
// computed over the same bytes. The version suffix allows migrating the
// algorithm later.
const DomainFingerprint = "wfkeeper/workflow/v1"

// Fingerprint is a 64 character hex SHA-256 digest of a workflow's
// canonical content.
type Fingerprint string

// volatileKeys change on every server-side read without semantic effect.
var volatileKeys = []string{keyUpdatedAt, keyCreatedAt, keyVersionID, keyID}

// FingerprintOf computes the content fingerprint of a document.
//
// Stripped before hashing: updatedAt, createdAt, versionId, the top-level
// id, and every node's position. A document without nodes hashes as if it
// had an empty node list. Key order never matters.
func FingerprintOf(d *Document) Fingerprint {
	canonical, err := MarshalCanonical(fingerprintContent(d))
	if err != nil {
		// Only malformed Number literals can fail; fall back to the
		// lenient encoder so hashing stays total.
		canonical = []byte(fallbackText(d))
	}
	return Fingerprint(hashWithDomain(DomainFingerprint, canonical))
}

func fingerprintContent(d *Document) Object {
	if d == nil {
		return Object{keyNodes: Array{}}
	}
	obj := d.Object()
	for _, k := range volatileKeys {
		delete(obj, k)
	}
	if d.HasNodes || len(d.Nodes) > 0 {
		nodes := make(Array, len(d.Nodes))
		for i, n := range d.Nodes {
			no := n.Object()
			delete(no, keyPosition)
			nodes[i] = no
		}
		obj[keyNodes] = nodes
	} else if _, ok := obj[keyNodes]; !ok {
		obj[keyNodes] = Array{}
	}
	// A malformed nodes value kept in Extra is hashed as received.
	return obj
}

func fallbackText(d *Document) string {
	content := fingerprintContent(d)
	sanitizeNumbers(content)
	b, _ := MarshalCanonical(content)
	return string(b)
}

// sanitizeNumbers replaces unparsable number literals with strings so that
// canonical marshaling cannot fail.
func sanitizeNumbers(v Value) {
	switch val := v.(type) {
	case Object:
		for k, elem := range val {
			if n, ok := elem.(Number); ok && !validNumber(n) {
				val[k] = String(n)
				continue
			}
			sanitizeNumbers(elem)
		}
	case Array:
		for i, elem := range val {
			if n, ok := elem.(Number); ok && !validNumber(n) {
				val[i] = String(n)
				continue
			}
			sanitizeNumbers(elem)
		}
	}
}

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte
// prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
