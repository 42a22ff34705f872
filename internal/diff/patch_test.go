package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchUnified(t *testing.T) {
	before := []byte("{\n  \"url\": \"https://api.old.com\"\n}\n")
	after := []byte("{\n  \"url\": \"https://api.new.com\"\n}\n")

	p := Patch("workflows/1_demo.json", before, after)

	assert.Contains(t, p, "--- a/workflows/1_demo.json")
	assert.Contains(t, p, "+++ b/workflows/1_demo.json")
	assert.Contains(t, p, "-  \"url\": \"https://api.old.com\"")
	assert.Contains(t, p, "+  \"url\": \"https://api.new.com\"")
}

func TestPatchIdentical(t *testing.T) {
	same := []byte("{}\n")
	assert.Empty(t, Patch("x.json", same, same))
}
