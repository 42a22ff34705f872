package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator_ReturnsInOrder(t *testing.T) {
	gen := NewFixedIDGenerator("cycle-1", "cycle-2")

	assert.Equal(t, "cycle-1", gen.Generate())
	assert.Equal(t, "cycle-2", gen.Generate())
}

func TestFixedIDGenerator_PanicsWhenExhausted(t *testing.T) {
	gen := NewFixedIDGenerator("only")
	gen.Generate()

	assert.PanicsWithValue(t, "FixedIDGenerator: all ids exhausted", func() { gen.Generate() })
}
