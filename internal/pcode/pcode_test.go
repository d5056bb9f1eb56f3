package pcode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jensenwirth/p4/internal/pcode"
)

func TestOpStringRoundTrip(t *testing.T) {
	for _, name := range []string{"lod", "cup", "chk", "chka", "ujc", "lci", "dec"} {
		op, ok := pcode.ByName(name)
		assert.True(t, ok, name)
		assert.Equal(t, name, op.String())
	}
}

func TestByNameUnknown(t *testing.T) {
	_, ok := pcode.ByName("nope")
	assert.False(t, ok)
}

func TestOpStringUnknown(t *testing.T) {
	assert.Equal(t, "op?", pcode.Op(200).String())
}

func TestCodeAddressing(t *testing.T) {
	var c pcode.Code
	c.Set(0, pcode.Instr{Op: pcode.Lod, Q: 1})
	c.Set(1, pcode.Instr{Op: pcode.Str, Q: 2})
	c.Set(2, pcode.Instr{Op: pcode.Adi})

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, pcode.Lod, c.At(0).Op)
	assert.Equal(t, pcode.Str, c.At(1).Op)
	assert.Equal(t, pcode.Adi, c.At(2).Op)
	assert.Equal(t, pcode.Lod, c.At(0).Op) // slot 0 of word 0
	assert.Equal(t, int32(1), c.At(0).Q)
	assert.Equal(t, int32(2), c.At(1).Q)
}

func TestCodeSetGrowsMemory(t *testing.T) {
	var c pcode.Code
	c.Set(9, pcode.Instr{Op: pcode.Stp})
	assert.Equal(t, pcode.Stp, c.At(9).Op)
	assert.GreaterOrEqual(t, c.Len(), 10)
}
