package pstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jensenwirth/p4/internal/pstore"
	"github.com/jensenwirth/p4/pascalset"
)

func TestInternIntDedups(t *testing.T) {
	s := pstore.New(0)
	i1, overflow := s.InternInt(42)
	assert.False(t, overflow)
	i2, overflow := s.InternInt(42)
	assert.False(t, overflow)
	assert.Equal(t, i1, i2)
	assert.Equal(t, 1, s.IntPoolLen())

	i3, _ := s.InternInt(7)
	assert.NotEqual(t, i1, i3)
	assert.Equal(t, 2, s.IntPoolLen())
}

func TestInternRealBitwiseEquality(t *testing.T) {
	s := pstore.New(0)
	i1, _ := s.InternReal(3.25)
	i2, _ := s.InternReal(3.25)
	assert.Equal(t, i1, i2)
	assert.Equal(t, 3.25, s.Real(i1))
}

func TestInternSetUsesSetEquality(t *testing.T) {
	s := pstore.New(0)
	a := pascalset.New(1, 3, 5)
	b := pascalset.New(5, 3, 1)
	i1, _ := s.InternSet(a)
	i2, _ := s.InternSet(b)
	assert.Equal(t, i1, i2)
	assert.Equal(t, 1, s.SetPoolLen())
}

func TestInternBoundAndString(t *testing.T) {
	s := pstore.New(0)
	bi, _ := s.InternBound(1, 10)
	assert.Equal(t, pstore.BoundPair{Lo: 1, Hi: 10}, s.Bound(bi))

	si1, _ := s.InternString("hello")
	si2, _ := s.InternString("hello")
	assert.Equal(t, si1, si2)
	assert.Equal(t, "hello", s.String(si1))
}

func TestDefaultStackSize(t *testing.T) {
	s := pstore.New(0)
	assert.Equal(t, pstore.DefaultMaxStack, s.MaxStack)
	assert.Len(t, s.Stack, pstore.DefaultMaxStack)
}
