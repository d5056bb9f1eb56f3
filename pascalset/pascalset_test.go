package pascalset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jensenwirth/p4/pascalset"
)

func TestAddContainsRemove(t *testing.T) {
	var s pascalset.Set
	s.Add(1)
	s.Add(5)
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(5))
	assert.False(t, s.Contains(4))

	s.Remove(1)
	assert.False(t, s.Contains(1))
	assert.True(t, s.Contains(5))
}

func TestAddRange(t *testing.T) {
	s := pascalset.Range(1, 5)
	for i := 1; i <= 5; i++ {
		assert.True(t, s.Contains(i), "expected %d in range", i)
	}
	assert.False(t, s.Contains(0))
	assert.False(t, s.Contains(6))
}

func TestUnionIntersectDiffXor(t *testing.T) {
	a := pascalset.New(1, 2, 3)
	b := pascalset.New(2, 3, 4)

	assert.ElementsMatch(t, []int{1, 2, 3, 4}, pascalset.Union(a, b).Elements())
	assert.ElementsMatch(t, []int{2, 3}, pascalset.Intersect(a, b).Elements())
	assert.ElementsMatch(t, []int{1}, pascalset.Diff(a, b).Elements())
	assert.ElementsMatch(t, []int{1, 4}, pascalset.SymDiff(a, b).Elements())
}

func TestEqualAndSubset(t *testing.T) {
	a := pascalset.New(1, 2, 3)
	b := pascalset.New(3, 2, 1)
	assert.True(t, pascalset.Equal(a, b))

	c := pascalset.New(1, 2)
	assert.True(t, pascalset.Subset(c, a))
	assert.False(t, pascalset.Subset(a, c))
}

func TestCrossWordBoundary(t *testing.T) {
	s := pascalset.Range(60, 70)
	assert.True(t, s.Contains(60))
	assert.True(t, s.Contains(70))
	assert.False(t, s.Contains(59))
	assert.False(t, s.Contains(71))
	assert.Equal(t, 11, s.Count())
}

func TestEmptyAndClone(t *testing.T) {
	var s pascalset.Set
	assert.True(t, s.Empty())
	s.Add(3)
	assert.False(t, s.Empty())

	clone := s.Clone()
	clone.Add(9)
	assert.False(t, s.Contains(9))
	assert.True(t, clone.Contains(9))
}
