package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_AllocFree_Recycles(t *testing.T) {
	a := New[int](4)

	i1 := a.Alloc()
	*a.Get(i1) = 10
	i2 := a.Alloc()
	*a.Get(i2) = 20
	require.Equal(t, 2, a.Len())

	a.Free(i1)
	require.Equal(t, 1, a.Len())

	i3 := a.Alloc()
	assert.Equal(t, i1, i3, "freed slot should be recycled before growing")
	assert.Equal(t, 0, *a.Get(i3), "recycled slot is zeroed")
	assert.Equal(t, 20, *a.Get(i2), "unrelated live slot is untouched")
}

func TestArena_GrowsWhenFreeListEmpty(t *testing.T) {
	a := New[string](1)
	idx := make([]Index, 0, 8)
	for i := 0; i < 8; i++ {
		id := a.Alloc()
		*a.Get(id) = "x"
		idx = append(idx, id)
	}
	require.Equal(t, 8, a.Len())
	for _, id := range idx {
		assert.Equal(t, "x", *a.Get(id))
	}
}
