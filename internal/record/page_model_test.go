package record

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intTuple(vals ...int) Tuple {
	t := make(Tuple, len(vals))
	for i, v := range vals {
		t[i] = NewIntConstant(v)
	}
	return t
}

func TestTuple(t *testing.T) {
	a := intTuple(1, 2)
	b := intTuple(3)

	joined := a.JoinWith(b)
	assert.True(t, joined.Equals(intTuple(1, 2, 3)))
	assert.Equal(t, 2, a.Size(), "JoinWith must not modify the receiver")

	withAgg := a.AppendValue(NewRealConstant(1.5))
	assert.Equal(t, 3, withAgg.Size())
	assert.Equal(t, 2, a.Size())

	assert.True(t, joined.Project([]int{2, 0}).Equals(intTuple(3, 1)))
	assert.Equal(t, "[1, 2, 3]", joined.String())

	assert.Equal(t, 0, CompareTuples(intTuple(1, 5), intTuple(1, 9), []int{0}))
	assert.Equal(t, -1, CompareTuples(intTuple(1, 5), intTuple(1, 9), []int{0, 1}))
	assert.Equal(t, 1, CompareKeys(intTuple(4, 0), []int{0}, intTuple(9, 3), []int{1}))
	assert.Equal(t, []int{0, 1, 2}, AllKeys(3))
}

func TestBatch(t *testing.T) {
	b := NewBatch(2)
	assert.True(t, b.IsEmpty())

	assert.True(t, b.Add(intTuple(1)))
	assert.True(t, b.Add(intTuple(2)))
	assert.True(t, b.IsFull())
	assert.False(t, b.Add(intTuple(3)), "a full batch rejects appends")
	assert.Equal(t, 2, b.Size())

	assert.True(t, b.ElementAt(1).Equals(intTuple(2)))
	assert.True(t, b.RemoveFirst().Equals(intTuple(1)))
	assert.Equal(t, 1, b.Size())
	assert.False(t, b.IsFull())
	assert.NotNil(t, b.RemoveFirst())
	assert.Nil(t, b.RemoveFirst())
}

func TestBlock(t *testing.T) {
	blk := NewBlock(2, 3)

	p1 := NewBatch(3)
	for _, v := range []int{5, 3, 9} {
		p1.Add(intTuple(v, 0))
	}
	p2 := NewBatch(3)
	for _, v := range []int{3, 1} {
		p2.Add(intTuple(v, 1))
	}

	require.True(t, blk.AddBatch(p1))
	require.True(t, blk.AddBatch(p2))
	assert.True(t, blk.IsFull())
	assert.False(t, blk.AddBatch(NewBatch(3)))
	assert.Equal(t, 5, blk.NumTuples())

	blk.Sort([]int{0})
	got := make([]Tuple, 0, blk.NumTuples())
	got = append(got, blk.Tuples()...)
	assert.Equal(t, []Tuple{
		intTuple(1, 1), intTuple(3, 0), intTuple(3, 1), intTuple(5, 0), intTuple(9, 0),
	}, got, "sort is stable on equal keys")

	pages := blk.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, 3, pages[0].Size())
	assert.Equal(t, 2, pages[1].Size())

	blk.Clear()
	assert.True(t, blk.IsEmpty())
	assert.Equal(t, 0, blk.NumPages())
}

func TestPageCapacity(t *testing.T) {
	n, err := PageCapacity(400, 36)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	_, err = PageCapacity(16, 36)
	assert.True(t, errors.Is(err, ErrTupleTooLarge))

	assert.NoError(t, RequireBuffers("sort", 3, 3))
	assert.True(t, errors.Is(RequireBuffers("sort", 2, 3), ErrInsufficientBuffers))
}
