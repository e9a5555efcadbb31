package scan

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashagw/craneqp/internal/query"
	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/spill"
)

type joinCtor func(space *spill.Space, left, right Operator, cond query.Condition, numBuff int) (Operator, error)

var joinAlgorithms = map[string]joinCtor{
	"BlockNestedJoin": func(space *spill.Space, l, r Operator, c query.Condition, n int) (Operator, error) {
		return NewBlockNestedJoin(space, l, r, c, n)
	},
	"NestedJoin": func(space *spill.Space, l, r Operator, c query.Condition, n int) (Operator, error) {
		return NewNestedJoin(space, l, r, c, n)
	},
	"SortMergeJoin": func(space *spill.Space, l, r Operator, c query.Condition, n int) (Operator, error) {
		return NewSortMergeJoin(space, l, r, c, n)
	},
}

func TestJoinFiveByFive(t *testing.T) {
	left := make([]record.Tuple, 5)
	right := make([]record.Tuple, 5)
	for i := range left {
		left[i] = ints(7, i)
		right[i] = ints(7, 10+i)
	}

	for name, ctor := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			space := newTestSpace(t, 32)
			j, err := ctor(space,
				newSliceSource(intSchema("L", "k", "v"), left, 2),
				newSliceSource(intSchema("R", "k", "w"), right, 2),
				query.NewJoinCondition("L.k", query.Equal, "R.k"), 3)
			require.NoError(t, err)

			out := drain(t, j)
			assert.Len(t, out, 25)
			assert.Equal(t, []string{"L.k", "L.v", "R.k", "R.w"}, j.Schema().Fields())
			assert.Empty(t, runFiles(t, space), "spill files are removed on close")
		})
	}
}

func TestJoinsAgreeWithOracle(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 22))
	lschema := intSchema("L", "k", "v")
	rschema := intSchema("R", "k", "w")
	left := randomTuples(rng, 300, 2, 40)
	right := randomTuples(rng, 200, 2, 40)

	db := newOracle(t)
	db.load(t, "L", lschema, left)
	db.load(t, "R", rschema, right)
	want := multiset(db.query(t, `SELECT * FROM L JOIN R ON L."L.k" = R."R.k"`))
	require.NotEmpty(t, want)

	for name, ctor := range joinAlgorithms {
		for _, budget := range []int{3, 4, 7} {
			t.Run(fmt.Sprintf("%s/%d", name, budget), func(t *testing.T) {
				// 8-byte inputs: 5 per page; 16-byte outputs: 2 per page
				space := newTestSpace(t, 40)
				j, err := ctor(space,
					newSliceSource(lschema, left, 5),
					newSliceSource(rschema, right, 5),
					query.NewJoinCondition("L.k", query.Equal, "R.k"), budget)
				require.NoError(t, err)
				assert.Equal(t, want, multiset(drain(t, j)))
			})
		}
	}
}

func TestJoinFlippedCondition(t *testing.T) {
	left := []record.Tuple{ints(1, 0), ints(2, 0), ints(2, 1)}
	right := []record.Tuple{ints(2, 9), ints(3, 9)}

	for name, ctor := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			space := newTestSpace(t, 64)
			// the condition names the right side first
			j, err := ctor(space,
				newSliceSource(intSchema("L", "k", "v"), left, 2),
				newSliceSource(intSchema("R", "k", "w"), right, 2),
				query.NewJoinCondition("R.k", query.Equal, "L.k"), 3)
			require.NoError(t, err)
			assert.Equal(t, multiset([]record.Tuple{ints(2, 0, 2, 9), ints(2, 1, 2, 9)}), multiset(drain(t, j)))
		})
	}
}

func TestBlockNestedJoinInequality(t *testing.T) {
	rng := rand.New(rand.NewPCG(8, 9))
	lschema := intSchema("L", "k")
	rschema := intSchema("R", "k")
	left := randomTuples(rng, 60, 1, 20)
	right := randomTuples(rng, 40, 1, 20)

	db := newOracle(t)
	db.load(t, "L", lschema, left)
	db.load(t, "R", rschema, right)
	want := multiset(db.query(t, `SELECT * FROM L JOIN R ON L."L.k" < R."R.k"`))

	space := newTestSpace(t, 16)
	j, err := NewBlockNestedJoin(space, newSliceSource(lschema, left, 4), newSliceSource(rschema, right, 4),
		query.NewJoinCondition("L.k", query.Less, "R.k"), 4)
	require.NoError(t, err)
	assert.Equal(t, want, multiset(drain(t, j)))

	_, err = NewSortMergeJoin(space, newSliceSource(lschema, left, 4), newSliceSource(rschema, right, 4),
		query.NewJoinCondition("L.k", query.Less, "R.k"), 4)
	assert.Error(t, err, "sort-merge join handles equality only")
}

func TestBlockNestedJoinMemoryBound(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	lschema := intSchema("L", "k")
	rschema := intSchema("R", "k")
	space := newTestSpace(t, 16)

	j, err := NewBlockNestedJoin(space,
		newSliceSource(lschema, randomTuples(rng, 100, 1, 10), 4),
		newSliceSource(rschema, randomTuples(rng, 100, 1, 10), 4),
		query.NewJoinCondition("L.k", query.Equal, "R.k"), 5)
	require.NoError(t, err)
	drain(t, j)
	assert.LessOrEqual(t, j.PeakPages(), 5)
}

func TestJoinComputedRightSide(t *testing.T) {
	left := []record.Tuple{ints(1), ints(2), ints(3)}
	right := []record.Tuple{ints(1, 0), ints(2, 1), ints(3, 0), ints(3, 1)}
	space := newTestSpace(t, 64)

	rsrc := newSliceSource(intSchema("R", "k", "flag"), right, 2)
	filtered := NewSelect(rsrc, query.NewSelectCondition("R.flag", query.Equal, record.NewIntConstant(1)), space.PageSize())
	j, err := NewBlockNestedJoin(space, newSliceSource(intSchema("L", "k"), left, 2), filtered,
		query.NewJoinCondition("L.k", query.Equal, "R.k"), 3)
	require.NoError(t, err)

	out := drain(t, j)
	assert.Equal(t, multiset([]record.Tuple{ints(2, 2, 1), ints(3, 3, 1)}), multiset(out))
	assert.Equal(t, 1, rsrc.opened, "the right side is read once")
}

func TestSortMergeJoinTrailingGroup(t *testing.T) {
	// the right side ends inside the last key group; every left tuple with that
	// key must still be joined
	left := []record.Tuple{ints(1), ints(5), ints(5), ints(5), ints(9)}
	right := []record.Tuple{ints(0), ints(5), ints(5)}
	space := newTestSpace(t, 8)

	j, err := NewSortMergeJoin(space,
		newSliceSource(intSchema("L", "k"), left, 2),
		newSliceSource(intSchema("R", "k"), right, 2),
		query.NewJoinCondition("L.k", query.Equal, "R.k"), 3)
	require.NoError(t, err)
	out := drain(t, j)
	assert.Len(t, out, 6)
	for _, tup := range out {
		assert.Equal(t, ints(5, 5), tup)
	}
}

func TestSortMergeJoinSkewedPartition(t *testing.T) {
	// one key run spans many right pages
	var left, right []record.Tuple
	for i := 0; i < 30; i++ {
		left = append(left, ints(7))
		right = append(right, ints(7))
	}
	left = append(left, ints(8))
	right = append(right, ints(6))
	space := newTestSpace(t, 16)

	j, err := NewSortMergeJoin(space,
		newSliceSource(intSchema("L", "k"), left, 4),
		newSliceSource(intSchema("R", "k"), right, 4),
		query.NewJoinCondition("L.k", query.Equal, "R.k"), 3)
	require.NoError(t, err)
	out := drain(t, j)
	assert.Len(t, out, 30*30)
	assert.LessOrEqual(t, j.PeakPages(), 3)
	assert.Empty(t, runFiles(t, space))
}

func TestJoinEmptySide(t *testing.T) {
	for name, ctor := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			space := newTestSpace(t, 64)
			j, err := ctor(space,
				newSliceSource(intSchema("L", "k"), []record.Tuple{ints(1)}, 2),
				newSliceSource(intSchema("R", "k"), nil, 2),
				query.NewJoinCondition("L.k", query.Equal, "R.k"), 3)
			require.NoError(t, err)
			assert.Empty(t, drain(t, j))
		})
	}
}

func TestJoinRejectsBadInput(t *testing.T) {
	space := newTestSpace(t, 64)
	l := newSliceSource(intSchema("L", "k"), nil, 2)
	r := newSliceSource(intSchema("R", "k"), nil, 2)

	_, err := NewBlockNestedJoin(space, l, r, query.NewJoinCondition("L.k", query.Equal, "X.k"), 3)
	assert.Error(t, err)

	j, err := NewBlockNestedJoin(space, l, r, query.NewJoinCondition("L.k", query.Equal, "R.k"), 2)
	require.NoError(t, err)
	assert.ErrorIs(t, j.Open(), record.ErrInsufficientBuffers)
	assert.NoError(t, j.Close())
}
