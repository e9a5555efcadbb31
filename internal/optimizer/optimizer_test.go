package optimizer

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashagw/craneqp/internal/metadata"
	"github.com/yashagw/craneqp/internal/plan"
	"github.com/yashagw/craneqp/internal/query"
	"github.com/yashagw/craneqp/internal/record"
)

type mapStats map[string]*metadata.StatInfo

func (m mapStats) GetStatInfo(table string) (*metadata.StatInfo, error) {
	si, ok := m[table]
	if !ok {
		return nil, errors.Newf("no statistics for %s", table)
	}
	return si, nil
}

func twoIntScan(t *testing.T, stats mapStats, table, a, b string, rows, da, db int) *plan.Node {
	s := record.NewSchema()
	s.AddIntField(table + "." + a)
	s.AddIntField(table + "." + b)
	si, err := metadata.NewStatInfo(s, rows, []int{da, db})
	require.NoError(t, err)
	stats[table] = si
	return plan.NewScan(table, s)
}

// chain builds R ⋈ S ⋈ T ⋈ U along R.b = S.b, S.c = T.c, T.d = U.d.
func chain(t *testing.T, method plan.JoinMethod) (*plan.Node, mapStats) {
	stats := mapStats{}
	bases := []*plan.Node{
		twoIntScan(t, stats, "R", "a", "b", 5000, 100, 50),
		twoIntScan(t, stats, "S", "b", "c", 200, 50, 20),
		twoIntScan(t, stats, "T", "c", "d", 3000, 20, 300),
		twoIntScan(t, stats, "U", "d", "e", 100, 100, 10),
	}
	conds := []query.Condition{
		query.NewJoinCondition("R.b", query.Equal, "S.b"),
		query.NewJoinCondition("S.c", query.Equal, "T.c"),
		query.NewJoinCondition("T.d", query.Equal, "U.d"),
	}
	root, leftover, err := plan.LeftDeep(bases, conds, method)
	require.NoError(t, err)
	require.Empty(t, leftover)
	return root, stats
}

func sortedTables(root *plan.Node) []string {
	tables := plan.Tables(root)
	slices.Sort(tables)
	return tables
}

func joinIDs(root *plan.Node) []int {
	var ids []int
	for id := range plan.NumJoins(root) {
		if plan.FindJoin(root, id) != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func TestCommuteIsInvolution(t *testing.T) {
	root, _ := chain(t, plan.NestedLoop)
	for id := range 3 {
		once, err := Commute(root, id)
		require.NoError(t, err)
		before, after := plan.FindJoin(root, id), plan.FindJoin(once, id)
		assert.Same(t, before.Left(), after.Right())
		assert.Same(t, before.Right(), after.Left())
		assert.Equal(t, before.Condition().Flip(), after.Condition())

		twice, err := Commute(once, id)
		require.NoError(t, err)
		restored := plan.FindJoin(twice, id)
		assert.Same(t, before.Left(), restored.Left())
		assert.Same(t, before.Right(), restored.Right())
		assert.Equal(t, before.Condition(), restored.Condition())
		assert.Equal(t, root.String(), twice.String())
	}
}

func TestChangeMethodPicksAnother(t *testing.T) {
	root, _ := chain(t, plan.SortMerge)
	rng := rand.New(rand.NewPCG(3, 4))
	seen := map[plan.JoinMethod]bool{}
	for range 200 {
		out, err := ChangeMethod(rng, root, 1)
		require.NoError(t, err)
		m := plan.FindJoin(out, 1).Method()
		assert.NotEqual(t, plan.SortMerge, m)
		seen[m] = true
		assert.Equal(t, plan.SortMerge, plan.FindJoin(root, 1).Method())
	}
	assert.Len(t, seen, plan.NumJoinMethods-1)
}

func TestAssociateLeftDeep(t *testing.T) {
	root, _ := chain(t, plan.BlockNestedLoop)
	rng := rand.New(rand.NewPCG(1, 1))

	// ((R ⋈0 S) ⋈1 T): T joins on S.c, so R ⋈ (S ⋈ T)
	out, err := Associate(rng, root, 1)
	require.NoError(t, err)
	top := out.Left()
	require.Equal(t, plan.JoinNode, top.Kind())
	assert.Equal(t, 0, top.JoinID())
	assert.Equal(t, "R.b = S.b", top.Condition().String())
	assert.Equal(t, plan.ScanNode, top.Left().Kind())
	lower := top.Right()
	assert.Equal(t, 1, lower.JoinID())
	assert.Equal(t, []string{"S", "T"}, plan.Tables(lower))
	assert.Equal(t, sortedTables(root), sortedTables(out))
	assert.ElementsMatch(t, []string{"R.a", "R.b", "S.b", "S.c", "T.c", "T.d", "U.d", "U.e"}, out.Schema().Fields())
}

func TestAssociateReferencingOuterLeft(t *testing.T) {
	stats := mapStats{}
	r := twoIntScan(t, stats, "R", "a", "b", 10, 10, 10)
	s := twoIntScan(t, stats, "S", "b", "c", 10, 10, 10)
	u := twoIntScan(t, stats, "U", "a", "e", 10, 10, 10)
	conds := []query.Condition{
		query.NewJoinCondition("R.b", query.Equal, "S.b"),
		query.NewJoinCondition("U.a", query.Equal, "R.a"),
	}
	root, _, err := plan.LeftDeep([]*plan.Node{r, s, u}, conds, plan.NestedLoop)
	require.NoError(t, err)

	// ((R ⋈ S) ⋈ U) with U joining R becomes S ⋈ (R ⋈ U)
	out, err := Associate(rand.New(rand.NewPCG(1, 1)), root, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"S", "R", "U"}, plan.Tables(out))
	assert.Equal(t, "S.b = R.b", out.Condition().String())
	assert.Equal(t, "U.a = R.a", out.Right().Condition().String())

	// and back: S ⋈ (R ⋈ U) references R, the left of the right join
	back, err := Associate(rand.New(rand.NewPCG(1, 1)), out, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"S", "R", "U"}, plan.Tables(back))
	assert.Equal(t, plan.JoinNode, back.Left().Kind())
}

func TestAssociateWithoutJoinChildIsNoop(t *testing.T) {
	root, _ := chain(t, plan.NestedLoop)
	out, err := Associate(rand.New(rand.NewPCG(1, 1)), root, 0)
	require.NoError(t, err)
	assert.Same(t, root, out)
}

func TestRandomMovesKeepPlansValid(t *testing.T) {
	root, stats := chain(t, plan.BlockNestedLoop)
	est := plan.NewEstimator(stats, 400, 30)
	rng := rand.New(rand.NewPCG(9, 9))

	cur := root
	for range 500 {
		next, err := Apply(rng, cur, rng.IntN(3), Move(rng.IntN(numMoves)))
		require.NoError(t, err)
		assert.Equal(t, sortedTables(root), sortedTables(next))
		assert.Equal(t, []int{0, 1, 2}, joinIDs(next))
		assert.Len(t, next.Schema().Fields(), 8)
		_, err = est.Cost(next)
		require.NoError(t, err)
		cur = next
	}
}

func TestOptimizeNeverWorse(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3, 42} {
		root, stats := chain(t, plan.NestedLoop)
		est := plan.NewEstimator(stats, 400, 30)
		initial, err := est.Cost(root)
		require.NoError(t, err)

		opts := DefaultOptions()
		opts.Seed = seed
		o, err := New(est, opts)
		require.NoError(t, err)
		best, final, err := o.Optimize(root)
		require.NoError(t, err)
		assert.True(t, final.Feasible)
		assert.LessOrEqual(t, final.Cost, initial.Cost, "seed %d", seed)
		assert.Equal(t, sortedTables(root), sortedTables(best))
	}
}

func TestOptimizeIsDeterministicPerSeed(t *testing.T) {
	root, stats := chain(t, plan.NestedLoop)
	est := plan.NewEstimator(stats, 400, 30)
	run := func() string {
		o, err := New(est, DefaultOptions())
		require.NoError(t, err)
		best, _, err := o.Optimize(root)
		require.NoError(t, err)
		return best.String()
	}
	assert.Equal(t, run(), run())
}

func TestOptimizeWithoutJoins(t *testing.T) {
	stats := mapStats{}
	r := twoIntScan(t, stats, "R", "a", "b", 100, 10, 10)
	o, err := New(plan.NewEstimator(stats, 400, 8), DefaultOptions())
	require.NoError(t, err)
	best, est, err := o.Optimize(r)
	require.NoError(t, err)
	assert.Same(t, r, best)
	assert.Equal(t, int64(2), est.Cost)
}

func TestOptimizeInfeasible(t *testing.T) {
	root, stats := chain(t, plan.BlockNestedLoop)
	// three joins share 6 pages
	o, err := New(plan.NewEstimator(stats, 400, 6), DefaultOptions())
	require.NoError(t, err)
	_, _, err = o.Optimize(root)
	assert.ErrorIs(t, err, ErrNoFeasiblePlan)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	opts := DefaultOptions()
	opts.CoolingFactor = 1
	_, err := New(plan.NewEstimator(mapStats{}, 400, 8), opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.MinTemperature = 0
	_, err = New(plan.NewEstimator(mapStats{}, 400, 8), opts)
	assert.Error(t, err)
}
