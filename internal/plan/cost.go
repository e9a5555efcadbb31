package plan

import (
	"log"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/buffer"
	"github.com/yashagw/craneqp/internal/metadata"
	"github.com/yashagw/craneqp/internal/query"
	"github.com/yashagw/craneqp/internal/record"
)

// Infeasible is the cost reported for a plan that cannot run under the budget.
const Infeasible = math.MaxInt64

// StatsSource supplies the statistics of base tables.
type StatsSource interface {
	GetStatInfo(table string) (*metadata.StatInfo, error)
}

// Estimate is the result of costing a plan.
type Estimate struct {
	Cost     int64
	Tuples   int64
	Feasible bool
}

// Estimator costs plan trees against table statistics, a page size and a
// total buffer budget.
type Estimator struct {
	stats        StatsSource
	pageSize     int
	totalBuffers int
}

func NewEstimator(stats StatsSource, pageSize, totalBuffers int) *Estimator {
	return &Estimator{stats: stats, pageSize: pageSize, totalBuffers: totalBuffers}
}

func (e *Estimator) PageSize() int     { return e.pageSize }
func (e *Estimator) TotalBuffers() int { return e.totalBuffers }

// costState is the per-call accumulator. Distinct counts are keyed by
// attribute name and rewritten as selections and joins narrow them.
type costState struct {
	buffers  buffer.Manager
	cost     int64
	distinct map[string]int64
	feasible bool
}

// Cost estimates the I/O cost and output cardinality of root. An infeasible
// plan is reported with Cost == Infeasible and a nil error; errors are kept
// for missing or malformed statistics.
func (e *Estimator) Cost(root *Node) (Estimate, error) {
	st := &costState{
		buffers:  buffer.NewManager(e.totalBuffers, NumJoins(root)),
		distinct: make(map[string]int64),
		feasible: true,
	}
	tuples, err := e.estimate(st, root)
	if err != nil {
		return Estimate{}, err
	}
	if !st.feasible {
		return Estimate{Cost: Infeasible, Tuples: tuples}, nil
	}
	return Estimate{Cost: st.cost, Tuples: tuples, Feasible: true}, nil
}

func (e *Estimator) estimate(st *costState, n *Node) (int64, error) {
	switch n.kind {
	case ScanNode:
		return e.scan(st, n)
	case SelectNode:
		return e.selection(st, n)
	case ProjectNode:
		return e.estimate(st, n.left)
	case JoinNode:
		return e.join(st, n)
	case DistinctNode:
		return e.distinctNode(st, n)
	case GroupByNode:
		return e.groupBy(st, n)
	}
	return 0, errors.AssertionFailedf("unknown plan node kind %s", n.kind)
}

func (e *Estimator) scan(st *costState, n *Node) (int64, error) {
	si, err := e.stats.GetStatInfo(n.table)
	if err != nil {
		return 0, errors.Wrapf(err, "statistics for %s", n.table)
	}
	for _, f := range n.schema.Fields() {
		d, ok := si.DistinctValues(f)
		if !ok {
			return 0, errors.Wrapf(metadata.ErrMalformedStats, "%s has no distinct count for %q", n.table, f)
		}
		st.distinct[f] = int64(d)
	}
	tuples := int64(si.RecordsOutput())
	pages, ok := e.pages(tuples, n.schema)
	if !ok {
		st.feasible = false
		return tuples, nil
	}
	st.cost = satAdd(st.cost, pages)
	return tuples, nil
}

func (e *Estimator) selection(st *costState, n *Node) (int64, error) {
	in, err := e.estimate(st, n.left)
	if err != nil || !st.feasible {
		return in, err
	}
	d := max(st.distinct[n.cond.LHS()], 1)
	var out int64
	switch n.cond.Op() {
	case query.Equal:
		out = ceilDiv(in, d)
	case query.NotEqual:
		out = int64(math.Ceil(float64(in) - float64(in)/float64(d)))
	default:
		out = int64(math.Ceil(0.5 * float64(in)))
	}
	if in > 0 {
		ratio := float64(out) / float64(in)
		for _, f := range n.schema.Fields() {
			st.distinct[f] = int64(math.Ceil(ratio * float64(st.distinct[f])))
		}
	}
	return out, nil
}

func (e *Estimator) join(st *costState, n *Node) (int64, error) {
	lt, err := e.estimate(st, n.left)
	if err != nil {
		return 0, err
	}
	rt, err := e.estimate(st, n.right)
	if err != nil || !st.feasible {
		return 0, err
	}
	lp, lok := e.pages(lt, n.left.schema)
	rp, rok := e.pages(rt, n.right.schema)
	if !lok || !rok {
		st.feasible = false
		return 0, nil
	}

	cond := n.cond
	if !n.left.schema.HasField(cond.LHS()) {
		cond = cond.Flip()
	}
	dl := max(st.distinct[cond.LHS()], 1)
	dr := max(st.distinct[cond.RHS()], 1)
	out := int64(math.Ceil(float64(lt) * float64(rt) / float64(max(dl, dr))))
	st.distinct[cond.LHS()] = min(dl, dr)
	st.distinct[cond.RHS()] = min(dl, dr)

	nb := int64(st.buffers.PerJoin())
	if nb < 3 {
		st.feasible = false
		return out, nil
	}
	equi := cond.Op() == query.Equal
	var c int64
	switch n.method {
	case NestedLoop:
		c = satAdd(lp, satMul(lp, rp))
	case BlockNestedLoop:
		c = satAdd(lp, satMul(ceilDiv(lp, nb-2), rp))
	case SortMerge:
		if !equi {
			st.feasible = false
			return out, nil
		}
		c = satAdd(satAdd(sortCost(lp, nb), sortCost(rp, nb)), satAdd(lp, rp))
	case HashJoin:
		if !equi {
			st.feasible = false
			return out, nil
		}
		c = satMul(3, satAdd(lp, rp))
	case IndexNestedLoop:
		if !equi {
			st.feasible = false
			return out, nil
		}
		lc, _ := record.PageCapacity(e.pageSize, n.left.schema.TupleSize())
		c = satAdd(lp, int64(float64(lp)*float64(lc)*2.2))
	default:
		return 0, errors.AssertionFailedf("unknown join method %s", n.method)
	}
	st.cost = satAdd(st.cost, c)
	return out, nil
}

func (e *Estimator) distinctNode(st *costState, n *Node) (int64, error) {
	in, err := e.estimate(st, n.left)
	if err != nil || !st.feasible {
		return in, err
	}
	e.chargeSort(st, in, n.left.schema)
	return in, nil
}

func (e *Estimator) groupBy(st *costState, n *Node) (int64, error) {
	in, err := e.estimate(st, n.left)
	if err != nil || !st.feasible {
		return in, err
	}
	if len(n.attrs) == 0 {
		// one pass over the input, no sort
		if _, ok := e.pages(in, n.left.schema); !ok {
			st.feasible = false
		}
		return 1, nil
	}
	e.chargeSort(st, in, n.left.schema)
	groups := int64(1)
	for _, a := range n.attrs {
		groups = satMul(groups, max(st.distinct[a], 1))
	}
	out := min(in, groups)
	if agg := n.agg; agg != nil {
		st.distinct[agg.Name()] = out
	}
	return out, nil
}

// chargeSort adds the external sort of tuples rows of schema at the total budget.
func (e *Estimator) chargeSort(st *costState, tuples int64, schema *record.Schema) {
	nb := int64(st.buffers.Total())
	pages, ok := e.pages(tuples, schema)
	if !ok || nb < 3 {
		st.feasible = false
		return
	}
	st.cost = satAdd(st.cost, sortCost(pages, nb))
}

// pages returns how many pages hold tuples rows of schema, and false when a
// single row does not fit in a page.
func (e *Estimator) pages(tuples int64, schema *record.Schema) (int64, bool) {
	capacity, err := record.PageCapacity(e.pageSize, schema.TupleSize())
	if err != nil {
		log.Printf("[COST] %v", err)
		return 0, false
	}
	return ceilDiv(tuples, int64(capacity)), true
}

// sortCost is 2p(1 + ceil(log_{nb-1}(ceil(p/nb)))).
func sortCost(p, nb int64) int64 {
	if p <= 0 {
		return 0
	}
	runs := float64(ceilDiv(p, nb))
	passes := int64(math.Ceil(math.Log(runs) / math.Log(float64(nb-1))))
	return satMul(satMul(2, p), 1+passes)
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return Infeasible
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

func satAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func satMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}
