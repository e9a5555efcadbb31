package scan

import (
	"log"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/query"
	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/spill"
)

// accumulator holds the running aggregate of one group.
type accumulator struct {
	count   int
	sumInt  int
	sumReal float64
	min     record.Constant
	max     record.Constant
	seen    bool
}

func (a *accumulator) add(v record.Constant) {
	a.count++
	a.sumInt += v.AsInt()
	a.sumReal += v.AsReal()
	if !a.seen || v.CompareTo(a.min) < 0 {
		a.min = v
	}
	if !a.seen || v.CompareTo(a.max) > 0 {
		a.max = v
	}
	a.seen = true
}

func (a *accumulator) result(agg *query.Aggregation, resultType record.FieldType) record.Constant {
	zero := record.NewIntConstant(0)
	if resultType == record.RealField {
		zero = record.NewRealConstant(0)
	}
	switch agg.Func {
	case query.Count:
		return record.NewIntConstant(a.count)
	case query.Sum:
		if resultType == record.RealField {
			return record.NewRealConstant(a.sumReal)
		}
		return record.NewIntConstant(a.sumInt)
	case query.Avg:
		if a.count == 0 {
			return zero
		}
		return record.NewRealConstant(a.sumReal / float64(a.count))
	case query.Min:
		if !a.seen {
			return zero
		}
		return a.min
	default:
		if !a.seen {
			return zero
		}
		return a.max
	}
}

type groupState int

const (
	groupReading groupState = iota
	groupDone
)

// GroupBy reduces a stream sorted on the grouping attributes, emitting one
// tuple per group: the grouping key followed by the aggregate value. Without
// an aggregate it emits each distinct key. Without grouping attributes the
// whole input is one group and no sort is needed.
type GroupBy struct {
	input      Operator
	space      *spill.Space
	groupAttrs []string
	agg        *query.Aggregation
	numBuff    int
	schema     *record.Schema
	resultType record.FieldType

	source   Operator
	cursor   *tupleCursor
	groupIdx []int
	aggIdx   int
	pageCap  int

	state    groupState
	hasGroup bool
	curKey   record.Tuple
	acc      accumulator
}

// NewGroupBy groups input on groupAttrs and computes agg, which may be nil.
func NewGroupBy(space *spill.Space, input Operator, groupAttrs []string, agg *query.Aggregation, numBuff int) (*GroupBy, error) {
	if len(groupAttrs) == 0 && agg == nil {
		return nil, errors.New("group by needs grouping attributes or an aggregate")
	}
	in := input.Schema()
	schema, err := in.SubSchema(groupAttrs)
	if err != nil {
		return nil, err
	}
	g := &GroupBy{
		input:      input,
		space:      space,
		groupAttrs: groupAttrs,
		agg:        agg,
		numBuff:    numBuff,
		aggIdx:     -1,
	}
	if agg != nil {
		info, ok := in.GetFieldInfo(agg.Attribute)
		if !ok {
			return nil, errors.Newf("unknown aggregate attribute %q", agg.Attribute)
		}
		if agg.Func != query.Count && !info.Type().IsNumeric() {
			return nil, errors.Wrapf(ErrNonNumericAggregate, "%s over %s attribute", agg, info.Type())
		}
		g.resultType = agg.ResultType(info.Type())
		if g.resultType == record.RealField {
			schema.AddRealField(agg.Name())
		} else {
			schema.AddIntField(agg.Name())
		}
	}
	g.schema = schema
	return g, nil
}

func (g *GroupBy) Open() error {
	in := g.input.Schema()
	var err error
	if g.groupIdx, err = in.IndicesOf(g.groupAttrs); err != nil {
		return err
	}
	if g.agg != nil {
		g.aggIdx = in.IndexOf(g.agg.Attribute)
	}
	if g.pageCap, err = outputCapacity(g.space.PageSize(), g.schema); err != nil {
		return err
	}

	if len(g.groupAttrs) == 0 {
		g.source = g.input
	} else {
		g.source = NewSortMerge(g.space, g.input, g.groupAttrs, g.numBuff)
	}
	if err := g.source.Open(); err != nil {
		return err
	}
	g.cursor = newTupleCursor(g.source)
	g.acc = accumulator{}
	g.curKey = nil
	// a single global group exists even for empty input
	g.hasGroup = len(g.groupAttrs) == 0
	g.state = groupReading
	return nil
}

func (g *GroupBy) Next() (*record.Batch, error) {
	if g.cursor == nil || g.state == groupDone {
		return nil, nil
	}
	out := record.NewBatch(g.pageCap)
	for !out.IsFull() {
		t, err := g.cursor.next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			if g.hasGroup {
				out.Add(g.emit())
				g.hasGroup = false
			}
			g.state = groupDone
			log.Printf("[GROUPBY] Finished grouping on %v", g.groupAttrs)
			break
		}

		key := t.Project(g.groupIdx)
		if g.hasGroup && len(g.groupIdx) > 0 && !key.Equals(g.curKey) {
			out.Add(g.emit())
			g.hasGroup = false
		}
		if !g.hasGroup {
			g.curKey = key
			g.acc = accumulator{}
			g.hasGroup = true
		}
		if g.aggIdx >= 0 {
			v := t[g.aggIdx]
			if g.agg.Func != query.Count && !v.IsNumeric() {
				return nil, errors.Wrapf(ErrNonNumericAggregate, "%s got %q", g.agg, v)
			}
			g.acc.add(v)
		}
	}
	if out.IsEmpty() {
		return nil, nil
	}
	return out, nil
}

func (g *GroupBy) emit() record.Tuple {
	if g.agg == nil {
		return g.curKey
	}
	key := g.curKey
	if key == nil {
		key = record.Tuple{}
	}
	return key.AppendValue(g.acc.result(g.agg, g.resultType))
}

func (g *GroupBy) Close() error {
	g.cursor = nil
	g.state = groupDone
	if g.source == nil {
		return g.input.Close()
	}
	return g.source.Close()
}

func (g *GroupBy) Schema() *record.Schema {
	return g.schema
}
