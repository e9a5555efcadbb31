package scan

import (
	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/query"
	"github.com/yashagw/craneqp/internal/record"
)

// orientCondition returns cond with its left attribute in left and its
// right attribute in right, flipping it when needed.
func orientCondition(cond query.Condition, left, right *record.Schema) (query.Condition, error) {
	if !cond.IsJoin() {
		return cond, errors.Newf("join needs an attribute comparison, got %s", cond)
	}
	if left.HasField(cond.LHS()) && right.HasField(cond.RHS()) {
		return cond, nil
	}
	if left.HasField(cond.RHS()) && right.HasField(cond.LHS()) {
		return cond.Flip(), nil
	}
	return cond, errors.Newf("condition %s does not link %s and %s", cond, left, right)
}

// joinShape holds what every join derives from its inputs.
type joinShape struct {
	schema   *record.Schema
	cond     query.Condition
	leftIdx  int
	rightIdx int
}

func newJoinShape(left, right Operator, cond query.Condition) (joinShape, error) {
	schema, err := left.Schema().Join(right.Schema())
	if err != nil {
		return joinShape{}, err
	}
	cond, err = orientCondition(cond, left.Schema(), right.Schema())
	if err != nil {
		return joinShape{}, err
	}
	return joinShape{
		schema:   schema,
		cond:     cond,
		leftIdx:  left.Schema().IndexOf(cond.LHS()),
		rightIdx: right.Schema().IndexOf(cond.RHS()),
	}, nil
}

func (js joinShape) matches(l, r record.Tuple) bool {
	return js.cond.Evaluate(l[js.leftIdx], r[js.rightIdx])
}
