package scan

import (
	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/query"
	"github.com/yashagw/craneqp/internal/record"
)

// Select keeps the tuples that satisfy one condition.
type Select struct {
	input    Operator
	cond     query.Condition
	pageSize int
	pageCap  int
	lhs, rhs int
	cursor   *tupleCursor
}

// NewSelect filters input by cond.
func NewSelect(input Operator, cond query.Condition, pageSize int) *Select {
	return &Select{input: input, cond: cond, pageSize: pageSize, rhs: -1}
}

func (s *Select) Open() error {
	schema := s.input.Schema()
	if !s.cond.AppliesTo(schema) {
		return errors.Newf("condition %s does not apply to %s", s.cond, schema)
	}
	s.lhs = schema.IndexOf(s.cond.LHS())
	if s.cond.IsJoin() {
		s.rhs = schema.IndexOf(s.cond.RHS())
	}
	var err error
	if s.pageCap, err = outputCapacity(s.pageSize, schema); err != nil {
		return err
	}
	if err := s.input.Open(); err != nil {
		return err
	}
	s.cursor = newTupleCursor(s.input)
	return nil
}

func (s *Select) Next() (*record.Batch, error) {
	if s.cursor == nil {
		return nil, nil
	}
	out := record.NewBatch(s.pageCap)
	for !out.IsFull() {
		t, err := s.cursor.next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		if s.satisfies(t) {
			out.Add(t)
		}
	}
	if out.IsEmpty() {
		return nil, nil
	}
	return out, nil
}

func (s *Select) satisfies(t record.Tuple) bool {
	if s.rhs >= 0 {
		return s.cond.Evaluate(t[s.lhs], t[s.rhs])
	}
	return s.cond.Evaluate(t[s.lhs], s.cond.Constant())
}

func (s *Select) Close() error {
	s.cursor = nil
	return s.input.Close()
}

func (s *Select) Schema() *record.Schema {
	return s.input.Schema()
}
