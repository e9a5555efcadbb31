package query

import (
	"fmt"

	"github.com/yashagw/craneqp/internal/record"
)

// Operator is a comparison operator.
type Operator int

const (
	Equal Operator = iota
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
)

func (op Operator) String() string {
	switch op {
	case Equal:
		return "="
	case NotEqual:
		return "<>"
	case Less:
		return "<"
	case LessEqual:
		return "<="
	case Greater:
		return ">"
	case GreaterEqual:
		return ">="
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// Mirror returns the operator that holds after swapping both sides.
func (op Operator) Mirror() Operator {
	switch op {
	case Less:
		return Greater
	case LessEqual:
		return GreaterEqual
	case Greater:
		return Less
	case GreaterEqual:
		return LessEqual
	}
	return op
}

// Holds reports whether the operator accepts a comparison result
// (-1, 0 or 1, as returned by Constant.CompareTo).
func (op Operator) Holds(cmp int) bool {
	switch op {
	case Equal:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case Less:
		return cmp < 0
	case LessEqual:
		return cmp <= 0
	case Greater:
		return cmp > 0
	case GreaterEqual:
		return cmp >= 0
	}
	return false
}

// Condition is a binary comparison between an attribute and either another
// attribute (a join condition) or a constant (a select condition).
// Conditions are values; Flip returns a new one.
type Condition struct {
	lhs      string
	op       Operator
	rhs      string
	constant record.Constant
	isJoin   bool
}

// NewJoinCondition creates "lhs op rhs" over two attributes.
func NewJoinCondition(lhs string, op Operator, rhs string) Condition {
	return Condition{lhs: lhs, op: op, rhs: rhs, isJoin: true}
}

// NewSelectCondition creates "attr op value".
func NewSelectCondition(attr string, op Operator, value record.Constant) Condition {
	return Condition{lhs: attr, op: op, constant: value}
}

func (c Condition) LHS() string               { return c.lhs }
func (c Condition) RHS() string               { return c.rhs }
func (c Condition) Op() Operator              { return c.op }
func (c Condition) Constant() record.Constant { return c.constant }
func (c Condition) IsJoin() bool              { return c.isJoin }

// Flip swaps the two sides of a join condition and mirrors the operator.
// Select conditions are returned unchanged.
func (c Condition) Flip() Condition {
	if !c.isJoin {
		return c
	}
	return Condition{lhs: c.rhs, op: c.op.Mirror(), rhs: c.lhs, isJoin: true}
}

// Evaluate applies the operator to two values.
func (c Condition) Evaluate(left, right record.Constant) bool {
	return c.op.Holds(left.CompareTo(right))
}

// AppliesTo reports whether every attribute the condition names is in the schema.
func (c Condition) AppliesTo(schema *record.Schema) bool {
	if !schema.HasField(c.lhs) {
		return false
	}
	return !c.isJoin || schema.HasField(c.rhs)
}

// Attributes returns the attributes the condition names.
func (c Condition) Attributes() []string {
	if c.isJoin {
		return []string{c.lhs, c.rhs}
	}
	return []string{c.lhs}
}

func (c Condition) String() string {
	if c.isJoin {
		return fmt.Sprintf("%s %s %s", c.lhs, c.op, c.rhs)
	}
	if c.constant.IsString() {
		return fmt.Sprintf("%s %s '%s'", c.lhs, c.op, c.constant)
	}
	return fmt.Sprintf("%s %s %s", c.lhs, c.op, c.constant)
}
