package query

import (
	"fmt"

	"github.com/yashagw/craneqp/internal/record"
)

// AggregateFunc is one of the supported aggregate functions.
type AggregateFunc int

const (
	Count AggregateFunc = iota
	Sum
	Avg
	Min
	Max
)

func (f AggregateFunc) String() string {
	switch f {
	case Count:
		return "COUNT"
	case Sum:
		return "SUM"
	case Avg:
		return "AVG"
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	}
	return fmt.Sprintf("AggregateFunc(%d)", int(f))
}

// Aggregation is an aggregate function applied to one attribute.
type Aggregation struct {
	Func      AggregateFunc
	Attribute string
}

// NewAggregation creates fn(attr).
func NewAggregation(fn AggregateFunc, attr string) *Aggregation {
	return &Aggregation{Func: fn, Attribute: attr}
}

// Name returns the output attribute name, e.g. "SUM(Emp.salary)".
func (a *Aggregation) Name() string {
	return fmt.Sprintf("%s(%s)", a.Func, a.Attribute)
}

// ResultType returns the type of the aggregate value. AVG is always real;
// SUM, MIN and MAX keep the input type; COUNT is an integer.
func (a *Aggregation) ResultType(input record.FieldType) record.FieldType {
	switch a.Func {
	case Avg:
		return record.RealField
	case Count:
		return record.IntField
	}
	if input == record.RealField {
		return record.RealField
	}
	return record.IntField
}

func (a *Aggregation) String() string {
	return a.Name()
}
