package scan

import (
	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/record"
)

// ErrNonNumericAggregate is returned when SUM, AVG, MIN or MAX is applied to a
// non-numeric attribute.
var ErrNonNumericAggregate = errors.New("aggregate over non-numeric attribute")

// Operator is the pull protocol every physical operator implements.
// Pages move between operators whole: Next hands over a batch that the
// caller owns from then on.
type Operator interface {
	// Open prepares the operator. Operators that sort or materialize their
	// input do that work here.
	Open() error
	// Next returns the next page, or (nil, nil) at end of stream.
	Next() (*record.Batch, error)
	// Close releases the operator's resources, including its spill files.
	Close() error
	// Schema describes the tuples the operator produces. It is valid before Open.
	Schema() *record.Schema
}

var (
	_ Operator = (*TableScan)(nil)
	_ Operator = (*Select)(nil)
	_ Operator = (*Project)(nil)
	_ Operator = (*SortMerge)(nil)
	_ Operator = (*Distinct)(nil)
	_ Operator = (*GroupBy)(nil)
	_ Operator = (*BlockNestedJoin)(nil)
	_ Operator = (*SortMergeJoin)(nil)
)

// pageSource is anything that yields pages: an operator or a run reader.
type pageSource interface {
	Next() (*record.Batch, error)
}

// tupleCursor walks a page source one tuple at a time, holding one page.
type tupleCursor struct {
	src  pageSource
	page *record.Batch
	pos  int
	done bool
}

func newTupleCursor(src pageSource) *tupleCursor {
	return &tupleCursor{src: src}
}

// next returns the next tuple, or nil once the source is exhausted.
func (c *tupleCursor) next() (record.Tuple, error) {
	for c.page == nil || c.pos >= c.page.Size() {
		if c.done {
			return nil, nil
		}
		page, err := c.src.Next()
		if err != nil {
			return nil, err
		}
		if page == nil {
			c.done = true
			c.page = nil
			return nil, nil
		}
		c.page, c.pos = page, 0
	}
	t := c.page.ElementAt(c.pos)
	c.pos++
	return t, nil
}

// outputCapacity returns the page capacity for tuples of schema.
func outputCapacity(pageSize int, schema *record.Schema) (int, error) {
	return record.PageCapacity(pageSize, schema.TupleSize())
}

// closeAll closes every operator and combines the errors.
func closeAll(ops ...Operator) error {
	var result error
	for _, op := range ops {
		if op == nil {
			continue
		}
		if err := op.Close(); err != nil {
			result = errors.CombineErrors(result, err)
		}
	}
	return result
}
