package scan

import (
	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/spill"
)

// Distinct removes duplicate tuples by sorting on every attribute and
// dropping each tuple equal to the one before it.
type Distinct struct {
	sort    *SortMerge
	cursor  *tupleCursor
	last    record.Tuple
	pageCap int
}

// NewDistinct removes duplicates from input using numBuff pages.
func NewDistinct(space *spill.Space, input Operator, numBuff int) *Distinct {
	return &Distinct{sort: NewSortMerge(space, input, nil, numBuff)}
}

func (d *Distinct) Open() error {
	if err := d.sort.Open(); err != nil {
		return err
	}
	d.pageCap = d.sort.pageCap
	d.cursor = newTupleCursor(d.sort)
	d.last = nil
	return nil
}

func (d *Distinct) Next() (*record.Batch, error) {
	if d.cursor == nil {
		return nil, nil
	}
	out := record.NewBatch(d.pageCap)
	for !out.IsFull() {
		t, err := d.cursor.next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		if d.last != nil && t.Equals(d.last) {
			continue
		}
		out.Add(t)
		d.last = t
	}
	if out.IsEmpty() {
		return nil, nil
	}
	return out, nil
}

func (d *Distinct) Close() error {
	d.cursor = nil
	return d.sort.Close()
}

func (d *Distinct) Schema() *record.Schema {
	return d.sort.Schema()
}
