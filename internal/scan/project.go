package scan

import (
	"github.com/yashagw/craneqp/internal/record"
)

// Project narrows each tuple to a list of attributes.
type Project struct {
	input    Operator
	schema   *record.Schema
	idx      []int
	pageSize int
	pageCap  int
	cursor   *tupleCursor
}

// NewProject keeps attrs of input, in the order given.
func NewProject(input Operator, attrs []string, pageSize int) (*Project, error) {
	schema, err := input.Schema().SubSchema(attrs)
	if err != nil {
		return nil, err
	}
	idx, err := input.Schema().IndicesOf(attrs)
	if err != nil {
		return nil, err
	}
	return &Project{input: input, schema: schema, idx: idx, pageSize: pageSize}, nil
}

func (p *Project) Open() error {
	var err error
	if p.pageCap, err = outputCapacity(p.pageSize, p.schema); err != nil {
		return err
	}
	if err := p.input.Open(); err != nil {
		return err
	}
	p.cursor = newTupleCursor(p.input)
	return nil
}

func (p *Project) Next() (*record.Batch, error) {
	if p.cursor == nil {
		return nil, nil
	}
	out := record.NewBatch(p.pageCap)
	for !out.IsFull() {
		t, err := p.cursor.next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		out.Add(t.Project(p.idx))
	}
	if out.IsEmpty() {
		return nil, nil
	}
	return out, nil
}

func (p *Project) Close() error {
	p.cursor = nil
	return p.input.Close()
}

func (p *Project) Schema() *record.Schema {
	return p.schema
}
