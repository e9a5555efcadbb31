package record

import (
	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/file"
)

// Codec writes batches onto fixed-size pages and reads them back.
// Page format: [tuple count int32][tuple 0]...[tuple n-1], each tuple laid
// out by the schema's Layout.
type Codec struct {
	layout   *Layout
	capacity int
}

// NewCodec creates a codec for schema on pages of pageSize bytes of tuple data.
func NewCodec(schema *Schema, pageSize int) (*Codec, error) {
	layout := NewLayoutFromSchema(schema)
	capacity, err := PageCapacity(pageSize, layout.GetSlotSize())
	if err != nil {
		return nil, err
	}
	return &Codec{layout: layout, capacity: capacity}, nil
}

// Capacity returns the number of tuples per page.
func (c *Codec) Capacity() int {
	return c.capacity
}

// Schema returns the schema the codec encodes.
func (c *Codec) Schema() *Schema {
	return c.layout.GetSchema()
}

// BlockSize returns the size of an encoded page in bytes.
func (c *Codec) BlockSize() int {
	return file.IntSize + c.capacity*c.layout.GetSlotSize()
}

// Encode writes b into p. p must hold at least BlockSize bytes.
func (c *Codec) Encode(b *Batch, p *file.Page) error {
	if b.Size() > c.capacity {
		return errors.AssertionFailedf("batch of %d tuples exceeds page capacity %d", b.Size(), c.capacity)
	}
	p.Clear()
	p.SetInt(0, b.Size())
	schema := c.layout.GetSchema()
	slotSize := c.layout.GetSlotSize()
	for slot, t := range b.Tuples() {
		if t.Size() != schema.NumFields() {
			return errors.AssertionFailedf("tuple has %d fields, schema has %d", t.Size(), schema.NumFields())
		}
		base := file.IntSize + slot*slotSize
		for i, v := range t {
			info := schema.fieldInfo[schema.fields[i]]
			offset := base + c.layout.OffsetAt(i)
			switch info.fieldType {
			case IntField:
				p.SetInt(offset, v.AsInt())
			case RealField:
				p.SetFloat(offset, v.AsReal())
			case StringField:
				s := v.AsString()
				if len(s) > info.fieldLength {
					return errors.Newf("value %q longer than %d bytes for %s", s, info.fieldLength, schema.fields[i])
				}
				p.SetString(offset, s)
			}
		}
	}
	return nil
}

// Decode reads a batch from p.
func (c *Codec) Decode(p *file.Page) (*Batch, error) {
	n := p.GetInt(0)
	if n < 0 || n > c.capacity {
		return nil, errors.Newf("page holds %d tuples, capacity is %d", n, c.capacity)
	}
	schema := c.layout.GetSchema()
	slotSize := c.layout.GetSlotSize()
	b := NewBatch(c.capacity)
	for slot := 0; slot < n; slot++ {
		base := file.IntSize + slot*slotSize
		t := make(Tuple, schema.NumFields())
		for i, name := range schema.fields {
			offset := base + c.layout.OffsetAt(i)
			switch schema.fieldInfo[name].fieldType {
			case IntField:
				t[i] = NewIntConstant(p.GetInt(offset))
			case RealField:
				t[i] = NewRealConstant(p.GetFloat(offset))
			case StringField:
				t[i] = NewStringConstant(p.GetString(offset))
			}
		}
		b.Add(t)
	}
	return b, nil
}
