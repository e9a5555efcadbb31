package record

// Layout gives the fixed byte offset of every attribute inside a tuple.
// Tuples are packed back to back on a page with no per-slot flag.
type Layout struct {
	schema   *Schema
	offsets  []int
	slotSize int
}

// NewLayoutFromSchema creates a new layout from a schema
func NewLayoutFromSchema(schema *Schema) *Layout {
	offsets := make([]int, len(schema.fields))
	pos := 0
	for i, field := range schema.fields {
		offsets[i] = pos
		pos += schema.fieldInfo[field].Width()
	}

	return &Layout{
		schema:   schema,
		offsets:  offsets,
		slotSize: pos,
	}
}

// GetOffset returns the offset of the named field, or -1 when absent.
func (l *Layout) GetOffset(fieldName string) int {
	i := l.schema.IndexOf(fieldName)
	if i < 0 {
		return -1
	}
	return l.offsets[i]
}

// OffsetAt returns the offset of the i-th field.
func (l *Layout) OffsetAt(i int) int {
	return l.offsets[i]
}

func (l *Layout) GetSlotSize() int {
	return l.slotSize
}

// GetSchema returns the schema associated with this layout
func (l *Layout) GetSchema() *Schema {
	return l.schema
}
