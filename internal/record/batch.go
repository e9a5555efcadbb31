package record

// Batch is one page worth of tuples. It is bounded by its capacity and owned by
// whichever operator currently holds it.
type Batch struct {
	tuples   []Tuple
	capacity int
}

// NewBatch creates an empty batch that holds at most capacity tuples.
func NewBatch(capacity int) *Batch {
	return &Batch{
		tuples:   make([]Tuple, 0, capacity),
		capacity: capacity,
	}
}

// Add appends t and reports whether there was room for it.
func (b *Batch) Add(t Tuple) bool {
	if b.IsFull() {
		return false
	}
	b.tuples = append(b.tuples, t)
	return true
}

// ElementAt returns the i-th tuple.
func (b *Batch) ElementAt(i int) Tuple {
	return b.tuples[i]
}

// RemoveFirst removes and returns the first tuple. It returns nil on an empty batch.
func (b *Batch) RemoveFirst() Tuple {
	if len(b.tuples) == 0 {
		return nil
	}
	t := b.tuples[0]
	b.tuples[0] = nil
	b.tuples = b.tuples[1:]
	return t
}

func (b *Batch) IsFull() bool  { return len(b.tuples) >= b.capacity }
func (b *Batch) IsEmpty() bool { return len(b.tuples) == 0 }
func (b *Batch) Size() int     { return len(b.tuples) }
func (b *Batch) Capacity() int { return b.capacity }

// Tuples returns the tuples held by the batch. The slice must not be modified.
func (b *Batch) Tuples() []Tuple {
	return b.tuples
}
