package record

import "slices"

// Block is a multi-page working set: a bounded sequence of batches.
type Block struct {
	pages    []*Batch
	numPages int
	pageCap  int
	tuples   []Tuple
}

// NewBlock creates a block that holds up to numPages pages of pageCap tuples.
func NewBlock(numPages, pageCap int) *Block {
	return &Block{
		pages:    make([]*Batch, 0, numPages),
		numPages: numPages,
		pageCap:  pageCap,
	}
}

// AddBatch appends a page and reports whether there was room for it.
func (b *Block) AddBatch(batch *Batch) bool {
	if b.IsFull() {
		return false
	}
	b.pages = append(b.pages, batch)
	b.tuples = append(b.tuples, batch.Tuples()...)
	return true
}

func (b *Block) IsFull() bool      { return len(b.pages) >= b.numPages }
func (b *Block) IsEmpty() bool     { return len(b.tuples) == 0 }
func (b *Block) NumPages() int     { return len(b.pages) }
func (b *Block) MaxPages() int     { return b.numPages }
func (b *Block) NumTuples() int    { return len(b.tuples) }
func (b *Block) PageCapacity() int { return b.pageCap }

// Tuples returns the flattened view over every page. The slice must not be modified.
func (b *Block) Tuples() []Tuple {
	return b.tuples
}

// TupleAt returns the i-th tuple of the flattened view.
func (b *Block) TupleAt(i int) Tuple {
	return b.tuples[i]
}

// Sort orders the flattened tuples by keys. Equal tuples keep their arrival order.
func (b *Block) Sort(keys []int) {
	slices.SortStableFunc(b.tuples, func(x, y Tuple) int {
		return CompareTuples(x, y, keys)
	})
}

// Pages cuts the flattened tuples back into full pages; only the last may be partial.
func (b *Block) Pages() []*Batch {
	out := make([]*Batch, 0, len(b.pages))
	for start := 0; start < len(b.tuples); start += b.pageCap {
		end := min(start+b.pageCap, len(b.tuples))
		page := NewBatch(b.pageCap)
		for _, t := range b.tuples[start:end] {
			page.Add(t)
		}
		out = append(out, page)
	}
	return out
}

// Clear empties the block for reuse.
func (b *Block) Clear() {
	b.pages = b.pages[:0]
	b.tuples = nil
}
