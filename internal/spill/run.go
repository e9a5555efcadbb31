package spill

import (
	"log"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/file"
	"github.com/yashagw/craneqp/internal/record"
)

// Run is an ordered sequence of pages persisted in one file. The header
// fills the first dataStart blocks; page i lives in block dataStart+i.
type Run struct {
	space     *Space
	name      string
	codec     *record.Codec
	dataStart int
}

func (r *Run) Name() string { return r.name }

// Schema returns the schema of the tuples in the run.
func (r *Run) Schema() *record.Schema {
	return r.codec.Schema()
}

// PageCapacity returns the number of tuples per page.
func (r *Run) PageCapacity() int {
	return r.codec.Capacity()
}

// NumPages returns the number of data pages written so far.
func (r *Run) NumPages() (int, error) {
	n, err := r.space.files.GetTotalBlocks(r.name)
	if err != nil {
		return 0, err
	}
	return max(n-r.dataStart, 0), nil
}

// Reader returns a reader positioned at the first page.
func (r *Run) Reader() *Reader {
	return &Reader{run: r, page: file.NewPage(r.space.files.BlockSize())}
}

// Remove deletes the run file.
func (r *Run) Remove() error {
	if err := r.space.files.Remove(r.name); err != nil {
		return err
	}
	log.Printf("[SPILL] Removed run %s", r.name)
	return nil
}

// Writer appends pages to a run.
type Writer struct {
	run      *Run
	page     *file.Page
	numPages int
}

func newWriter(run *Run) *Writer {
	return &Writer{run: run, page: file.NewPage(run.space.files.BlockSize())}
}

// Append writes b as the next page of the run. Empty batches are skipped.
func (w *Writer) Append(b *record.Batch) error {
	if b.IsEmpty() {
		return nil
	}
	if err := w.run.codec.Encode(b, w.page); err != nil {
		return errors.Wrapf(err, "run %s", w.run.name)
	}
	files := w.run.space.files
	blk, err := files.Append(w.run.name)
	if err != nil {
		return err
	}
	if err := files.Write(blk, w.page); err != nil {
		return err
	}
	w.numPages++
	return nil
}

// NumPages returns the number of data pages in the run.
func (w *Writer) NumPages() int {
	return w.numPages
}

// Run returns the run being written.
func (w *Writer) Run() *Run {
	return w.run
}

// Reader reads a run page by page.
type Reader struct {
	run  *Run
	next int
	page *file.Page
}

// Next returns the next page, or nil at the end of the run.
func (rd *Reader) Next() (*record.Batch, error) {
	total, err := rd.run.NumPages()
	if err != nil {
		return nil, err
	}
	if rd.next >= total {
		return nil, nil
	}
	blk := file.NewBlockID(rd.run.name, rd.run.dataStart+rd.next)
	if err := rd.run.space.files.Read(blk, rd.page); err != nil {
		return nil, errors.Mark(err, ErrCorruptSpill)
	}
	b, err := rd.run.codec.Decode(rd.page)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "run %s page %d", rd.run.name, rd.next), ErrCorruptSpill)
	}
	rd.next++
	return b, nil
}

// Rewind moves the reader back to the first page.
func (rd *Reader) Rewind() {
	rd.next = 0
}
