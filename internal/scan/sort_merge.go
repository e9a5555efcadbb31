package scan

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"

	"github.com/yashagw/craneqp/internal/buffer"
	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/spill"
)

// MinSortBuffers is the smallest budget a sort can run with: one output page
// and two input pages.
const MinSortBuffers = 3

// frontierDegree is the btree degree of the merge frontier.
const frontierDegree = 8

type sortState int

const (
	sortUnopened sortState = iota
	sortStreaming
	sortDone
)

// SortMerge sorts its input with bounded memory. Open generates sorted runs
// of (budget-1) pages each, then merges groups of up to (budget-1) runs into
// one until a single run is left. Next streams that run.
type SortMerge struct {
	input     Operator
	space     *spill.Space
	keys      []string
	keyIdx    []int
	numBuff   int
	pageCap   int
	pool      *buffer.Pool
	state     sortState
	inputOpen bool

	runs        []*spill.Run
	result      *spill.Run
	reader      *spill.Reader
	numRuns     int
	mergePasses int
}

// NewSortMerge sorts input by keys using numBuff pages. An empty key list
// sorts by every attribute.
func NewSortMerge(space *spill.Space, input Operator, keys []string, numBuff int) *SortMerge {
	return &SortMerge{
		input:   input,
		space:   space,
		keys:    keys,
		numBuff: numBuff,
		pool:    buffer.NewPool(numBuff),
	}
}

func (s *SortMerge) Open() error {
	if err := record.RequireBuffers("external sort", s.numBuff, MinSortBuffers); err != nil {
		return err
	}
	schema := s.input.Schema()
	if len(s.keys) == 0 {
		s.keyIdx = record.AllKeys(schema.NumFields())
	} else {
		idx, err := schema.IndicesOf(s.keys)
		if err != nil {
			return errors.Wrap(err, "sort key")
		}
		s.keyIdx = idx
	}
	var err error
	if s.pageCap, err = outputCapacity(s.space.PageSize(), schema); err != nil {
		return err
	}

	if err := s.input.Open(); err != nil {
		return err
	}
	s.inputOpen = true
	if err := s.generateRuns(); err != nil {
		return err
	}
	s.inputOpen = false
	if err := s.input.Close(); err != nil {
		return err
	}
	if err := s.mergeRuns(); err != nil {
		return err
	}

	if len(s.runs) == 0 {
		s.state = sortDone
		return nil
	}
	s.result = s.runs[0]
	s.runs = nil
	s.reader = s.result.Reader()
	if err := s.pool.Reserve(1); err != nil {
		return err
	}
	s.state = sortStreaming
	return nil
}

// generateRuns fills blocks of (numBuff-1) pages from the input, sorts each
// block and writes it out as one run.
func (s *SortMerge) generateRuns() error {
	blockPages := s.numBuff - 1
	if err := s.pool.Reserve(blockPages); err != nil {
		return err
	}
	defer s.pool.Release(blockPages)

	block := record.NewBlock(blockPages, s.pageCap)
	for {
		page, err := s.input.Next()
		if err != nil {
			return err
		}
		if page != nil {
			block.AddBatch(page)
		}
		if (page == nil || block.IsFull()) && !block.IsEmpty() {
			if err := s.writeRun(block); err != nil {
				return err
			}
			block.Clear()
		}
		if page == nil {
			break
		}
	}
	s.numRuns = len(s.runs)
	log.Printf("[SORT] Generated %d runs of up to %d pages", s.numRuns, blockPages)
	return nil
}

func (s *SortMerge) writeRun(block *record.Block) error {
	block.Sort(s.keyIdx)
	w, err := s.space.Create("sort", s.input.Schema())
	if err != nil {
		return err
	}
	s.runs = append(s.runs, w.Run())
	for _, page := range block.Pages() {
		if err := w.Append(page); err != nil {
			return err
		}
	}
	return nil
}

// mergeRuns merges groups of up to (numBuff-1) runs until one run remains.
func (s *SortMerge) mergeRuns() error {
	fanIn := s.numBuff - 1
	for len(s.runs) > 1 {
		s.mergePasses++
		var next []*spill.Run
		for start := 0; start < len(s.runs); start += fanIn {
			group := s.runs[start:min(start+fanIn, len(s.runs))]
			if len(group) == 1 {
				next = append(next, group[0])
				continue
			}
			merged, err := s.mergeGroup(group)
			if err != nil {
				return err
			}
			for _, r := range group {
				if err := r.Remove(); err != nil {
					return err
				}
			}
			next = append(next, merged)
		}
		s.runs = next
		log.Printf("[SORT] Merge pass %d left %d runs", s.mergePasses, len(s.runs))
	}
	return nil
}

// mergeItem is one run's current head in the merge frontier. Equal keys are
// ordered by run index so that the merge is stable.
type mergeItem struct {
	tuple record.Tuple
	run   int
	keys  []int
}

func (m mergeItem) Less(than btree.Item) bool {
	o := than.(mergeItem)
	if c := record.CompareTuples(m.tuple, o.tuple, m.keys); c != 0 {
		return c < 0
	}
	return m.run < o.run
}

// mergeGroup merges group into one new run using one page per input run and
// one output page.
func (s *SortMerge) mergeGroup(group []*spill.Run) (*spill.Run, error) {
	pages := len(group) + 1
	if err := s.pool.Reserve(pages); err != nil {
		return nil, err
	}
	defer s.pool.Release(pages)

	w, err := s.space.Create("merge", s.input.Schema())
	if err != nil {
		return nil, err
	}
	cursors := make([]*tupleCursor, len(group))
	frontier := btree.New(frontierDegree)
	for i, run := range group {
		cursors[i] = newTupleCursor(run.Reader())
		t, err := cursors[i].next()
		if err != nil {
			return nil, err
		}
		if t != nil {
			frontier.ReplaceOrInsert(mergeItem{tuple: t, run: i, keys: s.keyIdx})
		}
	}

	out := record.NewBatch(s.pageCap)
	for frontier.Len() > 0 {
		head := frontier.DeleteMin().(mergeItem)
		out.Add(head.tuple)
		if out.IsFull() {
			if err := w.Append(out); err != nil {
				return nil, err
			}
			out = record.NewBatch(s.pageCap)
		}
		t, err := cursors[head.run].next()
		if err != nil {
			return nil, err
		}
		if t != nil {
			frontier.ReplaceOrInsert(mergeItem{tuple: t, run: head.run, keys: s.keyIdx})
		}
	}
	if err := w.Append(out); err != nil {
		return nil, err
	}
	return w.Run(), nil
}

// Next returns the next page of the sorted output.
func (s *SortMerge) Next() (*record.Batch, error) {
	if s.state != sortStreaming {
		return nil, nil
	}
	page, err := s.reader.Next()
	if err != nil {
		return nil, err
	}
	if page == nil {
		s.state = sortDone
		s.pool.Release(1)
	}
	return page, nil
}

// Close removes the sorted run and any intermediate run left by a failed Open.
func (s *SortMerge) Close() error {
	var result error
	if s.inputOpen {
		s.inputOpen = false
		result = s.input.Close()
	}
	for _, r := range s.runs {
		result = errors.CombineErrors(result, r.Remove())
	}
	s.runs = nil
	if s.result != nil {
		result = errors.CombineErrors(result, s.result.Remove())
		s.result = nil
	}
	s.reader = nil
	s.state = sortDone
	s.pool.ReleaseAll()
	return result
}

func (s *SortMerge) Schema() *record.Schema {
	return s.input.Schema()
}

// NumRuns returns the number of runs produced by run generation.
func (s *SortMerge) NumRuns() int {
	return s.numRuns
}

// MergePasses returns the number of merge passes Open performed.
func (s *SortMerge) MergePasses() int {
	return s.mergePasses
}

// PeakPages returns the most pages the sort held in memory at once.
func (s *SortMerge) PeakPages() int {
	return s.pool.Peak()
}
