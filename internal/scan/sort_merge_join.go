package scan

import (
	"log"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/buffer"
	"github.com/yashagw/craneqp/internal/query"
	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/spill"
)

type smjState int

const (
	smjCompare smjState = iota
	smjReplay
	smjDone
)

// SortMergeJoin sorts both inputs on the join attribute and merges them.
//
// The partition holds every right tuple whose key equals the current
// reference key. A left tuple equal to that key is joined with the whole
// partition (pcurs walks it, and survives a full output page); a smaller
// left tuple is skipped; a larger one discards the partition and captures
// the next equal-key run from the right side. Once the right side is
// exhausted the left side keeps matching the last partition until it
// produces a larger key.
type SortMergeJoin struct {
	left, right Operator
	space       *spill.Space
	shape       joinShape
	leftKeys    []int
	rightKeys   []int
	numBuff     int
	pool        *buffer.Pool
	pageCap     int

	leftSort, rightSort *SortMerge
	lcur, rcur          *tupleCursor
	leftTuple           record.Tuple
	lookahead           record.Tuple
	// partition lives outside the pool: one key run may span any number of
	// pages, and the child sorts account for their own pages.
	partition           []record.Tuple
	pcurs               int
	rightDone           bool
	state               smjState
}

// NewSortMergeJoin joins left and right on an equality condition with numBuff pages.
func NewSortMergeJoin(space *spill.Space, left, right Operator, cond query.Condition, numBuff int) (*SortMergeJoin, error) {
	if cond.Op() != query.Equal {
		return nil, errors.Newf("sort-merge join needs an equality condition, got %s", cond)
	}
	shape, err := newJoinShape(left, right, cond)
	if err != nil {
		return nil, err
	}
	return &SortMergeJoin{
		left:      left,
		right:     right,
		space:     space,
		shape:     shape,
		leftKeys:  []int{shape.leftIdx},
		rightKeys: []int{shape.rightIdx},
		numBuff:   numBuff,
		pool:      buffer.NewPool(numBuff),
	}, nil
}

func (j *SortMergeJoin) Open() error {
	if err := record.RequireBuffers("sort-merge join", j.numBuff, MinSortBuffers); err != nil {
		return err
	}
	var err error
	if j.pageCap, err = outputCapacity(j.space.PageSize(), j.shape.schema); err != nil {
		return err
	}

	j.leftSort = NewSortMerge(j.space, j.left, []string{j.shape.cond.LHS()}, j.numBuff)
	if err := j.leftSort.Open(); err != nil {
		return err
	}
	j.rightSort = NewSortMerge(j.space, j.right, []string{j.shape.cond.RHS()}, j.numBuff)
	if err := j.rightSort.Open(); err != nil {
		return err
	}
	log.Printf("[SMJ] Sorted inputs: left %d runs, right %d runs",
		j.leftSort.NumRuns(), j.rightSort.NumRuns())

	// left page, right page, output page
	if err := j.pool.Reserve(3); err != nil {
		return err
	}
	j.lcur = newTupleCursor(j.leftSort)
	j.rcur = newTupleCursor(j.rightSort)
	j.partition = nil
	j.pcurs = 0
	j.rightDone = false

	if j.leftTuple, err = j.lcur.next(); err != nil {
		return err
	}
	if j.lookahead, err = j.rcur.next(); err != nil {
		return err
	}
	if j.leftTuple == nil || j.lookahead == nil {
		j.state = smjDone
		return nil
	}
	if err := j.capturePartition(); err != nil {
		return err
	}
	j.state = smjCompare
	return nil
}

// capturePartition collects the right tuples equal to the lookahead.
func (j *SortMergeJoin) capturePartition() error {
	j.partition = []record.Tuple{j.lookahead}
	for {
		t, err := j.rcur.next()
		if err != nil {
			return err
		}
		if t == nil {
			j.lookahead = nil
			j.rightDone = true
			return nil
		}
		if record.CompareTuples(t, j.partition[0], j.rightKeys) != 0 {
			j.lookahead = t
			return nil
		}
		j.partition = append(j.partition, t)
	}
}

// advanceRight discards the partition and captures the first right key run
// not smaller than the current left tuple. It reports false when the right
// side has no such run.
func (j *SortMergeJoin) advanceRight() (bool, error) {
	j.partition = nil
	for j.lookahead != nil && record.CompareKeys(j.leftTuple, j.leftKeys, j.lookahead, j.rightKeys) > 0 {
		t, err := j.rcur.next()
		if err != nil {
			return false, err
		}
		j.lookahead = t
	}
	if j.lookahead == nil {
		j.rightDone = true
		return false, nil
	}
	return true, j.capturePartition()
}

func (j *SortMergeJoin) advanceLeft() error {
	t, err := j.lcur.next()
	if err != nil {
		return err
	}
	j.leftTuple = t
	return nil
}

func (j *SortMergeJoin) Next() (*record.Batch, error) {
	if j.lcur == nil {
		return nil, nil
	}
	out := record.NewBatch(j.pageCap)
	for {
		switch j.state {
		case smjCompare:
			if j.leftTuple == nil || len(j.partition) == 0 {
				j.state = smjDone
				continue
			}
			c := record.CompareKeys(j.leftTuple, j.leftKeys, j.partition[0], j.rightKeys)
			switch {
			case c == 0:
				j.pcurs = 0
				j.state = smjReplay
			case c < 0:
				if err := j.advanceLeft(); err != nil {
					return nil, err
				}
			default:
				if j.rightDone {
					j.state = smjDone
					continue
				}
				ok, err := j.advanceRight()
				if err != nil {
					return nil, err
				}
				if !ok {
					j.state = smjDone
				}
			}

		case smjReplay:
			for j.pcurs < len(j.partition) {
				out.Add(j.leftTuple.JoinWith(j.partition[j.pcurs]))
				j.pcurs++
				if out.IsFull() {
					return out, nil
				}
			}
			if err := j.advanceLeft(); err != nil {
				return nil, err
			}
			j.state = smjCompare

		case smjDone:
			if out.IsEmpty() {
				return nil, nil
			}
			return out, nil
		}
	}
}

// Close closes both sorts, which removes their runs.
func (j *SortMergeJoin) Close() error {
	var result error
	if j.leftSort != nil {
		result = j.leftSort.Close()
		j.leftSort = nil
	}
	if j.rightSort != nil {
		result = errors.CombineErrors(result, j.rightSort.Close())
		j.rightSort = nil
	}
	j.lcur, j.rcur = nil, nil
	j.partition = nil
	j.state = smjDone
	j.pool.ReleaseAll()
	return result
}

func (j *SortMergeJoin) Schema() *record.Schema {
	return j.shape.schema
}

// PeakPages returns the most page frames the join itself reserved. The
// partition and the pages of the two sorts are not included.
func (j *SortMergeJoin) PeakPages() int {
	return j.pool.Peak()
}
