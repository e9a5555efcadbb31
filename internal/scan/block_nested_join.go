package scan

import (
	"log"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/buffer"
	"github.com/yashagw/craneqp/internal/query"
	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/spill"
)

// MinJoinBuffers is the smallest budget a join can run with: one left page,
// one right page and one output page.
const MinJoinBuffers = 3

type bnljState int

const (
	bnljNeedLeftBlock bnljState = iota
	bnljNeedRightPage
	bnljProbing
	bnljDone
)

// BlockNestedJoin joins blocks of left pages against a materialized copy of
// the right input. The right side is written to a run once in Open; every
// left block rescans that run page by page.
//
// Between calls to Next the join remembers its state and, while probing, the
// left tuple index within the block (lcurs) and the right tuple index within
// the current right page (rcurs). A full output page suspends the probe and
// the next call resumes at exactly that pair.
type BlockNestedJoin struct {
	left, right Operator
	space       *spill.Space
	shape       joinShape
	numBuff     int
	blockPages  int
	tag         string
	pool        *buffer.Pool
	pageCap     int
	leftOpen    bool

	rightRun    *spill.Run
	rightReader *spill.Reader
	block       *record.Block
	rightPage   *record.Batch
	lcurs       int
	rcurs       int
	leftDone    bool
	state       bnljState
}

// NewBlockNestedJoin joins left and right on cond with numBuff pages:
// (numBuff-2) for the left block, one for the right page, one for output.
func NewBlockNestedJoin(space *spill.Space, left, right Operator, cond query.Condition, numBuff int) (*BlockNestedJoin, error) {
	return newNestedJoin(space, left, right, cond, numBuff, numBuff-2, "[BNLJ]")
}

// NewNestedJoin is the page-at-a-time nested-loop join: a block of one page.
func NewNestedJoin(space *spill.Space, left, right Operator, cond query.Condition, numBuff int) (*BlockNestedJoin, error) {
	return newNestedJoin(space, left, right, cond, numBuff, 1, "[NLJ]")
}

func newNestedJoin(space *spill.Space, left, right Operator, cond query.Condition, numBuff, blockPages int, tag string) (*BlockNestedJoin, error) {
	shape, err := newJoinShape(left, right, cond)
	if err != nil {
		return nil, err
	}
	return &BlockNestedJoin{
		left:       left,
		right:      right,
		space:      space,
		shape:      shape,
		numBuff:    numBuff,
		blockPages: blockPages,
		tag:        tag,
		pool:       buffer.NewPool(numBuff),
	}, nil
}

func (j *BlockNestedJoin) Open() error {
	if err := record.RequireBuffers("nested loop join", j.numBuff, MinJoinBuffers); err != nil {
		return err
	}
	var err error
	if j.pageCap, err = outputCapacity(j.space.PageSize(), j.shape.schema); err != nil {
		return err
	}
	if err := j.materializeRight(); err != nil {
		return err
	}
	if err := j.left.Open(); err != nil {
		return err
	}
	j.leftOpen = true

	leftCap, err := outputCapacity(j.space.PageSize(), j.left.Schema())
	if err != nil {
		return err
	}
	if err := j.pool.Reserve(j.blockPages + 2); err != nil {
		return err
	}
	j.block = record.NewBlock(j.blockPages, leftCap)
	j.rightReader = j.rightRun.Reader()
	j.leftDone = false
	j.state = bnljNeedLeftBlock
	return nil
}

// materializeRight copies the right input into a run so that it can be
// rescanned once per left block, whatever kind of operator produced it.
func (j *BlockNestedJoin) materializeRight() error {
	if err := j.right.Open(); err != nil {
		return err
	}
	w, err := j.space.Create("bnlj", j.right.Schema())
	if err != nil {
		return errors.CombineErrors(err, j.right.Close())
	}
	j.rightRun = w.Run()
	for {
		page, err := j.right.Next()
		if err != nil {
			return errors.CombineErrors(err, j.right.Close())
		}
		if page == nil {
			break
		}
		if err := w.Append(page); err != nil {
			return errors.CombineErrors(err, j.right.Close())
		}
	}
	log.Printf("%s Materialized right side into %s (%d pages)", j.tag, j.rightRun.Name(), w.NumPages())
	return j.right.Close()
}

// fillBlock loads up to blockPages pages of the left input.
func (j *BlockNestedJoin) fillBlock() (bool, error) {
	j.block.Clear()
	for !j.leftDone && !j.block.IsFull() {
		page, err := j.left.Next()
		if err != nil {
			return false, err
		}
		if page == nil {
			j.leftDone = true
			break
		}
		j.block.AddBatch(page)
	}
	return !j.block.IsEmpty(), nil
}

func (j *BlockNestedJoin) Next() (*record.Batch, error) {
	if j.block == nil {
		return nil, nil
	}
	out := record.NewBatch(j.pageCap)
	for {
		switch j.state {
		case bnljNeedLeftBlock:
			ok, err := j.fillBlock()
			if err != nil {
				return nil, err
			}
			if !ok {
				j.state = bnljDone
				continue
			}
			j.rightReader.Rewind()
			j.state = bnljNeedRightPage

		case bnljNeedRightPage:
			page, err := j.rightReader.Next()
			if err != nil {
				return nil, err
			}
			if page == nil {
				j.state = bnljNeedLeftBlock
				continue
			}
			j.rightPage = page
			j.lcurs, j.rcurs = 0, 0
			j.state = bnljProbing

		case bnljProbing:
			for j.lcurs < j.block.NumTuples() {
				l := j.block.TupleAt(j.lcurs)
				for j.rcurs < j.rightPage.Size() {
					r := j.rightPage.ElementAt(j.rcurs)
					j.rcurs++
					if j.shape.matches(l, r) {
						out.Add(l.JoinWith(r))
						if out.IsFull() {
							return out, nil
						}
					}
				}
				j.rcurs = 0
				j.lcurs++
			}
			j.state = bnljNeedRightPage

		case bnljDone:
			if out.IsEmpty() {
				return nil, nil
			}
			return out, nil
		}
	}
}

// Close closes the left input and deletes the materialized right side.
func (j *BlockNestedJoin) Close() error {
	var result error
	if j.leftOpen {
		j.leftOpen = false
		result = j.left.Close()
	}
	if j.rightRun != nil {
		result = errors.CombineErrors(result, j.rightRun.Remove())
		j.rightRun = nil
	}
	j.block = nil
	j.state = bnljDone
	j.pool.ReleaseAll()
	return result
}

func (j *BlockNestedJoin) Schema() *record.Schema {
	return j.shape.schema
}

// PeakPages returns the most pages the join held in memory at once.
func (j *BlockNestedJoin) PeakPages() int {
	return j.pool.Peak()
}
