package plan

import (
	"log"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/buffer"
	"github.com/yashagw/craneqp/internal/scan"
	"github.com/yashagw/craneqp/internal/spill"
)

// Compile turns a plan tree into a tree of physical operators reading tables
// from space. Every join gets an even share of totalBuffers; distinct and
// group-by get the whole budget.
func Compile(root *Node, space *spill.Space, totalBuffers int) (scan.Operator, error) {
	c := compiler{space: space, buffers: buffer.NewManager(totalBuffers, NumJoins(root))}
	log.Printf("[PLAN] Compiling %s with %d pages (%d per join)", root, totalBuffers, c.buffers.PerJoin())
	return c.compile(root)
}

type compiler struct {
	space   *spill.Space
	buffers buffer.Manager
}

func (c compiler) compile(n *Node) (scan.Operator, error) {
	switch n.kind {
	case ScanNode:
		return scan.NewTableScan(c.space, n.table)
	case SelectNode:
		child, err := c.compile(n.left)
		if err != nil {
			return nil, err
		}
		return scan.NewSelect(child, n.cond, c.space.PageSize()), nil
	case ProjectNode:
		child, err := c.compile(n.left)
		if err != nil {
			return nil, err
		}
		return scan.NewProject(child, n.attrs, c.space.PageSize())
	case JoinNode:
		left, err := c.compile(n.left)
		if err != nil {
			return nil, err
		}
		right, err := c.compile(n.right)
		if err != nil {
			return nil, err
		}
		return c.join(n, left, right)
	case DistinctNode:
		child, err := c.compile(n.left)
		if err != nil {
			return nil, err
		}
		return scan.NewDistinct(c.space, child, c.buffers.Total()), nil
	case GroupByNode:
		child, err := c.compile(n.left)
		if err != nil {
			return nil, err
		}
		return scan.NewGroupBy(c.space, child, n.attrs, n.agg, c.buffers.Total())
	}
	return nil, errors.AssertionFailedf("unknown plan node kind %s", n.kind)
}

// join picks the physical operator for a join method. Hash and index
// nested-loop joins are only cost-modeled and run as page nested-loop joins.
func (c compiler) join(n *Node, left, right scan.Operator) (scan.Operator, error) {
	nb := c.buffers.PerJoin()
	switch n.method {
	case BlockNestedLoop:
		return scan.NewBlockNestedJoin(c.space, left, right, n.cond, nb)
	case SortMerge:
		return scan.NewSortMergeJoin(c.space, left, right, n.cond, nb)
	case NestedLoop, HashJoin, IndexNestedLoop:
		return scan.NewNestedJoin(c.space, left, right, n.cond, nb)
	}
	return nil, errors.AssertionFailedf("unknown join method %s", n.method)
}
