package optimizer

import (
	"math/rand/v2"

	"github.com/yashagw/craneqp/internal/plan"
	"github.com/yashagw/craneqp/internal/query"
)

// Move is one kind of neighbor rewrite of a join node.
type Move int

const (
	MethodChange Move = iota
	Commutative
	Associative
	Exchange
)

const numMoves = 4

func (m Move) String() string {
	switch m {
	case MethodChange:
		return "method"
	case Commutative:
		return "commutative"
	case Associative:
		return "associative"
	case Exchange:
		return "exchange"
	}
	return "unknown"
}

// Apply rewrites the join with id in root and returns the new tree. The input
// tree is never modified. A move that does not apply to the node, or that
// would leave a condition without its attributes, returns root unchanged.
func Apply(rng *rand.Rand, root *plan.Node, id int, m Move) (*plan.Node, error) {
	switch m {
	case MethodChange:
		return ChangeMethod(rng, root, id)
	case Commutative:
		return Commute(root, id)
	case Associative:
		return Associate(rng, root, id)
	case Exchange:
		out, err := Associate(rng, root, id)
		if err != nil {
			return nil, err
		}
		return Commute(out, id)
	}
	return root, nil
}

// ChangeMethod gives the join a different, uniformly chosen method.
func ChangeMethod(rng *rand.Rand, root *plan.Node, id int) (*plan.Node, error) {
	node := plan.FindJoin(root, id)
	if node == nil {
		return root, nil
	}
	m := plan.JoinMethod(rng.IntN(plan.NumJoinMethods - 1))
	if m >= node.Method() {
		m++
	}
	return plan.Replace(root, id, node.WithMethod(m))
}

// Commute swaps the join's children and flips its condition. Applied twice it
// restores the original join.
func Commute(root *plan.Node, id int) (*plan.Node, error) {
	node := plan.FindJoin(root, id)
	if node == nil {
		return root, nil
	}
	swapped, err := node.WithJoin(node.Right(), node.Left(), node.Condition().Flip())
	if err != nil {
		return nil, err
	}
	return plan.Replace(root, id, swapped)
}

// Associate re-associates the join with one of its join children:
//
//	(A ⋈ B) ⋈ C  =>  A ⋈ (B ⋈ C)   when the outer condition references B
//	(A ⋈ B) ⋈ C  =>  B ⋈ (A ⋈ C)   when it references A
//	A ⋈ (B ⋈ C)  =>  (A ⋈ B) ⋈ C   when it references B
//	A ⋈ (B ⋈ C)  =>  (A ⋈ C) ⋈ B   when it references C
//
// The rewritten top node takes the child join's id and method, and the new
// inner node keeps the outer join's. When both children are joins, one side
// is picked at random. Without a join child the move is a no-op.
func Associate(rng *rand.Rand, root *plan.Node, id int) (*plan.Node, error) {
	op := plan.FindJoin(root, id)
	if op == nil {
		return root, nil
	}
	leftJoin := op.Left().Kind() == plan.JoinNode
	rightJoin := op.Right().Kind() == plan.JoinNode

	var rewritten *plan.Node
	switch {
	case leftJoin && rightJoin:
		if rng.IntN(2) == 0 {
			rewritten = leftToRight(op)
		} else {
			rewritten = rightToLeft(op)
		}
	case leftJoin:
		rewritten = leftToRight(op)
	case rightJoin:
		rewritten = rightToLeft(op)
	}
	if rewritten == nil {
		return root, nil
	}
	return plan.Replace(root, id, rewritten)
}

// references reports whether op's condition names an attribute of side.
func references(op, side *plan.Node) bool {
	cond := op.Condition()
	return side.Schema().HasField(cond.LHS()) || side.Schema().HasField(cond.RHS())
}

// leftToRight rewrites (A ⋈ B) ⋈ C.
func leftToRight(op *plan.Node) *plan.Node {
	inner := op.Left()
	a, b, c := inner.Left(), inner.Right(), op.Right()
	switch {
	case references(op, b):
		lower := join(b, c, op.Condition(), op)
		return join(a, lower, inner.Condition(), inner)
	case references(op, a):
		lower := join(a, c, op.Condition(), op)
		return join(b, lower, inner.Condition().Flip(), inner)
	}
	return nil
}

// rightToLeft rewrites A ⋈ (B ⋈ C).
func rightToLeft(op *plan.Node) *plan.Node {
	inner := op.Right()
	a, b, c := op.Left(), inner.Left(), inner.Right()
	switch {
	case references(op, b):
		lower := join(a, b, op.Condition(), op)
		return join(lower, c, inner.Condition(), inner)
	case references(op, c):
		lower := join(a, c, op.Condition(), op)
		return join(lower, b, inner.Condition().Flip(), inner)
	}
	return nil
}

// join builds left ⋈ right on cond with like's method and id, or returns nil
// when either input is nil or cond does not fit the new children.
func join(left, right *plan.Node, cond query.Condition, like *plan.Node) *plan.Node {
	if left == nil || right == nil {
		return nil
	}
	n, err := plan.NewJoin(left, right, cond, like.Method(), like.JoinID())
	if err != nil {
		return nil
	}
	return n
}
