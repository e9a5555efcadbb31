package plan

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/query"
	"github.com/yashagw/craneqp/internal/record"
)

// Kind tags the variant of a plan node.
type Kind int

const (
	ScanNode Kind = iota
	SelectNode
	ProjectNode
	JoinNode
	DistinctNode
	GroupByNode
)

func (k Kind) String() string {
	switch k {
	case ScanNode:
		return "Scan"
	case SelectNode:
		return "Select"
	case ProjectNode:
		return "Project"
	case JoinNode:
		return "Join"
	case DistinctNode:
		return "Distinct"
	case GroupByNode:
		return "GroupBy"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// JoinMethod is the physical algorithm chosen for a join node.
type JoinMethod int

const (
	NestedLoop JoinMethod = iota
	BlockNestedLoop
	SortMerge
	HashJoin
	IndexNestedLoop
)

// NumJoinMethods is the number of join methods the optimizer chooses from.
const NumJoinMethods = 5

func (m JoinMethod) String() string {
	switch m {
	case NestedLoop:
		return "NestedLoop"
	case BlockNestedLoop:
		return "BlockNestedLoop"
	case SortMerge:
		return "SortMerge"
	case HashJoin:
		return "HashJoin"
	case IndexNestedLoop:
		return "IndexNestedLoop"
	}
	return fmt.Sprintf("JoinMethod(%d)", int(m))
}

// Node is one operator of a logical plan. Nodes are immutable: every rewrite
// builds new nodes along the changed path and shares the untouched subtrees,
// so a rejected rewrite never disturbs the tree it started from.
type Node struct {
	kind   Kind
	schema *record.Schema
	left   *Node // the only child of unary nodes
	right  *Node

	table  string
	cond   query.Condition
	attrs  []string
	agg    *query.Aggregation
	method JoinMethod
	joinID int
}

// NewScan reads a base table.
func NewScan(table string, schema *record.Schema) *Node {
	return &Node{kind: ScanNode, table: table, schema: schema}
}

// NewSelect filters child by cond.
func NewSelect(child *Node, cond query.Condition) (*Node, error) {
	if !cond.AppliesTo(child.schema) {
		return nil, errors.Newf("select condition %s does not apply to %s", cond, child.schema)
	}
	return &Node{kind: SelectNode, left: child, cond: cond, schema: child.schema}, nil
}

// NewProject narrows child to attrs.
func NewProject(child *Node, attrs []string) (*Node, error) {
	schema, err := child.schema.SubSchema(attrs)
	if err != nil {
		return nil, err
	}
	return &Node{kind: ProjectNode, left: child, attrs: attrs, schema: schema}, nil
}

// NewJoin joins left and right on cond with method. id addresses the join
// during plan search and must be unique within a tree.
func NewJoin(left, right *Node, cond query.Condition, method JoinMethod, id int) (*Node, error) {
	n := &Node{kind: JoinNode, cond: cond, method: method, joinID: id}
	return n.withChildren(left, right)
}

// NewDistinct removes duplicate tuples of child.
func NewDistinct(child *Node) *Node {
	return &Node{kind: DistinctNode, left: child, schema: child.schema}
}

// NewGroupBy groups child on attrs and computes agg, which may be nil.
func NewGroupBy(child *Node, attrs []string, agg *query.Aggregation) (*Node, error) {
	n := &Node{kind: GroupByNode, attrs: attrs, agg: agg}
	return n.withChildren(child, nil)
}

func (n *Node) Kind() Kind                      { return n.kind }
func (n *Node) Schema() *record.Schema          { return n.schema }
func (n *Node) Left() *Node                     { return n.left }
func (n *Node) Right() *Node                    { return n.right }
func (n *Node) Child() *Node                    { return n.left }
func (n *Node) Table() string                   { return n.table }
func (n *Node) Condition() query.Condition      { return n.cond }
func (n *Node) Attributes() []string            { return n.attrs }
func (n *Node) Aggregation() *query.Aggregation { return n.agg }
func (n *Node) Method() JoinMethod              { return n.method }
func (n *Node) JoinID() int                     { return n.joinID }

// withChildren returns a copy of n over new children with its schema recomputed.
func (n *Node) withChildren(left, right *Node) (*Node, error) {
	c := *n
	c.left, c.right = left, right
	switch n.kind {
	case ScanNode:
		return n, nil
	case SelectNode, DistinctNode:
		c.schema = left.schema
	case ProjectNode:
		schema, err := left.schema.SubSchema(n.attrs)
		if err != nil {
			return nil, err
		}
		c.schema = schema
	case JoinNode:
		schema, err := left.schema.Join(right.schema)
		if err != nil {
			return nil, err
		}
		if !spans(n.cond, left.schema, right.schema) {
			return nil, errors.Newf("join condition %s does not connect %s and %s", n.cond, left.schema, right.schema)
		}
		c.schema = schema
	case GroupByNode:
		schema, err := groupBySchema(left.schema, n.attrs, n.agg)
		if err != nil {
			return nil, err
		}
		c.schema = schema
	}
	return &c, nil
}

// spans reports whether cond compares an attribute of left with one of right.
func spans(cond query.Condition, left, right *record.Schema) bool {
	if !cond.IsJoin() {
		return false
	}
	return (left.HasField(cond.LHS()) && right.HasField(cond.RHS())) ||
		(left.HasField(cond.RHS()) && right.HasField(cond.LHS()))
}

func groupBySchema(in *record.Schema, attrs []string, agg *query.Aggregation) (*record.Schema, error) {
	if len(attrs) == 0 && agg == nil {
		return nil, errors.New("group by needs grouping attributes or an aggregate")
	}
	schema, err := in.SubSchema(attrs)
	if err != nil {
		return nil, err
	}
	if agg != nil {
		info, ok := in.GetFieldInfo(agg.Attribute)
		if !ok {
			return nil, errors.Newf("unknown aggregate attribute %q", agg.Attribute)
		}
		if agg.ResultType(info.Type()) == record.RealField {
			schema.AddRealField(agg.Name())
		} else {
			schema.AddIntField(agg.Name())
		}
	}
	return schema, nil
}

// WithMethod returns a copy of a join node using method m.
func (n *Node) WithMethod(m JoinMethod) *Node {
	c := *n
	c.method = m
	return &c
}

// WithJoin returns a copy of a join node over new children and condition,
// keeping its id and method.
func (n *Node) WithJoin(left, right *Node, cond query.Condition) (*Node, error) {
	c := *n
	c.cond = cond
	return c.withChildren(left, right)
}

// FindJoin returns the join node with id, or nil.
func FindJoin(root *Node, id int) *Node {
	if root == nil {
		return nil
	}
	if root.kind == JoinNode && root.joinID == id {
		return root
	}
	if found := FindJoin(root.left, id); found != nil {
		return found
	}
	return FindJoin(root.right, id)
}

// Replace returns a tree where the join node with id is replaced by
// replacement. Only the nodes on the path from root to that join are copied;
// their schemas are recomputed.
func Replace(root *Node, id int, replacement *Node) (*Node, error) {
	out, found, err := replace(root, id, replacement)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Newf("no join with id %d", id)
	}
	return out, nil
}

func replace(n *Node, id int, replacement *Node) (*Node, bool, error) {
	if n == nil {
		return nil, false, nil
	}
	if n.kind == JoinNode && n.joinID == id {
		return replacement, true, nil
	}
	left, found, err := replace(n.left, id, replacement)
	if err != nil {
		return nil, false, err
	}
	if found {
		out, err := n.withChildren(left, n.right)
		return out, true, err
	}
	right, found, err := replace(n.right, id, replacement)
	if err != nil || !found {
		return n, found, err
	}
	out, err := n.withChildren(n.left, right)
	return out, true, err
}

// NumJoins counts the join nodes of the tree.
func NumJoins(root *Node) int {
	if root == nil {
		return 0
	}
	n := NumJoins(root.left) + NumJoins(root.right)
	if root.kind == JoinNode {
		n++
	}
	return n
}

// Tables lists the base tables under n, left to right.
func Tables(n *Node) []string {
	if n == nil {
		return nil
	}
	if n.kind == ScanNode {
		return []string{n.table}
	}
	return append(Tables(n.left), Tables(n.right)...)
}

// String renders the tree on one line, for logs.
func (n *Node) String() string {
	var sb strings.Builder
	n.format(&sb)
	return sb.String()
}

func (n *Node) format(sb *strings.Builder) {
	switch n.kind {
	case ScanNode:
		sb.WriteString(n.table)
		return
	case SelectNode:
		fmt.Fprintf(sb, "Select[%s](", n.cond)
	case ProjectNode:
		fmt.Fprintf(sb, "Project[%s](", strings.Join(n.attrs, ","))
	case JoinNode:
		fmt.Fprintf(sb, "%s#%d[%s](", n.method, n.joinID, n.cond)
	case DistinctNode:
		sb.WriteString("Distinct(")
	case GroupByNode:
		fmt.Fprintf(sb, "GroupBy[%s", strings.Join(n.attrs, ","))
		if n.agg != nil {
			fmt.Fprintf(sb, ";%s", n.agg)
		}
		sb.WriteString("](")
	}
	n.left.format(sb)
	if n.right != nil {
		sb.WriteString(", ")
		n.right.format(sb)
	}
	sb.WriteString(")")
}
