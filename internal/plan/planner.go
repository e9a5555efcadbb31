package plan

import (
	"log"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/query"
	"github.com/yashagw/craneqp/internal/record"
)

// Catalog resolves table schemas and statistics.
type Catalog interface {
	StatsSource
	GetSchema(table string) (*record.Schema, error)
}

// Query is a select-project-join query with optional grouping and duplicate
// removal. Conditions that reference a single table are pushed onto its scan;
// the rest join tables together.
type Query struct {
	Tables      []string
	Conditions  []query.Condition
	Projection  []string
	Distinct    bool
	GroupBy     []string
	Aggregation *query.Aggregation
	// Method is the join method of the initial plan.
	Method JoinMethod
}

// Planner builds the initial left-deep plan of a query.
type Planner struct {
	catalog Catalog
}

func NewPlanner(catalog Catalog) *Planner {
	return &Planner{catalog: catalog}
}

func (p *Planner) CreatePlan(q *Query) (*Node, error) {
	if len(q.Tables) == 0 {
		return nil, errors.New("query names no tables")
	}

	// Phase 1: table scans with their selections pushed down
	bases := make([]*Node, len(q.Tables))
	var joinConds []query.Condition
	pushed := make([]bool, len(q.Conditions))
	for i, table := range q.Tables {
		schema, err := p.catalog.GetSchema(table)
		if err != nil {
			return nil, err
		}
		node := NewScan(table, schema)
		for j, cond := range q.Conditions {
			if pushed[j] || !cond.AppliesTo(schema) {
				continue
			}
			if node, err = NewSelect(node, cond); err != nil {
				return nil, err
			}
			pushed[j] = true
		}
		bases[i] = node
	}
	for j, cond := range q.Conditions {
		if !pushed[j] {
			joinConds = append(joinConds, cond)
		}
	}

	// Phase 2: join order, smallest tables first
	if err := p.sortBySize(bases); err != nil {
		return nil, err
	}
	root, leftover, err := LeftDeep(bases, joinConds, q.Method)
	if err != nil {
		return nil, err
	}

	// Phase 3: join conditions that close a cycle filter the joined result
	for _, cond := range leftover {
		if root, err = NewSelect(root, cond); err != nil {
			return nil, err
		}
	}

	// Phase 4: grouping, projection, duplicate removal
	if len(q.GroupBy) > 0 || q.Aggregation != nil {
		if root, err = NewGroupBy(root, q.GroupBy, q.Aggregation); err != nil {
			return nil, err
		}
	}
	if len(q.Projection) > 0 {
		if root, err = NewProject(root, q.Projection); err != nil {
			return nil, err
		}
	}
	if q.Distinct {
		root = NewDistinct(root)
	}
	log.Printf("[PLAN] Initial plan %s", root)
	return root, nil
}

func (p *Planner) sortBySize(bases []*Node) error {
	sizes := make(map[string]int, len(bases))
	for _, b := range bases {
		table := Tables(b)[0]
		si, err := p.catalog.GetStatInfo(table)
		if err != nil {
			return err
		}
		sizes[table] = si.RecordsOutput()
	}
	slices.SortStableFunc(bases, func(a, b *Node) int {
		return sizes[Tables(a)[0]] - sizes[Tables(b)[0]]
	})
	return nil
}

// LeftDeep joins bases into a left-deep tree, starting from bases[0] and
// repeatedly adding the first remaining base connected to the tree by a join
// condition. Joins are numbered 0..n-2 from the bottom. Conditions whose
// tables were already joined are returned as leftover.
func LeftDeep(bases []*Node, conds []query.Condition, method JoinMethod) (*Node, []query.Condition, error) {
	if len(bases) == 0 {
		return nil, nil, errors.New("no inputs to join")
	}
	root := bases[0]
	remaining := slices.Clone(bases[1:])
	used := make([]bool, len(conds))
	id := 0
	for len(remaining) > 0 {
		next, ci := -1, -1
		for i, b := range remaining {
			if ci = connecting(root.schema, b.schema, conds, used); ci >= 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, nil, errors.Newf("no join condition connects %v to %v", Tables(root), Tables(remaining[0]))
		}
		joined, err := NewJoin(root, remaining[next], conds[ci], method, id)
		if err != nil {
			return nil, nil, err
		}
		used[ci] = true
		root = joined
		remaining = slices.Delete(remaining, next, next+1)
		id++
	}
	var leftover []query.Condition
	for i, cond := range conds {
		if !used[i] {
			if !cond.AppliesTo(root.schema) {
				return nil, nil, errors.Newf("condition %s references unknown attributes", cond)
			}
			leftover = append(leftover, cond)
		}
	}
	return root, leftover, nil
}

// connecting returns the index of an unused join condition with one side in
// left and the other in right, or -1.
func connecting(left, right *record.Schema, conds []query.Condition, used []bool) int {
	for i, c := range conds {
		if !used[i] && spans(c, left, right) {
			return i
		}
	}
	return -1
}
