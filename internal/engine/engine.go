package engine

import (
	"fmt"
	"log"
	"math/rand/v2"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/config"
	"github.com/yashagw/craneqp/internal/metadata"
	"github.com/yashagw/craneqp/internal/optimizer"
	"github.com/yashagw/craneqp/internal/parse"
	"github.com/yashagw/craneqp/internal/plan"
	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/spill"
)

// Engine plans, optimizes and runs queries over the tables of one directory.
type Engine struct {
	cfg       *config.Config
	space     *spill.Space
	catalog   *metadata.Manager
	planner   *plan.Planner
	estimator *plan.Estimator
}

// Response is the outcome of one statement.
type Response struct {
	Type     string           `json:"type"`
	Rows     []map[string]any `json:"rows,omitempty"`
	Columns  []string         `json:"columns,omitempty"`
	Plan     string           `json:"plan,omitempty"`
	Cost     int64            `json:"cost,omitempty"`
	Affected int              `json:"affected,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Result holds the rows of a query along with the plan that produced them.
type Result struct {
	Schema *record.Schema
	Rows   []record.Tuple
	Plan   *plan.Node
	Cost   int64
}

func New(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	space, err := spill.NewSpace(cfg.Engine.SpillDir, cfg.Engine.PageSize)
	if err != nil {
		return nil, errors.Wrap(err, "open spill space")
	}
	catalog := metadata.NewManager(space, cfg.Engine.StatsDir)
	log.Printf("[ENGINE] Page size %d, buffer budget %d, data in %s",
		cfg.Engine.PageSize, cfg.Engine.BufferBudget, cfg.Engine.SpillDir)
	return &Engine{
		cfg:       cfg,
		space:     space,
		catalog:   catalog,
		planner:   plan.NewPlanner(catalog),
		estimator: plan.NewEstimator(catalog, cfg.Engine.PageSize, cfg.Engine.BufferBudget),
	}, nil
}

func (e *Engine) Close() error {
	return e.space.Close()
}

func (e *Engine) Catalog() *metadata.Manager {
	return e.catalog
}

// Execute runs a SELECT or CREATE TABLE statement.
func (e *Engine) Execute(sql string) Response {
	trimmed := strings.ToLower(strings.TrimSpace(sql))
	if strings.HasPrefix(trimmed, "create") {
		data, err := parse.NewParserFromString(sql).CreateTable()
		if err != nil {
			return errorResponse(err)
		}
		if err := e.catalog.CreateTable(data.Table, data.Schema, nil); err != nil {
			return errorResponse(err)
		}
		return Response{Type: "update"}
	}

	res, err := e.Query(sql)
	if err != nil {
		return errorResponse(err)
	}
	columns := res.Schema.Fields()
	rows := make([]map[string]any, len(res.Rows))
	for i, tup := range res.Rows {
		row := make(map[string]any, len(columns))
		for j, col := range columns {
			row[col] = value(tup.DataAt(j))
		}
		rows[i] = row
	}
	return Response{
		Type:    "query",
		Rows:    rows,
		Columns: columns,
		Plan:    res.Plan.String(),
		Cost:    res.Cost,
	}
}

// Query parses sql, optimizes its plan and runs it to completion.
func (e *Engine) Query(sql string) (*Result, error) {
	q, err := parse.NewParserFromString(sql).Query()
	if err != nil {
		return nil, err
	}
	q.Method = plan.BlockNestedLoop
	initial, err := e.planner.CreatePlan(q)
	if err != nil {
		return nil, err
	}
	opt, err := optimizer.New(e.estimator, e.cfg.OptimizerOptions())
	if err != nil {
		return nil, err
	}
	best, est, err := opt.Optimize(initial)
	if err != nil {
		return nil, err
	}
	rows, err := e.run(best)
	if err != nil {
		return nil, err
	}
	return &Result{Schema: best.Schema(), Rows: rows, Plan: best, Cost: est.Cost}, nil
}

func (e *Engine) run(root *plan.Node) (rows []record.Tuple, err error) {
	op, err := plan.Compile(root, e.space, e.cfg.Engine.BufferBudget)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.CombineErrors(err, op.Close())
	}()
	if err := op.Open(); err != nil {
		return nil, err
	}
	for {
		b, err := op.Next()
		if err != nil {
			return nil, err
		}
		if b == nil {
			return rows, nil
		}
		rows = append(rows, b.Tuples()...)
	}
}

// Generate fills table with n random rows. Integer attributes draw from
// [0, distinct), reals from the same range scaled by 0.5 and strings from
// distinct names.
func (e *Engine) Generate(table string, schema *record.Schema, n, distinct int, rng *rand.Rand) error {
	if distinct <= 0 {
		return errors.Newf("distinct must be positive, got %d", distinct)
	}
	rows := make([]record.Tuple, n)
	for i := range rows {
		row := make(record.Tuple, schema.NumFields())
		for j, f := range schema.Fields() {
			v := rng.IntN(distinct)
			switch schema.Type(f) {
			case record.IntField:
				row[j] = record.NewIntConstant(v)
			case record.RealField:
				row[j] = record.NewRealConstant(float64(v) * 0.5)
			case record.StringField:
				s := fmt.Sprintf("v%d", v)
				if len(s) > schema.Length(f) {
					s = s[:schema.Length(f)]
				}
				row[j] = record.NewStringConstant(s)
			}
		}
		rows[i] = row
	}
	log.Printf("[ENGINE] Generated %d rows for %s", n, table)
	return e.catalog.CreateTable(table, schema, rows)
}

func value(c record.Constant) any {
	switch {
	case c.IsInt():
		return c.AsInt()
	case c.IsReal():
		return c.AsReal()
	}
	return c.AsString()
}

func errorResponse(err error) Response {
	return Response{Type: "error", Error: err.Error()}
}
