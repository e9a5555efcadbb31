package parse

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/plan"
	"github.com/yashagw/craneqp/internal/query"
	"github.com/yashagw/craneqp/internal/record"
)

// Parser reads the query language: single-block SELECT queries and CREATE
// TABLE definitions.
type Parser struct {
	lexer *Lexer
}

// NewParser creates a new Parser.
func NewParser(lexer *Lexer) *Parser {
	return &Parser{
		lexer: lexer,
	}
}

// NewParserFromString creates a new Parser from a string.
func NewParserFromString(sql string) *Parser {
	lexer := NewLexer(sql)
	return NewParser(lexer)
}

// CreateTableData is a parsed CREATE TABLE statement.
type CreateTableData struct {
	Table  string
	Schema *record.Schema
}

// field reads an attribute name, optionally qualified as table.attr.
func (p *Parser) field() (string, error) {
	id, err := p.lexer.EatId()
	if err != nil {
		return "", err
	}
	if !p.lexer.MatchDelim('.') {
		return id, nil
	}
	p.lexer.EatDelim('.')
	attr, err := p.lexer.EatId()
	if err != nil {
		return "", err
	}
	return id + "." + attr, nil
}

func (p *Parser) constant() (record.Constant, error) {
	negative := false
	if p.lexer.MatchDelim('-') {
		p.lexer.EatDelim('-')
		negative = true
	}
	switch {
	case p.lexer.MatchIntConstant():
		val, err := p.lexer.EatIntConstant()
		if err != nil {
			return record.Constant{}, err
		}
		if negative {
			val = -val
		}
		return record.NewIntConstant(val), nil
	case p.lexer.MatchRealConstant():
		val, err := p.lexer.EatRealConstant()
		if err != nil {
			return record.Constant{}, err
		}
		if negative {
			val = -val
		}
		return record.NewRealConstant(val), nil
	case p.lexer.MatchStringConstant() && !negative:
		val, err := p.lexer.EatStringConstant()
		if err != nil {
			return record.Constant{}, err
		}
		return record.NewStringConstant(val), nil
	}
	return record.Constant{}, p.lexer.syntaxError("expected a constant")
}

// operator reads one of = <> != < <= > >=.
func (p *Parser) operator() (query.Operator, error) {
	switch {
	case p.lexer.MatchDelim('='):
		p.lexer.EatDelim('=')
		return query.Equal, nil
	case p.lexer.MatchDelim('!'):
		p.lexer.EatDelim('!')
		if err := p.lexer.EatDelim('='); err != nil {
			return 0, err
		}
		return query.NotEqual, nil
	case p.lexer.MatchDelim('<'):
		p.lexer.EatDelim('<')
		if p.lexer.MatchDelim('=') {
			p.lexer.EatDelim('=')
			return query.LessEqual, nil
		}
		if p.lexer.MatchDelim('>') {
			p.lexer.EatDelim('>')
			return query.NotEqual, nil
		}
		return query.Less, nil
	case p.lexer.MatchDelim('>'):
		p.lexer.EatDelim('>')
		if p.lexer.MatchDelim('=') {
			p.lexer.EatDelim('=')
			return query.GreaterEqual, nil
		}
		return query.Greater, nil
	}
	return 0, p.lexer.syntaxError("expected a comparison operator")
}

// condition reads attr op attr, attr op constant or constant op attr.
func (p *Parser) condition() (query.Condition, error) {
	if !p.lexer.MatchId() {
		c, err := p.constant()
		if err != nil {
			return query.Condition{}, err
		}
		op, err := p.operator()
		if err != nil {
			return query.Condition{}, err
		}
		attr, err := p.field()
		if err != nil {
			return query.Condition{}, err
		}
		return query.NewSelectCondition(attr, op.Mirror(), c), nil
	}
	lhs, err := p.field()
	if err != nil {
		return query.Condition{}, err
	}
	op, err := p.operator()
	if err != nil {
		return query.Condition{}, err
	}
	if p.lexer.MatchId() {
		rhs, err := p.field()
		if err != nil {
			return query.Condition{}, err
		}
		return query.NewJoinCondition(lhs, op, rhs), nil
	}
	c, err := p.constant()
	if err != nil {
		return query.Condition{}, err
	}
	return query.NewSelectCondition(lhs, op, c), nil
}

func (p *Parser) predicate() ([]query.Condition, error) {
	var conds []query.Condition
	for {
		cond, err := p.condition()
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
		if !p.lexer.MatchKeyword("and") {
			return conds, nil
		}
		p.lexer.EatKeyword("and")
	}
}

var aggregateFuncs = map[string]query.AggregateFunc{
	"count": query.Count,
	"sum":   query.Sum,
	"avg":   query.Avg,
	"min":   query.Min,
	"max":   query.Max,
}

// selectItem reads an attribute or an aggregate call.
func (p *Parser) selectItem() (string, *query.Aggregation, error) {
	for name, fn := range aggregateFuncs {
		if !p.lexer.MatchKeyword(name) {
			continue
		}
		p.lexer.EatKeyword(name)
		if err := p.lexer.EatDelim('('); err != nil {
			return "", nil, err
		}
		attr, err := p.field()
		if err != nil {
			return "", nil, err
		}
		if err := p.lexer.EatDelim(')'); err != nil {
			return "", nil, err
		}
		agg := query.NewAggregation(fn, attr)
		return agg.Name(), agg, nil
	}
	attr, err := p.field()
	return attr, nil, err
}

// Query parses
//
//	SELECT [DISTINCT] (* | item {, item}) FROM table {, table}
//	[WHERE cond {AND cond}] [GROUP BY attr {, attr}]
//
// where an item is an attribute or one aggregate call such as SUM(R.a).
func (p *Parser) Query() (*plan.Query, error) {
	// Select
	if err := p.lexer.EatKeyword("select"); err != nil {
		return nil, err
	}
	q := &plan.Query{}
	if p.lexer.MatchKeyword("distinct") {
		p.lexer.EatKeyword("distinct")
		q.Distinct = true
	}

	// Select list
	var items []string
	if p.lexer.MatchDelim('*') {
		p.lexer.EatDelim('*')
	} else {
		for {
			item, agg, err := p.selectItem()
			if err != nil {
				return nil, err
			}
			if agg != nil {
				if q.Aggregation != nil {
					return nil, errors.Wrap(ErrBadSyntax, "only one aggregate per query")
				}
				q.Aggregation = agg
			}
			items = append(items, item)
			if !p.lexer.MatchDelim(',') {
				break
			}
			p.lexer.EatDelim(',')
		}
	}

	// From
	if err := p.lexer.EatKeyword("from"); err != nil {
		return nil, err
	}
	tables, err := p.idList()
	if err != nil {
		return nil, err
	}
	q.Tables = tables

	// Where
	if p.lexer.MatchKeyword("where") {
		p.lexer.EatKeyword("where")
		if q.Conditions, err = p.predicate(); err != nil {
			return nil, err
		}
	}

	// Group by
	if p.lexer.MatchKeyword("group") {
		p.lexer.EatKeyword("group")
		if err := p.lexer.EatKeyword("by"); err != nil {
			return nil, err
		}
		if q.GroupBy, err = p.fieldList(); err != nil {
			return nil, err
		}
	}
	if !p.lexer.AtEnd() {
		return nil, p.lexer.syntaxError("unexpected input")
	}

	if err := checkGrouping(q, items); err != nil {
		return nil, err
	}
	if q.Aggregation != nil || len(q.GroupBy) > 0 {
		// the group-by output already has this shape
		if !slices.Equal(items, groupOutput(q)) {
			q.Projection = items
		}
	} else {
		q.Projection = items
	}
	return q, nil
}

// checkGrouping rejects plain select items that are not grouped on when the
// query aggregates.
func checkGrouping(q *plan.Query, items []string) error {
	if q.Aggregation == nil && len(q.GroupBy) == 0 {
		return nil
	}
	if len(items) == 0 {
		return errors.Wrap(ErrBadSyntax, "SELECT * cannot be grouped")
	}
	for _, item := range items {
		if q.Aggregation != nil && item == q.Aggregation.Name() {
			continue
		}
		if !slices.Contains(q.GroupBy, item) {
			return errors.Wrapf(ErrBadSyntax, "%s is neither grouped nor aggregated", item)
		}
	}
	return nil
}

func groupOutput(q *plan.Query) []string {
	out := slices.Clone(q.GroupBy)
	if q.Aggregation != nil {
		out = append(out, q.Aggregation.Name())
	}
	return out
}

// CreateTable parses CREATE TABLE name (field type {, field type}).
func (p *Parser) CreateTable() (*CreateTableData, error) {
	if err := p.lexer.EatKeyword("create"); err != nil {
		return nil, err
	}
	if err := p.lexer.EatKeyword("table"); err != nil {
		return nil, err
	}
	tableName, err := p.lexer.EatId()
	if err != nil {
		return nil, err
	}
	if err := p.lexer.EatDelim('('); err != nil {
		return nil, err
	}
	schema, err := p.fieldDefs()
	if err != nil {
		return nil, err
	}
	if err := p.lexer.EatDelim(')'); err != nil {
		return nil, err
	}
	if !p.lexer.AtEnd() {
		return nil, p.lexer.syntaxError("unexpected input")
	}
	return &CreateTableData{Table: tableName, Schema: schema}, nil
}

func (p *Parser) fieldList() ([]string, error) {
	var fields []string
	for {
		f, err := p.field()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		if !p.lexer.MatchDelim(',') {
			return fields, nil
		}
		p.lexer.EatDelim(',')
	}
}

func (p *Parser) idList() ([]string, error) {
	var ids []string
	for {
		id, err := p.lexer.EatId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		if !p.lexer.MatchDelim(',') {
			return ids, nil
		}
		p.lexer.EatDelim(',')
	}
}

func (p *Parser) fieldDefs() (*record.Schema, error) {
	schema := record.NewSchema()
	for {
		name, err := p.field()
		if err != nil {
			return nil, err
		}
		if schema.HasField(name) {
			return nil, errors.Wrapf(ErrBadSyntax, "duplicate field %s", name)
		}
		if err := p.fieldType(schema, name); err != nil {
			return nil, err
		}
		if !p.lexer.MatchDelim(',') {
			return schema, nil
		}
		p.lexer.EatDelim(',')
	}
}

func (p *Parser) fieldType(schema *record.Schema, name string) error {
	switch {
	case p.lexer.MatchKeyword("int"):
		p.lexer.EatKeyword("int")
		schema.AddIntField(name)
	case p.lexer.MatchKeyword("real"):
		p.lexer.EatKeyword("real")
		schema.AddRealField(name)
	case p.lexer.MatchKeyword("varchar"):
		p.lexer.EatKeyword("varchar")
		if err := p.lexer.EatDelim('('); err != nil {
			return err
		}
		length, err := p.lexer.EatIntConstant()
		if err != nil {
			return err
		}
		if err := p.lexer.EatDelim(')'); err != nil {
			return err
		}
		if length <= 0 {
			return errors.Wrapf(ErrBadSyntax, "varchar length %d", length)
		}
		schema.AddStringField(name, length)
	default:
		return p.lexer.syntaxError("expected a type for %s", name)
	}
	return nil
}
