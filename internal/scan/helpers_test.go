package scan

import (
	"database/sql"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/spill"
)

// sliceSource is an in-memory operator that yields fixed tuples in pages.
type sliceSource struct {
	schema  *record.Schema
	tuples  []record.Tuple
	pageCap int
	pos     int
	opened  int
	closed  int
}

func newSliceSource(schema *record.Schema, tuples []record.Tuple, pageCap int) *sliceSource {
	return &sliceSource{schema: schema, tuples: tuples, pageCap: pageCap}
}

func (s *sliceSource) Open() error {
	s.pos = 0
	s.opened++
	return nil
}

func (s *sliceSource) Next() (*record.Batch, error) {
	if s.pos >= len(s.tuples) {
		return nil, nil
	}
	b := record.NewBatch(s.pageCap)
	for s.pos < len(s.tuples) && b.Add(s.tuples[s.pos]) {
		s.pos++
	}
	return b, nil
}

func (s *sliceSource) Close() error {
	s.closed++
	return nil
}

func (s *sliceSource) Schema() *record.Schema {
	return s.schema
}

// intSchema creates table.c for each column name, all integers.
func intSchema(table string, cols ...string) *record.Schema {
	s := record.NewSchema()
	for _, c := range cols {
		s.AddIntField(table + "." + c)
	}
	return s
}

func ints(vals ...int) record.Tuple {
	t := make(record.Tuple, len(vals))
	for i, v := range vals {
		t[i] = record.NewIntConstant(v)
	}
	return t
}

func randomTuples(rng *rand.Rand, n, fields, maxVal int) []record.Tuple {
	out := make([]record.Tuple, n)
	for i := range out {
		vals := make([]int, fields)
		for f := range vals {
			vals[f] = rng.IntN(maxVal)
		}
		out[i] = ints(vals...)
	}
	return out
}

// newTestSpace creates a spill space with pageSize bytes of tuples per page.
func newTestSpace(t *testing.T, pageSize int) *spill.Space {
	t.Helper()
	space, err := spill.NewSpace(t.TempDir(), pageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = space.Close() })
	return space
}

// drain opens op, pulls every page and closes it.
func drain(t *testing.T, op Operator) []record.Tuple {
	t.Helper()
	require.NoError(t, op.Open())
	var out []record.Tuple
	for {
		b, err := op.Next()
		require.NoError(t, err)
		if b == nil {
			break
		}
		require.False(t, b.IsEmpty(), "operators never return empty pages")
		out = append(out, b.Tuples()...)
	}
	require.NoError(t, op.Close())
	return out
}

// runFiles lists the run files left in the space's directory.
func runFiles(t *testing.T, space *spill.Space) []string {
	t.Helper()
	entries, err := os.ReadDir(space.Dir())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".run") {
			names = append(names, e.Name())
		}
	}
	return names
}

// multiset renders tuples as sorted strings for order-insensitive comparison.
func multiset(tuples []record.Tuple) []string {
	out := make([]string, len(tuples))
	for i, t := range tuples {
		out[i] = t.String()
	}
	slices.Sort(out)
	return out
}

// oracle is an in-memory SQLite database used as the reference implementation.
type oracle struct {
	db *sql.DB
}

func newOracle(t *testing.T) *oracle {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return &oracle{db: db}
}

// load creates table with integer columns named after the schema's attributes.
func (o *oracle) load(t *testing.T, table string, schema *record.Schema, tuples []record.Tuple) {
	t.Helper()
	cols := make([]string, schema.NumFields())
	marks := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		cols[i] = fmt.Sprintf("%q INTEGER", f)
		marks[i] = "?"
	}
	_, err := o.db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(cols, ", ")))
	require.NoError(t, err)

	tx, err := o.db.Begin()
	require.NoError(t, err)
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, strings.Join(marks, ", ")))
	require.NoError(t, err)
	for _, tup := range tuples {
		args := make([]any, len(tup))
		for i, v := range tup {
			args[i] = v.AsInt()
		}
		_, err := stmt.Exec(args...)
		require.NoError(t, err)
	}
	require.NoError(t, stmt.Close())
	require.NoError(t, tx.Commit())
}

// query runs q and converts every row to a tuple. Integer columns become
// INT constants and real columns REAL constants.
func (o *oracle) query(t *testing.T, q string) []record.Tuple {
	t.Helper()
	rows, err := o.db.Query(q)
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)
	var out []record.Tuple
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		tup := make(record.Tuple, len(cols))
		for i, v := range vals {
			switch x := v.(type) {
			case int64:
				tup[i] = record.NewIntConstant(int(x))
			case float64:
				tup[i] = record.NewRealConstant(x)
			default:
				t.Fatalf("unexpected oracle value %T", v)
			}
		}
		out = append(out, tup)
	}
	require.NoError(t, rows.Err())
	return out
}
