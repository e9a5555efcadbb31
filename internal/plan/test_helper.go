package plan

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/yashagw/craneqp/internal/metadata"
	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/scan"
	"github.com/yashagw/craneqp/internal/spill"
)

// setupTestCatalog creates a spill space and catalog in a temporary directory.
func setupTestCatalog(t *testing.T, pageSize int) (*spill.Space, *metadata.Manager) {
	dir := t.TempDir()
	space, err := spill.NewSpace(dir, pageSize)
	require.NoError(t, err)
	t.Cleanup(func() { space.Close() })
	return space, metadata.NewManager(space, dir)
}

// intTable creates table with integer columns table.c for each col, filled
// with n random rows drawn from [0, maxVal).
func intTable(t *testing.T, md *metadata.Manager, rng *rand.Rand, table string, n, maxVal int, cols ...string) []record.Tuple {
	schema := record.NewSchema()
	for _, c := range cols {
		schema.AddIntField(table + "." + c)
	}
	rows := make([]record.Tuple, n)
	for i := range rows {
		row := make(record.Tuple, len(cols))
		for j := range row {
			row[j] = record.NewIntConstant(rng.IntN(maxVal))
		}
		rows[i] = row
	}
	require.NoError(t, md.CreateTable(table, schema, rows))
	return rows
}

// runPlan compiles and drains root, returning its tuples rendered as sorted strings.
func runPlan(t *testing.T, root *Node, space *spill.Space, buffers int) []string {
	op, err := Compile(root, space, buffers)
	require.NoError(t, err)
	return drainSorted(t, op)
}

func drainSorted(t *testing.T, op scan.Operator) []string {
	require.NoError(t, op.Open())
	var out []string
	for {
		b, err := op.Next()
		require.NoError(t, err)
		if b == nil {
			break
		}
		for _, tup := range b.Tuples() {
			out = append(out, tup.String())
		}
	}
	require.NoError(t, op.Close())
	slices.Sort(out)
	return out
}

// mapStats is an in-memory StatsSource.
type mapStats map[string]*metadata.StatInfo

func (m mapStats) GetStatInfo(table string) (*metadata.StatInfo, error) {
	si, ok := m[table]
	if !ok {
		return nil, errors.Newf("no statistics for %s", table)
	}
	return si, nil
}
