package spill

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashagw/craneqp/internal/record"
)

func testSchema() *record.Schema {
	s := record.NewSchema()
	s.AddIntField("R.id")
	s.AddStringField("R.tag", 6)
	s.AddRealField("R.w")
	return s
}

func batchOf(capacity int, ids ...int) *record.Batch {
	b := record.NewBatch(capacity)
	for _, id := range ids {
		b.Add(record.Tuple{
			record.NewIntConstant(id),
			record.NewStringConstant("t"),
			record.NewRealConstant(float64(id) / 2),
		})
	}
	return b
}

func readAll(t *testing.T, run *Run) []int {
	t.Helper()
	var ids []int
	rd := run.Reader()
	for {
		b, err := rd.Next()
		require.NoError(t, err)
		if b == nil {
			return ids
		}
		for _, tup := range b.Tuples() {
			ids = append(ids, tup.DataAt(0).AsInt())
		}
	}
}

func TestWriteAndRead(t *testing.T) {
	space, err := NewSpace(t.TempDir(), 64)
	require.NoError(t, err)
	defer space.Close()

	w, err := space.Create("sort", testSchema())
	require.NoError(t, err)
	capacity := w.Run().PageCapacity()
	// 4 + 10 + 8 = 22 bytes per tuple
	assert.Equal(t, 2, capacity)

	require.NoError(t, w.Append(batchOf(capacity, 1, 2)))
	require.NoError(t, w.Append(batchOf(capacity, 3)))
	require.NoError(t, w.Append(batchOf(capacity)))
	assert.Equal(t, 2, w.NumPages(), "empty batches are not written")

	run := w.Run()
	assert.Equal(t, []int{1, 2, 3}, readAll(t, run))

	rd := run.Reader()
	_, err = rd.Next()
	require.NoError(t, err)
	rd.Rewind()
	b, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, b.ElementAt(0).DataAt(0).AsInt())
}

func TestUniqueNames(t *testing.T) {
	space, err := NewSpace(t.TempDir(), 64)
	require.NoError(t, err)
	defer space.Close()

	a, err := space.Create("bnlj", testSchema())
	require.NoError(t, err)
	b, err := space.Create("bnlj", testSchema())
	require.NoError(t, err)
	assert.NotEqual(t, a.Run().Name(), b.Run().Name())
}

func TestOpenAppendKeepsHeader(t *testing.T) {
	space, err := NewSpace(t.TempDir(), 64)
	require.NoError(t, err)
	defer space.Close()

	w, err := space.CreateNamed("R.tbl", testSchema())
	require.NoError(t, err)
	require.NoError(t, w.Append(batchOf(2, 1, 2)))

	w2, err := space.OpenAppend("R.tbl")
	require.NoError(t, err)
	assert.Equal(t, 1, w2.NumPages())
	require.NoError(t, w2.Append(batchOf(2, 3, 4)))

	run, err := space.Open("R.tbl")
	require.NoError(t, err)
	assert.True(t, run.Schema().Equal(testSchema()))
	assert.Equal(t, []int{1, 2, 3, 4}, readAll(t, run))
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	space, err := NewSpace(dir, 64)
	require.NoError(t, err)
	defer space.Close()

	w, err := space.Create("tmp", testSchema())
	require.NoError(t, err)
	name := w.Run().Name()
	require.NoError(t, w.Run().Remove())

	_, err = os.Stat(filepath.Join(dir, name))
	assert.True(t, os.IsNotExist(err))
}

func TestCorruptRun(t *testing.T) {
	dir := t.TempDir()
	space, err := NewSpace(dir, 64)
	require.NoError(t, err)
	defer space.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.run"), make([]byte, 68), 0o644))
	_, err = space.Open("junk.run")
	assert.True(t, errors.Is(err, ErrCorruptSpill))

	_, err = space.Open("missing.run")
	assert.Error(t, err)

	// a page whose tuple count exceeds the capacity
	w, err := space.Create("bad", testSchema())
	require.NoError(t, err)
	require.NoError(t, w.Append(batchOf(2, 1)))
	f, err := os.OpenFile(filepath.Join(dir, w.Run().Name()), os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0, 0, 0, 99}, 68)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = w.Run().Reader().Next()
	assert.True(t, errors.Is(err, ErrCorruptSpill))
}

func TestPageSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	space, err := NewSpace(dir, 64)
	require.NoError(t, err)
	_, err = space.CreateNamed("R.tbl", testSchema())
	require.NoError(t, err)
	require.NoError(t, space.Close())

	other, err := NewSpace(dir, 60)
	require.NoError(t, err)
	defer other.Close()
	_, err = other.Open("R.tbl")
	assert.True(t, errors.Is(err, ErrCorruptSpill))
}

func TestHeaderSpansBlocks(t *testing.T) {
	space, err := NewSpace(t.TempDir(), 16)
	require.NoError(t, err)
	defer space.Close()

	schema := record.NewSchema()
	schema.AddIntField("Enrollment.student_id")
	schema.AddIntField("Enrollment.course_id")

	w, err := space.CreateNamed("Enrollment.tbl", schema)
	require.NoError(t, err)
	b := record.NewBatch(w.Run().PageCapacity())
	b.Add(record.Tuple{record.NewIntConstant(1), record.NewIntConstant(2)})
	require.NoError(t, w.Append(b))

	run, err := space.Open("Enrollment.tbl")
	require.NoError(t, err)
	assert.True(t, run.Schema().Equal(schema))
	n, err := run.NumPages()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	page, err := run.Reader().Next()
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, 2, page.ElementAt(0).DataAt(1).AsInt())
}
