package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema(t *testing.T) {
	schema := NewSchema()
	require.NotNil(t, schema)
	assert.Equal(t, 0, schema.NumFields())

	schema.AddIntField("Emp.id")
	schema.AddStringField("Emp.name", 20)
	schema.AddRealField("Emp.salary")

	assert.Equal(t, []string{"Emp.id", "Emp.name", "Emp.salary"}, schema.Fields())
	assert.Equal(t, IntField, schema.Type("Emp.id"))
	assert.Equal(t, StringField, schema.Type("Emp.name"))
	assert.Equal(t, 20, schema.Length("Emp.name"))
	assert.Equal(t, 1, schema.IndexOf("Emp.name"))
	assert.Equal(t, -1, schema.IndexOf("Emp.missing"))

	// 4 (int) + 4+20 (string) + 8 (real)
	assert.Equal(t, 36, schema.TupleSize())

	info, ok := schema.GetFieldInfo("Emp.salary")
	require.True(t, ok)
	assert.Equal(t, 8, info.Width())
	assert.True(t, info.Type().IsNumeric())

	t.Run("SubSchema", func(t *testing.T) {
		sub, err := schema.SubSchema([]string{"Emp.salary", "Emp.id"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Emp.salary", "Emp.id"}, sub.Fields())
		assert.Equal(t, 12, sub.TupleSize())

		_, err = schema.SubSchema([]string{"Emp.nope"})
		assert.Error(t, err)
	})

	t.Run("Join", func(t *testing.T) {
		dept := NewSchema()
		dept.AddIntField("Dept.id")
		dept.AddStringField("Dept.name", 10)

		joined, err := schema.Join(dept)
		require.NoError(t, err)
		assert.Equal(t, 5, joined.NumFields())
		assert.Equal(t, "Dept.id", joined.Field(3))
		assert.Equal(t, schema.TupleSize()+dept.TupleSize(), joined.TupleSize())

		_, err = schema.Join(schema)
		assert.Error(t, err, "duplicate attribute names cannot be joined")
	})

	t.Run("IndicesOf", func(t *testing.T) {
		idx, err := schema.IndicesOf([]string{"Emp.salary", "Emp.id"})
		require.NoError(t, err)
		assert.Equal(t, []int{2, 0}, idx)
	})

	t.Run("CopyAll", func(t *testing.T) {
		target := NewSchema()
		target.CopyAll(schema)
		assert.True(t, target.Equal(schema))
		assert.Equal(t, "(Emp.id INT, Emp.name STRING, Emp.salary REAL)", target.String())
	})
}
