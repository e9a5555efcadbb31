package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	schema := NewSchema()
	schema.AddIntField("T.id")
	schema.AddStringField("T.name", 20)
	schema.AddRealField("T.score")

	layout := NewLayoutFromSchema(schema)
	require.NotNil(t, layout)
	assert.Equal(t, schema, layout.GetSchema())

	// 4 bytes (id) + 4+20 bytes (name) + 8 bytes (score)
	assert.Equal(t, 36, layout.GetSlotSize())

	assert.Equal(t, 0, layout.GetOffset("T.id"))
	assert.Equal(t, 4, layout.GetOffset("T.name"))
	assert.Equal(t, 28, layout.GetOffset("T.score"))
	assert.Equal(t, 28, layout.OffsetAt(2))
	assert.Equal(t, -1, layout.GetOffset("nonexistent"))
}
