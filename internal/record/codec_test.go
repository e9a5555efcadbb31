package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashagw/craneqp/internal/file"
)

func TestCodecRoundTrip(t *testing.T) {
	schema := NewSchema()
	schema.AddIntField("T.id")
	schema.AddStringField("T.name", 8)
	schema.AddRealField("T.score")

	codec, err := NewCodec(schema, 100)
	require.NoError(t, err)
	// 4 + 12 + 8 = 24 bytes per tuple
	assert.Equal(t, 4, codec.Capacity())
	assert.Equal(t, 4+4*24, codec.BlockSize())

	in := NewBatch(codec.Capacity())
	in.Add(Tuple{NewIntConstant(-7), NewStringConstant("ann"), NewRealConstant(1.25)})
	in.Add(Tuple{NewIntConstant(8), NewStringConstant(""), NewRealConstant(-3)})

	page := file.NewPage(codec.BlockSize())
	require.NoError(t, codec.Encode(in, page))

	out, err := codec.Decode(page)
	require.NoError(t, err)
	require.Equal(t, 2, out.Size())
	for i := 0; i < 2; i++ {
		assert.True(t, in.ElementAt(i).Equals(out.ElementAt(i)), "tuple %d", i)
	}
}

func TestCodecRejects(t *testing.T) {
	schema := NewSchema()
	schema.AddStringField("T.name", 3)

	codec, err := NewCodec(schema, 64)
	require.NoError(t, err)

	b := NewBatch(codec.Capacity())
	b.Add(Tuple{NewStringConstant("toolong")})
	assert.Error(t, codec.Encode(b, file.NewPage(codec.BlockSize())))

	page := file.NewPage(codec.BlockSize())
	page.SetInt(0, codec.Capacity()+1)
	_, err = codec.Decode(page)
	assert.Error(t, err)

	_, err = NewCodec(schema, 4)
	assert.ErrorIs(t, err, ErrTupleTooLarge)
}
