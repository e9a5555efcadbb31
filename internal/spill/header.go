package spill

import (
	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/file"
	"github.com/yashagw/craneqp/internal/record"
)

const (
	headerMagic   = 0x43514e52 // "CQNR"
	headerVersion = 1
)

// The header occupies the first headerBlocks blocks of a run:
//
//	[magic][version][page size][header blocks][field count]
//	per field: [type][length][name]
//
// Data pages follow it, so appending never touches the header.
func headerSize(schema *record.Schema) int {
	size := 5 * file.IntSize
	for _, name := range schema.Fields() {
		size += 2*file.IntSize + file.MaxLength(len(name))
	}
	return size
}

// encodeHeader returns the header split into blocks of blockSize bytes.
func encodeHeader(blockSize, pageSize int, schema *record.Schema) []*file.Page {
	numBlocks := (headerSize(schema) + blockSize - 1) / blockSize
	p := file.NewPage(numBlocks * blockSize)
	p.SetInt(0, headerMagic)
	p.SetInt(4, headerVersion)
	p.SetInt(8, pageSize)
	p.SetInt(12, numBlocks)
	p.SetInt(16, schema.NumFields())
	pos := 20
	for _, name := range schema.Fields() {
		info, _ := schema.GetFieldInfo(name)
		p.SetInt(pos, int(info.Type()))
		p.SetInt(pos+4, info.Length())
		p.SetString(pos+8, name)
		pos += 2*file.IntSize + file.MaxLength(len(name))
	}

	pages := make([]*file.Page, numBlocks)
	for i := range pages {
		pages[i] = file.NewPageFromBytes(p.Bytes()[i*blockSize : (i+1)*blockSize])
	}
	return pages
}

// headerBlocks validates the fixed prefix in the first block and returns the
// number of blocks the header spans.
func headerBlocks(first *file.Page, pageSize int) (int, error) {
	if first.GetInt(0) != headerMagic {
		return 0, errors.Wrap(ErrCorruptSpill, "bad magic")
	}
	if v := first.GetInt(4); v != headerVersion {
		return 0, errors.Wrapf(ErrCorruptSpill, "unsupported version %d", v)
	}
	if ps := first.GetInt(8); ps != pageSize {
		return 0, errors.Wrapf(ErrCorruptSpill, "written with page size %d, space uses %d", ps, pageSize)
	}
	n := first.GetInt(12)
	if n <= 0 {
		return 0, errors.Wrapf(ErrCorruptSpill, "bad header block count %d", n)
	}
	return n, nil
}

// decodeHeader reads the schema from the concatenated header blocks.
func decodeHeader(p *file.Page) (*record.Schema, error) {
	n := p.GetInt(16)
	if n <= 0 {
		return nil, errors.Wrapf(ErrCorruptSpill, "bad field count %d", n)
	}

	schema := record.NewSchema()
	pos := 20
	for i := 0; i < n; i++ {
		if pos+2*file.IntSize > p.Size() {
			return nil, errors.Wrap(ErrCorruptSpill, "header truncated")
		}
		ft := record.FieldType(p.GetInt(pos))
		length := p.GetInt(pos + 4)
		name := p.GetString(pos + 8)
		if name == "" || ft < record.IntField || ft > record.StringField {
			return nil, errors.Wrapf(ErrCorruptSpill, "bad field %d", i)
		}
		schema.AddField(name, ft, length)
		pos += 2*file.IntSize + file.MaxLength(len(name))
	}
	return schema, nil
}
