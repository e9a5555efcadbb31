package spill

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/file"
	"github.com/yashagw/craneqp/internal/record"
)

// ErrCorruptSpill is returned when a run file's header or pages cannot be decoded.
var ErrCorruptSpill = errors.New("corrupt spill file")

// Space owns a directory of run files that all use the same page size.
// Every block in the directory is pageSize bytes of tuple data plus the
// 4-byte tuple count.
type Space struct {
	files    *file.Manager
	pageSize int
	seq      atomic.Uint64
}

// NewSpace creates a run space rooted at dir.
func NewSpace(dir string, pageSize int) (*Space, error) {
	if pageSize <= 0 {
		return nil, errors.Newf("page size must be positive, got %d", pageSize)
	}
	fm, err := file.NewManager(dir, pageSize+file.IntSize)
	if err != nil {
		return nil, err
	}
	return &Space{files: fm, pageSize: pageSize}, nil
}

// PageSize returns the number of tuple bytes on one page.
func (s *Space) PageSize() int {
	return s.pageSize
}

// Dir returns the directory backing the space.
func (s *Space) Dir() string {
	return s.files.Dir()
}

// Close releases every open file handle. Run files stay on disk.
func (s *Space) Close() error {
	return s.files.Close()
}

// Create starts a new run with a name unique within the space.
func (s *Space) Create(prefix string, schema *record.Schema) (*Writer, error) {
	var name string
	for {
		name = fmt.Sprintf("%s-%d.run", prefix, s.seq.Add(1))
		if !s.files.Exists(name) {
			break
		}
	}
	return s.CreateNamed(name, schema)
}

// CreateNamed creates, or truncates, the run called name.
func (s *Space) CreateNamed(name string, schema *record.Schema) (*Writer, error) {
	codec, err := record.NewCodec(schema, s.pageSize)
	if err != nil {
		return nil, err
	}
	if err := s.files.Remove(name); err != nil {
		return nil, err
	}
	header := encodeHeader(s.files.BlockSize(), s.pageSize, schema)
	for _, page := range header {
		blk, err := s.files.Append(name)
		if err != nil {
			return nil, err
		}
		if err := s.files.Write(blk, page); err != nil {
			return nil, err
		}
	}
	log.Printf("[SPILL] Created run %s (%d tuples/page)", name, codec.Capacity())
	run := &Run{space: s, name: name, codec: codec, dataStart: len(header)}
	return newWriter(run), nil
}

// Open opens an existing run for reading. The schema comes from the header.
func (s *Space) Open(name string) (*Run, error) {
	if !s.files.Exists(name) {
		return nil, errors.Newf("run %s does not exist", name)
	}
	n, err := s.files.GetTotalBlocks(name)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.Wrapf(ErrCorruptSpill, "run %s has no header", name)
	}
	bs := s.files.BlockSize()
	first := file.NewPage(bs)
	if err := s.files.Read(file.NewBlockID(name, 0), first); err != nil {
		return nil, err
	}
	hb, err := headerBlocks(first, s.pageSize)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s", name)
	}
	if hb > n {
		return nil, errors.Wrapf(ErrCorruptSpill, "run %s: header needs %d blocks, file has %d", name, hb, n)
	}
	whole := file.NewPage(hb * bs)
	copy(whole.Bytes(), first.Bytes())
	for i := 1; i < hb; i++ {
		part := file.NewPageFromBytes(whole.Bytes()[i*bs : (i+1)*bs])
		if err := s.files.Read(file.NewBlockID(name, i), part); err != nil {
			return nil, err
		}
	}
	schema, err := decodeHeader(whole)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s", name)
	}
	codec, err := record.NewCodec(schema, s.pageSize)
	if err != nil {
		return nil, err
	}
	return &Run{space: s, name: name, codec: codec, dataStart: hb}, nil
}

// OpenAppend reopens an existing run so that more pages can be added after the
// ones already written. The header is validated and left untouched.
func (s *Space) OpenAppend(name string) (*Writer, error) {
	run, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	w := newWriter(run)
	if w.numPages, err = run.NumPages(); err != nil {
		return nil, err
	}
	return w, nil
}
