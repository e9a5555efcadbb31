package file

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
)

// Manager manages disk files as fixed-size blocks.
// Each block is the same size as a Page.
// Page is the in-memory representation of a block
// - Read: BlockID → load block from disk → store in Page
// - Modify: change data in Page
// - Write: Page → write back to disk at BlockID location
type Manager struct {
	blockSize   int
	dir         string
	openedFiles map[string]*os.File
	mu          sync.Mutex
}

// NewManager creates a new file manager rooted at dir
func NewManager(dir string, blockSize int) (*Manager, error) {
	if blockSize <= 0 {
		return nil, errors.Newf("block size must be positive, got %d", blockSize)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create directory")
	}

	return &Manager{
		blockSize:   blockSize,
		dir:         dir,
		openedFiles: make(map[string]*os.File),
	}, nil
}

// BlockSize returns the block size
func (fm *Manager) BlockSize() int {
	return fm.blockSize
}

// Dir returns the directory holding the managed files.
func (fm *Manager) Dir() string {
	return fm.dir
}

// Read reads the contents of the specified block into the provided page.
// Can only read blocks that exist (0 to numBlocks-1).
func (fm *Manager) Read(blk *BlockID, p *Page) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if blk.Number() < 0 {
		return errors.Newf("negative block number not allowed: %s", blk)
	}

	f, err := fm.getFile(blk.Filename())
	if err != nil {
		return err
	}

	numBlocks, err := fm.totalBlocks(f)
	if err != nil {
		return err
	}

	// Can only read blocks that actually exist in the file
	if blk.Number() >= numBlocks {
		return errors.Newf("cannot read block %s: file only has %d blocks", blk, numBlocks)
	}

	_, err = f.ReadAt(p.Bytes(), int64(blk.Number())*int64(fm.blockSize))
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "failed to read block %s", blk)
	}

	return nil
}

// Write writes the contents of the provided page to the specified block.
func (fm *Manager) Write(blk *BlockID, p *Page) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if blk.Number() < 0 {
		return errors.Newf("negative block number not allowed: %s", blk)
	}

	f, err := fm.getFile(blk.Filename())
	if err != nil {
		return err
	}

	if _, err = f.WriteAt(p.Bytes(), int64(blk.Number())*int64(fm.blockSize)); err != nil {
		return errors.Wrapf(err, "failed to write block %s", blk)
	}

	return nil
}

// Append adds a new block to the end of the specified file and returns its BlockID.
// The new block is initialized with zeros.
func (fm *Manager) Append(filename string) (*BlockID, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	f, err := fm.getFile(filename)
	if err != nil {
		return nil, err
	}

	numBlocks, err := fm.totalBlocks(f)
	if err != nil {
		return nil, err
	}

	blk := NewBlockID(filename, numBlocks)
	emptyBytes := make([]byte, fm.blockSize)

	if _, err = f.WriteAt(emptyBytes, int64(blk.Number())*int64(fm.blockSize)); err != nil {
		return nil, errors.Wrapf(err, "cannot append block %s", blk)
	}

	return blk, nil
}

// GetTotalBlocks returns the number of blocks in the specified file
// Blocks are 0-indexed, so a file with blocks 0,1,2,3,4 has count 5.
func (fm *Manager) GetTotalBlocks(filename string) (int, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	f, err := fm.getFile(filename)
	if err != nil {
		return 0, err
	}
	return fm.totalBlocks(f)
}

// Exists reports whether filename is present on disk.
func (fm *Manager) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(fm.dir, filename))
	return err == nil
}

// Remove closes and deletes the specified file. Removing a missing file is not an error.
func (fm *Manager) Remove(filename string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if f, ok := fm.openedFiles[filename]; ok {
		delete(fm.openedFiles, filename)
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "failed to close file %s", filename)
		}
	}
	err := os.Remove(filepath.Join(fm.dir, filename))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove file %s", filename)
	}
	return nil
}

// Close closes all opened files
func (fm *Manager) Close() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	var result error
	for name, f := range fm.openedFiles {
		if err := f.Close(); err != nil {
			result = errors.CombineErrors(result, errors.Wrapf(err, "failed to close file %s", name))
		}
		delete(fm.openedFiles, name)
	}
	return result
}

func (fm *Manager) totalBlocks(f *os.File) (int, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get file info")
	}
	return int(fi.Size() / int64(fm.blockSize)), nil
}

// getFile returns the file with the specified filename, creating it if it does not exist
func (fm *Manager) getFile(filename string) (*os.File, error) {
	f, ok := fm.openedFiles[filename]
	if ok {
		return f, nil
	}

	f, err := os.OpenFile(filepath.Join(fm.dir, filename), os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file %s", filename)
	}
	fm.openedFiles[filename] = f

	return f, nil
}
