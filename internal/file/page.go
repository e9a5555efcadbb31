package file

import (
	"encoding/binary"
	"math"
)

// IntSize is the number of bytes used to encode an integer on a page.
const IntSize = 4

// FloatSize is the number of bytes used to encode a float on a page.
const FloatSize = 8

// Page represents a block of data in memory
type Page struct {
	bytes []byte
}

// NewPage creates a new page with the specified block size
func NewPage(blockSize int) *Page {
	return &Page{
		bytes: make([]byte, blockSize),
	}
}

// NewPageFromBytes creates a new page from an existing byte array
func NewPageFromBytes(b []byte) *Page {
	return &Page{
		bytes: b,
	}
}

// Bytes returns the underlying byte array
func (p *Page) Bytes() []byte {
	return p.bytes
}

// Size returns the page size in bytes.
func (p *Page) Size() int {
	return len(p.bytes)
}

// Clear zeroes the page contents.
func (p *Page) Clear() {
	clear(p.bytes)
}

// GetInt reads a signed 32-bit integer from the specified offset
func (p *Page) GetInt(offset int) int {
	return int(int32(binary.BigEndian.Uint32(p.bytes[offset : offset+IntSize])))
}

// SetInt writes a signed 32-bit integer at the specified offset
func (p *Page) SetInt(offset int, val int) {
	binary.BigEndian.PutUint32(p.bytes[offset:offset+IntSize], uint32(int32(val)))
}

// GetFloat reads a float64 from the specified offset
func (p *Page) GetFloat(offset int) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(p.bytes[offset : offset+FloatSize]))
}

// SetFloat writes a float64 at the specified offset
func (p *Page) SetFloat(offset int, val float64) {
	binary.BigEndian.PutUint64(p.bytes[offset:offset+FloatSize], math.Float64bits(val))
}

// GetBytesArray reads a byte array from the specified offset.
// The format is:
//   - First 4 bytes: length of the array
//   - Next N bytes: the actual array data
func (p *Page) GetBytesArray(offset int) []byte {
	length := p.GetInt(offset)

	// Validate length to prevent slice bounds errors from garbage data
	if length < 0 || offset+IntSize+length > len(p.bytes) {
		return []byte{}
	}

	return p.bytes[offset+IntSize : offset+IntSize+length]
}

// SetBytesArray writes a byte array at the specified offset.
// The format is:
//   - First 4 bytes: length of the array
//   - Next N bytes: the actual array data
func (p *Page) SetBytesArray(offset int, val []byte) {
	p.SetInt(offset, len(val))
	copy(p.bytes[offset+IntSize:], val)
}

// GetString reads a string from the specified offset
func (p *Page) GetString(offset int) string {
	return string(p.GetBytesArray(offset))
}

// SetString writes a string at the specified offset
func (p *Page) SetString(offset int, val string) {
	p.SetBytesArray(offset, []byte(val))
}

// MaxLength returns the number of bytes needed to store a string of strlen bytes.
func MaxLength(strlen int) int {
	return IntSize + strlen
}
