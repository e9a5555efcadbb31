package buffer

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/record"
)

// Pool accounts for the pages an operator holds in memory.
// Reservations beyond the capacity fail instead of waiting: execution is
// single threaded, so nobody would ever release pages for us.
type Pool struct {
	capacity int
	inUse    int
	peak     int
	mu       sync.Mutex
}

// NewPool creates a pool of capacity pages.
func NewPool(capacity int) *Pool {
	return &Pool{capacity: capacity}
}

// Reserve takes n pages from the pool.
func (p *Pool) Reserve(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n < 0 {
		return errors.AssertionFailedf("negative page reservation %d", n)
	}
	if p.inUse+n > p.capacity {
		return errors.Wrapf(record.ErrInsufficientBuffers,
			"reserving %d pages with %d of %d in use", n, p.inUse, p.capacity)
	}
	p.inUse += n
	p.peak = max(p.peak, p.inUse)
	return nil
}

// Release returns n pages to the pool.
func (p *Pool) Release(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inUse = max(p.inUse-n, 0)
}

// ReleaseAll returns every reserved page.
func (p *Pool) ReleaseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inUse = 0
}

// Peak returns the largest number of pages held at once.
func (p *Pool) Peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}
