package record

import "github.com/cockroachdb/errors"

var (
	// ErrTupleTooLarge is returned when a single tuple does not fit in one page.
	ErrTupleTooLarge = errors.New("tuple larger than page")
	// ErrInsufficientBuffers is returned when an operator is given fewer pages than it needs.
	ErrInsufficientBuffers = errors.New("insufficient buffer pages")
)

// PageCapacity returns how many tuples of tupleSize bytes fit in a page of pageSize bytes.
func PageCapacity(pageSize, tupleSize int) (int, error) {
	if tupleSize <= 0 {
		return 0, errors.AssertionFailedf("non-positive tuple size %d", tupleSize)
	}
	n := pageSize / tupleSize
	if n == 0 {
		return 0, errors.Wrapf(ErrTupleTooLarge, "tuple of %d bytes, page of %d bytes", tupleSize, pageSize)
	}
	return n, nil
}

// RequireBuffers fails with ErrInsufficientBuffers when have < need.
func RequireBuffers(op string, have, need int) error {
	if have < need {
		return errors.Wrapf(ErrInsufficientBuffers, "%s needs at least %d pages, got %d", op, need, have)
	}
	return nil
}
