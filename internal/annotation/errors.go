package annotation

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleReference is returned when a display index or id no longer
	// refers to a live entity.
	ErrStaleReference = errors.New("stale reference")

	// ErrSelfBond is returned when a bond would start and end on the same atom.
	ErrSelfBond = errors.New("bond endpoints must be distinct atoms")

	// ErrInvalidBond is returned by LoadBulk for bonds whose endpoints do
	// not address two distinct loaded atoms.
	ErrInvalidBond = errors.New("invalid bond")
)

// stale builds an ErrStaleReference and panics instead in strict mode, where
// a stale index means the caller's mirror of the store is out of sync.
func (s *Store) stale(format string, args ...any) error {
	err := fmt.Errorf("%w: "+format, append([]any{ErrStaleReference}, args...)...)
	if s.opts.Strict {
		panic(err)
	}
	return err
}
