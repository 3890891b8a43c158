package bin

import (
	"errors"
	"fmt"
)

// Failure kinds reported by Parse, Extract and Build. Every error returned by
// this package matches one of these with errors.Is, except codec size
// mismatches which match codec.ErrSizeMismatch.
var (
	// ErrTruncatedHeader is returned when the buffer ends inside the header.
	ErrTruncatedHeader = errors.New("truncated header")

	// ErrTruncatedTOC is returned when the buffer ends inside the table of
	// contents declared by the header.
	ErrTruncatedTOC = errors.New("truncated table of contents")

	// ErrInvalidLayout is returned when TOC offsets violate the container
	// invariants. The wrapping LayoutError carries the offending slot.
	ErrInvalidLayout = errors.New("invalid layout")

	// ErrPayloadOutOfBounds is returned when an entry's stored bytes extend
	// past the end of the buffer.
	ErrPayloadOutOfBounds = errors.New("payload out of bounds")

	// ErrCodec wraps compression and decompression failures.
	ErrCodec = errors.New("codec failure")
)

// LayoutError reports the entry whose offsets violate the container
// invariants.
type LayoutError struct {
	Slot   int
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("invalid layout: slot %d: %s", e.Slot, e.Reason)
}

// Unwrap makes LayoutError match ErrInvalidLayout with errors.Is.
func (e *LayoutError) Unwrap() error { return ErrInvalidLayout }
