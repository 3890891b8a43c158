// Package bin parses and constructs the asset bin container format.
//
// A container is a fixed header, a table of contents, and a data region.
// All integers are big-endian. The header is the slot count followed by four
// reserved bytes. Each TOC slot is a data offset relative to the start of the
// data region, a compressed flag, and opaque type flags. The final slot is a
// sentinel whose offset is the total data length; an entry's stored size is
// the distance to the next slot's offset, so zero-length slots are empty.
package bin

import (
	"fmt"
	"math"
)

const (
	// HeaderSize is the fixed binary size of the container header.
	HeaderSize = 8

	// SlotSize is the fixed binary size of one TOC slot.
	SlotSize = 8

	// EmptyFlags is the type flag value marking a slot that holds no payload.
	EmptyFlags uint16 = 4
)

// Layout carries the container level format configuration: the boundary that
// payload start offsets are rounded up to, the boundary the file tail is
// padded out to, and the byte used to fill padding.
type Layout struct {
	Alignment uint32
	TailAlign uint32
	Fill      byte
}

// DefaultLayout matches the original containers: entries are packed back to
// back, only the file tail is padded to a 16 byte multiple, and padding is
// zero filled.
var DefaultLayout = Layout{Alignment: 1, TailAlign: 16, Fill: 0x00}

func align(n, boundary uint32) uint32 {
	if boundary <= 1 {
		return n
	}
	rem := n % boundary
	if rem == 0 {
		return n
	}
	return n + boundary - rem
}

// Align rounds n up to the next multiple of the entry alignment boundary.
func (l Layout) Align(n uint32) uint32 {
	return align(n, l.Alignment)
}

// Entry is one asset slot in the container TOC.
type Entry struct {
	Slot       int    // index identity, unique within the container
	Offset     uint32 // absolute payload offset from the start of the container
	StoredSize uint32 // payload length as stored, including any trailing padding
	RawSize    uint32 // payload length after decompression; zero until decompressed
	Compressed bool
	TypeFlags  uint16 // opaque per-entry metadata, preserved across the round trip
}

// Empty reports whether the slot carries no payload. Zero-length payloads are
// indistinguishable from empty slots because stored sizes are derived from
// consecutive offsets.
func (e *Entry) Empty() bool { return e.StoredSize == 0 }

// Container is the parsed in-memory form of a bin file.
type Container struct {
	Layout   Layout
	Reserved [4]byte // header bytes 4..8, preserved verbatim
	Entries  []Entry
}

// SlotCount returns the number of TOC slots, including the sentinel.
func (c *Container) SlotCount() int { return len(c.Entries) + 1 }

// DataStart returns the absolute offset of the data region.
func (c *Container) DataStart() uint32 {
	return uint32(HeaderSize + SlotSize*c.SlotCount())
}

// DataEnd returns the absolute offset one past the final entry's stored
// bytes. This is the declared data length recorded in the sentinel slot.
func (c *Container) DataEnd() uint32 {
	end := c.DataStart()
	for i := range c.Entries {
		e := &c.Entries[i]
		if e.Offset+e.StoredSize > end {
			end = e.Offset + e.StoredSize
		}
	}
	return end
}

// TotalSize returns the number of bytes needed to hold the container under
// the current layout, including tail padding to the tail boundary.
func (c *Container) TotalSize() uint32 {
	return align(c.DataEnd(), c.Layout.TailAlign)
}

// Validate checks the TOC invariants: slot identity matches position, offsets
// are monotonically non-decreasing with no overlap between consecutive
// entries, uncompressed entries have matching raw and stored sizes, and no
// entry extends past the addressable container size.
func (c *Container) Validate() error {
	pos := uint64(c.DataStart())
	for i := range c.Entries {
		e := &c.Entries[i]
		if e.Slot != i {
			return &LayoutError{Slot: i, Reason: fmt.Sprintf("slot identity %d does not match table position", e.Slot)}
		}
		if uint64(e.Offset) < pos {
			return &LayoutError{Slot: i, Reason: fmt.Sprintf("offset %d overlaps preceding end %d", e.Offset, pos)}
		}
		end := uint64(e.Offset) + uint64(e.StoredSize)
		if end > math.MaxUint32 {
			return &LayoutError{Slot: i, Reason: fmt.Sprintf("entry end %d exceeds the 32-bit offset space", end)}
		}
		if !e.Compressed && e.RawSize != e.StoredSize {
			return &LayoutError{Slot: i, Reason: fmt.Sprintf("raw size %d differs from stored size %d on an uncompressed entry", e.RawSize, e.StoredSize)}
		}
		pos = end
	}
	return nil
}
