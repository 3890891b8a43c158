package bin

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/heisthecat31/bkFileTools/pkg/codec"
)

// Parse decodes the header and TOC of a raw container and validates the
// layout. Payload bytes are not touched; use Payload or Extract for those.
//
// Stored sizes are derived from consecutive slot offsets, with the sentinel
// slot terminating the final entry. Raw sizes of compressed entries are
// unknown until decompression and are left zero.
func Parse(data []byte, layout Layout) (*Container, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrTruncatedHeader, len(data), HeaderSize)
	}
	slotCount := binary.BigEndian.Uint32(data[0:4])
	if slotCount == 0 {
		return nil, fmt.Errorf("%w: slot count is zero, sentinel slot is required", ErrInvalidLayout)
	}

	tocEnd := uint64(HeaderSize) + uint64(SlotSize)*uint64(slotCount)
	if tocEnd > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %d slots need %d bytes, have %d", ErrTruncatedTOC, slotCount, tocEnd, len(data))
	}
	dataStart := uint32(tocEnd)

	c := &Container{
		Layout:  layout,
		Entries: make([]Entry, slotCount-1),
	}
	copy(c.Reserved[:], data[4:HeaderSize])

	slotOffset := func(i int) uint32 {
		return binary.BigEndian.Uint32(data[HeaderSize+i*SlotSize:])
	}

	for i := range c.Entries {
		rec := data[HeaderSize+i*SlotSize : HeaderSize+(i+1)*SlotSize]
		offset := binary.BigEndian.Uint32(rec[0:4])
		next := slotOffset(i + 1)
		if next < offset {
			return nil, &LayoutError{Slot: i, Reason: fmt.Sprintf("offset %d followed by smaller offset %d", offset, next)}
		}

		e := &c.Entries[i]
		e.Slot = i
		e.Offset = dataStart + offset
		e.StoredSize = next - offset
		e.Compressed = binary.BigEndian.Uint16(rec[4:6]) != 0
		e.TypeFlags = binary.BigEndian.Uint16(rec[6:8])
		if !e.Compressed {
			e.RawSize = e.StoredSize
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Payload returns entry i's stored bytes sliced out of data. The declared
// data length can lie about the buffer even when the TOC validates, so the
// slice bounds are checked here.
func (c *Container) Payload(data []byte, i int) ([]byte, error) {
	e := &c.Entries[i]
	end := uint64(e.Offset) + uint64(e.StoredSize)
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: slot %d: bytes [%d, %d) exceed the %d byte buffer",
			ErrPayloadOutOfBounds, i, e.Offset, end, len(data))
	}
	return data[e.Offset:end:end], nil
}

// Extract parses data and decompresses every entry with cdc, returning the
// container and the raw payloads in TOC order. Empty slots yield nil
// payloads. A single bad entry aborts the whole extraction.
func Extract(data []byte, layout Layout, cdc codec.Codec) (*Container, [][]byte, error) {
	c, err := Parse(data, layout)
	if err != nil {
		return nil, nil, err
	}

	payloads := make([][]byte, len(c.Entries))
	for i := range c.Entries {
		e := &c.Entries[i]
		if e.Empty() {
			continue
		}
		stored, err := c.Payload(data, i)
		if err != nil {
			return nil, nil, err
		}
		if !e.Compressed {
			payloads[i] = stored
			continue
		}

		raw, err := cdc.Decompress(stored)
		if err != nil {
			if errors.Is(err, codec.ErrSizeMismatch) {
				return nil, nil, fmt.Errorf("slot %d: %w", i, err)
			}
			return nil, nil, fmt.Errorf("slot %d: %w: %w", i, ErrCodec, err)
		}
		e.RawSize = uint32(len(raw))
		payloads[i] = raw
	}
	return c, payloads, nil
}
