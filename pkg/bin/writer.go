package bin

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/heisthecat31/bkFileTools/pkg/codec"
)

// Source is one entry's input to Build, in final TOC order. A nil or empty
// payload produces an empty slot.
type Source struct {
	Payload    []byte
	Compressed bool
	TypeFlags  uint16
}

// Build lays out and serializes a container from ordered entry sources.
//
// Offsets recorded upstream are ignored: the layout is recomputed from the
// stored payload sizes, so payloads edited between extract and construct
// shift every later entry automatically. Entries flagged compressed are
// encoded with cdc; compression runs on a bounded worker pool and the
// results are slotted back in TOC order before the sequential layout pass.
func Build(sources []Source, layout Layout, cdc codec.Codec) ([]byte, *Container, error) {
	stored := make([][]byte, len(sources))

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range sources {
		src := &sources[i]
		if len(src.Payload) == 0 || !src.Compressed {
			stored[i] = src.Payload
			continue
		}
		g.Go(func() error {
			out, err := cdc.Compress(src.Payload)
			if err != nil {
				return fmt.Errorf("slot %d: %w: %w", i, ErrCodec, err)
			}
			stored[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	c := &Container{
		Layout:   layout,
		Reserved: [4]byte{0xFF, 0xFF, 0xFF, 0xFF},
		Entries:  make([]Entry, len(sources)),
	}

	pos := uint64(c.DataStart())
	for i := range sources {
		src := &sources[i]
		offset := uint64(layout.Align(uint32(pos)))
		end := offset + uint64(len(stored[i]))
		if end > math.MaxUint32 {
			return nil, nil, &LayoutError{Slot: i, Reason: fmt.Sprintf("entry end %d exceeds the 32-bit offset space", end)}
		}

		e := &c.Entries[i]
		e.Slot = i
		e.Offset = uint32(offset)
		e.StoredSize = uint32(len(stored[i]))
		e.Compressed = src.Compressed
		e.TypeFlags = src.TypeFlags
		if e.Compressed {
			e.RawSize = uint32(len(src.Payload))
		} else {
			e.RawSize = e.StoredSize
		}
		pos = end
	}

	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	total := c.TotalSize()
	out := make([]byte, total)
	if layout.Fill != 0 {
		for i := range out {
			out[i] = layout.Fill
		}
	}

	binary.BigEndian.PutUint32(out[0:4], uint32(c.SlotCount()))
	copy(out[4:HeaderSize], c.Reserved[:])

	dataStart := c.DataStart()
	for i := range c.Entries {
		e := &c.Entries[i]
		rec := out[HeaderSize+i*SlotSize : HeaderSize+(i+1)*SlotSize]
		binary.BigEndian.PutUint32(rec[0:4], e.Offset-dataStart)
		if e.Compressed {
			binary.BigEndian.PutUint16(rec[4:6], 1)
		} else {
			binary.BigEndian.PutUint16(rec[4:6], 0)
		}
		binary.BigEndian.PutUint16(rec[6:8], e.TypeFlags)

		copy(out[e.Offset:e.Offset+e.StoredSize], stored[i])
	}

	// Sentinel slot: its offset is the declared data length.
	sentinel := out[HeaderSize+len(c.Entries)*SlotSize : HeaderSize+c.SlotCount()*SlotSize]
	binary.BigEndian.PutUint32(sentinel[0:4], c.DataEnd()-dataStart)
	binary.BigEndian.PutUint16(sentinel[4:6], 0)
	binary.BigEndian.PutUint16(sentinel[6:8], EmptyFlags)

	return out, c, nil
}
