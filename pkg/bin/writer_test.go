package bin

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heisthecat31/bkFileTools/pkg/codec"
)

// rebuildSources turns an extracted container back into Build inputs, the
// way construction from a manifest does.
func rebuildSources(c *Container, payloads [][]byte) []Source {
	sources := make([]Source, len(c.Entries))
	for i := range c.Entries {
		e := &c.Entries[i]
		sources[i] = Source{
			Payload:    payloads[i],
			Compressed: e.Compressed,
			TypeFlags:  e.TypeFlags,
		}
	}
	return sources
}

func TestBuild(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		layouts := map[string]Layout{
			"Packed":      {Alignment: 1, TailAlign: 1},
			"Original":    DefaultLayout,
			"Aligned16":   {Alignment: 16, TailAlign: 16},
			"Aligned2048": {Alignment: 2048, TailAlign: 16},
		}
		for name, layout := range layouts {
			t.Run(name, func(t *testing.T) {
				original, _ := mustBuild(t, sampleSources(), layout)

				c, payloads, err := Extract(original, layout, codec.Rare{})
				require.NoError(t, err)

				rebuilt, _, err := Build(rebuildSources(c, payloads), layout, codec.Rare{})
				require.NoError(t, err)
				assert.True(t, bytes.Equal(original, rebuilt), "reconstructed container differs")
			})
		}
	})

	t.Run("OrderPreservation", func(t *testing.T) {
		sources := sampleSources()
		data, _ := mustBuild(t, sources, Layout{Alignment: 16})

		c, payloads, err := Extract(data, Layout{Alignment: 16}, codec.Rare{})
		require.NoError(t, err)

		require.Len(t, c.Entries, len(sources))
		for i := range c.Entries {
			assert.Equal(t, i, c.Entries[i].Slot)
			assert.Equal(t, sources[i].TypeFlags, c.Entries[i].TypeFlags)
		}
		_ = payloads
	})

	t.Run("OffsetDiscipline", func(t *testing.T) {
		layout := Layout{Alignment: 16}
		_, c := mustBuild(t, sampleSources(), layout)

		prevEnd := c.DataStart()
		for i := range c.Entries {
			e := &c.Entries[i]
			assert.Zero(t, e.Offset%layout.Alignment, "slot %d offset %d off boundary", i, e.Offset)
			assert.GreaterOrEqual(t, e.Offset, prevEnd, "slot %d overlaps", i)
			assert.Less(t, e.Offset-prevEnd, layout.Alignment, "slot %d gap exceeds padding", i)
			prevEnd = e.Offset + e.StoredSize
		}
	})

	t.Run("EditShiftsLaterEntriesOnly", func(t *testing.T) {
		layout := Layout{Alignment: 16}
		edited := 1

		plain := func() []Source {
			return []Source{
				{Payload: bytes.Repeat([]byte{0x10}, 100), TypeFlags: 2},
				{Payload: bytes.Repeat([]byte{0x20}, 100), TypeFlags: 2},
				{Payload: bytes.Repeat([]byte{0x30}, 100), TypeFlags: 2},
			}
		}
		_, c1 := mustBuild(t, plain(), layout)

		after := plain()
		after[edited].Payload = bytes.Repeat([]byte{0x20}, 150)
		_, c2 := mustBuild(t, after, layout)

		for i := 0; i < edited; i++ {
			assert.Equal(t, c1.Entries[i].Offset, c2.Entries[i].Offset, "slot %d moved", i)
			assert.Equal(t, c1.Entries[i].StoredSize, c2.Entries[i].StoredSize, "slot %d resized", i)
		}
		assert.Equal(t, c1.Entries[edited].Offset, c2.Entries[edited].Offset)
		assert.Greater(t, c2.Entries[edited].StoredSize, c1.Entries[edited].StoredSize)
		assert.Greater(t, c2.Entries[edited+1].Offset, c1.Entries[edited+1].Offset)
	})

	t.Run("DeclaredLength", func(t *testing.T) {
		data, c := mustBuild(t, sampleSources(), Layout{Alignment: 16})

		sentinel := HeaderSize + len(c.Entries)*SlotSize
		declared := binary.BigEndian.Uint32(data[sentinel : sentinel+4])
		assert.Equal(t, c.DataEnd()-c.DataStart(), declared)
		assert.Equal(t, uint16(0), binary.BigEndian.Uint16(data[sentinel+4:sentinel+6]))
		assert.Equal(t, EmptyFlags, binary.BigEndian.Uint16(data[sentinel+6:sentinel+8]))
	})

	t.Run("AllEmptySlots", func(t *testing.T) {
		sources := make([]Source, 3)
		for i := range sources {
			sources[i].TypeFlags = EmptyFlags
		}
		data, c := mustBuild(t, sources, Layout{Alignment: 16})

		parsed, err := Parse(data, Layout{Alignment: 16})
		require.NoError(t, err)
		require.Len(t, parsed.Entries, 3)
		for i := range parsed.Entries {
			assert.True(t, parsed.Entries[i].Empty())
			assert.Equal(t, EmptyFlags, parsed.Entries[i].TypeFlags)
		}
		// Empty slots sit on the alignment boundary after the TOC.
		assert.Equal(t, c.Layout.Align(c.DataStart()), c.DataEnd())
		assert.Equal(t, int(c.TotalSize()), len(data))
	})

	t.Run("FillByte", func(t *testing.T) {
		layout := Layout{Alignment: 16, TailAlign: 16, Fill: 0xEE}
		sources := []Source{{Payload: []byte{1, 2, 3}, TypeFlags: 2}}
		data, c := mustBuild(t, sources, layout)

		end := c.Entries[0].Offset + c.Entries[0].StoredSize
		for i := end; i < uint32(len(data)); i++ {
			require.Equal(t, byte(0xEE), data[i], "tail byte %d not filled", i)
		}
	})

	t.Run("OriginalToolLayout", func(t *testing.T) {
		// A container laid out the way the original tool writes them:
		// entries packed back to back, file tail zero padded to a 16 byte
		// multiple.
		payload0 := []byte{0xAA, 0xAB, 0xAC, 0xAD, 0xAE}
		payload1 := []byte{0xC0, 0xC1, 0xC2, 0xC3, 0xC4, 0xC5}

		original := make([]byte, 48) // data ends at 43, padded to 48
		binary.BigEndian.PutUint32(original[0:4], 3)
		copy(original[4:8], []byte{0xFF, 0xFF, 0xFF, 0xFF})
		binary.BigEndian.PutUint32(original[8:12], 0)
		binary.BigEndian.PutUint16(original[14:16], 2)
		binary.BigEndian.PutUint32(original[16:20], 5)
		binary.BigEndian.PutUint16(original[22:24], 3)
		binary.BigEndian.PutUint32(original[24:28], 11)
		binary.BigEndian.PutUint16(original[30:32], EmptyFlags)
		copy(original[32:], payload0)
		copy(original[37:], payload1)

		c, payloads, err := Extract(original, DefaultLayout, codec.Rare{})
		require.NoError(t, err)
		assert.Equal(t, payload0, payloads[0])
		assert.Equal(t, payload1, payloads[1])

		rebuilt, _, err := Build(rebuildSources(c, payloads), DefaultLayout, codec.Rare{})
		require.NoError(t, err)
		assert.True(t, bytes.Equal(original, rebuilt), "tail padded container differs after reconstruction")
	})

	t.Run("EmptySlotMetadata", func(t *testing.T) {
		layout := Layout{Alignment: 1, TailAlign: 1}
		sources := []Source{
			{Payload: []byte{0x01}, TypeFlags: 2},
			{TypeFlags: 2},
			{Compressed: true, TypeFlags: 1},
		}
		data, _ := mustBuild(t, sources, layout)

		c, err := Parse(data, layout)
		require.NoError(t, err)
		require.True(t, c.Entries[1].Empty())
		assert.Equal(t, uint16(2), c.Entries[1].TypeFlags)
		require.True(t, c.Entries[2].Empty())
		assert.True(t, c.Entries[2].Compressed)
		assert.Equal(t, uint16(1), c.Entries[2].TypeFlags)
	})

	t.Run("ZstdCodec", func(t *testing.T) {
		layout := Layout{Alignment: 1}
		sources := []Source{
			{Payload: bytes.Repeat([]byte("texture "), 512), Compressed: true, TypeFlags: 1},
			{Payload: []byte{9, 9, 9}, TypeFlags: 2},
		}
		data, _, err := Build(sources, layout, codec.Zstd{})
		require.NoError(t, err)

		c, payloads, err := Extract(data, layout, codec.Zstd{})
		require.NoError(t, err)
		assert.Equal(t, sources[0].Payload, payloads[0])
		assert.Equal(t, uint32(len(sources[0].Payload)), c.Entries[0].RawSize)
	})
}
