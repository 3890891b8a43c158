package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/flate"
)

// NameRare identifies the Rare deflate stream codec.
const NameRare = "rare"

// rareMagic prefixes every Rare compressed stream.
var rareMagic = [2]byte{0x11, 0x72}

// rareHeaderSize is the magic plus the big-endian decompressed size.
const rareHeaderSize = 6

// Rare implements the compressed stream format found in the original asset
// containers: a two byte magic, the decompressed size as a big-endian uint32,
// then a raw DEFLATE stream.
type Rare struct{}

// Name returns the codec identifier.
func (Rare) Name() string { return NameRare }

// Compress encodes raw as a Rare stream.
func (Rare) Compress(raw []byte) ([]byte, error) {
	if len(raw) > math.MaxUint32 {
		return nil, fmt.Errorf("payload too large for rare stream: %d bytes", len(raw))
	}

	var buf bytes.Buffer
	buf.Write(rareMagic[:])
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(raw)))
	buf.Write(size[:])

	fw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("init deflate: %w", err)
	}
	if _, err := fw.Write(raw); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("close deflate: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress decodes a Rare stream and verifies the recorded size.
// Trailing padding after the DEFLATE stream is tolerated; the containers pad
// stored entries to their alignment boundary.
func (Rare) Decompress(stored []byte) ([]byte, error) {
	if len(stored) < rareHeaderSize {
		return nil, fmt.Errorf("rare stream too short: %d bytes, need at least %d", len(stored), rareHeaderSize)
	}
	if stored[0] != rareMagic[0] || stored[1] != rareMagic[1] {
		return nil, fmt.Errorf("bad rare stream magic: got % x, want % x", stored[:2], rareMagic[:])
	}
	rawSize := binary.BigEndian.Uint32(stored[2:rareHeaderSize])

	fr := flate.NewReader(bytes.NewReader(stored[rareHeaderSize:]))
	defer fr.Close()

	raw := make([]byte, rawSize)
	n, err := io.ReadFull(fr, raw)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: stream ended after %d of %d bytes", ErrSizeMismatch, n, rawSize)
		}
		return nil, fmt.Errorf("inflate: %w", err)
	}

	var extra [1]byte
	if n, _ := fr.Read(extra[:]); n != 0 {
		return nil, fmt.Errorf("%w: stream longer than recorded %d bytes", ErrSizeMismatch, rawSize)
	}
	return raw, nil
}
