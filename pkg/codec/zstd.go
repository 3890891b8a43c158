package codec

import (
	"fmt"

	"github.com/DataDog/zstd"
)

// NameZstd identifies the zstd codec used by newer container variants.
const NameZstd = "zstd"

// DefaultZstdLevel is the compression level used when encoding zstd entries.
const DefaultZstdLevel = zstd.BestSpeed

// Zstd stores entries as zstd frames. The frame header is self describing,
// so no extra framing is added around it.
type Zstd struct{}

// Name returns the codec identifier.
func (Zstd) Name() string { return NameZstd }

// Compress encodes raw as a zstd frame.
func (Zstd) Compress(raw []byte) ([]byte, error) {
	out, err := zstd.CompressLevel(nil, raw, DefaultZstdLevel)
	if err != nil {
		return nil, fmt.Errorf("zstd compress: %w", err)
	}
	return out, nil
}

// Decompress decodes a zstd frame.
func (Zstd) Decompress(stored []byte) ([]byte, error) {
	out, err := zstd.Decompress(nil, stored)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
