// Package codec provides the compression codecs used by asset containers.
//
// Codecs are stateless and safe for concurrent use. Decompress is a left
// inverse of Compress: Decompress(Compress(x)) == x for every input x.
package codec

import (
	"errors"
	"fmt"
)

// Codec compresses and decompresses entry payloads.
type Codec interface {
	// Name returns the identifier recorded in manifests.
	Name() string
	// Compress returns the stored form of raw.
	Compress(raw []byte) ([]byte, error)
	// Decompress returns the raw form of stored.
	Decompress(stored []byte) ([]byte, error)
}

var (
	// ErrUnknownCodec is returned by Lookup for unregistered codec names.
	ErrUnknownCodec = errors.New("unknown codec")

	// ErrSizeMismatch is returned when a decompressed stream does not match
	// the size recorded alongside it.
	ErrSizeMismatch = errors.New("decompressed size mismatch")
)

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	switch name {
	case NameRare:
		return Rare{}, nil
	case NameZstd:
		return Zstd{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}
