package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/heisthecat31/bkFileTools/pkg/bin"
	"github.com/heisthecat31/bkFileTools/pkg/codec"
)

// BuildBin constructs container bytes from a manifest and the loose files it
// references, resolved relative to dir. Slots without a record become empty
// entries. Offsets recorded in the manifest are ignored; the container layout
// is recomputed from the loose file sizes.
func BuildBin(dir string, m *Manifest, opts ...Option) ([]byte, *bin.Container, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	cdc, err := codec.Lookup(m.Codec)
	if err != nil {
		return nil, nil, fmt.Errorf("manifest codec: %w", err)
	}

	sources := make([]bin.Source, m.TableLength-1)
	for i := range sources {
		sources[i].TypeFlags = bin.EmptyFlags
	}

	for _, rec := range m.Assets {
		p := filepath.Join(dir, filepath.FromSlash(rec.Path))
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil, fmt.Errorf("%w: slot %04X: %s", ErrMissingPayload, rec.Slot, rec.Path)
			}
			return nil, nil, fmt.Errorf("read payload %04X: %w", rec.Slot, err)
		}
		sources[rec.Slot] = bin.Source{
			Payload:    data,
			Compressed: rec.Compressed,
			TypeFlags:  rec.Flags,
		}
		cfg.log().Debug("loaded payload",
			"slot", fmt.Sprintf("%04X", rec.Slot),
			"bytes", len(data),
			"compressed", rec.Compressed)
	}

	layout := bin.Layout{Alignment: m.Alignment, TailAlign: m.TailAlign, Fill: m.Fill}
	data, c, err := bin.Build(sources, layout, cdc)
	if err != nil {
		return nil, nil, err
	}
	cfg.log().Info("container built", "bytes", len(data), "slots", m.TableLength, "codec", cdc.Name())
	return data, c, nil
}
