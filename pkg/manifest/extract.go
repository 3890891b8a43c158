package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/heisthecat31/bkFileTools/pkg/bin"
)

// Option configures WriteTree and BuildBin.
type Option func(*config)

// WithLogger sets the logger used for progress output. Without it, nothing
// is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

type config struct {
	logger *slog.Logger
}

func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// FromContainer builds the manifest describing c, with payloads stored under
// the conventional loose file paths. Plain empty slots carry no record; their
// position is implied by table_length and restored on construction. A
// zero-length entry whose flags differ from the empty marker still gets a
// record (and a zero-byte loose file) so its TOC metadata survives the round
// trip.
func FromContainer(c *bin.Container, codecName string) *Manifest {
	m := &Manifest{
		Version:     Version,
		Codec:       codecName,
		Alignment:   c.Layout.Alignment,
		TailAlign:   c.Layout.TailAlign,
		Fill:        c.Layout.Fill,
		TableLength: c.SlotCount(),
	}
	for i := range c.Entries {
		e := &c.Entries[i]
		if e.Empty() && e.TypeFlags == bin.EmptyFlags && !e.Compressed {
			continue
		}
		m.Assets = append(m.Assets, Record{
			Slot:       e.Slot,
			Compressed: e.Compressed,
			Flags:      e.TypeFlags,
			Offset:     e.Offset,
			RawSize:    e.RawSize,
			Path:       PayloadPath(e.Slot),
		})
	}
	return m
}

// WriteTree writes the extracted form of a container under dir: one loose
// file per manifest record plus the manifest itself. The payloads must be in
// TOC order as produced by bin.Extract.
func WriteTree(dir string, c *bin.Container, payloads [][]byte, codecName string, opts ...Option) error {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(payloads) != len(c.Entries) {
		return fmt.Errorf("payload count %d does not match %d entries", len(payloads), len(c.Entries))
	}

	if err := os.MkdirAll(filepath.Join(dir, assetDir), 0755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}

	m := FromContainer(c, codecName)
	for _, rec := range m.Assets {
		p := filepath.Join(dir, filepath.FromSlash(rec.Path))
		if err := os.WriteFile(p, payloads[rec.Slot], 0644); err != nil {
			return fmt.Errorf("write payload %04X: %w", rec.Slot, err)
		}
		cfg.log().Debug("wrote payload",
			"slot", fmt.Sprintf("%04X", rec.Slot),
			"bytes", len(payloads[rec.Slot]),
			"compressed", rec.Compressed)
	}

	if err := WriteFile(filepath.Join(dir, FileName), m); err != nil {
		return err
	}
	cfg.log().Info("tree written", "dir", dir, "assets", len(m.Assets), "slots", m.TableLength)
	return nil
}
