// Package manifest maps containers to the editable on-disk tree: a YAML
// manifest plus one loose payload file per entry.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Version is the manifest schema version this package reads and writes.
const Version = 1

// FileName is the manifest's name inside an extracted tree.
const FileName = "assets.yaml"

// assetDir holds the loose payload files inside an extracted tree.
const assetDir = "assets"

var (
	// ErrParse is returned for manifests that are not well-formed or that
	// violate record-level constraints.
	ErrParse = errors.New("manifest parse")

	// ErrSchema is returned for version mismatches and unknown fields.
	// Unknown fields are rejected rather than dropped: a silently ignored
	// field would corrupt reconstruction.
	ErrSchema = errors.New("manifest schema")

	// ErrMissingPayload is returned when a referenced loose file is absent.
	ErrMissingPayload = errors.New("missing payload file")
)

// Manifest mirrors a container's TOC minus the payload bytes.
type Manifest struct {
	Version     int      `yaml:"version"`
	Codec       string   `yaml:"codec"`
	Alignment   uint32   `yaml:"alignment"`
	TailAlign   uint32   `yaml:"tail_align"`
	Fill        byte     `yaml:"fill"`
	TableLength int      `yaml:"table_length"` // TOC slots including the sentinel
	Assets      []Record `yaml:"assets"`
}

// Record describes one non-empty entry. Offset and RawSize are advisory:
// construction recomputes both from the loose files, so records stay valid
// when payloads are edited.
type Record struct {
	Slot       int    `yaml:"slot"`
	Compressed bool   `yaml:"compressed"`
	Flags      uint16 `yaml:"flags"`
	Offset     uint32 `yaml:"offset"`
	RawSize    uint32 `yaml:"raw_size"`
	Path       string `yaml:"path"`
}

// PayloadPath returns the conventional loose file path for a slot, relative
// to the tree root. Extraction writes payloads here and construction reads
// them back through the manifest's recorded path.
func PayloadPath(slot int) string {
	return path.Join(assetDir, fmt.Sprintf("%04X.bin", slot))
}

// Decode reads a manifest from r, rejecting unknown fields, and validates it.
func Decode(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode writes m to w as YAML.
func (m *Manifest) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}

func (m *Manifest) validate() error {
	if m.Version != Version {
		return fmt.Errorf("%w: version %d, this tool reads version %d", ErrSchema, m.Version, Version)
	}
	if m.Codec == "" {
		return fmt.Errorf("%w: codec is required", ErrParse)
	}
	if m.Alignment == 0 {
		return fmt.Errorf("%w: alignment must be at least 1", ErrParse)
	}
	if m.TailAlign == 0 {
		return fmt.Errorf("%w: tail_align must be at least 1", ErrParse)
	}
	if m.TableLength < 1 {
		return fmt.Errorf("%w: table_length %d, need at least the sentinel slot", ErrParse, m.TableLength)
	}
	if len(m.Assets) > m.TableLength-1 {
		return fmt.Errorf("%w: %d records exceed the %d entry slots", ErrParse, len(m.Assets), m.TableLength-1)
	}

	prev := -1
	for i, rec := range m.Assets {
		if rec.Slot < 0 || rec.Slot >= m.TableLength-1 {
			return fmt.Errorf("%w: record %d: slot %d outside table of %d entry slots", ErrParse, i, rec.Slot, m.TableLength-1)
		}
		if rec.Slot == prev {
			return fmt.Errorf("%w: record %d: duplicate slot %d", ErrParse, i, rec.Slot)
		}
		if rec.Slot < prev {
			return fmt.Errorf("%w: record %d: slot %d out of order after %d", ErrParse, i, rec.Slot, prev)
		}
		if rec.Path == "" {
			return fmt.Errorf("%w: record %d: path is required", ErrParse, i)
		}
		if !filepath.IsLocal(filepath.FromSlash(rec.Path)) {
			return fmt.Errorf("%w: record %d: path %q must stay inside the tree", ErrParse, i, rec.Path)
		}
		prev = rec.Slot
	}
	return nil
}

// ReadFile reads and validates the manifest at p.
func ReadFile(p string) (*Manifest, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile writes m to the manifest file at p.
func WriteFile(p string, m *Manifest) error {
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	if err := m.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
