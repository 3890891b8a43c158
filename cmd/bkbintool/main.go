// Package main provides a command-line tool for splitting asset bin
// containers into an editable tree and rebuilding them.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/heisthecat31/bkFileTools/pkg/bin"
	"github.com/heisthecat31/bkFileTools/pkg/codec"
	"github.com/heisthecat31/bkFileTools/pkg/manifest"
)

var (
	mode           string
	inputPath      string
	outputPath     string
	codecName      string
	alignment      uint32
	tailAlign      uint32
	fill           uint8
	forceOverwrite bool
	verbose        bool
)

func init() {
	pflag.StringVar(&mode, "mode", "", "Operation mode: extract, construct, list")
	pflag.StringVar(&inputPath, "input", "", "Input bin file (extract, list) or manifest file (construct)")
	pflag.StringVar(&outputPath, "output", "", "Output directory (extract) or bin file (construct)")
	pflag.StringVar(&codecName, "codec", codec.NameRare, "Compression codec: rare, zstd")
	pflag.Uint32Var(&alignment, "alignment", bin.DefaultLayout.Alignment, "Payload alignment boundary in bytes")
	pflag.Uint32Var(&tailAlign, "tail", bin.DefaultLayout.TailAlign, "File tail alignment boundary in bytes")
	pflag.Uint8Var(&fill, "fill", bin.DefaultLayout.Fill, "Padding fill byte")
	pflag.BoolVar(&forceOverwrite, "force", false, "Allow a non-empty output directory")
	pflag.BoolVar(&verbose, "verbose", false, "Enable per-entry debug output")
}

func main() {
	pflag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := validateFlags(); err != nil {
		pflag.Usage()
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	switch mode {
	case "extract":
		return runExtract(logger)
	case "construct":
		return runConstruct(logger)
	case "list":
		return runList()
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
}

func validateFlags() error {
	if mode == "" {
		return fmt.Errorf("mode is required")
	}
	if inputPath == "" {
		return fmt.Errorf("input path is required")
	}
	switch mode {
	case "extract", "construct":
		if outputPath == "" {
			return fmt.Errorf("output path is required")
		}
	case "list":
	default:
		return fmt.Errorf("mode must be 'extract', 'construct' or 'list'")
	}
	return nil
}

func runExtract(logger *slog.Logger) error {
	cdc, err := codec.Lookup(codecName)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read bin: %w", err)
	}

	layout := bin.Layout{Alignment: alignment, TailAlign: tailAlign, Fill: fill}
	c, payloads, err := bin.Extract(data, layout, cdc)
	if err != nil {
		return fmt.Errorf("extract %s: %w", inputPath, err)
	}
	logger.Info("container parsed", "slots", c.SlotCount(), "bytes", len(data))

	if err := prepareOutputDir(); err != nil {
		return err
	}

	if err := manifest.WriteTree(outputPath, c, payloads, cdc.Name(), manifest.WithLogger(logger)); err != nil {
		return fmt.Errorf("write tree: %w", err)
	}
	return nil
}

func runConstruct(logger *slog.Logger) error {
	m, err := manifest.ReadFile(inputPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(inputPath)
	data, _, err := manifest.BuildBin(dir, m, manifest.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("construct: %w", err)
	}

	if err := writeFileAtomic(outputPath, data); err != nil {
		return fmt.Errorf("write bin: %w", err)
	}
	logger.Info("bin written", "path", outputPath, "bytes", len(data))
	return nil
}

func runList() error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read bin: %w", err)
	}

	layout := bin.Layout{Alignment: alignment, TailAlign: tailAlign, Fill: fill}
	c, err := bin.Parse(data, layout)
	if err != nil {
		return fmt.Errorf("parse %s: %w", inputPath, err)
	}

	var (
		emptySlots   int
		payloadBytes uint64
	)

	fmt.Printf("%-6s %-10s %-10s %-5s %s\n", "SLOT", "OFFSET", "STORED", "COMP", "FLAGS")
	for i := range c.Entries {
		e := &c.Entries[i]
		if e.Empty() {
			emptySlots++
			fmt.Printf("%-6d %-10s %-10s %-5s 0x%04x\n", e.Slot, "-", "-", "-", e.TypeFlags)
			continue
		}
		payloadBytes += uint64(e.StoredSize)

		comp := "no"
		if e.Compressed {
			comp = "yes"
		}
		fmt.Printf("%-6d 0x%08x %-10d %-5s 0x%04x\n", e.Slot, e.Offset, e.StoredSize, comp, e.TypeFlags)
	}

	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Slots (with sentinel):  %d\n", c.SlotCount())
	fmt.Printf("Empty slots:            %d\n", emptySlots)
	fmt.Printf("Payload bytes:          %d\n", payloadBytes)
	fmt.Printf("Container bytes:        %d\n", len(data))
	return nil
}

func prepareOutputDir() error {
	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if !forceOverwrite {
		empty, err := isDirEmpty(outputPath)
		if err != nil {
			return fmt.Errorf("check output directory: %w", err)
		}
		if !empty {
			return fmt.Errorf("output directory is not empty (use --force to override)")
		}
	}
	return nil
}

func isDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdir(1)
	return err == io.EOF, nil
}

// writeFileAtomic writes data to a temp file in the destination directory
// and renames it into place, so a failed run never leaves a partial bin.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
