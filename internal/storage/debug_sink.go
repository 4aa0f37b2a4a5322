package storage

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jmylchreest/streamshot/internal/imaging"
)

// DebugFrameName returns the file name of a sampled frame.
func DebugFrameName(index uint64) string {
	return fmt.Sprintf("debug_image_%010d.ppm", index)
}

// DebugSink saves diagnostic PPM images into a sandboxed directory.
type DebugSink struct {
	sandbox *Sandbox
	logger  *slog.Logger
}

// NewDebugSink creates a DebugSink writing into dir.
func NewDebugSink(dir string, create bool, logger *slog.Logger) (*DebugSink, error) {
	sandbox, err := NewSandbox(dir, create)
	if err != nil {
		return nil, fmt.Errorf("preparing debug directory: %w", err)
	}
	return &DebugSink{sandbox: sandbox, logger: logger}, nil
}

// Dir returns the absolute debug directory.
func (d *DebugSink) Dir() string {
	return d.sandbox.BaseDir()
}

// SaveFrame writes a sampled frame as debug_image_<index>.ppm.
func (d *DebugSink) SaveFrame(index uint64, img *imaging.RawImage) error {
	return d.SaveImage(DebugFrameName(index), img)
}

// SaveImage writes img as a PPM file named name.
func (d *DebugSink) SaveImage(name string, img *imaging.RawImage) error {
	if err := img.Validate(); err != nil {
		return err
	}
	err := d.sandbox.AtomicWriteFunc(name, func(w io.Writer) error {
		return imaging.WritePPM(w, img)
	})
	if err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	d.logger.Debug("saved debug image", slog.String("file", name), slog.Int("width", img.Width), slog.Int("height", img.Height))
	return nil
}
