// Package output delivers an encoded snapshot to a file path or an inherited
// file descriptor.
package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jmylchreest/streamshot/internal/imaging"
	"github.com/jmylchreest/streamshot/internal/storage"
)

// MinFD is the lowest descriptor accepted; 0-2 are the standard streams.
const MinFD = 3

const minPathLength = 3

// Output errors.
var (
	ErrNoDestination = errors.New("no output destination")
	ErrInvalidPath   = errors.New("invalid output path")
	ErrInvalidFD     = errors.New("invalid output file descriptor")
)

// Destination is where the snapshot goes. FD wins over Path when both are set.
type Destination struct {
	Path string
	FD   int // < 0 = unset
}

// IsSet reports whether the destination names a path or a descriptor.
func (d Destination) IsSet() bool {
	return d.FD >= 0 || d.Path != ""
}

// String describes the destination for logging.
func (d Destination) String() string {
	if d.FD >= 0 {
		return fmt.Sprintf("fd:%d", d.FD)
	}
	return NormalizePath(d.Path)
}

// NormalizePath replaces every byte outside [A-Za-z0-9_-./] with '_'.
func NormalizePath(path string) string {
	b := []byte(path)
	for i, c := range b {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '_', c == '-', c == '.', c == '/':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

// Writer encodes images and writes them to a Destination.
type Writer struct {
	encoder *imaging.Encoder
}

// NewWriter creates a Writer using enc.
func NewWriter(enc *imaging.Encoder) *Writer {
	return &Writer{encoder: enc}
}

// Write encodes img and delivers it to dest. Nothing is written to a path
// unless encoding succeeds.
func (w *Writer) Write(dest Destination, img *imaging.RawImage) error {
	switch {
	case dest.FD >= 0:
		return w.writeFD(dest.FD, img)
	case dest.Path != "":
		return w.writePath(dest.Path, img)
	default:
		return ErrNoDestination
	}
}

func (w *Writer) writePath(path string, img *imaging.RawImage) error {
	if len(path) < minPathLength {
		return fmt.Errorf("%w: %q is shorter than %d characters", ErrInvalidPath, path, minPathLength)
	}
	normalized := NormalizePath(path)
	name := filepath.Base(normalized)
	if name == "." || name == "/" || name == ".." {
		return fmt.Errorf("%w: %q has no file name", ErrInvalidPath, path)
	}

	sandbox, err := storage.NewSandbox(filepath.Dir(normalized), false)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	return sandbox.AtomicWriteFunc(name, func(out io.Writer) error {
		return w.encoder.Encode(out, img)
	})
}

func (w *Writer) writeFD(fd int, img *imaging.RawImage) error {
	if fd < MinFD {
		return fmt.Errorf("%w: %d (must be at least %d)", ErrInvalidFD, fd, MinFD)
	}

	// Encode first so a failure leaves the descriptor untouched.
	data, err := w.encoder.EncodeBytes(img)
	if err != nil {
		return err
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("fd%d", fd))
	if f == nil {
		return fmt.Errorf("%w: %d", ErrInvalidFD, fd)
	}
	defer f.Close()

	if err := writeAll(f, data); err != nil {
		return fmt.Errorf("writing to fd %d: %w", fd, err)
	}
	return nil
}

// writeAll writes data in full, retrying short writes.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}
