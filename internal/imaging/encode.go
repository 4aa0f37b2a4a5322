package imaging

import (
	"bufio"
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Encoder turns raw images into encoded bytes.
type Encoder struct {
	format  Format
	quality int
}

// NewEncoder creates an Encoder for the given format and quality (0-100).
func NewEncoder(format Format, quality int) (*Encoder, error) {
	format, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}
	if quality < 0 || quality > 100 {
		return nil, fmt.Errorf("image quality %d out of range 0-100", quality)
	}
	return &Encoder{format: format, quality: quality}, nil
}

// Format returns the encoder's output format.
func (e *Encoder) Format() Format {
	return e.format
}

// Encode writes img to w in the encoder's format.
func (e *Encoder) Encode(w io.Writer, img *RawImage) error {
	if err := img.Validate(); err != nil {
		return err
	}

	var err error
	switch e.format {
	case FormatJPEG:
		err = jpeg.Encode(w, img.ToRGBA(), &jpeg.Options{Quality: e.quality})
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: pngCompression(e.quality)}
		err = enc.Encode(w, img.ToRGBA())
	case FormatPPM:
		err = WritePPM(w, img)
	case FormatBMP:
		err = bmp.Encode(w, img.ToRGBA())
	case FormatTIFF:
		err = tiff.Encode(w, img.ToRGBA(), &tiff.Options{Compression: tiff.Deflate})
	}
	if err != nil {
		return fmt.Errorf("encoding to %s: %w", e.format, err)
	}
	return nil
}

// EncodeBytes encodes img into a new buffer.
func (e *Encoder) EncodeBytes(img *RawImage) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pngCompression maps a 0-100 quality onto zlib's 0-9 scale and then onto
// the closest level Go's encoder exposes.
func pngCompression(quality int) png.CompressionLevel {
	level := (100 - quality) * 9 / 100
	switch {
	case level == 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// WritePPM writes img as a binary (P6) portable pixmap.
func WritePPM(w io.Writer, img *RawImage) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P6\n%d %d\n255\n", img.Width, img.Height); err != nil {
		return err
	}
	if _, err := bw.Write(img.Data); err != nil {
		return err
	}
	return bw.Flush()
}
