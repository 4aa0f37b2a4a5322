// Package imaging holds the raw RGB24 image produced by a capture and the
// operations applied to it afterwards: scaling and encoding.
package imaging

import (
	"errors"
	"fmt"
	"image"
)

// BytesPerPixel is the size of one packed RGB24 pixel.
const BytesPerPixel = 3

// ErrInvalidImage indicates a raw image whose buffer does not match its dimensions.
var ErrInvalidImage = errors.New("invalid raw image")

// RawImage is a tightly packed RGB24 pixel buffer.
type RawImage struct {
	Data   []byte
	Width  int
	Height int
}

// NewRawImage wraps data as a width x height RGB24 image.
func NewRawImage(data []byte, width, height int) (*RawImage, error) {
	img := &RawImage{Data: data, Width: width, Height: height}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// FrameSize returns the RGB24 byte size of a width x height frame.
func FrameSize(width, height int) int {
	return width * height * BytesPerPixel
}

// Size returns the byte size of the pixel buffer.
func (r *RawImage) Size() int {
	return len(r.Data)
}

// Validate checks that the buffer length matches the dimensions.
func (r *RawImage) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil", ErrInvalidImage)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, r.Width, r.Height)
	}
	if len(r.Data) != FrameSize(r.Width, r.Height) {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrInvalidImage, len(r.Data), r.Width, r.Height)
	}
	return nil
}

// ToRGBA expands the buffer into an image.RGBA with opaque alpha.
func (r *RawImage) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i, j := 0, 0; i < len(r.Data); i, j = i+BytesPerPixel, j+4 {
		dst.Pix[j] = r.Data[i]
		dst.Pix[j+1] = r.Data[i+1]
		dst.Pix[j+2] = r.Data[i+2]
		dst.Pix[j+3] = 0xff
	}
	return dst
}

// FromRGBA packs an image.RGBA back into RGB24, dropping alpha.
func FromRGBA(src *image.RGBA) *RawImage {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]byte, FrameSize(w, h))
	o := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := src.Pix[src.PixOffset(b.Min.X, y):]
		for x := 0; x < w; x++ {
			data[o] = row[x*4]
			data[o+1] = row[x*4+1]
			data[o+2] = row[x*4+2]
			o += BytesPerPixel
		}
	}
	return &RawImage{Data: data, Width: w, Height: h}
}
