package imaging

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Scale bounds.
const (
	MinScaleFactor = 0.1
	MaxScaleFactor = 10.0
	MinWidth       = 192
	MaxWidth       = 19200
	MinHeight      = 108
	MaxHeight      = 10800
)

// ErrInvalidDestinationDimensions indicates the scaled size falls outside the supported range.
var ErrInvalidDestinationDimensions = errors.New("invalid destination dimensions")

// ScaleOptions selects how a raw image is resized.
// A Factor other than 0 or 1 is explicit and wins over Width and Height.
type ScaleOptions struct {
	Factor       float64
	Width        int // 0 = unset
	Height       int // 0 = unset
	Interpolator string
}

// Interpolator returns the resampler registered under name.
// Unknown names fall back to Catmull-Rom.
func Interpolator(name string) draw.Interpolator {
	switch name {
	case "nearest":
		return draw.NearestNeighbor
	case "approxbilinear":
		return draw.ApproxBiLinear
	case "bilinear":
		return draw.BiLinear
	default:
		return draw.CatmullRom
	}
}

// ResolveFactor computes the effective scale factor for a srcW x srcH image.
func ResolveFactor(srcW, srcH int, opts ScaleOptions) float64 {
	if opts.Factor != 0 && opts.Factor != 1.0 {
		return clampFactor(opts.Factor)
	}
	if opts.Width <= 0 && opts.Height <= 0 {
		return 1.0
	}

	scaleW, scaleH := 1.0, 1.0
	if opts.Width > 0 {
		scaleW = float64(opts.Width) / float64(srcW)
	}
	if opts.Height > 0 {
		scaleH = float64(opts.Height) / float64(srcH)
	}

	var f float64
	switch {
	case opts.Width > 0 && opts.Height > 0:
		f = min(scaleW, scaleH)
	case opts.Width > 0:
		f = scaleW
	default:
		f = scaleH
	}
	return clampFactor(f)
}

func clampFactor(f float64) float64 {
	return max(MinScaleFactor, min(MaxScaleFactor, f))
}

// Scale resizes img according to opts. A resolved factor of exactly 1.0
// returns img itself. On error img is left untouched.
func Scale(img *RawImage, opts ScaleOptions) (*RawImage, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	factor := ResolveFactor(img.Width, img.Height, opts)
	if factor == 1.0 {
		return img, nil
	}

	dstW := int(float64(img.Width) * factor)
	dstH := int(float64(img.Height) * factor)
	if dstW <= 0 || dstH <= 0 ||
		dstW < MinWidth || dstW > MaxWidth ||
		dstH < MinHeight || dstH > MaxHeight {
		return nil, fmt.Errorf("%w: %dx%d (factor %.2f)", ErrInvalidDestinationDimensions, dstW, dstH, factor)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	Interpolator(opts.Interpolator).Scale(dst, dst.Bounds(), img.ToRGBA(), image.Rect(0, 0, img.Width, img.Height), draw.Src, nil)
	return FromRGBA(dst), nil
}
