package imaging

import (
	"fmt"
	"strings"
)

// Format identifies an output image encoding.
type Format string

// Supported output formats.
const (
	FormatJPEG Format = "jpg"
	FormatPNG  Format = "png"
	FormatPPM  Format = "ppm"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// ParseFormat maps a case-insensitive format name to a Format.
// "jpeg" is accepted as an alias for "jpg" and "tif" for "tiff".
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "ppm":
		return FormatPPM, nil
	case "bmp":
		return FormatBMP, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("unsupported image format %q: must be one of jpg, jpeg, png, ppm, bmp, tiff", name)
	}
}
