// Package capture reads a bounded window of decoded video frames from a
// stream source and averages them into a single raw image.
package capture

import (
	"errors"
	"time"

	"github.com/jmylchreest/streamshot/internal/imaging"
)

// ErrDecoderDrained is returned by Source.ReceiveFrame when the decoder needs
// more input before it can emit another frame.
var ErrDecoderDrained = errors.New("decoder drained")

// Rational is a frame rate expressed as Num/Den.
type Rational struct {
	Num int
	Den int
}

// Valid reports whether the rational carries a usable, non-zero value.
func (r Rational) Valid() bool {
	return r.Num != 0 && r.Den != 0
}

// Float64 returns the rational as a float, or 0 if it is not valid.
func (r Rational) Float64() float64 {
	if !r.Valid() {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// FrameRates are the rates a demuxer reports for the selected video stream.
type FrameRates struct {
	Average Rational
	Real    Rational
}

// Unit is one demuxed compressed packet.
type Unit struct {
	StreamIndex int
	Size        int
}

// Frame describes the picture the decoder most recently emitted.
type Frame struct {
	KeyFrame bool
}

// Source is an opened stream session that can be read one unit at a time.
// The decoded frame and the packet buffer stay owned by the source.
type Source interface {
	// FrameRates returns the rates reported for the video stream.
	FrameRates() FrameRates
	// VideoStreamIndex returns the index of the selected video stream.
	VideoStreamIndex() int
	// FrameSize returns the decoder's picture dimensions.
	FrameSize() (width, height int)
	// ReadUnit reads the next compressed unit. It returns io.EOF at end of stream.
	ReadUnit() (Unit, error)
	// SendUnit submits the last read unit to the decoder.
	SendUnit() error
	// ReceiveFrame pulls the next decoded frame, or ErrDecoderDrained.
	ReceiveFrame() (Frame, error)
	// ConvertFrame writes the last received frame into dst as packed RGB24.
	ConvertFrame(dst []byte) error
	// Close releases every resource the source holds. It is idempotent.
	Close() error
}

// SourceConfig describes how to open a Source.
type SourceConfig struct {
	URL     string
	Timeout time.Duration
	Debug   bool
}

// OpenFunc opens a Source.
type OpenFunc func(cfg SourceConfig) (Source, error)

// DebugSink receives diagnostic snapshots during a capture.
type DebugSink interface {
	// SaveFrame stores a sampled converted frame under its 1-based index.
	SaveFrame(index uint64, img *imaging.RawImage) error
	// SaveImage stores a named intermediate image.
	SaveImage(name string, img *imaging.RawImage) error
}
