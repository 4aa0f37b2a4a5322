// Package stream opens RTSP sources through FFmpeg and exposes them as
// decodable, convertible frame sources.
package stream

import (
	"errors"
	"fmt"
)

// ErrNoVideoStream indicates the input carries no video stream.
var ErrNoVideoStream = errors.New("no video stream found")

// Session open stages, reported by OpenError.
const (
	StageOptions     = "options"
	StageOpenInput   = "open_input"
	StageStreamInfo  = "find_stream_info"
	StageVideoStream = "find_video_stream"
	StageDecoder     = "open_decoder"
	StageConverter   = "create_converter"
	StageBuffers     = "allocate_buffers"
)

// OpenError reports the session setup step that failed.
type OpenError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("opening stream (%s): %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpenError) Unwrap() error {
	return e.Err
}

func openError(stage string, err error) *OpenError {
	return &OpenError{Stage: stage, Err: err}
}
