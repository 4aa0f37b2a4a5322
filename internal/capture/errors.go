package capture

import (
	"errors"
	"fmt"
)

// Capture errors.
var (
	// ErrConnectionLost indicates a hard read failure ended the capture.
	ErrConnectionLost = errors.New("connection lost or decode error")

	// ErrPrematureEnd indicates the stream ended, the deadline passed, or decoding
	// failed after a successful read before the budget was met.
	ErrPrematureEnd = errors.New("stream ended before enough frames were processed")

	// ErrNoFramesToRead indicates an averaging request with a zero frame budget.
	ErrNoFramesToRead = errors.New("no frames to read")

	// ErrInsufficientMemory indicates the accumulation buffers would not fit in available memory.
	ErrInsufficientMemory = errors.New("insufficient memory for capture buffers")

	// ErrInvalidFrameRate indicates the stream reported a non-positive frame rate.
	ErrInvalidFrameRate = errors.New("invalid frame rate")

	// ErrInvalidExposure indicates a negative exposure.
	ErrInvalidExposure = errors.New("invalid exposure")
)

// Capture stages, reported by StageError.
const (
	StageOpen    = "open"
	StageLimits  = "limits"
	StageAlloc   = "allocate"
	StageCapture = "capture"
	StageAverage = "average"
)

// StageError wraps an error with the capture stage it came from.
type StageError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new StageError.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// InterruptedError reports a capture that stopped before its frame budget was met.
// Cause is ErrConnectionLost or ErrPrematureEnd. Err is the underlying failure, if any.
type InterruptedError struct {
	Cause    error
	Received uint64
	Budget   uint64
	Err      error
}

// Error implements the error interface.
func (e *InterruptedError) Error() string {
	msg := fmt.Sprintf("%v, processed %d of %d frames", e.Cause, e.Received, e.Budget)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the cause and the underlying failure to errors.Is.
func (e *InterruptedError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Cause}
	}
	return []error{e.Cause, e.Err}
}
