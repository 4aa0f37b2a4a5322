package capture

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/streamshot/internal/observability"
)

// Reader performs single capture iterations against a Source.
type Reader struct {
	logger    *slog.Logger
	sink      DebugSink
	debugStep uint64
}

// NewReader creates a Reader. Frames are sampled to sink every debugStep
// accepted frames when sink is non-nil and debugStep is positive.
func NewReader(logger *slog.Logger, sink DebugSink, debugStep uint64) *Reader {
	return &Reader{logger: logger, sink: sink, debugStep: debugStep}
}

// Step reads exactly one unit and folds every frame it decodes into proc.
// A failed read is recorded on proc and is not an error here. A send failure is.
func (r *Reader) Step(src Source, proc *Process, limits Limits) error {
	unit, err := src.ReadUnit()
	proc.lastRead = err
	if err != nil {
		return nil
	}

	if unit.StreamIndex != src.VideoStreamIndex() {
		return nil
	}

	if err := src.SendUnit(); err != nil {
		return fmt.Errorf("sending unit to decoder: %w", err)
	}

	for {
		frame, err := src.ReceiveFrame()
		if errors.Is(err, ErrDecoderDrained) {
			return nil
		}
		if err != nil {
			observability.WithError(r.logger, err).Warn("receiving frame failed")
			return nil
		}

		if !proc.keyFrameSeen {
			if !frame.KeyFrame {
				continue
			}
			proc.keyFrameSeen = true
			r.logger.Debug("first key frame received")
		}

		if proc.received >= limits.FrameBudget {
			continue
		}

		if err := src.ConvertFrame(proc.frame); err != nil {
			return fmt.Errorf("converting frame: %w", err)
		}
		proc.fold()
		r.sample(proc, limits.FrameBudget)
	}
}

func (r *Reader) sample(proc *Process, budget uint64) {
	if r.sink == nil || r.debugStep == 0 {
		return
	}
	n := proc.received
	if n != 1 && n%r.debugStep != 0 && n != budget {
		return
	}
	if err := r.sink.SaveFrame(n, proc.currentFrame()); err != nil {
		observability.WithError(r.logger, err).Warn("saving debug frame failed", slog.Uint64("frame", n))
		return
	}
	r.logger.Debug("saved debug frame", slog.Uint64("frame", n))
}
