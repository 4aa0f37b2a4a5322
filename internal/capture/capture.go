package capture

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/streamshot/internal/imaging"
	"github.com/jmylchreest/streamshot/internal/observability"
)

// Debug artifact names.
const (
	RawAverageImageName = "raw_average_image.ppm"
	RawScaledImageName  = "raw_scaled_image.ppm"
)

// Options configure one capture.
type Options struct {
	URL       string
	Timeout   time.Duration
	Exposure  time.Duration
	Debug     bool
	DebugStep uint64
}

// Capturer runs captures against sources produced by an OpenFunc.
type Capturer struct {
	open   OpenFunc
	logger *slog.Logger
	sink   DebugSink
	memory MemoryProbe
	now    func() time.Time
	newID  func() string
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithDebugSink sets where sampled frames and intermediate images are saved.
func WithDebugSink(sink DebugSink) Option {
	return func(c *Capturer) {
		c.sink = sink
	}
}

// WithMemoryProbe replaces the system memory check. nil disables it.
func WithMemoryProbe(probe MemoryProbe) Option {
	return func(c *Capturer) {
		c.memory = probe
	}
}

// WithClock sets the time source used for deadlines.
func WithClock(now func() time.Time) Option {
	return func(c *Capturer) {
		c.now = now
	}
}

// WithIDGenerator sets how capture IDs are generated.
func WithIDGenerator(newID func() string) Option {
	return func(c *Capturer) {
		c.newID = newID
	}
}

// NewCapturer creates a Capturer.
func NewCapturer(open OpenFunc, logger *slog.Logger, opts ...Option) *Capturer {
	c := &Capturer{
		open:   open,
		logger: observability.WithComponent(logger, "capture"),
		memory: SystemMemory,
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture opens the source, reads frames until the budget is met or the
// capture is interrupted, and returns the averaged image.
// The source is closed on every path.
func (c *Capturer) Capture(opts Options) (img *imaging.RawImage, err error) {
	id := c.newID()
	logger := observability.WithCaptureID(c.logger, id)
	start := c.now()

	logger.Info("capture started",
		slog.String("url", observability.RedactURL(opts.URL)),
		slog.Duration("exposure", opts.Exposure),
		slog.Duration("timeout", opts.Timeout),
	)

	src, err := c.open(SourceConfig{URL: opts.URL, Timeout: opts.Timeout, Debug: opts.Debug})
	if err != nil {
		return nil, NewStageError(StageOpen, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			observability.WithError(logger, cerr).Warn("closing source failed")
		}
	}()

	limits, err := ComputeLimits(src.FrameRates(), opts.Exposure, c.now())
	if err != nil {
		return nil, NewStageError(StageLimits, err)
	}
	logger.Debug("capture limits computed",
		slog.Uint64("frame_budget", limits.FrameBudget),
		slog.Float64("fps", limits.FrameRate),
		slog.Time("deadline", limits.Deadline),
		slog.Time("worst_case_end", limits.Deadline.Add(opts.Timeout)),
	)

	width, height := src.FrameSize()
	proc, err := NewProcess(width, height, c.memory)
	if err != nil {
		return nil, NewStageError(StageAlloc, err)
	}
	logger.Debug("capture buffers allocated",
		slog.Int("frame_bytes", proc.ImageSize()),
		slog.Uint64("required_bytes", RequiredMemory(width, height)),
	)

	var sink DebugSink
	if opts.Debug {
		sink = c.sink
	}
	reader := NewReader(logger, sink, opts.DebugStep)

	if err := c.run(reader, src, proc, limits); err != nil {
		observability.WithError(logger, err).Warn("capture interrupted",
			slog.Uint64("frames", proc.Received()),
			slog.Bool("key_frame_seen", proc.KeyFrameSeen()),
		)
		return nil, NewStageError(StageCapture, err)
	}

	img, err = BuildRawImage(proc, limits.FrameBudget, width, height)
	if err != nil {
		return nil, NewStageError(StageAverage, err)
	}

	if sink != nil {
		if err := sink.SaveImage(RawAverageImageName, img); err != nil {
			observability.WithError(logger, err).Warn("saving averaged image failed")
		}
	}

	logger.Info("capture completed",
		slog.Uint64("frames", proc.Received()),
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Duration("duration", c.now().Sub(start)),
	)
	return img, nil
}

// run is the capture loop. It returns nil once the frame budget is met and an
// *InterruptedError otherwise. The cause follows the last read status, so a
// decoder failure after a successful read is a premature end.
func (c *Capturer) run(reader *Reader, src Source, proc *Process, limits Limits) error {
	for proc.received < limits.FrameBudget && c.now().Before(limits.Deadline) {
		if err := reader.Step(src, proc, limits); err != nil {
			ierr := classifyInterruption(proc, limits.FrameBudget)
			ierr.Err = err
			return ierr
		}
		if proc.lastRead != nil {
			break
		}
	}

	if proc.received >= limits.FrameBudget {
		return nil
	}
	return classifyInterruption(proc, limits.FrameBudget)
}

func classifyInterruption(proc *Process, budget uint64) *InterruptedError {
	ierr := &InterruptedError{
		Cause:    ErrPrematureEnd,
		Received: proc.received,
		Budget:   budget,
	}
	if last := proc.LastRead(); last != nil && !errors.Is(last, io.EOF) {
		ierr.Cause = ErrConnectionLost
		ierr.Err = last
	}
	return ierr
}
