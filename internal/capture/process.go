package capture

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/jmylchreest/streamshot/internal/imaging"
)

// MemoryProbe reports the bytes of memory currently available for allocation.
type MemoryProbe func() (uint64, error)

// SystemMemory reads available memory from the operating system.
func SystemMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// Process is the mutable state of one capture: the conversion target, the
// per-byte accumulator and the frame counters.
type Process struct {
	width  int
	height int

	frame []byte   // latest converted frame, RGB24
	sum   []uint64 // per-byte running sum

	received     uint64
	keyFrameSeen bool
	lastRead     error
}

// RequiredMemory returns the bytes a capture of width x height needs for its
// conversion buffer, accumulator and output image.
func RequiredMemory(width, height int) uint64 {
	size := uint64(imaging.FrameSize(width, height))
	return size + size*8 + size
}

// NewProcess allocates the buffers for a width x height capture after
// checking them against probe. A nil probe skips the check.
func NewProcess(width, height int, probe MemoryProbe) (*Process, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: frame size %dx%d", imaging.ErrInvalidImage, width, height)
	}

	if probe != nil {
		required := RequiredMemory(width, height)
		// Availability unknown: allocate anyway.
		if available, err := probe(); err == nil && required > available {
			return nil, fmt.Errorf("%w: need %d bytes, %d available", ErrInsufficientMemory, required, available)
		}
	}

	size := imaging.FrameSize(width, height)
	return &Process{
		width:  width,
		height: height,
		frame:  make([]byte, size),
		sum:    make([]uint64, size),
	}, nil
}

// Received returns the number of frames folded into the accumulator.
func (p *Process) Received() uint64 {
	return p.received
}

// KeyFrameSeen reports whether the first key frame has arrived.
func (p *Process) KeyFrameSeen() bool {
	return p.keyFrameSeen
}

// LastRead returns the outcome of the most recent unit read.
func (p *Process) LastRead() error {
	return p.lastRead
}

// ImageSize returns the RGB24 byte size of one frame.
func (p *Process) ImageSize() int {
	return len(p.frame)
}

// fold adds the current converted frame to the accumulator.
func (p *Process) fold() {
	for i, v := range p.frame {
		p.sum[i] += uint64(v)
	}
	p.received++
}

// currentFrame exposes the conversion buffer as an image without copying.
func (p *Process) currentFrame() *imaging.RawImage {
	return &imaging.RawImage{Data: p.frame, Width: p.width, Height: p.height}
}

// BuildRawImage divides the accumulated sums by budget into a new image.
func BuildRawImage(p *Process, budget uint64, width, height int) (*imaging.RawImage, error) {
	if budget == 0 {
		return nil, ErrNoFramesToRead
	}
	if budget > MaxFrameBudget {
		return nil, fmt.Errorf("frame budget %d exceeds maximum %d", budget, uint64(MaxFrameBudget))
	}
	if len(p.sum) != imaging.FrameSize(width, height) {
		return nil, fmt.Errorf("%w: accumulator holds %d bytes, want %dx%d", imaging.ErrInvalidImage, len(p.sum), width, height)
	}

	data := make([]byte, len(p.sum))
	for i, s := range p.sum {
		data[i] = uint8(s / budget)
	}
	return imaging.NewRawImage(data, width, height)
}
