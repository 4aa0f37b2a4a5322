package capture

import (
	"io"
	"sync"
	"time"

	"github.com/jmylchreest/streamshot/internal/imaging"
)

const testVideoIndex = 0

type fakeFrame struct {
	key     bool
	pixel   byte
	recvErr error
}

type fakeUnit struct {
	streamIndex int
	readErr     error
	sendErr     error
	frames      []fakeFrame
}

// fakeSource replays a scripted sequence of units. When the script runs out
// ReadUnit returns endErr, or io.EOF if endErr is nil.
type fakeSource struct {
	width, height int
	rates         FrameRates
	units         []fakeUnit
	endErr        error
	convertErr    error

	pos      int
	current  *fakeUnit
	framePos int
	last     fakeFrame
	reads    int
	closed   int
}

func newFakeSource(width, height int, fps int, units ...fakeUnit) *fakeSource {
	return &fakeSource{
		width:  width,
		height: height,
		rates:  FrameRates{Average: Rational{Num: fps, Den: 1}},
		units:  units,
	}
}

func (s *fakeSource) FrameRates() FrameRates { return s.rates }

func (s *fakeSource) VideoStreamIndex() int { return testVideoIndex }

func (s *fakeSource) FrameSize() (width, height int) { return s.width, s.height }

func (s *fakeSource) ReadUnit() (Unit, error) {
	s.reads++
	if s.pos >= len(s.units) {
		if s.endErr != nil {
			return Unit{}, s.endErr
		}
		return Unit{}, io.EOF
	}
	u := s.units[s.pos]
	s.pos++
	if u.readErr != nil {
		return Unit{}, u.readErr
	}
	s.current = &u
	s.framePos = 0
	return Unit{StreamIndex: u.streamIndex, Size: 1024}, nil
}

func (s *fakeSource) SendUnit() error {
	return s.current.sendErr
}

func (s *fakeSource) ReceiveFrame() (Frame, error) {
	if s.framePos >= len(s.current.frames) {
		return Frame{}, ErrDecoderDrained
	}
	f := s.current.frames[s.framePos]
	s.framePos++
	if f.recvErr != nil {
		return Frame{}, f.recvErr
	}
	s.last = f
	return Frame{KeyFrame: f.key}, nil
}

func (s *fakeSource) ConvertFrame(dst []byte) error {
	if s.convertErr != nil {
		return s.convertErr
	}
	for i := range dst {
		dst[i] = s.last.pixel
	}
	return nil
}

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

// video builds a video unit carrying the given frames.
func video(frames ...fakeFrame) fakeUnit {
	return fakeUnit{streamIndex: testVideoIndex, frames: frames}
}

// keyFrames returns one single-frame key unit per pixel value.
func keyFrames(pixels ...byte) []fakeUnit {
	units := make([]fakeUnit, len(pixels))
	for i, p := range pixels {
		units[i] = video(fakeFrame{key: true, pixel: p})
	}
	return units
}

// fakeClock advances by step on every call.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

type savedFrame struct {
	index  uint64
	width  int
	height int
	first  byte
}

type recordingSink struct {
	frames []savedFrame
	images map[string]*imaging.RawImage
}

func newRecordingSink() *recordingSink {
	return &recordingSink{images: make(map[string]*imaging.RawImage)}
}

func (s *recordingSink) SaveFrame(index uint64, img *imaging.RawImage) error {
	s.frames = append(s.frames, savedFrame{index: index, width: img.Width, height: img.Height, first: img.Data[0]})
	return nil
}

func (s *recordingSink) SaveImage(name string, img *imaging.RawImage) error {
	s.images[name] = img
	return nil
}
