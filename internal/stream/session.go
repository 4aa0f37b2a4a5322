package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/jmylchreest/streamshot/internal/capture"
	"github.com/jmylchreest/streamshot/internal/imaging"
	"github.com/jmylchreest/streamshot/internal/observability"
)

// Option is one key/value passed to the demuxer when opening the input.
type Option struct {
	Key   string
	Value string
}

// TransportOptions returns the demuxer options for an RTSP input: TCP
// interleaved transport and a socket timeout in microseconds. Debug adds
// FFmpeg's quantiser and motion vector diagnostics.
func TransportOptions(timeout time.Duration, debug bool) []Option {
	opts := []Option{
		{Key: "rtsp_transport", Value: "tcp"},
		{Key: "timeout", Value: strconv.FormatInt(timeout.Microseconds(), 10)},
	}
	if debug {
		opts = append(opts, Option{Key: "debug", Value: "qp+mv"})
	}
	return opts
}

// Session is an open RTSP input with a decoder and an RGB24 converter for
// its first video stream. It implements capture.Source.
type Session struct {
	logger *slog.Logger
	res    resources

	format     *astiav.FormatContext
	stream     *astiav.Stream
	videoIndex int
	decoder    *astiav.CodecContext
	converter  *astiav.SoftwareScaleContext
	packet     *astiav.Packet
	decoded    *astiav.Frame
	rgb        *astiav.Frame

	width  int
	height int
}

var _ capture.Source = (*Session)(nil)

func newSession(logger *slog.Logger) *Session {
	return &Session{logger: logger, videoIndex: -1}
}

// Opener returns a capture.OpenFunc backed by Open.
func Opener(logger *slog.Logger) capture.OpenFunc {
	return func(cfg capture.SourceConfig) (capture.Source, error) {
		s, err := Open(cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Open connects to cfg.URL and prepares decoding of its first video stream.
// Every handle acquired before a failing step is released before returning.
func Open(cfg capture.SourceConfig, logger *slog.Logger) (*Session, error) {
	s := newSession(observability.WithComponent(logger, "stream"))
	if err := s.open(cfg); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) open(cfg capture.SourceConfig) error {
	if cfg.Debug {
		astiav.SetLogLevel(astiav.LogLevelVerbose)
	} else {
		astiav.SetLogLevel(astiav.LogLevelError)
	}

	dict := astiav.NewDictionary()
	defer dict.Free()
	for _, opt := range TransportOptions(cfg.Timeout, cfg.Debug) {
		if err := dict.Set(opt.Key, opt.Value, 0); err != nil {
			return openError(StageOptions, fmt.Errorf("setting %s: %w", opt.Key, err))
		}
		s.logger.Debug("set transport option", slog.String("key", opt.Key), slog.String("value", opt.Value))
	}

	s.format = astiav.AllocFormatContext()
	if s.format == nil {
		return openError(StageOpenInput, errors.New("allocating format context"))
	}
	if err := s.format.OpenInput(cfg.URL, nil, dict); err != nil {
		// FFmpeg has already released the context internals on failure.
		s.format.Free()
		s.format = nil
		return openError(StageOpenInput, err)
	}
	format := s.format
	s.res.track("format_context", func() { format.CloseInput() })

	if err := s.format.FindStreamInfo(nil); err != nil {
		return openError(StageStreamInfo, err)
	}

	streams := s.format.Streams()
	s.logger.Debug("stream info read", slog.Int("streams", len(streams)))
	for i, st := range streams {
		if st.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			s.videoIndex = i
			s.stream = st
			break
		}
	}
	if s.stream == nil {
		return openError(StageVideoStream, ErrNoVideoStream)
	}
	s.logger.Debug("video stream selected", slog.Int("index", s.videoIndex))

	if err := s.openDecoder(); err != nil {
		return openError(StageDecoder, err)
	}
	if err := s.openConverter(); err != nil {
		return openError(StageConverter, err)
	}

	s.packet = astiav.AllocPacket()
	if s.packet == nil {
		return openError(StageBuffers, errors.New("allocating packet"))
	}
	packet := s.packet
	s.res.track("packet", packet.Free)

	s.decoded = astiav.AllocFrame()
	if s.decoded == nil {
		return openError(StageBuffers, errors.New("allocating frame"))
	}
	decoded := s.decoded
	s.res.track("decoded_frame", decoded.Free)

	s.logger.Debug("stream session ready",
		slog.Int("width", s.width),
		slog.Int("height", s.height),
		slog.Any("resources", s.res.names()),
	)
	return nil
}

func (s *Session) openDecoder() error {
	params := s.stream.CodecParameters()
	codec := astiav.FindDecoder(params.CodecID())
	if codec == nil {
		return fmt.Errorf("no decoder for codec %v", params.CodecID())
	}

	s.decoder = astiav.AllocCodecContext(codec)
	if s.decoder == nil {
		return errors.New("allocating codec context")
	}
	decoder := s.decoder
	s.res.track("codec_context", decoder.Free)

	if err := params.ToCodecContext(s.decoder); err != nil {
		return fmt.Errorf("copying codec parameters: %w", err)
	}
	if err := s.decoder.Open(codec, nil); err != nil {
		return fmt.Errorf("opening decoder %s: %w", codec.Name(), err)
	}

	s.width = s.decoder.Width()
	s.height = s.decoder.Height()
	s.logger.Debug("decoder opened",
		slog.String("decoder", codec.Name()),
		slog.Int("width", s.width),
		slog.Int("height", s.height),
		slog.String("pixel_format", s.decoder.PixelFormat().String()),
	)
	if s.width <= 0 || s.height <= 0 {
		return fmt.Errorf("decoder reported frame size %dx%d", s.width, s.height)
	}
	return nil
}

func (s *Session) openConverter() error {
	converter, err := astiav.CreateSoftwareScaleContext(
		s.width, s.height, s.decoder.PixelFormat(),
		s.width, s.height, astiav.PixelFormatRgb24,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagFastBilinear),
	)
	if err != nil {
		return fmt.Errorf("creating RGB24 converter: %w", err)
	}
	s.converter = converter
	s.res.track("converter", converter.Free)

	s.rgb = astiav.AllocFrame()
	if s.rgb == nil {
		return errors.New("allocating RGB frame")
	}
	rgb := s.rgb
	s.res.track("rgb_frame", rgb.Free)

	s.rgb.SetWidth(s.width)
	s.rgb.SetHeight(s.height)
	s.rgb.SetPixelFormat(astiav.PixelFormatRgb24)
	if err := s.rgb.AllocBuffer(1); err != nil {
		return fmt.Errorf("allocating RGB buffer: %w", err)
	}
	return nil
}

// FrameRates returns the average and real frame rates of the video stream.
func (s *Session) FrameRates() capture.FrameRates {
	avg := s.stream.AvgFrameRate()
	r := s.stream.RFrameRate()
	return capture.FrameRates{
		Average: capture.Rational{Num: avg.Num(), Den: avg.Den()},
		Real:    capture.Rational{Num: r.Num(), Den: r.Den()},
	}
}

// VideoStreamIndex returns the selected stream index, or -1 before selection.
func (s *Session) VideoStreamIndex() int {
	return s.videoIndex
}

// FrameSize returns the decoder's picture dimensions.
func (s *Session) FrameSize() (width, height int) {
	return s.width, s.height
}

// ReadUnit reads the next packet from any stream. End of stream is io.EOF.
func (s *Session) ReadUnit() (capture.Unit, error) {
	s.packet.Unref()
	if err := s.format.ReadFrame(s.packet); err != nil {
		if errors.Is(err, astiav.ErrEof) || errors.Is(err, io.EOF) {
			return capture.Unit{}, io.EOF
		}
		return capture.Unit{}, fmt.Errorf("reading packet: %w", err)
	}
	return capture.Unit{StreamIndex: s.packet.StreamIndex(), Size: s.packet.Size()}, nil
}

// SendUnit submits the last read packet to the decoder.
func (s *Session) SendUnit() error {
	return s.decoder.SendPacket(s.packet)
}

// ReceiveFrame pulls the next decoded frame into the session's frame buffer.
func (s *Session) ReceiveFrame() (capture.Frame, error) {
	if err := s.decoder.ReceiveFrame(s.decoded); err != nil {
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			return capture.Frame{}, capture.ErrDecoderDrained
		}
		return capture.Frame{}, err
	}
	return capture.Frame{KeyFrame: s.decoded.PictureType() == astiav.PictureTypeI}, nil
}

// ConvertFrame converts the last decoded frame to RGB24 and copies it into dst,
// which must hold exactly width*height*3 bytes.
func (s *Session) ConvertFrame(dst []byte) error {
	if want := imaging.FrameSize(s.width, s.height); len(dst) != want {
		return fmt.Errorf("conversion buffer holds %d bytes, want %d", len(dst), want)
	}
	if err := s.converter.ScaleFrame(s.decoded, s.rgb); err != nil {
		return fmt.Errorf("converting to RGB24: %w", err)
	}
	if _, err := s.rgb.ImageCopyToBuffer(dst, 1); err != nil {
		return fmt.Errorf("copying RGB24 image: %w", err)
	}
	return nil
}

// Close releases every handle the session acquired. It is safe to call more than once.
func (s *Session) Close() error {
	s.res.release(s.logger)
	s.packet = nil
	s.decoded = nil
	s.rgb = nil
	s.converter = nil
	s.decoder = nil
	s.format = nil
	s.stream = nil
	return nil
}
