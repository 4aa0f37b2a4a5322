package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/streamshot/internal/capture"
	"github.com/jmylchreest/streamshot/internal/config"
	"github.com/jmylchreest/streamshot/internal/imaging"
	"github.com/jmylchreest/streamshot/internal/observability"
	"github.com/jmylchreest/streamshot/internal/output"
	"github.com/jmylchreest/streamshot/internal/storage"
	"github.com/jmylchreest/streamshot/internal/stream"
)

// Pipeline stages outside the capture package.
const (
	stageConfig = "config"
	stageDebug  = "debug"
	stageScale  = "scale"
	stageEncode = "encode"
	stageOutput = "output"
)

func runCapture(_ *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return reportFailure(logger, capture.NewStageError(stageConfig, err))
	}

	if err := runSnapshot(cfg, logger, stream.Opener(logger)); err != nil {
		return reportFailure(logger, err)
	}
	return nil
}

// reportFailure logs err as a single line carrying the failed stage.
func reportFailure(logger *slog.Logger, err error) error {
	observability.WithError(logger, err).Error("snapshot failed",
		slog.String("stage", errorStage(err)),
	)
	return err
}

// errorStage returns the pipeline stage err is attributed to.
func errorStage(err error) string {
	var serr *capture.StageError
	if errors.As(err, &serr) {
		return serr.Stage
	}
	return "unknown"
}

// runSnapshot captures, scales and writes one image as described by cfg.
func runSnapshot(cfg *config.Config, logger *slog.Logger, open capture.OpenFunc, opts ...capture.Option) error {
	logOptions(logger, cfg)

	enc, err := imaging.NewEncoder(imaging.Format(cfg.Output.Format), cfg.Output.Quality)
	if err != nil {
		return capture.NewStageError(stageEncode, err)
	}

	var sink *storage.DebugSink
	if cfg.Debug.Enabled {
		sink, err = storage.NewDebugSink(cfg.Debug.Dir, cfg.Debug.Dir == config.DefaultDebugDir, logger)
		if err != nil {
			return capture.NewStageError(stageDebug, err)
		}
		logger.Debug("debug images enabled", slog.String("dir", sink.Dir()), slog.Int("step", cfg.Debug.Step))
		opts = append(opts, capture.WithDebugSink(sink))
	}

	capturer := capture.NewCapturer(open, logger, opts...)
	img, err := capturer.Capture(capture.Options{
		URL:       cfg.Capture.URL,
		Timeout:   cfg.Capture.Timeout,
		Exposure:  cfg.Capture.Exposure,
		Debug:     cfg.Debug.Enabled,
		DebugStep: uint64(max(cfg.Debug.Step, 1)),
	})
	if err != nil {
		return err
	}

	scaled, err := imaging.Scale(img, scaleOptions(logger, &cfg.Scale))
	if err != nil {
		return capture.NewStageError(stageScale, err)
	}
	if scaled != img {
		logger.Debug("image scaled",
			slog.Int("width", scaled.Width),
			slog.Int("height", scaled.Height),
		)
		if sink != nil {
			if err := sink.SaveImage(capture.RawScaledImageName, scaled); err != nil {
				observability.WithError(logger, err).Warn("saving scaled image failed")
			}
		}
	}

	dest := output.Destination{Path: cfg.Output.Path, FD: cfg.Output.FD}
	if !dest.IsSet() {
		if err := scaled.Validate(); err != nil {
			return capture.NewStageError(stageOutput, err)
		}
		logger.Info("no output destination configured, image not written",
			slog.Int("width", scaled.Width),
			slog.Int("height", scaled.Height),
		)
		return nil
	}

	if err := output.NewWriter(enc).Write(dest, scaled); err != nil {
		return capture.NewStageError(stageOutput, fmt.Errorf("writing %s: %w", dest, err))
	}
	logger.Info("snapshot written",
		slog.String("destination", dest.String()),
		slog.String("format", string(enc.Format())),
		slog.Int("width", scaled.Width),
		slog.Int("height", scaled.Height),
	)
	return nil
}

// scaleOptions maps the scale config onto the scaler. An explicit factor
// wins and the resize dimensions are dropped.
func scaleOptions(logger *slog.Logger, c *config.ScaleConfig) imaging.ScaleOptions {
	opts := imaging.ScaleOptions{Interpolator: c.Interpolator}
	if c.ExplicitFactor() {
		opts.Factor = c.Factor
		if c.Width != 0 || c.Height != 0 {
			logger.Debug("scale factor set, ignoring resize dimensions",
				slog.Float64("factor", c.Factor),
				slog.Int("width", c.Width),
				slog.Int("height", c.Height),
			)
		}
		return opts
	}
	opts.Width = c.Width
	opts.Height = c.Height
	return opts
}

// logOptions dumps the effective options at debug level.
func logOptions(logger *slog.Logger, cfg *config.Config) {
	logger.Debug("options",
		slog.Group("capture",
			slog.String("url", observability.RedactURL(cfg.Capture.URL)),
			slog.Duration("timeout", cfg.Capture.Timeout),
			slog.Duration("exposure", cfg.Capture.Exposure),
		),
		slog.Group("scale",
			slog.Float64("factor", cfg.Scale.Factor),
			slog.Int("width", cfg.Scale.Width),
			slog.Int("height", cfg.Scale.Height),
			slog.String("interpolator", cfg.Scale.Interpolator),
		),
		slog.Group("output",
			slog.String("path", cfg.Output.Path),
			slog.Int("fd", cfg.Output.FD),
			slog.String("format", cfg.Output.Format),
			slog.Int("quality", cfg.Output.Quality),
		),
		slog.Group("debug",
			slog.Bool("enabled", cfg.Debug.Enabled),
			slog.Int("step", cfg.Debug.Step),
			slog.String("dir", cfg.Debug.Dir),
		),
	)
}
