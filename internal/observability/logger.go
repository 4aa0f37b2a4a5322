// Package observability provides logging for streamshot.
package observability

import (
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"time"

	"github.com/m-mizutani/masq"

	"github.com/jmylchreest/streamshot/internal/config"
)

// rtspCredentials matches the userinfo part of an RTSP URL embedded in a log value.
var rtspCredentials = regexp.MustCompile(`rtsps?://[^/\s:@]+:[^/\s@]+@`)

// NewLoggerWithWriter creates a new slog.Logger that writes to the provided writer.
// The CLI passes stderr so stdout stays free for image data.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	redact := masq.New(
		masq.WithFieldName("password"),
		masq.WithFieldName("secret"),
		masq.WithFieldName("token"),
		masq.WithRegex(rtspCredentials),
	)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize time format if specified
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return redact(groups, a)
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithCaptureID tags every record of one capture run.
func WithCaptureID(logger *slog.Logger, captureID string) *slog.Logger {
	return logger.With(slog.String("capture_id", captureID))
}

// WithError adds an error to the logger attributes.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}

// RedactURL returns raw with any password replaced, suitable for logging.
// Unparseable input is returned with credentials masked by pattern.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return rtspCredentials.ReplaceAllString(raw, "rtsp://xxxxx@")
	}
	return u.Redacted()
}

// SetDefault sets the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
