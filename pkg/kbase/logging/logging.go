package logging

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// New builds a timestamped zerolog logger. Unknown levels fall back to info.
// A nil writer means stdout.
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// SetDefault installs logger as the fallback returned by zerolog.Ctx for
// contexts that carry no logger.
func SetDefault(logger zerolog.Logger) {
	zerolog.DefaultContextLogger = &logger
}

// Middleware attaches logger to each request context and logs the request
// once it completes.
func Middleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := logger.With().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()
		c.Request = c.Request.WithContext(reqLogger.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		evt := reqLogger.Info()
		switch {
		case status >= 500:
			evt = reqLogger.Error()
		case status >= 400:
			evt = reqLogger.Warn()
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// GraceLogger adapts a zerolog logger to the grace.Logger interface.
type GraceLogger struct {
	Logger zerolog.Logger
}

func (l *GraceLogger) Info(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.Logger.Info().Msgf(msg, args...)
		return
	}
	l.Logger.Info().Msg(msg)
}

func (l *GraceLogger) Error(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.Logger.Error().Msgf(msg, args...)
		return
	}
	l.Logger.Error().Msg(msg)
}
