// Package logx provides the standard logger used across the grpcmcp project.
package logx

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger defines the interface for logging.
type Logger interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// ZerologAdapter implements Logger on top of a zerolog.Logger.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewDefaultLogger creates a logger writing structured output to stderr at
// info level.
func NewDefaultLogger() *ZerologAdapter {
	return New(os.Stderr, zerolog.InfoLevel)
}

// New creates a logger writing to w at the given level.
func New(w io.Writer, level zerolog.Level) *ZerologAdapter {
	return &ZerologAdapter{
		logger: zerolog.New(w).Level(level).With().Timestamp().Str("component", "grpcmcp").Logger(),
	}
}

// NewZerologAdapter wraps an existing zerolog.Logger so applications can reuse
// their own configured logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

func (a *ZerologAdapter) Debug(format string, v ...interface{}) {
	a.logger.Debug().Msg(fmt.Sprintf(format, v...))
}

func (a *ZerologAdapter) Info(format string, v ...interface{}) {
	a.logger.Info().Msg(fmt.Sprintf(format, v...))
}

func (a *ZerologAdapter) Warn(format string, v ...interface{}) {
	a.logger.Warn().Msg(fmt.Sprintf(format, v...))
}

func (a *ZerologAdapter) Error(format string, v ...interface{}) {
	a.logger.Error().Msg(fmt.Sprintf(format, v...))
}

var _ Logger = (*ZerologAdapter)(nil)

// NopLogger discards everything. Useful in tests.
type NopLogger struct{}

// NewNopLogger returns a logger that discards all output.
func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...interface{}) {}
func (*NopLogger) Info(string, ...interface{})  {}
func (*NopLogger) Warn(string, ...interface{})  {}
func (*NopLogger) Error(string, ...interface{}) {}

var _ Logger = (*NopLogger)(nil)
