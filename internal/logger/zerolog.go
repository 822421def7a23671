package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ZerologAdapter is the concrete Logger backing the matting pipeline's
// structured logging. Unlike the teacher's zerolog adapter, which sits
// alongside an unrelated slog-based Logger interface it never actually
// implements, this adapter's method set is defined directly against this
// package's own Logger interface.
var _ Logger = (*ZerologAdapter)(nil)

type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerolog wraps writer in a zerolog.Logger at the given level, with a
// timestamp field on every event.
func NewZerolog(writer io.Writer, level zerolog.Level) *ZerologAdapter {
	return &ZerologAdapter{
		logger: zerolog.New(writer).Level(level).With().Timestamp().Logger(),
	}
}

// NewConsoleLogger returns a ZerologAdapter writing human-readable output to
// stdout, for cmd/mattecli and other interactive callers.
func NewConsoleLogger(level zerolog.Level) *ZerologAdapter {
	return NewZerolog(zerolog.ConsoleWriter{Out: os.Stdout}, level)
}

func (z *ZerologAdapter) Debug(component, message string, fields map[string]interface{}) {
	z.emit(z.logger.Debug(), component, message, fields)
}

func (z *ZerologAdapter) Info(component, message string, fields map[string]interface{}) {
	z.emit(z.logger.Info(), component, message, fields)
}

func (z *ZerologAdapter) Warning(component, message string, fields map[string]interface{}) {
	z.emit(z.logger.Warn(), component, message, fields)
}

// Error always logs with the fixed message "operation failed"; the error
// itself and any extra fields carry the specifics of what went wrong.
func (z *ZerologAdapter) Error(component string, err error, fields map[string]interface{}) {
	z.emit(z.logger.Error().Err(err), component, "operation failed", fields)
}

// emit attaches the component tag and every field to event before writing
// message, the one place all four severity methods funnel through.
func (z *ZerologAdapter) emit(event *zerolog.Event, component, message string, fields map[string]interface{}) {
	event = event.Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}
