// Package ldlog wraps zerolog with the small per-component, leveled logging interface the rest of
// the SDK depends on, mirroring the teacher SDK's ldlog.Loggers abstraction so every subsystem logs
// through the same narrow surface regardless of the backing implementation.
package ldlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Loggers is a small leveled-logging facade backed by zerolog. The zero value has no writer and
// discards all output.
type Loggers struct {
	logger zerolog.Logger
}

// NewLoggers creates a Loggers writing to w at the given minimum level.
func NewLoggers(w io.Writer, level zerolog.Level) Loggers {
	if w == nil {
		w = os.Stderr
	}
	return Loggers{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// WithComponent returns a copy tagged with a "component" field, the equivalent of the teacher's
// per-subsystem logger prefix (e.g. "DataStore:", "EventProcessor:").
func (l Loggers) WithComponent(name string) Loggers {
	return Loggers{logger: l.logger.With().Str("component", name).Logger()}
}

func (l Loggers) Debug(msg string)            { l.logger.Debug().Msg(msg) }
func (l Loggers) Debugf(format string, a ...any) { l.logger.Debug().Msgf(format, a...) }
func (l Loggers) Info(msg string)             { l.logger.Info().Msg(msg) }
func (l Loggers) Infof(format string, a ...any)  { l.logger.Info().Msgf(format, a...) }
func (l Loggers) Warn(msg string)             { l.logger.Warn().Msg(msg) }
func (l Loggers) Warnf(format string, a ...any)  { l.logger.Warn().Msgf(format, a...) }
func (l Loggers) Error(msg string)            { l.logger.Error().Msg(msg) }
func (l Loggers) Errorf(format string, a ...any) { l.logger.Error().Msgf(format, a...) }
