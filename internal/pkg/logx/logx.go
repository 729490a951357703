/*
Package logx provides a structured logging wrapper based on zerolog.

It initializes the global logger once at startup, switching between a
human-readable console writer for development and plain JSON for production,
and exposes thin level helpers used across the service.
*/
package logx

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitGlobalLogger configures the global zerolog instance.
// Development gets Debug level with a colored ConsoleWriter; everything else
// gets Info level JSON with Unix timestamps. Caller info is always attached.
func InitGlobalLogger(isDevelopment bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if isDevelopment {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	log.Logger = logger.With().Caller().Logger()
}

// Logger returns the global zerolog.Logger. Components derive child loggers
// from it via With() so every line carries its component context.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// pairs drops a trailing odd field so zerolog never panics on a bad call.
func pairs(fields []any) []any {
	if len(fields)%2 != 0 {
		Logger().Warn().Int("fields_count", len(fields)).Msg("logx called with odd field count, last field dropped")
		return fields[:len(fields)-1]
	}
	return fields
}

// Info records a message at Info level with optional key-value fields.
func Info(msg string, fields ...any) {
	Logger().Info().Fields(pairs(fields)).CallerSkipFrame(1).Msg(msg)
}

// Warn records a message at Warn level with optional key-value fields.
func Warn(msg string, fields ...any) {
	Logger().Warn().Fields(pairs(fields)).CallerSkipFrame(1).Msg(msg)
}

// Error records an error at Error level with optional key-value fields.
func Error(err error, msg string, fields ...any) {
	Logger().Error().Err(err).Fields(pairs(fields)).CallerSkipFrame(1).Msg(msg)
}

// Fatal records an error at Fatal level and exits the process.
func Fatal(err error, msg string, fields ...any) {
	Logger().Fatal().Err(err).Fields(pairs(fields)).CallerSkipFrame(1).Msg(msg)
}
