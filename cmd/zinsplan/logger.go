package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rgehrsitz/zinsplan/internal/calculation"
	"github.com/rs/zerolog"
)

// zerologLogger implements calculation.Logger on top of zerolog
type zerologLogger struct {
	log zerolog.Logger
}

var _ calculation.Logger = zerologLogger{}

func (z zerologLogger) Debugf(format string, args ...any) { z.log.Debug().Msgf(format, args...) }
func (z zerologLogger) Infof(format string, args ...any)  { z.log.Info().Msgf(format, args...) }
func (z zerologLogger) Warnf(format string, args ...any)  { z.log.Warn().Msgf(format, args...) }
func (z zerologLogger) Errorf(format string, args ...any) { z.log.Error().Msgf(format, args...) }

// resolveLogLevel picks the flag value, then ZINSPLAN_LOG_LEVEL, then warn.
func resolveLogLevel(flag string) zerolog.Level {
	name := strings.TrimSpace(flag)
	if name == "" {
		name = os.Getenv("ZINSPLAN_LOG_LEVEL")
	}
	if name == "" {
		return zerolog.WarnLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.WarnLevel
	}
	return level
}

// newLogger builds the console logger used by every command.
func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
