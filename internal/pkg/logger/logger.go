// Package logger configures the global zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"santapot/internal/config"
)

// Setup installs the global logger described by cfg. It returns a closer for
// the rotating file sink, or a no-op when file logging is disabled.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	out, closer := Writer(cfg, os.Stderr)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

// Writer builds the log sink: console or JSON on stderr, plus a rotating file
// when cfg.File is set.
func Writer(cfg config.LogConfig, stderr io.Writer) (io.Writer, io.Closer) {
	var console io.Writer = stderr
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}
	if cfg.File == "" {
		return console, nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return zerolog.MultiLevelWriter(console, file), file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
