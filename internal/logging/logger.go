package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/config"
)

// NewLogger builds the process logger from config. Unknown levels fall back
// to info.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	w := zerolog.SyncWriter(out)
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: out, NoColor: cfg.Environment == "production"}
	}

	logger := zerolog.New(w).With().Timestamp().Str("env", cfg.Environment).Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}

// Setup installs the logger as the global zerolog logger used by every
// package through zerolog/log.
func Setup(cfg *config.Config) {
	log.Logger = NewLogger(cfg)
	zerolog.DefaultContextLogger = &log.Logger
}
