package logging

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/edvin/twtctl/internal/config"
)

// NewLogger creates the zerolog.Logger for one twtctl run. Standard output
// carries command results, so log lines go to standard error: human-readable
// on a terminal, JSON otherwise. Every line carries the run's invocation ID.
func NewLogger(cfg *config.Config) zerolog.Logger {
	var w io.Writer = os.Stderr
	if term.IsTerminal(int(os.Stderr.Fd())) {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	return newLogger(w, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp().
		Str("service", "twtctl").
		Str("invocation", uuid.NewString())

	if cfg.SOAP.Username != "" {
		ctx = ctx.Str("account", cfg.SOAP.Username)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
