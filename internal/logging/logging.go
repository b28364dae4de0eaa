// Package logging hands out the process-wide zerolog logger. Each internal
// package keeps its own *zerolog.Logger so tests can swap in zerolog.Nop().
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var base zerolog.Logger

func init() {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if os.Getenv("M2B_LOG_JSON") != "" {
		out = os.Stderr
	}
	base = zerolog.New(out).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl := os.Getenv("M2B_LOG_LEVEL"); lvl != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(lvl)); err == nil {
			zerolog.SetGlobalLevel(parsed)
		}
	}
}

// For returns a logger tagged with the calling package's name.
func For(pkg string) *zerolog.Logger {
	l := base.With().Str("pkg", pkg).Logger()
	return &l
}

// SetLevel adjusts the global log level for every handed-out logger.
func SetLevel(lvl zerolog.Level) {
	zerolog.SetGlobalLevel(lvl)
}
