package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global logger: console output in development, JSON otherwise.
func SetupLogger(env string) {
	log.Logger = NewLogger(env, os.Stderr)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if env == EnvDevelopment {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func NewLogger(env string, out io.Writer) zerolog.Logger {
	if env == EnvProduction {
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}
