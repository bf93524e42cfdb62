// Package logging provides the component-scoped zerolog loggers used across
// the Cache Engine, mirroring the per-subsystem logger convention used in
// the broader emersion/go-imap client lineage this module descends from.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
	With().Timestamp().Logger()

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// WithComponent returns a logger tagged with the given subsystem name, e.g.
// logging.WithComponent("folder") or logging.WithComponent("cachemanager").
func WithComponent(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// SetLevel adjusts the global log verbosity. Hosts embedding the Cache
// Engine call this once at startup; the default is Info.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}
