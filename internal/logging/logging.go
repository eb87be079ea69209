// Package logging builds the zerolog logger used by the procctl binary.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the level, format and destination of diagnostics.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// ApplyDefaults fills empty fields, reading PROCCTL_LOG_LEVEL and
// PROCCTL_LOG_FORMAT first.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = envOrDefault("PROCCTL_LOG_LEVEL", "warn")
	}
	if c.Format == "" {
		c.Format = envOrDefault("PROCCTL_LOG_FORMAT", FormatConsole)
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
}

// New returns a logger configured by cfg.
func New(cfg Config) (zerolog.Logger, error) {
	cfg.ApplyDefaults()
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var out io.Writer
	switch strings.ToLower(cfg.Format) {
	case FormatConsole, "pretty":
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.TimeOnly}
	case FormatJSON:
		out = cfg.Output
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
