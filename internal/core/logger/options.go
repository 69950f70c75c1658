package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format is the encoding of log records.
type Format string

const (
	// FormatText outputs logfmt-style text
	FormatText Format = "text"
	// FormatJSON outputs one JSON object per record
	FormatJSON Format = "json"
)

type config struct {
	level  slog.Level
	output io.Writer
	format Format
}

// Option configures a Logger.
type Option func(*config)

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithOutput sets the destination writer.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		c.output = w
	}
}

// WithFormat sets the record encoding.
func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithDebug enables debug records.
func WithDebug() Option {
	return WithLevel(slog.LevelDebug)
}

// WithQuiet only lets warnings and errors through.
func WithQuiet() Option {
	return WithLevel(slog.LevelWarn)
}

// ParseLevel maps a flag value such as "debug" or "WARN" to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format %q", s)
}
