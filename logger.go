package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	cfg "github.com/example/quotesapi/internal/config"
)

// NewLogger returns a slog.Logger writing text or JSON to stdout.
func NewLogger(c *cfg.Config) *slog.Logger {
	return newLogger(os.Stdout, c)
}

func newLogger(w io.Writer, c *cfg.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if strings.EqualFold(c.LogFormat, "json") {
		opts.AddSource = true
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
