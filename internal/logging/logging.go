// Package logging builds the process zerolog logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"essaylens/internal/config"
)

// New returns a logger writing to out (stderr when nil) and, if cfg.File is
// set, to a rotating JSON file. The returned func closes the file.
func New(cfg config.LogConfig, out io.Writer) (zerolog.Logger, func(), error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), func() {}, err
	}
	if out == nil {
		out = os.Stderr
	}
	var console io.Writer = out
	if !strings.EqualFold(cfg.Format, "json") {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	cleanup := func() {}
	w := console
	if cfg.File != "" {
		rot, err := Rotator(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
		if err != nil {
			return zerolog.Nop(), cleanup, err
		}
		w = zerolog.MultiLevelWriter(console, rot)
		cleanup = func() { _ = rot.Close() }
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), cleanup, nil
}

// Rotator opens a size-rotated log file, creating its directory.
func Rotator(path string, maxSizeMB, maxBackups int) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}, nil
}

// ParseLevel accepts zerolog level names; "" means info and "off" disables logging.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zerolog.InfoLevel, nil
	case "off", "disabled":
		return zerolog.Disabled, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, &config.ValidationError{Field: "log.level", Msg: fmt.Sprintf("unknown log level %q", s)}
	}
	return l, nil
}
