// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/samsaffron/vibe-llm/internal/config"
)

// Options selects where and how much to log.
type Options struct {
	Level string // logrus level name; empty means info
	File  string // log file path; empty writes to stderr
	Debug bool   // forces debug level
	JSON  bool   // JSON lines instead of text
}

// FromConfig builds Options from the log section of the config.
func FromConfig(cfg config.LogConfig, debug bool) Options {
	return Options{Level: cfg.Level, File: cfg.File, Debug: debug}
}

// DefaultFile is where full-screen front-ends write their log.
func DefaultFile() string {
	return filepath.Join(config.GetStateDir(), "vibe-llm.log")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configures the standard logger. The returned Closer releases the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	return apply(logrus.StandardLogger(), opts)
}

func apply(logger *logrus.Logger, opts Options) (io.Closer, error) {
	level := logrus.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			DisableColors:   opts.File != "",
			TimestampFormat: "15:04:05.000",
		})
	}

	if opts.File == "" {
		logger.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return f, nil
}

// Component returns a logger tagged with a component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
