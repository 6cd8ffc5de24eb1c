// In file: internal/logger/logger.go

// Package logger configures the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	Level     string `yaml:"level"`     // debug, info, warn, error
	File      string `yaml:"file"`      // optional log file path
	Pretty    bool   `yaml:"pretty"`    // human-readable console output
	Redaction bool   `yaml:"redaction"` // mask provider keys and tokens
}

// DefaultConfig returns the configuration used when config.yaml has no logging section.
func DefaultConfig() Config {
	return Config{Level: "info", Pretty: true, Redaction: true}
}

// Logger owns the writers behind the global zerolog logger.
type Logger struct {
	logger zerolog.Logger
	file   *os.File
}

// New builds a logger from cfg and installs it as zerolog's global logger.
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var console io.Writer = os.Stdout
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	writers := []io.Writer{console}

	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}

	writer := io.MultiWriter(writers...)
	if cfg.Redaction {
		writer = &redactingWriter{writer: writer}
	}

	l := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger

	return &Logger{logger: l, file: file}, nil
}

// Zerolog returns the configured logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),
	regexp.MustCompile(`(?i)password["\s:=]+[^\s"]+`),
}

// Redact masks provider API keys, bearer tokens and passwords in s.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

type redactingWriter struct {
	writer io.Writer
}

func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
