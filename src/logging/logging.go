// Package logging builds the process logger: human-readable console output
// on stderr and, optionally, a rotating log file.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// File is the rotating log file; empty disables file logging.
	File   string
	Stderr io.Writer
}

// New returns the logger and a function that flushes and closes the log
// file, if any.
func New(opts Options) (zerolog.Logger, func() error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	console := zerolog.ConsoleWriter{
		Out:        stderr,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(stderr),
	}

	writers := []io.Writer{console}
	closer := func() error { return nil }
	if opts.File != "" {
		file := newRotatingFile(opts.File)
		writers = append(writers, file)
		closer = file.Close
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(opts.Level)).
		With().Timestamp().Logger()
	return logger, closer
}

// newRotatingFile creates a lumberjack logger with limits from the
// environment.
func newRotatingFile(path string) *lumberjack.Logger {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    1, // megabytes
		MaxBackups: 2,
		MaxAge:     30, // days
		Compress:   false,
	}

	if maxSize, ok := envInt("REVIEW_LOG_MAX_SIZE"); ok && maxSize > 0 {
		file.MaxSize = maxSize
	}
	if maxBackups, ok := envInt("REVIEW_LOG_MAX_BACKUPS"); ok && maxBackups >= 0 {
		file.MaxBackups = maxBackups
	}
	if maxAge, ok := envInt("REVIEW_LOG_MAX_AGE"); ok && maxAge > 0 {
		file.MaxAge = maxAge
	}
	return file
}

func parseLevel(level string) zerolog.Level {
	if os.Getenv("DEBUG") != "" {
		return zerolog.DebugLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func envInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}
