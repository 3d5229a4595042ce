package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultBufferSize = 32 * 1024

type Options struct {
	// Level is a logrus level name. LOG_LEVEL takes precedence when set.
	Level string
	// File is the JSON log file. Empty disables file output.
	File string
	// Console receives a copy of every entry. Nil means stdout.
	Console io.Writer
}

// NewLogger builds the edge logger. The returned close func flushes the
// async file writer and must be called on shutdown.
func NewLogger(opts Options) (*logrus.Logger, func(), error) {
	logger := logrus.New()

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "time",
			logrus.FieldKeyMsg:  "msg",
		},
	})
	logger.SetLevel(parseLevel(opts.Level))

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	if opts.File == "" {
		logger.SetOutput(console)
		return logger, func() {}, nil
	}

	logFile := filepath.Clean(opts.File)
	if strings.Contains(logFile, "..") {
		return nil, nil, fmt.Errorf("invalid log file path %q", opts.File)
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	asyncWriter, err := NewAsyncFileWriter(logFile, defaultBufferSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize async log writer: %w", err)
	}

	logger.SetOutput(asyncWriter)
	logger.AddHook(NewConsoleHook(console))

	return logger, asyncWriter.Close, nil
}

func parseLevel(configured string) logrus.Level {
	name := os.Getenv("LOG_LEVEL")
	if name == "" {
		name = configured
	}
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
