// Package logging builds the process logger.
//
// The logger is built once by the CLI and handed to every component. JSON
// lines go to the configured log file at info level (debug when verbose);
// a human-readable console copy goes to stderr, at warn level normally and
// debug level when verbose.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// File receives JSON log lines. Empty disables file logging.
	File string

	// Verbose lowers both outputs to debug level.
	Verbose bool

	// Console receives the console copy. Nil means os.Stderr.
	Console io.Writer
}

// New builds a logger from opts. The caller must call Sync before exit.
func New(opts Options) (*zap.Logger, error) {
	fileLevel, consoleLevel := zapcore.InfoLevel, zapcore.WarnLevel
	if opts.Verbose {
		fileLevel, consoleLevel = zapcore.DebugLevel, zapcore.DebugLevel
	}

	var cores []zapcore.Core

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(fileLevel)
		config.Sampling = nil
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.OutputPaths = []string{opts.File}
		config.ErrorOutputPaths = []string{"stderr"}

		fileLogger, err := config.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		cores = append(cores, fileLogger.Core())
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(console),
		consoleLevel,
	))

	return zap.New(zapcore.NewTee(cores...)), nil
}
