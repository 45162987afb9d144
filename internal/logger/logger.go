// Package logger holds the process-wide structured logger.
// Output goes to a rotating file; stderr is added for debug runs and for
// the server, where an operator is watching the console.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger is the global logger instance. Nil until Init; every helper
	// below is a no-op while it is nil.
	Logger *log.Logger
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	File       string // empty: <Dir>/logs/starpath.log
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	Debug      bool
	Console    bool // also write to stderr
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	logFile := cfg.File
	if logFile == "" {
		logFile = filepath.Join(cfg.Dir, "logs", "starpath.log")
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return err
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	backups := cfg.MaxBackups
	if backups <= 0 {
		backups = 3
	}

	// Create rotating file handler
	fileWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxSize, // megabytes
		MaxBackups: backups,
		MaxAge:     28, // days
		Compress:   true,
	}

	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		level = parsed
	}
	if cfg.Debug {
		level = log.DebugLevel
	}

	var writer io.Writer = fileWriter
	if cfg.Debug || cfg.Console {
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "starpath",
	})

	return nil
}

// With returns a child logger carrying keyvals, or nil before Init.
func With(keyvals ...interface{}) *log.Logger {
	if Logger == nil {
		return nil
	}
	return Logger.With(keyvals...)
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}
