package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level represents log level
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
	LevelSuccess Level = "SUCCESS"
	LevelDebug   Level = "DEBUG"
)

// Logger writes to stderr and, when a path is given, to a log file
type Logger struct {
	entry   *logrus.Entry
	logFile *os.File
	mu      sync.Mutex
}

// New creates a new logger instance
func New(filePath string) *Logger {
	return NewWithWriter(os.Stderr, filePath)
}

// NewWithWriter creates a logger writing to w and, when a path is given, to a log file
func NewWithWriter(w io.Writer, filePath string) *Logger {
	l := &Logger{}
	writers := []io.Writer{w}
	if filePath != "" {
		logFile, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			l.logFile = logFile
			writers = append(writers, logFile)
		}
	}

	base := logrus.New()
	base.SetOutput(io.MultiWriter(writers...))
	base.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	base.SetLevel(logrus.InfoLevel)
	l.entry = logrus.NewEntry(base)
	return l
}

// SetDebug toggles debug output
func (l *Logger) SetDebug(on bool) {
	if on {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
}

// With returns a logger sharing output that tags every line with key=value
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) write(level Level, message string, args ...interface{}) {
	switch level {
	case LevelDebug:
		l.entry.Debugf(message, args...)
	case LevelWarning:
		l.entry.Warnf(message, args...)
	case LevelError:
		l.entry.Errorf(message, args...)
	case LevelSuccess:
		l.entry.WithField("status", "success").Infof(message, args...)
	default:
		l.entry.Infof(message, args...)
	}
}

// Close closes the log file
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
}

// Info logs an informational message
func (l *Logger) Info(message string, args ...interface{}) {
	l.write(LevelInfo, message, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(message string, args ...interface{}) {
	l.write(LevelWarning, message, args...)
}

// Error logs an error message
func (l *Logger) Error(message string, args ...interface{}) {
	l.write(LevelError, message, args...)
}

// Success logs a success message
func (l *Logger) Success(message string, args ...interface{}) {
	l.write(LevelSuccess, message, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, args ...interface{}) {
	l.write(LevelDebug, message, args...)
}

var (
	defaultLogger   = New("")
	defaultLoggerMu sync.RWMutex
)

// SetDefault replaces the package-level logger. The previous one is returned so callers can close it.
func SetDefault(l *Logger) *Logger {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	prev := defaultLogger
	defaultLogger = l
	return prev
}

// Default returns the package-level logger
func Default() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// Info logs an informational message using the default logger
func Info(message string, args ...interface{}) {
	Default().Info(message, args...)
}

// Warning logs a warning message using the default logger
func Warning(message string, args ...interface{}) {
	Default().Warning(message, args...)
}

// Error logs an error message using the default logger
func Error(message string, args ...interface{}) {
	Default().Error(message, args...)
}

// Success logs a success message using the default logger
func Success(message string, args ...interface{}) {
	Default().Success(message, args...)
}

// Debug logs a debug message using the default logger
func Debug(message string, args ...interface{}) {
	Default().Debug(message, args...)
}
