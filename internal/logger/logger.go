package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"fallwatch/internal/config"
)

// Level file names, also accepted by the log view/clear endpoints.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      []*os.File
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	logger := &Logger{
		logDir: config.LogDirectory,
	}

	logger.setupLoggers()
	return logger
}

func (l *Logger) setupLoggers() {
	infoWriter := io.MultiWriter(os.Stdout, l.openLogFile(InfoFile))
	warningWriter := io.MultiWriter(os.Stdout, l.openLogFile(WarningFile))
	errorWriter := io.MultiWriter(os.Stderr, l.openLogFile(ErrorFile))

	l.infoLog = log.New(infoWriter, "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warningWriter, "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errorWriter, "❌ ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) *os.File {
	path := filepath.Join(l.logDir, filename)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", path, err)
	}
	l.files = append(l.files, file)
	return file
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.output(l.infoLog, format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.output(l.warningLog, format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.output(l.errorLog, format, v...)
}

func (l *Logger) output(target *log.Logger, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Depth 3 skips output and the level method so Lshortfile names the caller.
	target.Output(3, fmt.Sprintf(format, v...))
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if !IsLevelFile(fileName) {
		return fmt.Errorf("unknown log file: %s", fileName)
	}

	l.mu.Lock()
	err := os.Truncate(filepath.Join(l.logDir, fileName), 0)
	l.mu.Unlock()

	if err != nil {
		l.Error("Error clearing %s: %v", fileName, err)
		return err
	}

	l.Info("%s has been cleared", fileName)
	return nil
}

// Dir returns the directory holding the level files.
func (l *Logger) Dir() string {
	return l.logDir
}

// Close releases the level files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, file := range l.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

// IsLevelFile reports whether name is one of the three level files.
func IsLevelFile(name string) bool {
	switch name {
	case InfoFile, WarningFile, ErrorFile:
		return true
	}
	return false
}
