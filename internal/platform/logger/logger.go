// Package logger provides structured logging for the game server.
// Every command outcome the engine reports should be traceable through this.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger provides structured logging with context.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates a new logger instance.
func NewLogger() *Logger {
	return &Logger{
		infoLogger:  log.New(os.Stdout, "[COOKIE-INFO] ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(os.Stdout, "[COOKIE-WARN] ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(os.Stderr, "[COOKIE-ERROR] ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// NewWriterLogger sends every level to w. The terminal renderer owns stdout,
// so it logs to a file through this.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{
		infoLogger:  log.New(w, "[COOKIE-INFO] ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(w, "[COOKIE-WARN] ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(w, "[COOKIE-ERROR] ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return NewWriterLogger(io.Discard)
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Output(2, msg)
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.infoLogger.Output(2, fmt.Sprintf(format, args...))
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Output(2, msg)
}

// Warnf logs a formatted warning.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.warnLogger.Output(2, fmt.Sprintf(format, args...))
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Output(2, msg)
}

// Errorf logs a formatted error.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Output(2, fmt.Sprintf(format, args...))
}

// Event logs a game event with the command that caused it.
func (l *Logger) Event(eventType string, command string, details string) {
	l.infoLogger.Output(2, fmt.Sprintf("[EVENT:%s] Command:%s | %s", eventType, command, details))
}
