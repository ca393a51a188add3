// logger.go - Structured logging for the e-cash simulator
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger bundles the operational log with the audit trail of fraud verdicts
type Logger struct {
	zerolog.Logger
	audit zerolog.Logger
	files []*os.File
}

// NewLogger creates a console logger, optionally teed into logFile, and an
// audit logger writing to auditFile when it is set
func NewLogger(level string, logFile string, auditFile string) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	l := &Logger{audit: zerolog.Nop()}
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.files = append(l.files, file)
		out = zerolog.MultiLevelWriter(out, file)
	}
	l.Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()

	if auditFile != "" {
		file, err := os.OpenFile(auditFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		l.files = append(l.files, file)
		l.audit = zerolog.New(file).With().Timestamp().Str("stream", "audit").Logger()
	}
	return l, nil
}

// Close closes the logger and its files
func (l *Logger) Close() error {
	var first error
	for _, f := range l.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.files = nil
	return first
}

// Audit records an audit event
func (l *Logger) Audit(event string, details map[string]interface{}) {
	l.audit.Log().Str("event", event).Fields(details).Send()
}
