// Package logger provides structured logging with trace-ID propagation,
// used by the HTTP transport, the valuation kernel, the orchestrator and
// the CLI.
package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys used to carry logging metadata.
type ContextKey string

const (
	// TraceIDKey is the context key for the trace ID.
	TraceIDKey ContextKey = "trace_id"
)

// Logger wraps logrus.Logger with LiveCalc-specific field conventions.
type Logger struct {
	*logrus.Logger
	service string
}

// LoggingConfig configures a Logger.
type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	FilePrefix string
	Service    string
}

// New creates a Logger from an explicit configuration.
func New(cfg LoggingConfig) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "livecalc"
		}
		logDir := "logs"
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Errorf("failed to create logs directory: %v", err)
		} else {
			path := filepath.Join(logDir, prefix+".log")
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				log.Errorf("failed to open log file: %v", err)
			} else {
				log.SetOutput(io.MultiWriter(os.Stdout, file))
			}
		}
	default:
		log.SetOutput(os.Stdout)
	}

	return &Logger{Logger: log, service: cfg.Service}
}

// NewDefault creates a Logger with sensible defaults for the named component.
func NewDefault(service string) *Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	return &Logger{Logger: log, service: service}
}

// NewFromEnv builds a Logger from LIVECALC_LOG_LEVEL / LIVECALC_LOG_FORMAT.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LIVECALC_LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LIVECALC_LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(LoggingConfig{Level: level, Format: format, Output: "stdout", Service: service})
}

// WithField returns a new log entry with a single field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	entry := l.Logger.WithField(key, value)
	if l.service != "" {
		entry = entry.WithField("service", l.service)
	}
	return entry
}

// WithFields returns a new log entry with multiple fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	entry := l.Logger.WithFields(fields)
	if l.service != "" {
		entry = entry.WithField("service", l.service)
	}
	return entry
}

// WithError returns a new log entry carrying the given error.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.WithFields(logrus.Fields{}).WithError(err)
}

// WithContext returns a log entry populated with the trace ID carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.WithFields(logrus.Fields{})
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	return entry
}

// NewTraceID generates a new random trace ID.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID from ctx, returning "" if absent.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}
