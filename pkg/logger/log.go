package logger

import (
	"context"
	"fmt"
	"strings"

	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/util"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Interface is an interface that wraps the Logger methods.
//
//go:generate mockgen -source log.go -destination=mock/log_mock.go -package=logger_mock
type Interface interface {
	Debug(message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
	Error(err error, fields ...Field)
	ErrorContext(ctx context.Context, err error, fields ...Field)
	Info(message string, fields ...Field)
	InfoContext(ctx context.Context, message string, fields ...Field)
	Warn(message string, fields ...Field)
	WarnContext(ctx context.Context, message string, fields ...Field)
	With(fields ...Field) Interface
	Sync() error
}

// Logger is a wrapper around zap.Logger to provide structured logging.
type Logger struct {
	logger *zap.Logger
}

var _ Interface = (*Logger)(nil)

// Field holds key-value to be written to log.
type Field struct {
	Key   string
	Value any
}

// NewField returns Field with given key and value.
func NewField(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Level represents the severity level of the log.
type Level string

const (
	// DebugLevel is used for debug messages.
	DebugLevel Level = "debug"
	// InfoLevel is used for informational messages.
	InfoLevel Level = "info"
	// WarnLevel is used for warning messages.
	WarnLevel Level = "warn"
	// ErrorLevel is used for error messages.
	ErrorLevel Level = "error"

	messageKey = "message"
)

func (level Level) zapLevel() zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type options struct {
	level           Level
	outputPaths     []string
	timeKey         string
	callerTraceSkip int
	initialFields   []Field
}

// Option configures NewLogger.
type Option func(*options)

// WithLoggingLevel sets the minimum level written. Defaults to info.
func WithLoggingLevel(level Level) Option {
	return func(o *options) { o.level = level }
}

// WithOutputPaths sets the sinks logs are written to. "stdout" and "stderr"
// are interpreted as the process streams; other values are file paths.
func WithOutputPaths(paths []string) Option {
	return func(o *options) { o.outputPaths = paths }
}

// WithTimeKey renames the time entry key.
func WithTimeKey(key string) Option {
	return func(o *options) { o.timeKey = key }
}

// WithCallerTraceSkip will skip X lines from trace log
func WithCallerTraceSkip(skip int) Option {
	return func(o *options) { o.callerTraceSkip = skip }
}

// WithInitialFields attaches fields to every entry, e.g. the service name.
func WithInitialFields(fields ...Field) Option {
	return func(o *options) { o.initialFields = append(o.initialFields, fields...) }
}

// NewLogger creates new Logger instance on top of zap's production config.
func NewLogger(opts ...Option) (*Logger, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.MessageKey = messageKey
	if o.level != "" {
		cfg.Level = zap.NewAtomicLevelAt(o.level.zapLevel())
	}
	if o.outputPaths != nil {
		cfg.OutputPaths = o.outputPaths
	}
	if o.timeKey != "" {
		cfg.EncoderConfig.TimeKey = o.timeKey
	}

	var buildOptions []zap.Option
	if o.callerTraceSkip > 0 {
		buildOptions = append(buildOptions, zap.AddCallerSkip(o.callerTraceSkip))
	}
	if len(o.initialFields) > 0 {
		buildOptions = append(buildOptions, zap.Fields(convertFields(o.initialFields...)...))
	}

	z, err := cfg.Build(buildOptions...)
	if err != nil {
		return nil, err
	}
	return &Logger{logger: z}, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{logger: zap.NewNop()}
}

// Sync flush the buffered log entries
func (l *Logger) Sync() error {
	return l.logger.Sync()
}

// GetZap returns zap.Logger instance used by log.Logger
func (l *Logger) GetZap() *zap.Logger {
	return l.logger
}

// Info write log with severity level info
func (l *Logger) Info(message string, fields ...Field) {
	l.logger.Info(message, convertFields(fields...)...)
}

// InfoContext write log with severity level info and append request id to given fields.
func (l *Logger) InfoContext(ctx context.Context, message string, fields ...Field) {
	l.Info(message, appendRequestID(ctx, fields)...)
}

// Warn write log with severity level warn
func (l *Logger) Warn(message string, fields ...Field) {
	l.logger.Warn(message, convertFields(fields...)...)
}

// WarnContext write log with severity level warn and append request id to given fields.
func (l *Logger) WarnContext(ctx context.Context, message string, fields ...Field) {
	l.Warn(message, appendRequestID(ctx, fields)...)
}

// Debug Write log with severity level debug
func (l *Logger) Debug(message string, fields ...Field) {
	l.logger.Debug(message, convertFields(fields...)...)
}

// DebugContext Write log with severity level debug and append request id to given fields.
func (l *Logger) DebugContext(ctx context.Context, message string, fields ...Field) {
	l.Debug(message, appendRequestID(ctx, fields)...)
}

// Error write log with severity level error. When err carries a
// github.com/pkg/errors stack, that stack replaces zap's own.
func (l *Logger) Error(err error, fields ...Field) {
	ce := l.logger.Check(zapcore.ErrorLevel, err.Error())
	if ce == nil {
		return
	}

	fields = append(fields, NewField("error_code", string(errors.CodeOf(err))))
	if errTracer, ok := err.(errors.StackTracer); ok {
		if stack := strings.TrimSpace(fmt.Sprintf("%+v", errTracer.StackTrace())); stack != "" {
			ce.Stack = stack
		}
	}
	ce.Write(convertFields(fields...)...)
}

// ErrorContext write log with severity level error and append request id to given fields.
func (l *Logger) ErrorContext(ctx context.Context, err error, fields ...Field) {
	l.Error(err, appendRequestID(ctx, fields)...)
}

// With returns a child logger with additional fields.
func (l *Logger) With(fields ...Field) Interface {
	return &Logger{logger: l.logger.With(convertFields(fields...)...)}
}

func convertFields(fields ...Field) []zapcore.Field {
	zapFields := make([]zapcore.Field, 0, len(fields))
	for _, field := range fields {
		zapFields = append(zapFields, zap.Any(field.Key, field.Value))
	}
	return zapFields
}

func appendRequestID(ctx context.Context, fields []Field) []Field {
	return append(fields, NewField("request_id", util.GetRequestID(ctx)))
}
