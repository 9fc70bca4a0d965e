package xlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

func (lvl LogLevel) zapLevel() zapcore.Level {
	switch lvl {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
	}
	return zapcore.DebugLevel
}

func (lvl LogLevel) String() string {
	return string(lvl)
}

type LogEncoderType uint8

const (
	JSON LogEncoderType = iota
	PlainText
)

// XLogger is the diagnostic sink the storage core writes to. It is
// purely observational and never affects control flow.
type XLogger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Named(name string) XLogger
	Sync() error
}

var _ XLogger = (*xLogger)(nil)

type xLogger struct {
	logger  *zap.Logger
	level   LogLevel
	encoder LogEncoderType
	writer  zapcore.WriteSyncer
}

func (l *xLogger) Debug(msg string, fields ...zap.Field) { l.logger.Debug(msg, fields...) }
func (l *xLogger) Info(msg string, fields ...zap.Field)  { l.logger.Info(msg, fields...) }
func (l *xLogger) Warn(msg string, fields ...zap.Field)  { l.logger.Warn(msg, fields...) }
func (l *xLogger) Error(msg string, fields ...zap.Field) { l.logger.Error(msg, fields...) }

func (l *xLogger) Named(name string) XLogger {
	return &xLogger{
		logger:  l.logger.Named(name),
		level:   l.level,
		encoder: l.encoder,
		writer:  l.writer,
	}
}

func (l *xLogger) Sync() error {
	return l.logger.Sync()
}

type XLoggerOption func(*xLogger)

func WithLogLevel(level LogLevel) XLoggerOption {
	return func(l *xLogger) {
		l.level = level
	}
}

func WithEncoder(encoder LogEncoderType) XLoggerOption {
	return func(l *xLogger) {
		l.encoder = encoder
	}
}

// WithWriteSyncer redirects log output, mainly for tests that assert
// on emitted entries.
func WithWriteSyncer(ws zapcore.WriteSyncer) XLoggerOption {
	return func(l *xLogger) {
		if ws != nil {
			l.writer = ws
		}
	}
}

func NewXLogger(opts ...XLoggerOption) XLogger {
	l := &xLogger{
		level:   LogLevelInfo,
		encoder: JSON,
		writer:  zapcore.Lock(os.Stdout),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	config := zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "lvl",
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		TimeKey:       "ts",
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		CallerKey:     "callAt",
		EncodeCaller:  zapcore.ShortCallerEncoder,
		NameKey:       "component",
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: zapcore.OmitKey,
	}
	var enc zapcore.Encoder
	switch l.encoder {
	case PlainText:
		enc = zapcore.NewConsoleEncoder(config)
	default:
		enc = zapcore.NewJSONEncoder(config)
	}
	core := zapcore.NewCore(enc, l.writer, zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= l.level.zapLevel()
	}))
	l.logger = zap.New(core, zap.AddCaller())
	return l
}

// Discard returns a logger that drops everything, for callers that
// opt out of diagnostics.
func Discard() XLogger {
	return &xLogger{logger: zap.NewNop()}
}
