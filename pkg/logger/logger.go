package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger - структурированный логгер с парами ключ/значение
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Fatal(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
	Sync() error
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New создает JSON логгер с указанным уровнем (debug, info, warn, error)
func New(level string) Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	return newWithEncoder(zapcore.NewJSONEncoder(encoderCfg), level)
}

// NewDevelopment пишет в консоль в читаемом виде
func NewDevelopment(level string) Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return newWithEncoder(zapcore.NewConsoleEncoder(encoderCfg), level)
}

func newWithEncoder(enc zapcore.Encoder, level string) Logger {
	return NewWithCore(zapcore.NewCore(enc, zapcore.Lock(os.Stdout), parseLevel(level)))
}

// NewWithCore оборачивает произвольное ядро zap (используется в тестах)
func NewWithCore(core zapcore.Core) Logger {
	return &zapLogger{sugar: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()}
}

// NewNop возвращает логгер, который ничего не пишет
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *zapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *zapLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *zapLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *zapLogger) Fatal(msg string, keysAndValues ...interface{}) {
	l.sugar.Fatalw(msg, keysAndValues...)
}

func (l *zapLogger) With(keysAndValues ...interface{}) Logger {
	return &zapLogger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *zapLogger) Sync() error {
	return l.sugar.Sync()
}
