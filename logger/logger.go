package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger wraps a zap SugaredLogger with key/value level methods
type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

// New builds a logger. "prod" selects the JSON production config, anything
// else the console development config. Output goes to stderr.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Sync flushes buffered log entries
func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

// Debug logs msg with key/value pairs at debug level
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}

// Info logs msg with key/value pairs at info level
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}

// Warn logs msg with key/value pairs at warn level
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}

// Error logs msg with key/value pairs at error level
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}

// With returns a child logger carrying the given key/value pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}
