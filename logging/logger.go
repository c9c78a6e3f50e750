package logging

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lattice-iot/modbusd/common"
)

// Logger implements common.LoggerInterface and common.LoggerInterfaceHexdump
// on top of a zap.SugaredLogger.
type Logger struct {
	mu     sync.Mutex
	level  common.LogLevel
	atom   zap.AtomicLevel
	sugar  *zap.SugaredLogger
	fields map[string]interface{}
}

// Option configures a Logger.
type Option func(*loggerConfig)

type loggerConfig struct {
	level       common.LogLevel
	development bool
	fields      map[string]interface{}
}

// WithLevel sets the initial log level.
func WithLevel(level common.LogLevel) Option {
	return func(c *loggerConfig) { c.level = level }
}

// WithDevelopment switches the zap encoder to the human-friendly console
// format instead of JSON; useful for local runs of cmd/modbusd.
func WithDevelopment(dev bool) Option {
	return func(c *loggerConfig) { c.development = dev }
}

// WithFields seeds the logger with structured fields attached to every entry.
func WithFields(fields map[string]interface{}) Option {
	return func(c *loggerConfig) {
		if c.fields == nil {
			c.fields = make(map[string]interface{})
		}
		for k, v := range fields {
			c.fields[k] = v
		}
	}
}

// ParseLevel maps a config/CLI level name to a common.LogLevel, defaulting
// to LevelInfo for anything unrecognized.
func ParseLevel(name string) common.LogLevel {
	switch name {
	case "trace":
		return common.LevelTrace
	case "debug":
		return common.LevelDebug
	case "warn", "warning":
		return common.LevelWarn
	case "error":
		return common.LevelError
	case "none":
		return common.LevelNone
	default:
		return common.LevelInfo
	}
}

func toZapLevel(l common.LogLevel) zapcore.Level {
	switch l {
	case common.LevelTrace, common.LevelDebug:
		return zapcore.DebugLevel
	case common.LevelInfo:
		return zapcore.InfoLevel
	case common.LevelWarn:
		return zapcore.WarnLevel
	case common.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel + 1 // effectively disables output
	}
}

// NewLogger creates a zap-backed logger. Trace and Debug both map to zap's
// debug level; zap has no separate trace tier.
func NewLogger(options ...Option) *Logger {
	cfg := loggerConfig{level: common.LevelInfo}
	for _, option := range options {
		option(&cfg)
	}

	atom := zap.NewAtomicLevelAt(toZapLevel(cfg.level))

	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if cfg.development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), atom)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	sugar := base.Sugar()
	if len(cfg.fields) > 0 {
		sugar = sugar.With(flattenFields(cfg.fields)...)
	}

	return &Logger{
		level:  cfg.level,
		atom:   atom,
		sugar:  sugar,
		fields: cfg.fields,
	}
}

func flattenFields(fields map[string]interface{}) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

// Trace logs at debug level; zap does not distinguish trace from debug.
func (l *Logger) Trace(ctx context.Context, format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(ctx context.Context, format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an info message.
func (l *Logger) Info(ctx context.Context, format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(ctx context.Context, format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(ctx context.Context, format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Hexdump logs a hexdump of data at trace (debug) level, matching the
// teacher's TRACE-only hexdump behavior.
func (l *Logger) Hexdump(ctx context.Context, data []byte) {
	if l.GetLevel() > common.LevelTrace {
		return
	}
	l.sugar.Debugf("hexdump (%d bytes):\n%s", len(data), hexdumpString(data))
}

func hexdumpString(data []byte) string {
	const width = 16
	var b []byte
	for i := 0; i < len(data); i += width {
		end := i + width
		if end > len(data) {
			end = len(data)
		}
		b = append(b, []byte(hexLine(i, data[i:end]))...)
		b = append(b, '\n')
	}
	return string(b)
}

func hexLine(offset int, chunk []byte) string {
	const hexDigits = "0123456789abcdef"
	line := make([]byte, 0, 8+3+len(chunk)*3)
	for shift := 28; shift >= 0; shift -= 4 {
		line = append(line, hexDigits[(offset>>uint(shift))&0xF])
	}
	line = append(line, ' ', ' ')
	for _, c := range chunk {
		line = append(line, ' ', hexDigits[c>>4], hexDigits[c&0xF])
	}
	return string(line)
}

// WithFields returns a new logger with the given fields merged in.
func (l *Logger) WithFields(fields map[string]interface{}) common.LoggerInterface {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{
		level:  l.level,
		atom:   l.atom,
		sugar:  l.sugar.With(flattenFields(fields)...),
		fields: merged,
	}
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() common.LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevel adjusts the logger's level at runtime via zap's atomic level.
func (l *Logger) SetLevel(level common.LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.atom.SetLevel(toZapLevel(level))
}
