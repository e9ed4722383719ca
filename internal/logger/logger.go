// Package logger provides the engine's structured logging surface: a
// package-level slog.Logger configurable for severity, text/JSON output,
// and file rotation, grounded on the teacher's internal/logger shape
// (see logger_test.go in the teacher pack for the original API this
// imitates).
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity strings accepted in configuration, matching the teacher's
// config.TRACE/.../OFF constants.
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

// Custom slog levels: slog only ships Debug/Info/Warn/Error, but the
// engine also wants TRACE (below Debug) and OFF (above Error, silencing
// everything).
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(16)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelWarn:  "WARNING",
}

// RotateConfig mirrors the lumberjack knobs the engine exposes through
// cfg.Logging.
type RotateConfig struct {
	MaxFileSizeMB  int
	BackupFileCount int
	Compress       bool
}

type loggerFactory struct {
	file      *os.File
	sysWriter io.Writer
	format    string
	level     string
	rotate    RotateConfig
	prefix    string
}

var defaultLoggerFactory = &loggerFactory{
	level:  INFO,
	format: "json",
}

var defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, toLevelVar(INFO), ""))

// replaceAttr renames slog's "level" key to "severity" (using the
// engine's TRACE/WARNING names where slog's differ) and "msg" to
// "message"; the "time" key is kept. This is the text/json layout
// exercised by logger_test.go's regexes.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		a.Key = "severity"
		level, _ := a.Value.Any().(slog.Level)
		if name, ok := levelNames[level]; ok {
			a.Value = slog.StringValue(name)
		}
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{Level: levelVar, ReplaceAttr: replaceAttr}
	pw := &prefixWriter{w: w, prefix: prefix}
	if f.format == "text" {
		return slog.NewTextHandler(pw, opts)
	}
	return slog.NewJSONHandler(pw, opts)
}

// prefixWriter prepends a static prefix to every write. An empty prefix
// passes writes through unchanged.
type prefixWriter struct {
	w      io.Writer
	prefix string
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	if p.prefix == "" {
		return p.w.Write(b)
	}
	n, err := p.w.Write([]byte(p.prefix))
	if err != nil {
		return n, err
	}
	m, err := p.w.Write(b)
	return n + m, err
}

func toLevelVar(level string) *slog.LevelVar {
	v := new(slog.LevelVar)
	setLoggingLevel(level, v)
	return v
}

func setLoggingLevel(level string, v *slog.LevelVar) {
	switch level {
	case TRACE:
		v.Set(LevelTrace)
	case DEBUG:
		v.Set(LevelDebug)
	case INFO:
		v.Set(LevelInfo)
	case WARNING:
		v.Set(LevelWarn)
	case ERROR:
		v.Set(LevelError)
	default:
		v.Set(LevelOff)
	}
}

// SetLogFormat switches the default logger between "text" and "json"
// (anything else falls back to json), rebuilding defaultLogger in
// place so callers holding no reference still pick up the change.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(
		currentWriter(), toLevelVar(defaultLoggerFactory.level), defaultLoggerFactory.prefix))
}

func currentWriter() io.Writer {
	if defaultLoggerFactory.file != nil {
		return defaultLoggerFactory.file
	}
	if defaultLoggerFactory.sysWriter != nil {
		return defaultLoggerFactory.sysWriter
	}
	return os.Stderr
}

// LoggingConfig is the subset of cfg.Logging the logger package reads to
// initialize rotation and severity.
type LoggingConfig struct {
	FilePath string
	Severity string
	Format   string
	Rotate   RotateConfig
}

// InitLogFile points the default logger at a rotated file sink (or
// stderr when FilePath is empty), per cfg.Logging.
func InitLogFile(c LoggingConfig) error {
	defaultLoggerFactory.level = c.Severity
	defaultLoggerFactory.format = c.Format
	defaultLoggerFactory.rotate = c.Rotate

	var w io.Writer
	if c.FilePath == "" {
		defaultLoggerFactory.file = nil
		defaultLoggerFactory.sysWriter = os.Stderr
		w = os.Stderr
	} else {
		lj := &lumberjack.Logger{
			Filename: c.FilePath,
			MaxSize:  c.Rotate.MaxFileSizeMB,
			MaxBackups: c.Rotate.BackupFileCount,
			Compress: c.Rotate.Compress,
		}
		defaultLoggerFactory.file = nil
		defaultLoggerFactory.sysWriter = lj
		w = lj
	}

	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, toLevelVar(c.Severity), ""))
	return nil
}

func logAttrs(ctx context.Context, level slog.Level, format string, args ...any) {
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	defaultLogger.Log(ctx, level, fmt.Sprintf(format, args...))
}

func Tracef(format string, args ...any) { logAttrs(context.Background(), LevelTrace, format, args...) }
func Debugf(format string, args ...any) { logAttrs(context.Background(), LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logAttrs(context.Background(), LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logAttrs(context.Background(), LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logAttrs(context.Background(), LevelError, format, args...) }

// exitFunc is os.Exit, indirected so tests can observe a Fatal call
// without killing the test process.
var exitFunc = os.Exit

// Fatal logs at ERROR severity and terminates the process. Reserved for
// AllocationFailed: the engine cannot make forward progress once a
// checkpoint blob's backing memory can't be obtained, so there is no
// recoverable path to return an error up.
func Fatal(format string, args ...any) {
	logAttrs(context.Background(), LevelError, format, args...)
	exitFunc(1)
}
