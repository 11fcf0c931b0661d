package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LevelTrace is a custom trace level below debug
const LevelTrace = slog.Level(-8)

// redactedPrefixLen is how much of a credential survives RedactToken
const redactedPrefixLen = 8

var level = new(slog.LevelVar)

// sensitiveKeys name fields whose values are redacted no matter who logs them
var sensitiveKeys = map[string]bool{
	"access_token":       true,
	"id_token":           true,
	"entitlements_token": true,
	"authorization":      true,
	"session_token":      true,
}

func init() {
	l, err := parseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		l = slog.LevelInfo
	}
	level.Set(l)
	slog.SetDefault(slog.New(newHandler(os.Stderr, os.Getenv("LOG_FORMAT"))))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return slog.LevelError, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "TRACE":
		return LevelTrace, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
}

// newHandler builds the process handler. format "json" selects JSON output
// with RFC 3339 timestamps, anything else the text handler.
func newHandler(w io.Writer, format string) slog.Handler {
	asJSON := strings.EqualFold(format, "json")
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr(asJSON),
	}
	if asJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func replaceAttr(asJSON bool) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		switch {
		case a.Key == slog.TimeKey && asJSON:
			return slog.String("timestamp", a.Value.Time().UTC().Format(time.RFC3339Nano))
		case a.Key == slog.TimeKey:
			return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02 15:04:05.000-07:00"))
		case a.Key == slog.LevelKey:
			if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
				return slog.String(slog.LevelKey, "TRACE")
			}
		case sensitiveKeys[strings.ToLower(a.Key)]:
			return slog.String(a.Key, RedactToken(a.Value.String()))
		}
		return a
	}
}

// SetLogLevel updates the log level at runtime
func SetLogLevel(s string) error {
	l, err := parseLevel(s)
	if err != nil {
		return err
	}
	level.Set(l)

	LogInfoWithFields("logging", "Log level changed", map[string]any{
		"new_level": s,
	})
	return nil
}

// GetLogLevel returns the current log level as a string
func GetLogLevel() string {
	switch level.Level() {
	case slog.LevelError:
		return "error"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelInfo:
		return "info"
	case slog.LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// RedactToken shortens a credential to a prefix that is safe to log.
// Access, id and entitlement tokens must never reach the logs in full.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= redactedPrefixLen {
		return "***"
	}
	return token[:redactedPrefixLen] + "..."
}

func logAt(l slog.Level, msg string, args ...any) {
	slog.Default().Log(context.Background(), l, msg, args...)
}

func Logf(format string, args ...any) {
	logAt(slog.LevelInfo, fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...any) {
	logAt(slog.LevelInfo, fmt.Sprintf(format, args...))
}

func LogError(format string, args ...any) {
	logAt(slog.LevelError, fmt.Sprintf(format, args...))
}

func LogWarn(format string, args ...any) {
	logAt(slog.LevelWarn, fmt.Sprintf(format, args...))
}

func LogDebug(format string, args ...any) {
	logAt(slog.LevelDebug, fmt.Sprintf(format, args...))
}

func LogTrace(format string, args ...any) {
	if level.Level() <= LevelTrace {
		logAt(LevelTrace, fmt.Sprintf(format, args...))
	}
}

// fields flattens a component and its fields into slog key/value pairs
func fields(component string, kv map[string]any) []any {
	args := make([]any, 0, len(kv)*2+2)
	args = append(args, "component", component)
	for k, v := range kv {
		args = append(args, k, v)
	}
	return args
}

func LogInfoWithFields(component, message string, kv map[string]any) {
	logAt(slog.LevelInfo, message, fields(component, kv)...)
}

func LogDebugWithFields(component, message string, kv map[string]any) {
	logAt(slog.LevelDebug, message, fields(component, kv)...)
}

func LogErrorWithFields(component, message string, kv map[string]any) {
	logAt(slog.LevelError, message, fields(component, kv)...)
}

func LogWarnWithFields(component, message string, kv map[string]any) {
	logAt(slog.LevelWarn, message, fields(component, kv)...)
}

func LogTraceWithFields(component, message string, kv map[string]any) {
	if level.Level() <= LevelTrace {
		logAt(LevelTrace, message, fields(component, kv)...)
	}
}
