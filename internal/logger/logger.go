// Package logger provides the process-wide structured logger used by every
// component of the server. It wraps log/slog with level and sink switching
// appropriate for a daemon that can run attached to a terminal or detached
// into syslog.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Level mirrors slog.Level with names matching the daemon's own vocabulary
// (the original C source logs at LOG_INFO/LOG_WARNING/LOG_CRIT/LOG_EMERG).
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	mu           sync.RWMutex
	base         *slog.Logger
	currentLevel atomic.Int32
	levelVar     = new(slog.LevelVar)
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	setOutput(os.Stdout)
}

func setOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	levelVar.Set(Level(currentLevel.Load()).slog())
	base = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
}

// SetLevel changes the minimum level logged from this point forward.
func SetLevel(l Level) {
	currentLevel.Store(int32(l))
	levelVar.Set(l.slog())
}

// ToStdout switches the sink to line-buffered stdout, used when the daemon
// does not detach (-d).
func ToStdout() { setOutput(os.Stdout) }

// ToWriter switches the sink to an arbitrary writer, used for the syslog
// sink once the process has detached.
func ToWriter(w io.Writer) { setOutput(w) }

func logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Debug(msg string, args ...any) { logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { logger().Warn(msg, args...) }
func Error(msg string, args ...any) { logger().Error(msg, args...) }

// Emergency logs a fatal-condition message (SIGSEGV path) at error level
// with a distinguishing field, since slog has no level above Error.
func Emergency(msg string, args ...any) {
	logger().Error(msg, append([]any{"severity", "emergency"}, args...)...)
}

func DebugCtx(ctx context.Context, msg string, args ...any) { logger().DebugContext(ctx, msg, args...) }
func InfoCtx(ctx context.Context, msg string, args ...any)  { logger().InfoContext(ctx, msg, args...) }
func WarnCtx(ctx context.Context, msg string, args ...any)  { logger().WarnContext(ctx, msg, args...) }
func ErrorCtx(ctx context.Context, msg string, args ...any) { logger().ErrorContext(ctx, msg, args...) }

// Hex is a convenience formatter for hex-encoded opaque values (file
// handles, cookies) used across several log call sites.
func Hex(b []byte) string { return fmt.Sprintf("%x", b) }
