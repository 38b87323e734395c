// Package logger is surfbot's logging layer.
//
// Outside a session, log lines go to the configured sinks (stdout and/or
// a log file under the config directory). While a session holds the
// terminal in raw mode, stray log lines would corrupt the rendered
// frame, so the session calls Suspend and terminal logging parks for its
// lifetime; the file sink keeps recording throughout.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// Config describes logger settings.
type Config struct {
	Enabled bool
	Level   string
	Stdout  bool
	File    string
}

// sinks is the mutable sink set behind the active logger.
type sinks struct {
	cfg      Config
	file     *os.File
	terminal bool // stdout logging currently allowed
}

var (
	mu     sync.Mutex
	cur    sinks
	active atomic.Pointer[slog.Logger]
)

func init() {
	active.Store(discard())
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Init configures the logger. A relative file path is resolved against
// configDir; a failed file open degrades to the remaining sinks and
// returns the error.
func Init(cfg Config, configDir string) error {
	mu.Lock()
	defer mu.Unlock()

	if cur.file != nil {
		cur.file.Close()
	}
	cur = sinks{cfg: cfg, terminal: cfg.Stdout}

	if !cfg.Enabled {
		rebuild()
		return nil
	}

	var initErr error
	if cfg.File != "" {
		path := resolvePath(cfg.File, configDir)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			initErr = fmt.Errorf("logger: create log dir: %w", err)
		} else if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err != nil {
			initErr = fmt.Errorf("logger: open log file: %w", err)
		} else {
			cur.file = f
		}
	}

	rebuild()
	return initErr
}

// Suspend parks terminal logging for the lifetime of a raw-mode session.
// The returned resume function restores the previous terminal sink and is
// idempotent, so it is safe on every session exit path.
func Suspend() (resume func()) {
	mu.Lock()
	was := cur.terminal
	cur.terminal = false
	rebuild()
	mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			cur.terminal = was
			rebuild()
			mu.Unlock()
		})
	}
}

// rebuild swaps the active logger to match the current sink set.
// Must be called with mu held.
func rebuild() {
	var out []io.Writer
	if cur.cfg.Enabled {
		if cur.terminal {
			out = append(out, os.Stdout)
		}
		if cur.file != nil {
			out = append(out, cur.file)
		}
	}
	if len(out) == 0 {
		active.Store(discard())
		return
	}

	h := slog.NewTextHandler(io.MultiWriter(out...), &slog.HandlerOptions{
		Level: levelFrom(cur.cfg.Level),
	})
	active.Store(slog.New(h))
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	active.Load().Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	active.Load().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	active.Load().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	active.Load().Error(msg, args...)
}

func levelFrom(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolvePath expands a leading ~ and resolves relative paths against
// baseDir.
func resolvePath(path, baseDir string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
