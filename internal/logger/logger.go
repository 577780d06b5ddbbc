// Package logger provides the process-wide structured logger used by every
// gitsession component. Output defaults to stderr at info level; Init
// redirects it to a file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu       sync.Mutex
	levelVar = new(slog.LevelVar)
	base     *slog.Logger
	logFile  *os.File
	output   io.Writer = os.Stderr
)

// SetDebug switches between debug and info level.
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// Init redirects log output to the file at path, appending to it.
// An empty path keeps the current destination.
func Init(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	output = f
	base = newLogger(f)
	base.Debug("logger initialized", "path", path)
	return nil
}

// SetOutput sends log output to w. Used by tests and the dashboard, which
// cannot share the terminal with log lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = newLogger(w)
}

// Get returns the shared logger.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		base = newLogger(output)
	}
	return base
}

// Component returns the shared logger with a component attribute attached.
//
//	log := logger.Component("submodule")
//	log.Warn("checkout failed", "path", p)
func Component(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// Close releases the log file, if one was opened by Init.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	output = os.Stderr
	base = nil
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
}
