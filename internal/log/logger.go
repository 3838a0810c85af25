// Package log owns the process-wide structured logger and the attribute
// conventions shared across subsystems.
package log

import (
	"log/slog"
	"os"
	"sync"
)

var setupOnce sync.Once

// Setup installs the global JSON logger at the given level. Unknown or empty
// levels fall back to info. The first call wins; later calls are no-ops so
// tests and the CLI can both call it safely.
func Setup(level string) {
	setupOnce.Do(func() {
		handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLevel(level),
		})
		slog.SetDefault(slog.New(handler))
	})
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Get returns the global logger, installing the default one if Setup has not
// run yet.
func Get() *slog.Logger {
	Setup("")
	return slog.Default()
}

// WithComponent tags a logger with the subsystem it serves.
func WithComponent(name string) *slog.Logger {
	return Get().With("component", name)
}

// WithWorkspace tags a logger with the project whose workspace is being
// operated on.
func WithWorkspace(project string) *slog.Logger {
	return Get().With("workspace", project)
}

// WithStep tags a logger with the provisioning step in flight.
func WithStep(step string) *slog.Logger {
	return Get().With("step", step)
}
