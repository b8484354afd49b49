// Package obs contains observability utilities such as logging.
package obs

import (
	"expvar"
	"log/slog"
	"os"
)

// Logger is the global structured logger used by the service.
//
// Logger is exported to allow other packages to use it for logging.
var Logger *slog.Logger

func init() {
	// Packages and tests that log before InitLogger still get a usable logger.
	Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// InitLogger initializes the global Logger with a JSON handler at the given
// level ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func InitLogger(level string) {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	Logger = slog.New(h)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Publish exposes f under name on /debug/vars. Publishing the same name twice is a no-op.
func Publish(name string, f func() any) {
	if expvar.Get(name) != nil {
		return
	}
	expvar.Publish(name, expvar.Func(f))
}
