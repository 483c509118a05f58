package cmd

import (
	"log/slog"
	"os"
	"sync"
)

var (
	globalLogger *slog.Logger
	once         sync.Once
)

// InitLogger initializes the global slog logger. Text format on stderr;
// the timestamp is dropped when running under systemd.
func InitLogger(verbose bool) *slog.Logger {
	once.Do(func() {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{Level: level}
		if isRunningUnderSystemd() {
			opts.ReplaceAttr = removeTimeAttr
		}

		globalLogger = slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(globalLogger)
	})

	return globalLogger
}

func isRunningUnderSystemd() bool {
	_, ok := os.LookupEnv("INVOCATION_ID")
	return ok
}

func removeTimeAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
