package telemetry

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

type LogFileConfig struct {
	Path string `json:"path"`
	// megabytes
	MaxSize    int  `json:"max_size"`
	MaxBackups int  `json:"max_backups"`
	MaxAge     int  `json:"max_age"`
	Compress   bool `json:"compress"`
}

// InitSlog installs a text handler on stderr as the default logger and
// returns it. when logFile.Path is set, records are also written to a
// rotating file.
func InitSlog(verbose bool, logFile LogFileConfig) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if logFile.Path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile.Path,
			MaxSize:    logFile.MaxSize,
			MaxBackups: logFile.MaxBackups,
			MaxAge:     logFile.MaxAge,
			Compress:   logFile.Compress,
		})
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
