package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvLogLevel overrides the configured level without touching the
// config file, handy when chasing a deployment problem.
const EnvLogLevel = "GUARDTONE_LOG_LEVEL"

// LogConfig controls process logger output.
type LogConfig struct {
	// Level is a zerolog level string; empty means info.
	Level string
	// File, when set, adds a size-rotated log file next to the
	// console writer.
	File string
}

// InitLogger configures the process logger and returns it. Console
// output goes to stderr; stdout belongs to emitted audio.
func InitLogger(app string, cfg LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if env := os.Getenv(EnvLogLevel); env != "" {
		if l, err := zerolog.ParseLevel(env); err == nil {
			level = l
		}
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	var out io.Writer = console
	if cfg.File != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    20, // MB
			MaxBackups: 3,
		})
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
