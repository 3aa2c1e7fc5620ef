package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance.
var Log = logrus.New()

// Config holds the logging configuration.
type Config struct {
	Level      string `json:"level"`  // e.g., "debug", "info", "warn", "error"
	Format     string `json:"format"` // "json" or "text"
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // megabytes
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

// InitLogger initializes the global logger based on the provided configuration.
func InitLogger(cfg Config) error {
	// Set log level
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	Log.SetLevel(level)

	// Set log format
	switch cfg.Format {
	case "json":
		Log.SetFormatter(&logrus.JSONFormatter{})
	default:
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	// Set output
	if cfg.FilePath != "" {
		lumberjackLogger := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		// Set output to both file and stdout
		mw := io.MultiWriter(os.Stdout, lumberjackLogger)
		Log.SetOutput(mw)
	} else {
		Log.SetOutput(os.Stdout)
	}

	return nil
}
