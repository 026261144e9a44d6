package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls where and how much the named loggers write.
type LogConfig struct {
	Level      string
	LogPath    string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    bool
}

func DefaultConfig() *LogConfig {
	return &LogConfig{
		Level:      "info",
		LogPath:    "logs",
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Console:    true,
	}
}

var (
	loggers   = make(map[string]*logrus.Logger)
	loggersMu sync.Mutex
	config    *LogConfig
)

// Init sets the configuration used for every logger created afterwards.
func Init(cfg *LogConfig) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.LogPath != "" {
		if err := os.MkdirAll(cfg.LogPath, 0o755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}

	loggersMu.Lock()
	config = cfg
	loggers = make(map[string]*logrus.Logger)
	loggersMu.Unlock()
	return nil
}

// GetLogger returns the logger for name (app, audit, ...), creating it on
// first use. Each name writes to its own rotated file.
func GetLogger(name string) *logrus.Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[name]; ok {
		return l
	}

	cfg := config
	if cfg == nil {
		cfg = &LogConfig{Level: "info", Console: true}
	}

	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, os.Stdout)
	}
	if cfg.LogPath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogPath, name+".log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}

	loggers[name] = l
	return l
}

// App is the general application logger.
func App() *logrus.Logger { return GetLogger("app") }

// Audit receives one line per order mutation, mirroring the audit table.
func Audit() *logrus.Logger { return GetLogger("audit") }
