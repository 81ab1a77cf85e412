// Package logging provides config-driven categorized file-based logging for refinery.
// Logs are written to the configured directory with separate files per category.
// The terminal UI owns stdout, so nothing here ever writes to the terminal.
// Logging is controlled by logging.debug_mode - when false, every logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"refinery/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup and configuration
	CategorySession Category = "session" // Chat and list controllers
	CategoryAPI     Category = "api"     // Backend HTTP client
	CategoryServer  Category = "server"  // Reference backend requests
	CategoryStore   Category = "store"   // Persistence
	CategoryRefine  Category = "refine"  // LLM calls
	CategoryUI      Category = "ui"      // Terminal UI events
)

type fileLogger struct {
	logger *zap.Logger
	file   *os.File
}

var (
	loggers   = make(map[Category]*fileLogger)
	loggersMu sync.Mutex
	cfg       config.LoggingConfig
	level     zapcore.Level
)

// Initialize applies the logging config and creates the log directory.
// Should be called once at startup.
func Initialize(lc config.LoggingConfig) error {
	CloseAll()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	cfg = lc
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil || lc.Level == "" {
		level = zapcore.InfoLevel
	}

	// Silent no-op in production mode
	if !cfg.DebugMode {
		return nil
	}
	if cfg.Dir == "" {
		return fmt.Errorf("logging dir required when debug_mode is set")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	return nil
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	return cfg.IsCategoryEnabled(string(category))
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *zap.Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if !cfg.IsCategoryEnabled(string(category)) || cfg.Dir == "" {
		return zap.NewNop()
	}
	if l, ok := loggers[category]; ok {
		return l.logger
	}

	// Date prefix for easy rotation
	name := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
	path := filepath.Join(cfg.Dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", path, err)
		return zap.NewNop()
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(file), level)
	l := &fileLogger{
		logger: zap.New(core).Named(string(category)),
		file:   file,
	}
	loggers[category] = l
	return l.logger
}

// CloseAll flushes and closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		_ = l.logger.Sync()
		_ = l.file.Close()
	}
	loggers = make(map[Category]*fileLogger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...any) {
	Get(CategoryBoot).Sugar().Infof(format, args...)
}

// BootError logs error to the boot category
func BootError(format string, args ...any) {
	Get(CategoryBoot).Sugar().Errorf(format, args...)
}

// UI logs to the ui category
func UI(format string, args ...any) {
	Get(CategoryUI).Sugar().Infof(format, args...)
}
