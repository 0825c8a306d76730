package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger      *zap.Logger
	enabled     bool
	initialized bool
	mu          sync.Mutex
	turnCount   int // Track conversation turns

	devDir     string // DEV_DIR directory path for debug output
	devEnabled bool   // Whether DEV_DIR is enabled
)

// Init sets up logging from the environment. HEZELL_DEBUG=1 writes a rotated
// log to ~/.hezell/debug.log (or HEZELL_LOG_FILE); DEV_DIR, set on its own,
// receives a JSON dump of every request and response.
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}
	initialized = true
	logger = zap.NewNop()

	if dir := os.Getenv("DEV_DIR"); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create DEV_DIR: %w", err)
		}
		devDir, devEnabled = dir, true
	}

	if os.Getenv("HEZELL_DEBUG") != "1" {
		return nil
	}
	path, err := logPath()
	if err != nil {
		return err
	}
	logger = newFileLogger(path)
	enabled = true
	logger.Info("debug logging started", zap.String("file", path))
	return nil
}

func logPath() (string, error) {
	if p := os.Getenv("HEZELL_LOG_FILE"); p != "" {
		return p, os.MkdirAll(filepath.Dir(p), 0755)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".hezell")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "debug.log"), nil
}

// newFileLogger writes console-encoded entries to a rotated file. Turns are
// long-lived and chatty, so files roll at 20 MB and keep a week of history.
func newFileLogger(path string) *zap.Logger {
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     7,
		Compress:   true,
	})

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.CallerKey = ""
	enc.StacktraceKey = ""

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), sink, zapcore.DebugLevel)
	return zap.New(core).Named("hezell")
}

// IsEnabled returns whether debug logging is enabled
func IsEnabled() bool {
	return enabled
}

// Logger returns the underlying zap logger
func Logger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Use replaces the active logger and turns logging on. A nil logger turns
// it off.
func Use(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	initialized = true
	logger = l
	enabled = l != nil
}

// Sync flushes any buffered log entries
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// NextTurn increments and returns the turn counter
func NextTurn() int {
	mu.Lock()
	defer mu.Unlock()
	turnCount++
	return turnCount
}

// GetTurnPrefix returns the turn prefix for file naming
// Format: turn-{turn}
// Example: turn-005
func GetTurnPrefix(turn int) string {
	return fmt.Sprintf("turn-%03d", turn)
}

// escapeForLog escapes newlines and tabs for single-line log output
func escapeForLog(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}

// LogStreamDone logs stream completion stats
func LogStreamDone(provider string, duration time.Duration, chunks int) {
	if !enabled {
		return
	}
	logger.Info(fmt.Sprintf("[stream] %s done duration=%s chunks=%d", provider, duration.Round(time.Millisecond), chunks))
}

// LogPersist logs a history write. mode is "full", "emergency" or "clear".
func LogPersist(mode string, sessions, bytes int, err error) {
	if !enabled {
		return
	}
	if err != nil {
		logger.Warn(fmt.Sprintf("[persist] %s sessions=%d bytes=%d failed: %v", mode, sessions, bytes, err))
		return
	}
	logger.Info(fmt.Sprintf("[persist] %s sessions=%d bytes=%d", mode, sessions, bytes))
}
