package logging

import (
	"log/slog"
	"os"
	"sync"
)

var (
	logger    *slog.Logger
	loggerMu  sync.RWMutex
	debugMode bool
)

func init() {
	// 默认 Info 级别，输出到 stderr（stdout 留给 feeder 的原始 H.264 数据）
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// SetDebugMode 设置调试模式
func SetDebugMode(enabled bool) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	debugMode = enabled

	level := slog.LevelInfo
	if enabled {
		level = slog.LevelDebug
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// IsDebugMode 是否调试模式
func IsDebugMode() bool {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return debugMode
}

// Debug 调试日志
func Debug(msg string, args ...any) {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	l.Debug(msg, args...)
}

// Info 信息日志
func Info(msg string, args ...any) {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	l.Info(msg, args...)
}

// Warn 警告日志
func Warn(msg string, args ...any) {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	l.Warn(msg, args...)
}

// Error 错误日志
func Error(msg string, args ...any) {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	l.Error(msg, args...)
}
