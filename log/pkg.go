package log

import "sync"

var (
	defaultMu     sync.RWMutex
	defaultLogger = New()
)

// Config replaces the package default Logger with one built from opts and
// returns it. It is safe to call from concurrent goroutines, though records
// in flight may still be written by the previous Logger.
func Config(opts ...Option) Logger {
	logger := New(opts...)

	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()

	return logger
}

// Default returns the package default Logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()

	return defaultLogger
}

// Trace records msg with the default Logger at [LevelTrace].
func Trace(msg string, args ...any) { Default().Trace(msg, args...) }

// Debug records msg with the default Logger at [LevelDebug].
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }

// Info records msg with the default Logger at [LevelInfo].
func Info(msg string, args ...any) { Default().Info(msg, args...) }

// Warn records msg with the default Logger at [LevelWarn].
func Warn(msg string, args ...any) { Default().Warn(msg, args...) }

// Error records msg with the default Logger at [LevelError].
func Error(msg string, args ...any) { Default().Error(msg, args...) }
