package config

import (
	"log"
	"os"
)

// Logger is a small leveled wrapper around the standard library's log
// package. Grounded on cmd/main.go's use of the stdlib logger for fatal
// startup errors — this generalizes that one call site into something
// every component can use uniformly rather than inventing a second way
// to report errors. See DESIGN.md for why this stays on the standard
// library instead of an ecosystem logging package.
type Logger struct {
	level  int
	stderr *log.Logger
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

func levelFromString(s string) int {
	switch s {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// NewLogger creates a Logger writing to stderr at the given level
// ("debug", "info", "warn", or "error"; unrecognized values fall back to
// "info").
func NewLogger(level string) *Logger {
	return &Logger{
		level:  levelFromString(level),
		stderr: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) logf(level int, prefix, format string, args ...any) {
	if level < l.level {
		return
	}
	l.stderr.Printf(prefix+" "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(levelDebug, "[debug]", format, args...) }
func (l *Logger) Infof(format string, args ...any)   { l.logf(levelInfo, "[info]", format, args...) }
func (l *Logger) Warnf(format string, args ...any)   { l.logf(levelWarn, "[warn]", format, args...) }
func (l *Logger) Errorf(format string, args ...any)  { l.logf(levelError, "[error]", format, args...) }

// Fatalf logs at error level and terminates the process with status 1,
// the same shape as cmd/main.go's log.Fatalf for unrecoverable startup
// failures.
func (l *Logger) Fatalf(format string, args ...any) {
	l.stderr.Fatalf("[fatal] "+format, args...)
}
