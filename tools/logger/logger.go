package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents logging severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger provides levelled, prefixed logging for the studio
type Logger struct {
	mu       *sync.Mutex
	out      io.Writer
	minLevel Level
	prefix   string
	now      func() time.Time
}

// New creates a new logger
func New(out io.Writer, minLevel Level, prefix string) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		mu:       &sync.Mutex{},
		out:      out,
		minLevel: minLevel,
		prefix:   prefix,
		now:      time.Now,
	}
}

// Default returns a default logger to stdout
func Default() *Logger {
	return New(os.Stdout, LevelInfo, "")
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return New(io.Discard, LevelError+1, "")
}

// WithPrefix creates a sub-logger with an additional prefix. Sub-loggers
// share the parent's writer lock.
func (l *Logger) WithPrefix(prefix string) *Logger {
	newPrefix := prefix
	if l.prefix != "" {
		newPrefix = l.prefix + "/" + prefix
	}
	return &Logger{
		mu:       l.mu,
		out:      l.out,
		minLevel: l.minLevel,
		prefix:   newPrefix,
		now:      l.now,
	}
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level Level) bool {
	return level >= l.minLevel
}

func (l *Logger) log(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := l.now().Format("15:04:05.000")
	prefix := ""
	if l.prefix != "" {
		prefix = fmt.Sprintf("[%s] ", l.prefix)
	}

	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "%s %s %s%s\n", timestamp, level.String(), prefix, msg)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Step logs a named step with timing
func (l *Logger) Step(name string) func() {
	start := l.now()
	l.Info("▶ Starting: %s", name)
	return func() {
		l.Info("✓ Completed: %s (took %v)", name, l.now().Sub(start).Round(time.Millisecond))
	}
}

// Tokens logs token usage
func (l *Logger) Tokens(input, output int) {
	l.Info("📊 Tokens - Input: %d, Output: %d, Total: %d", input, output, input+output)
}

// Iteration logs the banner for one refinement pass
func (l *Logger) Iteration(index, max int) {
	l.Info("")
	l.Info("ITERATION %d/%d", index+1, max)
	l.Info("─────────────────────────────────────────────────────────────────")
}

// Execution logs the summary of an executed program
func (l *Logger) Execution(vertices, faces int, volume float64) {
	l.Info("🧱 Solid: %d vertices, %d faces, volume %.6g", vertices, faces, volume)
}

// Program logs program text line by line at debug level
func (l *Logger) Program(label, program string) {
	if !l.Enabled(LevelDebug) {
		return
	}
	l.Debug("%s:", label)
	for i, line := range strings.Split(program, "\n") {
		l.Debug("%4d | %s", i+1, line)
	}
}

// Outcome logs the closing banner of a run
func (l *Logger) Outcome(state string, accepted, max int, elapsed time.Duration) {
	l.Info("═══════════════════════════════════════════════════════════════")
	l.Info("Run finished: %s after %d/%d accepted iterations (took %v)", state, accepted, max, elapsed.Round(time.Millisecond))
	l.Info("═══════════════════════════════════════════════════════════════")
}
