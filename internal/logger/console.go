// Package logger provides the console logging for foreman.
//
// Output is prefixed with [HH:MM:SS] timestamps, filtered by log level, and
// colored when writing to a TTY. All implementations are safe for concurrent
// use; the scheduler logs from many goroutines.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/foreman/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs orchestrator events to a writer with timestamps and
// thread safety. It supports log level filtering to control verbosity.
// Color output is automatically enabled for terminal output.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided
// io.Writer. If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive); empty or
// invalid levels default to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether the writer is a TTY that supports colors.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	// color.NoColor honors the NO_COLOR convention.
	return !color.NoColor && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// normalizeLogLevel lowercases and validates a log level string, defaulting
// to "info".
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// LogWarning logs a formatted warning. This is the printf-style entry point
// the scheduler uses.
func (cl *ConsoleLogger) LogWarning(format string, args ...any) {
	cl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// LogDispatch logs a task being handed to an agent at INFO level.
// Format: "[HH:MM:SS] [INFO] dispatch <task> -> <agent>"
func (cl *ConsoleLogger) LogDispatch(task models.Task, agentID string) {
	if cl.colorOutput {
		agentID = color.New(color.Bold).Sprint(agentID)
	}
	cl.logWithLevel("INFO", fmt.Sprintf("dispatch %s -> %s", task.ID, agentID))
}

// LogRequeue logs a task deferred to a later tick at DEBUG level.
func (cl *ConsoleLogger) LogRequeue(task models.Task, reason string) {
	cl.logWithLevel("DEBUG", fmt.Sprintf("requeue %s: %s", task.ID, reason))
}

// LogTaskResult logs a terminal task at INFO (completed) or ERROR (failed).
// Format: "[HH:MM:SS] [INFO] <task> completed (<duration>)"
func (cl *ConsoleLogger) LogTaskResult(task models.Task) {
	switch task.Status {
	case models.TaskCompleted:
		outcome := "completed"
		if cl.colorOutput {
			outcome = color.New(color.FgGreen).Sprint(outcome)
		}
		cl.logWithLevel("INFO", fmt.Sprintf("%s %s (%s)", task.ID, outcome, formatDuration(task.Duration())))
	case models.TaskFailed:
		outcome := "failed"
		if cl.colorOutput {
			outcome = color.New(color.FgRed).Sprint(outcome)
		}
		cl.logWithLevel("ERROR", fmt.Sprintf("%s %s: %s", task.ID, outcome, task.Error))
	}
}

// logWithLevel logs a message at the given level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, colorLevel(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}
	cl.writer.Write([]byte(formatted))
}

func colorLevel(level string) string {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	}
	return level
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration renders durations compactly: "45s", "2m30s", "1h5m".
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, remainder/time.Second)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, remainder/time.Second)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger discards all messages. Useful for tests and for wiring
// components that require a logger when output is unwanted.
type NoOpLogger struct{}

func (NoOpLogger) LogTrace(string)                 {}
func (NoOpLogger) LogDebug(string)                 {}
func (NoOpLogger) LogInfo(string)                  {}
func (NoOpLogger) LogWarn(string)                  {}
func (NoOpLogger) LogError(string)                 {}
func (NoOpLogger) LogWarning(string, ...any)       {}
func (NoOpLogger) LogDispatch(models.Task, string) {}
func (NoOpLogger) LogRequeue(models.Task, string)  {}
func (NoOpLogger) LogTaskResult(models.Task)       {}
