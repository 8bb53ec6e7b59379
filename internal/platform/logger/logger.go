// Package logger provides leveled logging for the dining server.
// Every fork handoff and every configuration change should be traceable through this.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Options controls where and how a Logger writes.
type Options struct {
	Out    io.Writer // info, warn, debug, event
	Err    io.Writer // error
	Debug  bool
	Colour bool
}

// Logger provides structured logging with context.
type Logger struct {
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debug       atomic.Bool
}

// NewLogger creates a logger on stdout/stderr, coloured when stdout is a terminal.
func NewLogger() *Logger {
	return New(Options{
		Out:    os.Stdout,
		Err:    os.Stderr,
		Colour: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
	})
}

// New creates a logger from explicit options.
func New(opts Options) *Logger {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Err == nil {
		opts.Err = opts.Out
	}
	prefix := func(tag string, attr color.Attribute) string {
		if !opts.Colour {
			return tag + " "
		}
		c := color.New(attr)
		c.EnableColor()
		return c.Sprint(tag) + " "
	}
	const flags = log.Ldate | log.Ltime | log.Lmicroseconds
	l := &Logger{
		debugLogger: log.New(opts.Out, prefix("[DINE-DEBUG]", color.FgHiBlack), flags),
		infoLogger:  log.New(opts.Out, prefix("[DINE-INFO]", color.FgCyan), flags),
		warnLogger:  log.New(opts.Out, prefix("[DINE-WARN]", color.FgYellow), flags),
		errorLogger: log.New(opts.Err, prefix("[DINE-ERROR]", color.FgRed), flags),
	}
	l.debug.Store(opts.Debug)
	return l
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return New(Options{Out: io.Discard})
}

// SetDebug toggles debug output at runtime.
func (l *Logger) SetDebug(on bool) { l.debug.Store(on) }

// DebugEnabled reports whether debug output is on.
func (l *Logger) DebugEnabled() bool { return l.debug.Load() }

// Debug logs high-volume diagnostics such as per-philosopher transitions.
func (l *Logger) Debug(msg string) {
	if l.debug.Load() {
		l.debugLogger.Println(msg)
	}
}

// Debugf is the formatted form of Debug.
func (l *Logger) Debugf(format string, args ...any) {
	if l.debug.Load() {
		l.debugLogger.Printf(format, args...)
	}
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Println(msg)
}

// Infof is the formatted form of Info.
func (l *Logger) Infof(format string, args ...any) {
	l.infoLogger.Printf(format, args...)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Println(msg)
}

// Warnf is the formatted form of Warn.
func (l *Logger) Warnf(format string, args ...any) {
	l.warnLogger.Printf(format, args...)
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Println(msg)
}

// Errorf is the formatted form of Error.
func (l *Logger) Errorf(format string, args ...any) {
	l.errorLogger.Printf(format, args...)
}

// Event logs a specific table event attributed to an actor.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.infoLogger.Printf("[EVENT:%s] Actor:%s | %s", eventType, actorID, details)
}

// StdError returns a *log.Logger writing through the error stream.
func (l *Logger) StdError() *log.Logger {
	return log.New(l.errorLogger.Writer(), l.errorLogger.Prefix(), l.errorLogger.Flags())
}

func (l *Logger) String() string { return fmt.Sprintf("Logger(debug=%v)", l.debug.Load()) }
