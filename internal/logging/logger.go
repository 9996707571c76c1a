// Package logging provides a leveled, optionally colored logger with an
// optional append-only file sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/NielsdaWheelz/clipsift/internal/tty"
)

// Color modes accepted by --color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type palette struct {
	red, green, yellow, blue, cyan, nc string
}

var ansi = palette{
	red:    "\033[1;91m",
	green:  "\033[1;92m",
	yellow: "\033[1;93m",
	blue:   "\033[1;94m",
	cyan:   "\033[1;96m",
	nc:     "\033[0m",
}

// Options configures a Logger.
type Options struct {
	Color   string    // auto, always or never
	LogFile string    // optional file sink
	Verbose bool      // enables Debug
	Out     io.Writer // defaults to os.Stdout
	Err     io.Writer // defaults to os.Stderr
	Now     func() time.Time
}

// Logger provides leveled, optionally colored logging with optional file sink.
// Safe for concurrent use by stage workers.
type Logger struct {
	mu      sync.Mutex
	colors  palette
	out     io.Writer
	err     io.Writer
	file    *os.File
	verbose bool
	now     func() time.Time
}

// New builds a Logger. Call Close when LogFile was set.
func New(opts Options) (*Logger, error) {
	l := &Logger{
		out:     opts.Out,
		err:     opts.Err,
		verbose: opts.Verbose,
		now:     opts.Now,
	}
	if l.out == nil {
		l.out = os.Stdout
	}
	if l.err == nil {
		l.err = os.Stderr
	}
	if l.now == nil {
		l.now = time.Now
	}

	enable := false
	switch opts.Color {
	case ColorAlways:
		enable = true
	case ColorNever:
		enable = false
	default:
		f, _ := l.out.(*os.File)
		enable = tty.IsTTY(f) && os.Getenv("NO_COLOR") == "" && strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
	if enable {
		l.colors = ansi
	}

	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
	}
	return l, nil
}

// Discard returns a Logger that writes nowhere.
func Discard() *Logger {
	return &Logger{out: io.Discard, err: io.Discard, now: time.Now}
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Verbose reports whether Debug output is enabled.
func (l *Logger) Verbose() bool { return l != nil && l.verbose }

func (l *Logger) line(level, color, text string) {
	if l == nil {
		return
	}
	ts := l.now().Format("2006-01-02 15:04:05")
	plain := ts + " [" + level + "] " + text + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.out
	if level == "ERROR" {
		out = l.err
	}
	if color != "" {
		_, _ = io.WriteString(out, ts+" "+color+"["+level+"]"+l.colors.nc+" "+text+"\n")
	} else {
		_, _ = io.WriteString(out, plain)
	}
	if l.file != nil {
		_, _ = io.WriteString(l.file, plain)
	}
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...any) {
	l.line("INFO", l.palette().blue, fmt.Sprintf(format, args...))
}

// Success logs at SUCCESS level (green).
func (l *Logger) Success(format string, args ...any) {
	l.line("SUCCESS", l.palette().green, fmt.Sprintf(format, args...))
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...any) {
	l.line("WARN", l.palette().yellow, fmt.Sprintf(format, args...))
}

// Error logs at ERROR level (red) to the error stream.
func (l *Logger) Error(format string, args ...any) {
	l.line("ERROR", l.palette().red, fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level (cyan) only when verbose.
func (l *Logger) Debug(format string, args ...any) {
	if !l.Verbose() {
		return
	}
	l.line("DEBUG", l.palette().cyan, fmt.Sprintf(format, args...))
}

func (l *Logger) palette() palette {
	if l == nil {
		return palette{}
	}
	return l.colors
}
