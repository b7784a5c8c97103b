// Package logger is the leveled process logger: colored lines on the
// console, plain lines in the optional log file.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

var levelTags = [...]struct {
	tag   string
	color string
}{
	DEBUG: {"[DEBUG] ", colorGray},
	INFO:  {"[INFO]  ", colorReset},
	WARN:  {"[WARN]  ", colorYellow},
	ERROR: {"[ERROR] ", colorRed},
}

func (l LogLevel) String() string {
	if l < DEBUG || l > ERROR {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return strings.Trim(levelTags[l].tag, "[] ")
}

// Logger fans every line out to a console sink and a file sink, one
// *log.Logger per level and sink.
type Logger struct {
	console  [len(levelTags)]*log.Logger
	plain    [len(levelTags)]*log.Logger
	file     *os.File
	consoleW io.Writer
	fileW    io.Writer
	minLevel LogLevel
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.Mutex
)

// ensureInitialized creates a stdout logger if Init was never called
func ensureInitialized() {
	once.Do(func() {
		defaultLogger = &Logger{consoleW: os.Stdout, minLevel: DEBUG}
		defaultLogger.build()
	})
}

// Init initializes the logger with optional file and console output.
// If filename is empty, logs only to console.
// If console is false, logs only to file.
func Init(filename string, console bool) error {
	ensureInitialized()

	mu.Lock()
	defer mu.Unlock()

	l := &Logger{minLevel: DEBUG}
	if filename != "" {
		file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = file
		l.fileW = file
	}
	if console {
		l.consoleW = os.Stdout
	}
	if l.fileW == nil && l.consoleW == nil {
		return fmt.Errorf("no output destination specified")
	}

	l.build()
	if defaultLogger != nil && defaultLogger.file != nil {
		defaultLogger.file.Close()
	}
	defaultLogger = l
	return nil
}

// SetLevel sets the minimum level; lower levels are dropped.
func SetLevel(level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.minLevel = level
}

// ParseLevel maps a configured level name to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", name)
}

// SetOutput redirects console output, mostly for tests. File output is
// left untouched.
func SetOutput(w io.Writer) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.consoleW = w
	defaultLogger.build()
}

func (l *Logger) build() {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	for lvl, t := range levelTags {
		l.console[lvl], l.plain[lvl] = nil, nil
		if l.consoleW != nil {
			l.console[lvl] = log.New(l.consoleW, t.color+t.tag+colorReset, flags)
		}
		if l.fileW != nil {
			l.plain[lvl] = log.New(l.fileW, t.tag, flags)
		}
	}
}

// Close closes the log file if one is open
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil && defaultLogger.file != nil {
		defaultLogger.file.Close()
		defaultLogger.file = nil
		defaultLogger.fileW = nil
		defaultLogger.build()
	}
}

// emit must be called directly by the exported helpers so that
// Lshortfile reports their caller.
func emit(level LogLevel, msg string) {
	ensureInitialized()
	l := defaultLogger
	if level < l.minLevel {
		return
	}
	if c := l.console[level]; c != nil {
		c.Output(3, msg)
	}
	if p := l.plain[level]; p != nil {
		p.Output(3, msg)
	}
}

func Debug(v ...interface{})                 { emit(DEBUG, fmt.Sprint(v...)) }
func Debugf(format string, v ...interface{}) { emit(DEBUG, fmt.Sprintf(format, v...)) }
func Info(v ...interface{})                  { emit(INFO, fmt.Sprint(v...)) }
func Infof(format string, v ...interface{})  { emit(INFO, fmt.Sprintf(format, v...)) }
func Warn(v ...interface{})                  { emit(WARN, fmt.Sprint(v...)) }
func Warnf(format string, v ...interface{})  { emit(WARN, fmt.Sprintf(format, v...)) }
func Error(v ...interface{})                 { emit(ERROR, fmt.Sprint(v...)) }
func Errorf(format string, v ...interface{}) { emit(ERROR, fmt.Sprintf(format, v...)) }

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	emit(ERROR, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	emit(ERROR, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Job is a logger bound to a single job; every line is prefixed with
// the job id so interleaved jobs can be told apart.
type Job struct {
	prefix string
}

// ForJob returns a logger that prefixes lines with "[job <id>] ".
func ForJob(id string) Job {
	return Job{prefix: "[job " + id + "] "}
}

func (j Job) Debugf(format string, v ...interface{}) { emit(DEBUG, j.prefix+fmt.Sprintf(format, v...)) }
func (j Job) Infof(format string, v ...interface{})  { emit(INFO, j.prefix+fmt.Sprintf(format, v...)) }
func (j Job) Warnf(format string, v ...interface{})  { emit(WARN, j.prefix+fmt.Sprintf(format, v...)) }
func (j Job) Errorf(format string, v ...interface{}) { emit(ERROR, j.prefix+fmt.Sprintf(format, v...)) }
