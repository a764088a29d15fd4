// Package logger provides leveled logging with optional JSON output.
package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	}
	return "info"
}

// Logger writes leveled messages, optionally tagged with a component name.
type Logger struct {
	level     Level
	jsonMode  bool
	component string
	out       *log.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger = &Logger{level: InfoLevel, out: log.New(os.Stderr, "", 0)}
)

// Init configures the default logger. Format is "json" or "text".
func Init(level string, format string) {
	var l Level
	switch strings.ToLower(level) {
	case "debug":
		l = DebugLevel
	case "info":
		l = InfoLevel
	case "warn":
		l = WarnLevel
	case "error":
		l = ErrorLevel
	default:
		l = InfoLevel
	}

	mu.Lock()
	defaultLogger = &Logger{
		level:    l,
		jsonMode: strings.ToLower(format) == "json",
		out:      log.New(os.Stderr, "", 0),
	}
	mu.Unlock()
}

// With returns a logger that tags every message with a component name,
// e.g. "session", "telegram", "scheduler".
func With(component string) *Logger {
	mu.RLock()
	base := defaultLogger
	mu.RUnlock()
	return &Logger{
		level:     base.level,
		jsonMode:  base.jsonMode,
		component: component,
		out:       base.out,
	}
}

type jsonLine struct {
	Time      string `json:"ts"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"msg"`
}

func (l *Logger) write(level Level, format string, args ...interface{}) {
	if l == nil || l.level > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.jsonMode {
		line, err := json.Marshal(jsonLine{
			Time:      time.Now().UTC().Format(time.RFC3339Nano),
			Level:     level.String(),
			Component: l.component,
			Message:   msg,
		})
		if err != nil {
			l.out.Printf("%s [%s] %s", time.Now().UTC().Format(time.RFC3339), strings.ToUpper(level.String()), msg)
			return
		}
		l.out.Print(string(line))
		return
	}
	prefix := strings.ToUpper(level.String())
	if l.component != "" {
		l.out.Printf("%s [%s] %s: %s", time.Now().Format("2006/01/02 15:04:05.000000"), prefix, l.component, msg)
		return
	}
	l.out.Printf("%s [%s] %s", time.Now().Format("2006/01/02 15:04:05.000000"), prefix, msg)
}

func (l *Logger) Debug(format string, args ...interface{}) { l.write(DebugLevel, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.write(InfoLevel, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.write(WarnLevel, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.write(ErrorLevel, format, args...) }

func Debug(format string, args ...interface{}) {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	l.write(DebugLevel, format, args...)
}

func Info(format string, args ...interface{}) {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	l.write(InfoLevel, format, args...)
}

func Warn(format string, args ...interface{}) {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	l.write(WarnLevel, format, args...)
}

func Error(format string, args ...interface{}) {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	l.write(ErrorLevel, format, args...)
}

func Fatal(format string, args ...interface{}) {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	l.write(ErrorLevel, "fatal: "+format, args...)
	os.Exit(1)
}
