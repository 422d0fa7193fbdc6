package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger writes structured log lines in JSON or plain text format.
type Logger struct {
	level  int
	format string
	out    io.Writer
}

var levelNames = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// New creates a logger writing to w. Unknown levels fall back to info.
func New(level, format string, w io.Writer) *Logger {
	lv, ok := levelNames[level]
	if !ok {
		lv = levelNames["info"]
	}
	return &Logger{level: lv, format: format, out: w}
}

// NewLogger creates a logger from the LOG_* configuration values.
// Output is "stdout", "stderr" or a file path.
func NewLogger(level, format, output string) *Logger {
	var w io.Writer
	switch output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("Failed to open log file %s: %v, using stdout", output, err)
			w = os.Stdout
		} else {
			w = f
		}
	}
	return New(level, format, w)
}

// Entry represents a single log line.
type Entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) log(level, message string, fields map[string]interface{}) {
	if levelNames[level] < l.level {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Message:   message,
		Fields:    fields,
	}

	if l.format == "json" {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.out, string(data))
		return
	}

	fieldStr := ""
	if len(fields) > 0 {
		fieldStr = fmt.Sprintf(" %+v", fields)
	}
	fmt.Fprintf(l.out, "[%s] %s: %s%s\n", entry.Timestamp, level, message, fieldStr)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log("debug", message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log("info", message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log("warn", message, fields)
}

// Error logs an error message with the error attached as a field
func (l *Logger) Error(message string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.log("error", message, fields)
}
