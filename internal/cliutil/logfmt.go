package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/Paintersrp/procctl/internal/runner"
)

// LogRecord represents a structured event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Process   string    `json:"process"`
	Pid       int       `json:"pid,omitempty"`
	Type      string    `json:"type"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
	ExitValue *int      `json:"exit_value,omitempty"`
}

// NewLogRecord converts a runner event into a structured record with
// secrets masked.
func NewLogRecord(event runner.Event) LogRecord {
	level := event.Level
	if level == "" {
		if inferred := inferLogLevel(event.Message); inferred != "" {
			level = inferred
		} else {
			level = "info"
		}
	}
	source := event.Source
	if source == "" {
		source = runner.LogSourceSystem
	}
	record := LogRecord{
		Timestamp: event.Timestamp,
		Process:   event.Process,
		Pid:       event.Pid,
		Type:      string(event.Type),
		Level:     level,
		Message:   RedactSecrets(event.Message),
		Source:    source,
	}
	if event.Type == runner.EventTypeExited && event.Pid != 0 {
		code := event.ExitValue
		record.ExitValue = &code
	}
	return record
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn|info)\b`)

func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	return strings.ToLower(matches[1])
}

// EncodeLogEvent encodes an event to JSON, reporting errors to stderr.
func EncodeLogEvent(enc *json.Encoder, stderr io.Writer, event runner.Event) {
	if enc == nil {
		return
	}
	record := NewLogRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}

// FormatText renders an event as a single human readable line.
func FormatText(event runner.Event) string {
	record := NewLogRecord(event)
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	prefix := record.Process
	if record.Source != runner.LogSourceSystem {
		prefix += "/" + record.Source
	}
	return fmt.Sprintf("%s %-5s [%s] %s", ts.Format(time.TimeOnly), record.Level, prefix, record.Message)
}
