package cliutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Paintersrp/procctl/internal/runner"
)

func TestEncodeLogEventInfersLevel(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{name: "errorToken", message: "[ERROR] failed to start", expected: "error"},
		{name: "warnToken", message: "WARN process requires attention", expected: "warn"},
		{name: "infoToken", message: "info: process ready", expected: "info"},
		{name: "noTokenDefaults", message: "process started", expected: "info"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			var errBuf bytes.Buffer

			event := runner.Event{Timestamp: time.Unix(0, 0), Message: tc.message}
			EncodeLogEvent(json.NewEncoder(&out), &errBuf, event)

			if errBuf.Len() != 0 {
				t.Fatalf("unexpected stderr output: %s", errBuf.String())
			}
			var record LogRecord
			if err := json.Unmarshal(out.Bytes(), &record); err != nil {
				t.Fatalf("failed to unmarshal log record: %v", err)
			}
			if record.Level != tc.expected {
				t.Fatalf("expected level %q, got %q", tc.expected, record.Level)
			}
		})
	}
}

func TestNewLogRecordCarriesExitValue(t *testing.T) {
	record := NewLogRecord(runner.Event{Process: "job", Pid: 12, Type: runner.EventTypeExited, ExitValue: 3})
	if record.ExitValue == nil || *record.ExitValue != 3 {
		t.Fatalf("expected exit value 3, got %v", record.ExitValue)
	}
	if record.Source != runner.LogSourceSystem || record.Type != "exited" {
		t.Fatalf("unexpected record %+v", record)
	}

	logLine := NewLogRecord(runner.Event{Process: "job", Type: runner.EventTypeLog, Message: "x"})
	if logLine.ExitValue != nil {
		t.Fatalf("log records carry no exit value")
	}
}

func TestNewLogRecordRedactsSecrets(t *testing.T) {
	event := runner.Event{
		Timestamp: time.Unix(0, 0),
		Message:   `/usr/bin/client --token=abc123 ${API_TOKEN} AWS_SECRET_ACCESS_KEY="super-secret" --password hunter2`,
	}

	record := NewLogRecord(event)

	for _, leaked := range []string{"${API_TOKEN}", "super-secret", "abc123", "hunter2"} {
		if strings.Contains(record.Message, leaked) {
			t.Fatalf("expected %q to be redacted, got %q", leaked, record.Message)
		}
	}
	for _, marker := range []string{"${[redacted]}", `AWS_SECRET_ACCESS_KEY="[redacted]"`, "--token=[redacted]", "--password [redacted]"} {
		if !strings.Contains(record.Message, marker) {
			t.Fatalf("expected %q in %q", marker, record.Message)
		}
	}
}

func TestFormatText(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	line := FormatText(runner.Event{Timestamp: ts, Process: "web", Type: runner.EventTypeLog, Source: runner.LogSourceStderr, Level: "warn", Message: "slow"})
	if line != "03:04:05 warn  [web/stderr] slow" {
		t.Fatalf("unexpected line %q", line)
	}
}
