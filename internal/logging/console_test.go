package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestConsoleLogWriterWrite(t *testing.T) {
	tests := []struct {
		name       string
		event      LogEvent
		wantLevel  string
		wantMsg    string
		wantFields []string
	}{
		{
			name:      "error event",
			event:     LogEvent{Type: EventError, Content: "something went wrong"},
			wantLevel: "ERRO",
			wantMsg:   "something went wrong",
		},
		{
			name:       "commit event",
			event:      LogEvent{Type: EventCommit, Command: "complete task A"},
			wantLevel:  "INFO",
			wantMsg:    "Committed change",
			wantFields: []string{"command"},
		},
		{
			name:       "function call",
			event:      LogEvent{Type: EventFunctionCall, Function: "delete_row", Arguments: `{"row":2}`},
			wantLevel:  "DEBU",
			wantMsg:    "Calling function",
			wantFields: []string{"function", "args"},
		},
		{
			name:      "command event",
			event:     LogEvent{Type: EventCommand, Command: "add milk"},
			wantLevel: "DEBU",
			wantMsg:   "Command: add milk",
		},
		{
			name:       "hook with exit code",
			event:      LogEvent{Type: EventHook, ExitCode: 3},
			wantLevel:  "INFO",
			wantMsg:    "Ran hook",
			wantFields: []string{"exit_code"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewTestConsoleLogWriter(&buf)
			if err := w.Write(tt.event); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("output %q missing level %s", out, tt.wantLevel)
			}
			if !strings.Contains(out, tt.wantMsg) {
				t.Errorf("output %q missing message %q", out, tt.wantMsg)
			}
			for _, field := range tt.wantFields {
				if !strings.Contains(out, field+"=") {
					t.Errorf("output %q missing field %s", out, field)
				}
			}
		})
	}
}

func TestConsoleLogWriterLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultConsoleLogOptions()
	opts.Output = &buf
	w := NewConsoleLogWriter(opts)
	_ = w.Write(LogEvent{Type: EventFunctionCall, Function: "x"})
	if buf.Len() != 0 {
		t.Errorf("debug event written at info level: %q", buf.String())
	}
	_ = w.Write(LogEvent{Type: EventRollback})
	if !strings.Contains(buf.String(), "Rolled back change") {
		t.Errorf("info event missing: %q", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug":   log.DebugLevel,
		" INFO ":  log.InfoLevel,
		"warning": log.WarnLevel,
		"error":   log.ErrorLevel,
		"fatal":   log.FatalLevel,
		"bogus":   log.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseLogFormatter(t *testing.T) {
	tests := map[string]log.Formatter{
		"json":   log.JSONFormatter,
		"logfmt": log.LogfmtFormatter,
		"text":   log.TextFormatter,
		"":       log.TextFormatter,
	}
	for in, want := range tests {
		if got := ParseLogFormatter(in); got != want {
			t.Errorf("ParseLogFormatter(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewConsoleLogWriterWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})
	w := NewConsoleLogWriterWithLogger(logger)
	if w.Logger() != logger {
		t.Error("Logger() returned a different logger")
	}
}
