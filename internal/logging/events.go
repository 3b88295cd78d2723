package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Event types.
const (
	EventCommand          = "command"
	EventFunctionCall     = "function_call"
	EventFunctionResult   = "function_result"
	EventAssistantMessage = "assistant_message"
	EventCommit           = "commit"
	EventRollback         = "rollback"
	EventHook             = "hook"
	EventError            = "error"
	EventDebug            = "debug"
	EventState            = "state"
)

// LogEvent is one entry of a session log.
type LogEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Session   string    `json:"session,omitempty"`

	// Command is the user command being resolved.
	Command string `json:"command,omitempty"`

	Function  string `json:"function,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`

	Content  string `json:"content,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
}

// LogWriter writes log events.
type LogWriter interface {
	Write(event LogEvent) error
}

// IOStreamLogWriter writes events as JSON lines to an io.Writer.
type IOStreamLogWriter struct {
	w      io.Writer
	indent string
}

// NewIOStreamLogWriter creates a JSON lines writer.
func NewIOStreamLogWriter(w io.Writer) *IOStreamLogWriter {
	return &IOStreamLogWriter{w: w}
}

// SetIndent sets a prefix written before each line.
func (l *IOStreamLogWriter) SetIndent(indent string) {
	l.indent = indent
}

// Write writes event as one JSON line.
func (l *IOStreamLogWriter) Write(event LogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}
	if l.indent != "" {
		data = append([]byte(l.indent), data...)
	}
	data = append(data, '\n')
	_, err = l.w.Write(data)
	return err
}

// MultiLogWriter fans events out to several writers.
type MultiLogWriter struct {
	writers []LogWriter
}

// NewMultiLogWriter creates a writer for all non-nil writers.
func NewMultiLogWriter(writers ...LogWriter) *MultiLogWriter {
	m := &MultiLogWriter{}
	for _, w := range writers {
		if w != nil {
			m.writers = append(m.writers, w)
		}
	}
	return m
}

// Write writes event to every writer and joins their errors.
func (m *MultiLogWriter) Write(event LogEvent) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NullLogWriter discards events.
type NullLogWriter struct{}

func (NullLogWriter) Write(LogEvent) error {
	return nil
}

type lockedLogWriter struct {
	mu     sync.Mutex
	writer LogWriter
}

func (l *lockedLogWriter) Write(event LogEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Write(event)
}

// Normalize makes writer safe for concurrent use and replaces nil with a
// NullLogWriter.
func Normalize(writer LogWriter) LogWriter {
	switch writer.(type) {
	case nil:
		return NullLogWriter{}
	case NullLogWriter, *lockedLogWriter:
		return writer
	}
	return &lockedLogWriter{writer: writer}
}

// Emitter stamps events with a session id and the current time.
type Emitter struct {
	Writer  LogWriter
	Session string
	now     func() time.Time
}

// NewEmitter creates an emitter for session.
func NewEmitter(writer LogWriter, session string) *Emitter {
	return &Emitter{Writer: Normalize(writer), Session: session, now: time.Now}
}

// Emit fills Timestamp and Session when unset and writes event. Write errors
// are dropped; logging never fails a command.
func (e *Emitter) Emit(event LogEvent) {
	if e == nil || e.Writer == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}
	if event.Session == "" {
		event.Session = e.Session
	}
	_ = e.Writer.Write(event)
}
