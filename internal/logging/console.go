package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// ConsoleLogOptions holds configuration for console logging.
type ConsoleLogOptions struct {
	Level           log.Level
	Formatter       log.Formatter
	ReportTimestamp bool
	ReportCaller    bool
	Prefix          string
	Output          io.Writer
}

// DefaultConsoleLogOptions returns default options for console logging.
func DefaultConsoleLogOptions() ConsoleLogOptions {
	return ConsoleLogOptions{
		Level:     log.InfoLevel,
		Formatter: log.TextFormatter,
		Prefix:    "md2do",
		Output:    os.Stderr,
	}
}

// NewLogger builds a charmbracelet logger from opts.
func NewLogger(opts ConsoleLogOptions) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		ReportCaller:    opts.ReportCaller,
		Prefix:          opts.Prefix,
	})
}

// ConsoleLogWriter renders events as leveled, human-readable log lines.
type ConsoleLogWriter struct {
	logger *log.Logger
}

// NewConsoleLogWriter creates a console log writer with the given options.
func NewConsoleLogWriter(opts ConsoleLogOptions) *ConsoleLogWriter {
	return &ConsoleLogWriter{logger: NewLogger(opts)}
}

// NewConsoleLogWriterWithLogger wraps an existing logger.
func NewConsoleLogWriterWithLogger(logger *log.Logger) *ConsoleLogWriter {
	return &ConsoleLogWriter{logger: logger}
}

// Logger returns the underlying logger.
func (c *ConsoleLogWriter) Logger() *log.Logger {
	return c.logger
}

// Write logs event. Errors are logged at error level, commits, rollbacks
// and hooks at info, everything else at debug.
func (c *ConsoleLogWriter) Write(event LogEvent) error {
	msg := formatMessage(event)
	fields := extractFields(event)

	switch event.Type {
	case EventError:
		c.logger.Error(msg, fields...)
	case EventCommit, EventRollback, EventHook:
		c.logger.Info(msg, fields...)
	default:
		c.logger.Debug(msg, fields...)
	}
	return nil
}

func extractFields(event LogEvent) []any {
	var fields []any
	if event.Function != "" {
		fields = append(fields, "function", event.Function)
	}
	if event.Arguments != "" {
		fields = append(fields, "args", event.Arguments)
	}
	if event.Result != "" && event.Content != "" {
		fields = append(fields, "result", event.Result)
	}
	if event.Command != "" && event.Type != EventCommand {
		fields = append(fields, "command", event.Command)
	}
	if event.ExitCode != 0 {
		fields = append(fields, "exit_code", event.ExitCode)
	}
	return fields
}

func formatMessage(event LogEvent) string {
	if event.Content != "" {
		return event.Content
	}
	switch event.Type {
	case EventCommand:
		if event.Command != "" {
			return "Command: " + event.Command
		}
		return "Command"
	case EventFunctionCall:
		return "Calling function"
	case EventFunctionResult:
		if event.Result != "" {
			return event.Result
		}
		return "Function result"
	case EventCommit:
		return "Committed change"
	case EventRollback:
		return "Rolled back change"
	case EventHook:
		return "Ran hook"
	case EventError:
		return "Error"
	case EventAssistantMessage:
		return "Assistant message"
	default:
		return event.Type
	}
}

// ParseLogLevel parses a level name. Unknown names select info.
func ParseLogLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// ParseLogFormatter parses a formatter name. Unknown names select text.
func ParseLogFormatter(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// NewTestConsoleLogWriter writes debug-level plain text to w.
func NewTestConsoleLogWriter(w io.Writer) *ConsoleLogWriter {
	return &ConsoleLogWriter{logger: log.NewWithOptions(w, log.Options{
		Level:     log.DebugLevel,
		Formatter: log.TextFormatter,
	})}
}
