package todo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoBatch is returned when text carries no JSON array of operations.
var ErrNoBatch = errors.New("no JSON array of operations found")

// ParseBatch extracts a batch of operations from text. The array is either
// the whole text or spans from the first line that is exactly "[" to the next
// line that is exactly "]". Text after the array is returned as the comment.
func ParseBatch(text string) ([]Op, string, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		var ops []Op
		if err := json.Unmarshal([]byte(trimmed), &ops); err == nil {
			return ops, "", validateOps(ops)
		}
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	start, end := -1, -1
	for i, line := range lines {
		s := strings.TrimSpace(line)
		if start < 0 {
			if s == "[" {
				start = i
			}
			continue
		}
		if s == "]" {
			end = i
			break
		}
	}
	if start < 0 || end < 0 {
		return nil, "", ErrNoBatch
	}

	var ops []Op
	raw := strings.Join(lines[start:end+1], "\n")
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		return nil, "", fmt.Errorf("parse operations: %w", err)
	}
	comment := strings.TrimSpace(strings.Join(lines[end+1:], "\n"))
	return ops, comment, validateOps(ops)
}

func validateOps(ops []Op) error {
	for i, op := range ops {
		switch op.Kind {
		case OpReplace, OpDelete, OpInsert, OpMove:
		default:
			return fmt.Errorf("op %d: %w: %q", i+1, ErrUnknownOp, op.Kind)
		}
	}
	return nil
}
