package todo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// OpKind names an edit operation.
type OpKind string

const (
	OpReplace OpKind = "replace"
	OpDelete  OpKind = "delete"
	OpInsert  OpKind = "insert"
	OpMove    OpKind = "move"
)

// Op is a single position-addressed edit. Row and To are 1-based.
type Op struct {
	Kind    OpKind `json:"op"`
	Row     int    `json:"row"`
	To      int    `json:"to,omitempty"`
	Content string `json:"content,omitempty"`
}

// String renders the operation the way it appears in logs.
func (o Op) String() string {
	switch o.Kind {
	case OpReplace, OpInsert:
		return fmt.Sprintf("%s(%d, %q)", o.Kind, o.Row, o.Content)
	case OpMove:
		return fmt.Sprintf("move(%d, %d)", o.Row, o.To)
	default:
		return fmt.Sprintf("%s(%d)", o.Kind, o.Row)
	}
}

var (
	// ErrOutOfRange is wrapped by every RangeError.
	ErrOutOfRange = errors.New("row out of range")
	// ErrUnknownOp is returned for an operation kind the engine does not know.
	ErrUnknownOp = errors.New("unknown operation")
	// ErrMixedMoveDelete rejects batches whose move and delete row numbers
	// would have to be reconciled against each other.
	ErrMixedMoveDelete = errors.New("batch mixes move and delete operations")
)

// Range error fields.
const (
	FieldRow         = "row"
	FieldSource      = "source row"
	FieldDestination = "destination row"
)

// RangeError reports an address outside the valid range at the time of the call.
type RangeError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	label := "Row"
	if e.Field != "" && e.Field != FieldRow {
		label = strings.ToUpper(e.Field[:1]) + e.Field[1:]
	}
	return fmt.Sprintf("%s %d is out of range (%d-%d)", label, e.Value, e.Min, e.Max)
}

// Unwrap returns ErrOutOfRange.
func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}

func checkRange(field string, value, max int) error {
	if value < 1 || value > max {
		return &RangeError{Field: field, Value: value, Min: 1, Max: max}
	}
	return nil
}

// ApplyOne applies op to lines and returns the resulting sequence. lines is
// never modified; on error it is returned as-is.
func ApplyOne(lines []string, op Op) ([]string, error) {
	n := len(lines)
	switch op.Kind {
	case OpReplace:
		if err := checkRange(FieldRow, op.Row, n); err != nil {
			return lines, err
		}
		out := make([]string, n)
		copy(out, lines)
		out[op.Row-1] = op.Content
		return out, nil

	case OpDelete:
		if err := checkRange(FieldRow, op.Row, n); err != nil {
			return lines, err
		}
		return removeAt(lines, op.Row-1), nil

	case OpInsert:
		if err := checkRange(FieldRow, op.Row, n+1); err != nil {
			return lines, err
		}
		return insertAt(lines, op.Row-1, op.Content), nil

	case OpMove:
		if err := checkRange(FieldSource, op.Row, n); err != nil {
			return lines, err
		}
		if err := checkRange(FieldDestination, op.To, n); err != nil {
			return lines, err
		}
		// To is the position the line occupies after the move.
		line := lines[op.Row-1]
		rest := removeAt(lines, op.Row-1)
		return insertAt(rest, op.To-1, line), nil

	default:
		return lines, fmt.Errorf("%w: %q", ErrUnknownOp, op.Kind)
	}
}

func removeAt(lines []string, idx int) []string {
	out := make([]string, 0, len(lines)-1)
	out = append(out, lines[:idx]...)
	return append(out, lines[idx+1:]...)
}

func insertAt(lines []string, idx int, line string) []string {
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:idx]...)
	out = append(out, line)
	return append(out, lines[idx:]...)
}

// OpError ties a failed batch operation to its position in the batch.
type OpError struct {
	Index int
	Op    Op
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("op %d %s: %v", e.Index+1, e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// BatchError collects the operations of a batch that were skipped.
type BatchError struct {
	Failed []*OpError
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("%d of batch failed: %s", len(e.Failed), strings.Join(parts, "; "))
}

// Unwrap exposes every operation error to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f)
	}
	return errs
}

type indexedOp struct {
	index int
	op    Op
}

// Apply applies a batch whose rows all refer to the original document.
// Replaces and inserts run first in the given order, deletes next from the
// highest row down, moves last. Each operation is atomic; a failing one is
// skipped and reported in a *BatchError while the others still apply.
func Apply(lines []string, ops []Op) ([]string, error) {
	var edits, deletes, moves []indexedOp
	for i, op := range ops {
		switch op.Kind {
		case OpDelete:
			deletes = append(deletes, indexedOp{i, op})
		case OpMove:
			moves = append(moves, indexedOp{i, op})
		default:
			edits = append(edits, indexedOp{i, op})
		}
	}
	if len(deletes) > 0 && len(moves) > 0 {
		return lines, ErrMixedMoveDelete
	}

	sort.SliceStable(deletes, func(i, j int) bool {
		return deletes[i].op.Row > deletes[j].op.Row
	})

	current := lines
	var failed []*OpError
	for _, group := range [][]indexedOp{edits, deletes, moves} {
		for _, item := range group {
			next, err := ApplyOne(current, item.op)
			if err != nil {
				failed = append(failed, &OpError{Index: item.index, Op: item.op, Err: err})
				continue
			}
			current = next
		}
	}
	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i].Index < failed[j].Index })
		return current, &BatchError{Failed: failed}
	}
	return current, nil
}
