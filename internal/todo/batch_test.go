package todo

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseBatch(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantOps     []Op
		wantComment string
		wantErr     error
	}{
		{
			name:    "bare array",
			text:    `[{"op":"delete","row":2}]`,
			wantOps: []Op{{Kind: OpDelete, Row: 2}},
		},
		{
			name: "array with comment",
			text: "Sure.\n[\n  {\"op\": \"replace\", \"row\": 1, \"content\": \"- [x] a\"},\n  {\"op\": \"move\", \"row\": 2, \"to\": 1}\n]\nMarked a as done.",
			wantOps: []Op{
				{Kind: OpReplace, Row: 1, Content: "- [x] a"},
				{Kind: OpMove, Row: 2, To: 1},
			},
			wantComment: "Marked a as done.",
		},
		{
			name:    "no array",
			text:    "I could not find that task.",
			wantErr: ErrNoBatch,
		},
		{
			name:    "unknown op",
			text:    `[{"op":"swap","row":1}]`,
			wantErr: ErrUnknownOp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, comment, err := ParseBatch(tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBatch error: %v", err)
			}
			if !reflect.DeepEqual(ops, tt.wantOps) {
				t.Errorf("ops = %+v, want %+v", ops, tt.wantOps)
			}
			if comment != tt.wantComment {
				t.Errorf("comment = %q, want %q", comment, tt.wantComment)
			}
		})
	}
}

func TestParseBatchInvalidJSON(t *testing.T) {
	_, _, err := ParseBatch("[\n{not json}\n]")
	if err == nil || errors.Is(err, ErrNoBatch) {
		t.Fatalf("expected parse error, got %v", err)
	}
}
