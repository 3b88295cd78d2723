package transcript

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAssignsSequentialIDs(t *testing.T) {
	j := openTemp(t)

	for i, cmd := range []string{"add milk", "move it", "done"} {
		e, err := j.Record(Entry{Session: "s1", Command: cmd})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if e.ID != uint64(i+1) {
			t.Errorf("ID: got %d, want %d", e.ID, i+1)
		}
		if e.At.IsZero() {
			t.Error("At was not stamped")
		}
	}
}

func TestListOrderLimitAndSession(t *testing.T) {
	j := openTemp(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	records := []Entry{
		{Session: "a", Command: "one", At: at},
		{Session: "b", Command: "two", At: at},
		{Session: "a", Command: "three", At: at, Committed: true, Calls: []Call{{Function: "delete_row", Arguments: `{"row":1}`, Result: "SUCCESS: Deleted row 1: x", OK: true}}},
		{Session: "a", Command: "four", At: at},
	}
	for _, e := range records {
		if _, err := j.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		limit   int
		session string
		want    []string
	}{
		{"all", 0, "", []string{"one", "two", "three", "four"}},
		{"limit keeps newest", 2, "", []string{"three", "four"}},
		{"session", 0, "a", []string{"one", "three", "four"}},
		{"session limit", 1, "b", []string{"two"}},
		{"unknown session", 5, "zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.List(tt.limit, tt.session)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List: got %d entries, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Command != tt.want[i] {
					t.Errorf("entry %d: got %q, want %q", i, got[i].Command, tt.want[i])
				}
			}
		})
	}

	all, _ := j.List(0, "a")
	if len(all[1].Calls) != 1 || all[1].Calls[0].Function != "delete_row" || !all[1].Committed {
		t.Errorf("round-tripped entry: %+v", all[1])
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Record(Entry{Session: "s", Command: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	j, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	e, err := j.Record(Entry{Session: "s", Command: "second"})
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != 2 {
		t.Errorf("ID after reopen: got %d, want 2", e.ID)
	}
	ids, err := j.Sessions()
	if err != nil || len(ids) != 1 || ids[0] != "s" {
		t.Errorf("Sessions: got %v, %v", ids, err)
	}
}

func TestClosedJournal(t *testing.T) {
	j := openTemp(t)
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := j.Record(Entry{Command: "x"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Record after close: got %v", err)
	}
	if _, err := j.List(0, ""); !errors.Is(err, ErrClosed) {
		t.Errorf("List after close: got %v", err)
	}
}
