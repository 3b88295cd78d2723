package views

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

var doc = []string{
	"* Project",
	"  * Goal",
	"    - [ ] open task",
	"    - [x] done task",
	"    - blocked task",
	"    - [x] another done",
}

func TestCreate(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "views"))

	v, err := m.Create("done", `\[x\]`, doc)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	want := []string{"    - [x] done task", "    - [x] another done"}
	if !reflect.DeepEqual(v.Matches, want) {
		t.Errorf("Matches = %q, want %q", v.Matches, want)
	}

	data, err := os.ReadFile(v.Path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "    - [x] done task\n    - [x] another done" {
		t.Errorf("view file = %q", data)
	}

	index, err := os.ReadFile(m.IndexPath())
	if err != nil {
		t.Fatalf("ReadFile index failed: %v", err)
	}
	if string(index) != `done: \[x\]` {
		t.Errorf("index = %q", index)
	}
}

func TestCreateIdempotent(t *testing.T) {
	m := NewManager(t.TempDir())

	first, err := m.Create("done", `\[x\]`, doc)
	if err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	firstData, _ := os.ReadFile(first.Path)

	second, err := m.Create("done", `\[x\]`, doc)
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	secondData, _ := os.ReadFile(second.Path)

	if string(firstData) != string(secondData) {
		t.Errorf("view file changed: %q vs %q", firstData, secondData)
	}
	entries, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "done" {
		t.Errorf("entries = %+v, want single done entry", entries)
	}
}

func TestCreateUpdatesPattern(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.Create("open", `\[ \]`, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := m.Create("done", `\[x\]`, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	v, err := m.Create("open", `blocked`, doc)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(v.Matches) != 1 {
		t.Errorf("Matches = %q, want one", v.Matches)
	}

	entries, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []Entry{{Name: "open", Pattern: "blocked"}, {Name: "done", Pattern: `\[x\]`}}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %+v, want %+v", entries, want)
	}
}

func TestCreateErrors(t *testing.T) {
	m := NewManager(t.TempDir())
	tests := []struct {
		name    string
		view    string
		pattern string
		wantErr error
	}{
		{"bad regex", "x", `[`, ErrInvalidPattern},
		{"empty name", "", `x`, ErrInvalidName},
		{"path separator", "a/b", `x`, ErrInvalidName},
		{"parent dir", "..", `x`, ErrInvalidName},
		{"colon", "a:b", `x`, ErrInvalidName},
		{"index name", "views", `x`, ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(tt.view, tt.pattern, doc)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if _, err := os.Stat(m.IndexPath()); !os.IsNotExist(err) {
		t.Errorf("index should not exist after failed creates")
	}
}

func TestRefresh(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.Create("done", `\[x\]`, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated := append([]string{"- [x] new"}, doc...)
	views, err := m.Refresh(updated)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(views) != 1 || len(views[0].Matches) != 3 {
		t.Fatalf("views = %+v", views)
	}

	if err := os.WriteFile(m.IndexPath(), []byte("done: \\[x\\]\nbroken: ["), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	views, err = m.Refresh(updated)
	if !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("expected ErrInvalidPattern, got %v", err)
	}
	if len(views) != 1 {
		t.Errorf("valid views should still refresh, got %d", len(views))
	}
}

func TestMatch(t *testing.T) {
	rows, err := Match(`task`, doc)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if !reflect.DeepEqual(rows, []int{3, 4, 5}) {
		t.Errorf("rows = %v", rows)
	}
	if _, err := Match(`(`, doc); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("expected ErrInvalidPattern, got %v", err)
	}
}

func TestGet(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.Get("x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Create("x", "a", doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	e, err := m.Get("x")
	if err != nil || e.Pattern != "a" {
		t.Errorf("Get = %+v, %v", e, err)
	}
}
