// Package todo stores and edits the line-oriented markdown todo document.
//
// The document is a plain markdown file whose hierarchy is encoded by
// indentation and a leading marker:
//
//	* Project Alpha
//	  * Planning
//	    - [ ] Define scope
//	    - Get budget approved
//	    - [x] Assign team
//
// Top and second level items (projects and goals) start with "*". Third level
// items are tasks:
//
//   - "- [ ] ...": available
//   - "- ...": blocked
//   - "- [x] ...": completed
//
// # Addressing
//
// Every physical line is an opaque, addressable row. Rows are 1-based in all
// operations. The engine never interprets markers; Kind exists only for
// display.
//
// # Operations
//
//   - replace(row, content): 1 <= row <= len
//   - delete(row): 1 <= row <= len
//   - insert(row, content): 1 <= row <= len+1 (len+1 appends)
//   - move(row, to): 1 <= row, to <= len
//
// ApplyOne applies a single operation and is atomic: on error the input is
// returned unchanged. Apply runs a batch addressed against the original row
// numbers: replaces and inserts in the given order, then deletes by
// descending row, then moves.
//
// # File Format
//
// Documents are written joined by "\n" without a trailing newline, via a
// temporary file and rename so readers never observe a partial write.
package todo
