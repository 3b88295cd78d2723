// Package transcript keeps a journal of resolved commands in a bbolt database.
package transcript

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketCommands = []byte("commands")

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("transcript: journal is closed")

// Call is one function call made while resolving a command.
type Call struct {
	Function  string `json:"function"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result"`
	OK        bool   `json:"ok"`
}

// Entry is one resolved command.
type Entry struct {
	ID        uint64    `json:"id"`
	Session   string    `json:"session"`
	Command   string    `json:"command"`
	Reply     string    `json:"reply,omitempty"`
	Calls     []Call    `json:"calls,omitempty"`
	Diff      string    `json:"diff,omitempty"`
	Committed bool      `json:"committed"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Journal is an append-only command log.
type Journal struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the journal at path. A second process holding the
// file causes Open to fail after a short wait instead of blocking.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCommands)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal %s: %w", path, err)
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Record appends e and returns it with ID set. A zero At is stamped with the
// current time.
func (j *Journal) Record(e Entry) (Entry, error) {
	if j == nil || j.db == nil {
		return e, ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCommands)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		e.ID = seq
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
	if err != nil {
		return e, fmt.Errorf("record command: %w", err)
	}
	return e, nil
}

// List returns up to limit of the most recent entries, oldest first. A
// non-empty session restricts the result to that session. limit <= 0 means no
// limit.
func (j *Journal) List(limit int, session string) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, ErrClosed
	}
	var out []Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCommands).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if session != "" && e.Session != session {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// Sessions returns the distinct session ids in the order they first appear.
func (j *Journal) Sessions() ([]string, error) {
	entries, err := j.List(0, "")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var ids []string
	for _, e := range entries {
		if !seen[e.Session] {
			seen[e.Session] = true
			ids = append(ids, e.Session)
		}
	}
	return ids, nil
}

// Close releases the database file.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
