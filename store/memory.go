package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// snapshot is the on-disk layout of one table.
type snapshot[T any] struct {
	NextID  int64 `json:"nextId"`
	Records []*T  `json:"records"`
}

// table is a mutex-guarded id→record map optionally mirrored to a JSON file.
// Methods suffixed Locked expect mu to be held.
type table[T any] struct {
	mu      sync.Mutex
	path    string
	nextID  int64
	records map[int64]*T
	idOf    func(*T) int64
	clone   func(*T) *T
}

func newTable[T any](path string, idOf func(*T) int64, clone func(*T) *T) (*table[T], error) {
	t := &table[T]{
		path:    path,
		nextID:  1,
		records: make(map[int64]*T),
		idOf:    idOf,
		clone:   clone,
	}
	if path == "" {
		return t, nil
	}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var snap snapshot[T]
	if err := json.Unmarshal(content, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	for _, record := range snap.Records {
		id := idOf(record)
		t.records[id] = record
		if id >= t.nextID {
			t.nextID = id + 1
		}
	}
	if snap.NextID > t.nextID {
		t.nextID = snap.NextID
	}

	logrus.WithFields(logrus.Fields{
		"component": "MemoryStore",
		"file":      path,
		"records":   len(t.records),
	}).Debug("Loaded table snapshot")

	return t, nil
}

func (t *table[T]) getLocked(id int64) (*T, bool) {
	record, ok := t.records[id]
	if !ok {
		return nil, false
	}
	return t.clone(record), true
}

// sortedLocked returns copies of all records in id order, filtered by keep when non-nil.
func (t *table[T]) sortedLocked(keep func(*T) bool) []T {
	ids := make([]int64, 0, len(t.records))
	for id, record := range t.records {
		if keep == nil || keep(record) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, *t.clone(t.records[id]))
	}
	return out
}

// commitLocked applies change, persists, and undoes change if persisting fails.
func (t *table[T]) commitLocked(change func(), undo func()) error {
	change()
	if err := t.persistLocked(); err != nil {
		undo()
		return err
	}
	return nil
}

func (t *table[T]) insertLocked(record *T, assignID func(*T, int64)) error {
	id := t.nextID
	assignID(record, id)
	stored := t.clone(record)
	err := t.commitLocked(
		func() {
			t.records[id] = stored
			t.nextID = id + 1
		},
		func() {
			delete(t.records, id)
			t.nextID = id
		},
	)
	if err != nil {
		assignID(record, 0)
	}
	return err
}

func (t *table[T]) replaceLocked(id int64, record *T) error {
	previous := t.records[id]
	stored := t.clone(record)
	return t.commitLocked(
		func() { t.records[id] = stored },
		func() { t.records[id] = previous },
	)
}

func (t *table[T]) deleteLocked(id int64) error {
	previous := t.records[id]
	return t.commitLocked(
		func() { delete(t.records, id) },
		func() { t.records[id] = previous },
	)
}

// persistLocked writes the table atomically (temp file + rename).
func (t *table[T]) persistLocked() error {
	if t.path == "" {
		return nil
	}

	snap := snapshot[T]{NextID: t.nextID, Records: make([]*T, 0, len(t.records))}
	for _, record := range t.sortedLocked(nil) {
		r := record
		snap.Records = append(snap.Records, &r)
	}

	content, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", t.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", t.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", t.path, err)
	}
	return nil
}

// NewMemoryStores builds mutex-guarded stores. With an empty dir nothing touches disk;
// otherwise each table is mirrored to dir/<table>.json.
func NewMemoryStores(dir string) (*Stores, error) {
	pathFor := func(name string) string {
		if dir == "" {
			return ""
		}
		return filepath.Join(dir, name+".json")
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	users, err := NewMemoryUserStore(pathFor("users"))
	if err != nil {
		return nil, err
	}
	ipos, err := NewMemoryIPOStore(pathFor("ipos"))
	if err != nil {
		return nil, err
	}
	apps, err := NewMemoryApplicationStore(pathFor("applications"))
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"component": "MemoryStore",
		"data_dir":  dir,
	}).Info("Flat-file stores ready")

	return &Stores{Users: users, IPOs: ipos, Applications: apps}, nil
}
