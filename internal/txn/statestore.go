package txn

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"sync"
)

const (
	stateStoreMagic = uint32(0x0BAC8001)

	// stateFileHeaderSize is the {magic:u32, reserved:u32} file preamble.
	stateFileHeaderSize = 4 + 4

	// stateEntrySize is one table's {table_id:i64, visible_ptr:i64,
	// deleted_ptr:i64} record (spec §6).
	stateEntrySize = 8 + 8 + 8
)

type stateEntry struct {
	tableID    int64
	visiblePtr int64 // last commit id merged into this table
	deletedPtr int64 // commit id of the most recent merge (RecordCommit is passed the same id as visiblePtr)
}

// StateStore is the conglomerate-wide header file of spec §6: it records,
// per table, the commit id last merged into it. The whole small table is
// rewritten on every commit, which is simple and correct at the scale this
// core targets (a handful to a few thousand tables).
type StateStore struct {
	path string
	mu   sync.Mutex
	byID map[int64]*stateEntry
}

// CreateStateStore initializes a new, empty state-store file.
func CreateStateStore(path string) (*StateStore, error) {
	s := &StateStore{path: path, byID: map[int64]*stateEntry{}}
	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenStateStore loads an existing state-store file.
func OpenStateStore(path string) (*StateStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("txn: open state store: %w", err)
	}
	defer f.Close()

	hdr := make([]byte, stateFileHeaderSize)
	if _, err := f.Read(hdr); err != nil {
		return nil, fmt.Errorf("txn: read state store header: %w", err)
	}
	if binary.BigEndian.Uint32(hdr[0:4]) != stateStoreMagic {
		return nil, fmt.Errorf("txn: bad state store magic")
	}
	s := &StateStore{path: path, byID: map[int64]*stateEntry{}}
	buf := make([]byte, stateEntrySize)
	for {
		n, err := f.Read(buf)
		if n == 0 {
			break
		}
		if n < stateEntrySize {
			return nil, fmt.Errorf("txn: state store entry truncated")
		}
		e := &stateEntry{
			tableID:    int64(binary.BigEndian.Uint64(buf[0:8])),
			visiblePtr: int64(binary.BigEndian.Uint64(buf[8:16])),
			deletedPtr: int64(binary.BigEndian.Uint64(buf[16:24])),
		}
		s.byID[e.tableID] = e
		if err != nil {
			break
		}
	}
	return s, nil
}

// RecordCommit persists table's new visible/deleted commit-id pointers.
func (s *StateStore) RecordCommit(tableID, visiblePtr, deletedPtr int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[tableID] = &stateEntry{tableID: tableID, visiblePtr: visiblePtr, deletedPtr: deletedPtr}
	return s.flushLocked()
}

// VisiblePtr returns the commit id last merged into tableID, or 0 if none.
func (s *StateStore) VisiblePtr(tableID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[tableID]; ok {
		return e.visiblePtr
	}
	return 0
}

func (s *StateStore) flushLocked() error {
	ids := make([]int64, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	buf := make([]byte, stateFileHeaderSize+len(ids)*stateEntrySize)
	binary.BigEndian.PutUint32(buf[0:4], stateStoreMagic)
	off := stateFileHeaderSize
	for _, id := range ids {
		e := s.byID[id]
		binary.BigEndian.PutUint64(buf[off:off+8], uint64(e.tableID))
		binary.BigEndian.PutUint64(buf[off+8:off+16], uint64(e.visiblePtr))
		binary.BigEndian.PutUint64(buf[off+16:off+24], uint64(e.deletedPtr))
		off += stateEntrySize
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("txn: write state store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("txn: install state store: %w", err)
	}
	return nil
}
