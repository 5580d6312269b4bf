package indexset

import (
	"encoding/binary"
	"fmt"
	"sync"

	"ponydb/internal/sector"
)

const (
	noChain = int64(-1)

	// directoryEntrySize is the persisted {head:i64, count:i64} pair for
	// one list's chain.
	directoryEntrySize = 8 + 8

	reservedMagic = uint32(0x49494453) // "IIDS"
)

// List is an ordered list of row indices. A List returned from a Snapshot
// must not be mutated by the caller.
type List []int64

// Snapshot is an immutable view over every list in the set: index 0 is the
// master index, every other index is one indexed column's list. Once
// published via CommitIndexSet or returned from GetSnapshotIndexSet, a
// Snapshot's lists are never mutated in place — callers needing to change a
// list must build a new Snapshot (see Snapshot.With).
type Snapshot struct {
	lists []List
}

// NewSnapshot builds a Snapshot owning (not copying) lists; callers should
// treat lists as handed off.
func NewSnapshot(lists []List) Snapshot {
	return Snapshot{lists: lists}
}

// Len returns the number of lists (master + one per indexed column).
func (s Snapshot) Len() int { return len(s.lists) }

// List returns list i. The returned slice must not be mutated.
func (s Snapshot) List(i int) List { return s.lists[i] }

// With returns a new Snapshot identical to s except that list i is
// replaced by next; other lists are shared by reference with s, not
// copied.
func (s Snapshot) With(i int, next List) Snapshot {
	out := make([]List, len(s.lists))
	copy(out, s.lists)
	out[i] = next
	return Snapshot{lists: out}
}

// Store is the persistent backing for a Snapshot: a single sector.Store
// file (the table's <table>.iid) holding one sector chain per list plus a
// small directory chain recording each list's chain head and length.
type Store struct {
	sec *sector.Store

	mu        sync.RWMutex // guards `current`; readers never block writers' view swap
	commitMu  sync.Mutex   // serializes commits
	current   Snapshot
	directory int64 // chain head of the persisted directory, -1 if none yet
}

// Create initializes a new index-set store with numLists empty lists
// (list 0 is always the master index).
func Create(path string, numLists int, blockSize int) (*Store, error) {
	sec, err := sector.Create(path, blockSize)
	if err != nil {
		return nil, fmt.Errorf("indexset: create %s: %w", path, err)
	}
	s := &Store{sec: sec, current: NewSnapshot(make([]List, numLists)), directory: noChain}
	if err := s.persistDirectory(allNoChain(numLists)); err != nil {
		sec.Close()
		return nil, err
	}
	if err := s.writeReservedHeader(numLists); err != nil {
		sec.Close()
		return nil, err
	}
	return s, nil
}

func allNoChain(n int) []dirEntry {
	out := make([]dirEntry, n)
	for i := range out {
		out[i] = dirEntry{head: noChain, count: 0}
	}
	return out
}

// Open opens an existing index-set store and loads its current Snapshot.
func Open(path string) (s *Store, needsRecovery bool, err error) {
	sec, needsRecovery, err := sector.Open(path)
	if err != nil && sec == nil {
		return nil, false, fmt.Errorf("indexset: open %s: %w", path, err)
	}
	s = &Store{sec: sec}
	if needsRecovery {
		return s, true, err
	}
	if loadErr := s.load(); loadErr != nil {
		return s, needsRecovery, loadErr
	}
	return s, false, nil
}

// Fix repairs the underlying sector store; callers must reload afterward.
func (s *Store) Fix() error {
	if err := s.sec.Fix(); err != nil {
		return fmt.Errorf("indexset: fix: %w", err)
	}
	return s.load()
}

func (s *Store) Close() error { return s.sec.Close() }
func (s *Store) Synch() error { return s.sec.Synch() }

type dirEntry struct {
	head  int64
	count int64
}

func (s *Store) writeReservedHeader(listCount int) error {
	buf := make([]byte, 4+4+8)
	binary.BigEndian.PutUint32(buf[0:4], reservedMagic)
	binary.BigEndian.PutUint32(buf[4:8], uint32(listCount))
	binary.BigEndian.PutUint64(buf[8:16], uint64(s.directory))
	return s.sec.SetReservedHeader(buf)
}

func (s *Store) load() error {
	hdr := s.sec.ReservedHeader()
	if binary.BigEndian.Uint32(hdr[0:4]) != reservedMagic {
		return fmt.Errorf("indexset: bad reserved-header magic")
	}
	listCount := int(binary.BigEndian.Uint32(hdr[4:8]))
	dirHead := int64(binary.BigEndian.Uint64(hdr[8:16]))
	s.directory = dirHead
	entries, err := s.readDirectory(dirHead, listCount)
	if err != nil {
		return err
	}
	lists := make([]List, listCount)
	for i, e := range entries {
		if e.head == noChain || e.count == 0 {
			lists[i] = List{}
			continue
		}
		l, err := s.readList(e)
		if err != nil {
			return err
		}
		lists[i] = l
	}
	s.current = NewSnapshot(lists)
	return nil
}

func (s *Store) readDirectory(head int64, listCount int) ([]dirEntry, error) {
	if head == noChain {
		return allNoChain(listCount), nil
	}
	buf, err := s.sec.ReadAcross(head)
	if err != nil {
		return nil, fmt.Errorf("indexset: read directory: %w", err)
	}
	out := make([]dirEntry, listCount)
	for i := 0; i < listCount; i++ {
		off := i * directoryEntrySize
		out[i] = dirEntry{
			head:  int64(binary.BigEndian.Uint64(buf[off : off+8])),
			count: int64(binary.BigEndian.Uint64(buf[off+8 : off+16])),
		}
	}
	return out, nil
}

func (s *Store) readList(e dirEntry) (List, error) {
	buf, err := s.sec.ReadAcross(e.head)
	if err != nil {
		return nil, fmt.Errorf("indexset: read list chain: %w", err)
	}
	out := make(List, e.count)
	for i := range out {
		out[i] = int64(binary.BigEndian.Uint64(buf[i*8 : i*8+8]))
	}
	return out, nil
}

func encodeList(l List) []byte {
	buf := make([]byte, len(l)*8)
	for i, v := range l {
		binary.BigEndian.PutUint64(buf[i*8:i*8+8], uint64(v))
	}
	return buf
}

func encodeDirectory(entries []dirEntry) []byte {
	buf := make([]byte, len(entries)*directoryEntrySize)
	for i, e := range entries {
		off := i * directoryEntrySize
		binary.BigEndian.PutUint64(buf[off:off+8], uint64(e.head))
		binary.BigEndian.PutUint64(buf[off+8:off+16], uint64(e.count))
	}
	return buf
}

func (s *Store) persistDirectory(entries []dirEntry) error {
	newHead, err := s.sec.WriteAcross(encodeDirectory(entries))
	if err != nil {
		return fmt.Errorf("indexset: write directory: %w", err)
	}
	if s.directory != noChain {
		if err := s.sec.DeleteAcross(s.directory); err != nil {
			return fmt.Errorf("indexset: free old directory: %w", err)
		}
	}
	s.directory = newHead
	return nil
}

// GetSnapshotIndexSet returns the currently published, immutable Snapshot.
// Never blocks on a concurrent commit.
func (s *Store) GetSnapshotIndexSet() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// GetIndex returns list i of the currently published snapshot.
func (s *Store) GetIndex(i int) List {
	return s.GetSnapshotIndexSet().List(i)
}

// CommitIndexSet atomically replaces the published Snapshot with next,
// persisting only the lists whose contents differ from the currently
// published one (every list is compared element by element). Commits are serialized
// against each other; GetSnapshotIndexSet never blocks on this call.
func (s *Store) CommitIndexSet(next Snapshot) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.RLock()
	prev := s.current
	s.mu.RUnlock()

	if prev.Len() != next.Len() {
		return fmt.Errorf("indexset: commit list count %d != store list count %d", next.Len(), prev.Len())
	}
	entries, err := s.readDirectory(s.directory, prev.Len())
	if err != nil {
		return err
	}
	changed := false
	for i := 0; i < next.Len(); i++ {
		if listsEqual(prev.List(i), next.List(i)) {
			continue
		}
		changed = true
		old := entries[i]
		newHead, err := s.sec.WriteAcross(encodeList(next.List(i)))
		if err != nil {
			return fmt.Errorf("indexset: write list %d: %w", i, err)
		}
		if old.head != noChain {
			if err := s.sec.DeleteAcross(old.head); err != nil {
				return fmt.Errorf("indexset: free old list %d: %w", i, err)
			}
		}
		entries[i] = dirEntry{head: newHead, count: int64(len(next.List(i)))}
	}
	if changed {
		if err := s.persistDirectory(entries); err != nil {
			return err
		}
		if err := s.writeReservedHeader(next.Len()); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return nil
}

func listsEqual(a, b List) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
