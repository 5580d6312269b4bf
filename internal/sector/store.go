package sector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/atomic"
)

const (
	// reservedHeaderSize is the maximum size of the buffer higher layers
	// (the index-set store's list-count/directory header, …) may stash in
	// the header sector.
	reservedHeaderSize = 128

	// headerMagic identifies a sector store file.
	headerMagic = uint32(0x53544F52) // "STOR"

	// intraSectorHeader is {status:u8, next:i32_be, payloadLen:i16_be}.
	intraSectorHeader = 1 + 4 + 2

	statusFree = byte(0)
	statusUsed = byte(1)

	noSector = int64(-1)
)

// ErrRecoveryRequired is returned by Open when the journal holds
// unapplied writes; callers must invoke Fix before using the store.
var ErrRecoveryRequired = errors.New("sector: recovery required, call Fix before use")

// ErrClosed is returned by any operation on a closed store.
var ErrClosed = errors.New("sector: store is closed")

// header is the persistent content of file-sector 0.
type header struct {
	magic        uint32
	sectorSize   int32
	sectorCount  int64
	freeListHead int64
	reserved     [reservedHeaderSize]byte
}

const headerEncodedSize = 4 + 4 + 8 + 8 + reservedHeaderSize

func (h *header) encode() []byte {
	buf := make([]byte, headerEncodedSize)
	binary.BigEndian.PutUint32(buf[0:4], h.magic)
	binary.BigEndian.PutUint32(buf[4:8], uint32(h.sectorSize))
	binary.BigEndian.PutUint64(buf[8:16], uint64(h.sectorCount))
	binary.BigEndian.PutUint64(buf[16:24], uint64(h.freeListHead))
	copy(buf[24:], h.reserved[:])
	return buf
}

func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerEncodedSize {
		return nil, fmt.Errorf("sector: header truncated: got %d bytes", len(buf))
	}
	h := &header{}
	h.magic = binary.BigEndian.Uint32(buf[0:4])
	if h.magic != headerMagic {
		return nil, fmt.Errorf("sector: bad header magic %#x", h.magic)
	}
	h.sectorSize = int32(binary.BigEndian.Uint32(buf[4:8]))
	h.sectorCount = int64(binary.BigEndian.Uint64(buf[8:16]))
	h.freeListHead = int64(binary.BigEndian.Uint64(buf[16:24]))
	copy(h.reserved[:], buf[24:24+reservedHeaderSize])
	return h, nil
}

// Store is a paged, fixed-size-sector file with free-list reuse and
// journaled crash recovery. Sector indices are user-visible and start at
// 0; internally sector i lives at file offset (i+1)*sectorSize, since
// file-sector 0 is the header block.
type Store struct {
	dataPath    string
	journalPath string

	mu       sync.RWMutex // guards concurrent readers against each other's view of h
	writeMu  sync.Mutex   // serializes mutators (lockForWrite)
	data     *os.File
	journal  *os.File
	h        *header
	closed   atomic.Bool
	sectSize int
}

// Create initializes a brand-new sector store at path with the given
// sector size (the intra-sector header is included in sectorSize, so the
// usable payload per sector is sectorSize-7 bytes).
func Create(path string, sectorSize int) (*Store, error) {
	if sectorSize <= intraSectorHeader {
		return nil, fmt.Errorf("sector: sectorSize %d too small", sectorSize)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sector: create %s: %w", path, err)
	}
	h := &header{magic: headerMagic, sectorSize: int32(sectorSize), sectorCount: 0, freeListHead: noSector}
	if _, err := f.WriteAt(padTo(h.encode(), sectorSize), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("sector: write header: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("sector: sync header: %w", err)
	}
	s := &Store{dataPath: path, journalPath: path + ".wal", data: f, h: h, sectSize: sectorSize}
	jf, err := os.OpenFile(s.journalPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sector: create journal: %w", err)
	}
	s.journal = jf
	return s, nil
}

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Open opens an existing sector store. needsRecovery reports whether the
// journal holds entries that must be replayed via Fix before the store
// may be used; opening a cleanly closed store never returns true (§8).
func Open(path string) (s *Store, needsRecovery bool, err error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("sector: open %s: %w", path, err)
	}
	hdrBuf := make([]byte, headerEncodedSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		f.Close()
		return nil, false, fmt.Errorf("sector: read header: %w", err)
	}
	h, err := decodeHeader(hdrBuf)
	if err != nil {
		f.Close()
		return nil, false, err
	}
	jf, err := os.OpenFile(path+".wal", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("sector: open journal: %w", err)
	}
	s = &Store{dataPath: path, journalPath: path + ".wal", data: f, journal: jf, h: h, sectSize: int(h.sectorSize)}
	fi, err := jf.Stat()
	if err != nil {
		f.Close()
		jf.Close()
		return nil, false, fmt.Errorf("sector: stat journal: %w", err)
	}
	if fi.Size() > 0 {
		return s, true, ErrRecoveryRequired
	}
	return s, false, nil
}

// SectorSize returns the configured sector size, payload included.
func (s *Store) SectorSize() int { return s.sectSize }

// PayloadCapacity returns the maximum payload bytes a single sector holds.
func (s *Store) PayloadCapacity() int { return s.sectSize - intraSectorHeader }

// SectorCount returns the number of sectors ever allocated (including
// freed ones still occupying file space).
func (s *Store) SectorCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h.sectorCount
}

// ReservedHeader returns a copy of the ≤128-byte buffer higher layers may
// use for their own bookkeeping (the index-set store's header, etc.).
func (s *Store) ReservedHeader() [reservedHeaderSize]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h.reserved
}

// SetReservedHeader persists a new reserved-header buffer; b longer than
// 128 bytes is truncated.
func (s *Store) SetReservedHeader(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	var buf [reservedHeaderSize]byte
	copy(buf[:], b)
	s.h.reserved = buf
	return s.writeHeaderLocked()
}

func (s *Store) writeHeaderLocked() error {
	if _, err := s.data.WriteAt(padTo(s.h.encode(), s.sectSize), 0); err != nil {
		return fmt.Errorf("sector: write header: %w", err)
	}
	return nil
}

func (s *Store) offsetOf(index int64) int64 {
	return (index + 1) * int64(s.sectSize)
}

// Synch flushes OS buffers for the data and journal files.
func (s *Store) Synch() error {
	if err := s.data.Sync(); err != nil {
		return fmt.Errorf("sector: synch data: %w", err)
	}
	if err := s.journal.Sync(); err != nil {
		return fmt.Errorf("sector: synch journal: %w", err)
	}
	return nil
}

// HardSynch is Synch plus a second pass forcing the durable barrier again;
// some filesystems reorder metadata updates around the first fsync, so a
// second, back-to-back Synch gives a stronger guarantee.
func (s *Store) HardSynch() error {
	if err := s.Synch(); err != nil {
		return err
	}
	return s.Synch()
}

// Close flushes and closes both files. After Close, Open on the same path
// must not require recovery.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.Synch(); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return fmt.Errorf("sector: clear journal on close: %w", err)
	}
	if err := s.journal.Close(); err != nil {
		return err
	}
	return s.data.Close()
}
