package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"go.uber.org/atomic"

	"ponydb/internal/sector"
)

const (
	// allocEntrySize is the 12-byte {chain_head, length, type_key} tuple
	// of §6; the allocation sector store's sector size is this plus the
	// 7-byte intra-sector header sector.Store always adds.
	allocEntrySize = 4 + 4 + 4

	// compressedFlag is bit 0 of the reserved low byte of a type-key.
	compressedFlag = int32(1)
)

// Store is the variable-size record store over an allocation-index
// sector.Store (axiSectorSize below) and a data sector.Store.
type Store struct {
	axi *sector.Store
	dss *sector.Store

	streamOpen atomic.Bool
}

// axiSectorSize is the sector.Store sector size needed to hold exactly
// one 12-byte allocation entry.
func axiSectorSize() int { return allocEntrySize + 7 /* intra-sector header */ }

// Create initializes a new pair of <table>.axi / <table>.dss files.
// dataSectorSize must be large enough to make compression worthwhile
// (§4.B recommends 512-4096).
func Create(axiPath, dssPath string, dataSectorSize int) (*Store, error) {
	axi, err := sector.Create(axiPath, axiSectorSize())
	if err != nil {
		return nil, fmt.Errorf("record: create allocation index: %w", err)
	}
	dss, err := sector.Create(dssPath, dataSectorSize)
	if err != nil {
		axi.Close()
		return nil, fmt.Errorf("record: create data store: %w", err)
	}
	return &Store{axi: axi, dss: dss}, nil
}

// Open opens an existing pair of files. Either store may independently
// report that recovery is needed; the caller must Fix both before use.
func Open(axiPath, dssPath string) (s *Store, axiRecovery, dssRecovery bool, err error) {
	axi, axiRecovery, err := sector.Open(axiPath)
	if err != nil && axi == nil {
		return nil, false, false, fmt.Errorf("record: open allocation index: %w", err)
	}
	dss, dssRecovery, err := sector.Open(dssPath)
	if err != nil && dss == nil {
		return nil, false, false, fmt.Errorf("record: open data store: %w", err)
	}
	return &Store{axi: axi, dss: dss}, axiRecovery, dssRecovery, nil
}

// Fix repairs both underlying sector stores.
func (s *Store) Fix() error {
	if err := s.axi.Fix(); err != nil {
		return fmt.Errorf("record: fix allocation index: %w", err)
	}
	if err := s.dss.Fix(); err != nil {
		return fmt.Errorf("record: fix data store: %w", err)
	}
	return nil
}

// Close closes both underlying stores.
func (s *Store) Close() error {
	err1 := s.axi.Close()
	err2 := s.dss.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Synch / HardSynch flush both underlying stores.
func (s *Store) Synch() error {
	if err := s.axi.Synch(); err != nil {
		return err
	}
	return s.dss.Synch()
}

func (s *Store) HardSynch() error {
	if err := s.axi.HardSynch(); err != nil {
		return err
	}
	return s.dss.HardSynch()
}

type allocEntry struct {
	chainHead int64
	length    int32
	typeKey   int32
}

func encodeAlloc(e allocEntry) []byte {
	buf := make([]byte, allocEntrySize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(int32(e.chainHead)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(e.length))
	binary.BigEndian.PutUint32(buf[8:12], uint32(e.typeKey))
	return buf
}

func decodeAlloc(buf []byte) allocEntry {
	return allocEntry{
		chainHead: int64(int32(binary.BigEndian.Uint32(buf[0:4]))),
		length:    int32(binary.BigEndian.Uint32(buf[4:8])),
		typeKey:   int32(binary.BigEndian.Uint32(buf[8:12])),
	}
}

func (s *Store) readAlloc(record int64) (allocEntry, error) {
	buf := make([]byte, allocEntrySize)
	n, err := s.axi.GetSector(record, buf)
	if err != nil {
		return allocEntry{}, fmt.Errorf("record: read allocation entry %d: %w", record, err)
	}
	if n < allocEntrySize {
		return allocEntry{}, fmt.Errorf("record: allocation entry %d truncated", record)
	}
	return decodeAlloc(buf), nil
}

// Write stores buf as a new record, compressing it first when that is
// worth it (§4.B: only attempted when len(buf) exceeds the data store's
// per-sector payload capacity, and only kept when the deflated span is
// smaller than the raw span). Returns the allocation record index.
func (s *Store) Write(buf []byte) (int64, error) {
	payload, compressed, err := s.maybeCompress(buf)
	if err != nil {
		return 0, err
	}
	head, err := s.dss.WriteAcross(payload)
	if err != nil {
		return 0, fmt.Errorf("record: write data chain: %w", err)
	}
	typeKey := int32(0)
	if compressed {
		typeKey |= compressedFlag
	}
	entry := allocEntry{chainHead: head, length: int32(len(payload)), typeKey: typeKey}
	idx, err := s.axi.AddSector(encodeAlloc(entry))
	if err != nil {
		return 0, fmt.Errorf("record: allocate entry: %w", err)
	}
	return idx, nil
}

func (s *Store) maybeCompress(buf []byte) (payload []byte, compressed bool, err error) {
	if len(buf) <= s.dss.PayloadCapacity() {
		return buf, false, nil
	}
	var out bytes.Buffer
	w, err := flate.NewWriter(&out, flate.DefaultCompression)
	if err != nil {
		return nil, false, fmt.Errorf("record: init deflate writer: %w", err)
	}
	if _, err := w.Write(buf); err != nil {
		return nil, false, fmt.Errorf("record: deflate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, false, fmt.Errorf("record: deflate close: %w", err)
	}
	if out.Len()+4 >= len(buf) {
		// Deflate didn't help; store raw.
		return buf, false, nil
	}
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], uint32(len(buf)))
	compressedPayload := append(out.Bytes(), trailer[:]...)
	return compressedPayload, true, nil
}

// Read fetches and decompresses (if needed) the payload of record.
func (s *Store) Read(record int64) ([]byte, error) {
	entry, err := s.readAlloc(record)
	if err != nil {
		return nil, err
	}
	raw, err := s.dss.ReadAcross(entry.chainHead)
	if err != nil {
		return nil, fmt.Errorf("record: read data chain for record %d: %w", record, err)
	}
	if entry.typeKey&compressedFlag == 0 {
		return raw[:entry.length], nil
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("record: compressed record %d missing length trailer", record)
	}
	body := raw[:entry.length]
	uncompressedLen := binary.BigEndian.Uint32(body[len(body)-4:])
	r := flate.NewReader(bytes.NewReader(body[:len(body)-4]))
	defer r.Close()
	out := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("record: inflate record %d: %w", record, err)
	}
	return out, nil
}

// Delete frees both the allocation entry and its data chain.
func (s *Store) Delete(record int64) error {
	entry, err := s.readAlloc(record)
	if err != nil {
		return err
	}
	if err := s.dss.DeleteAcross(entry.chainHead); err != nil {
		return fmt.Errorf("record: free data chain for record %d: %w", record, err)
	}
	if err := s.axi.DeleteSector(record); err != nil {
		return fmt.Errorf("record: free allocation entry %d: %w", record, err)
	}
	return nil
}

// WriteRecordType updates only the upper 24 bits of the type key,
// preserving the reserved low 8 bits (including the compressed flag).
func (s *Store) WriteRecordType(record int64, typ int32) error {
	entry, err := s.readAlloc(record)
	if err != nil {
		return err
	}
	entry.typeKey = (entry.typeKey & 0xFF) | (typ << 8)
	return s.overwriteAlloc(record, entry)
}

// RecordType returns the upper 24 bits of the type key last written by
// WriteRecordType.
func (s *Store) RecordType(record int64) (int32, error) {
	entry, err := s.readAlloc(record)
	if err != nil {
		return 0, err
	}
	return int32(uint32(entry.typeKey) >> 8), nil
}

func (s *Store) overwriteAlloc(record int64, entry allocEntry) error {
	if err := s.axi.OverwriteSector(record, encodeAlloc(entry)); err != nil {
		return fmt.Errorf("record: overwrite allocation entry %d: %w", record, err)
	}
	return nil
}

// Count returns the number of allocation slots ever handed out, including
// ones since freed; callers replaying the store on open should skip slots
// whose RecordType/RecordSize return an error (a freed slot reads back as a
// truncated allocation entry).
func (s *Store) Count() int64 { return s.axi.SectorCount() }

// IsCompressed reports whether record's payload is stored deflated.
func (s *Store) IsCompressed(record int64) (bool, error) {
	entry, err := s.readAlloc(record)
	if err != nil {
		return false, err
	}
	return entry.typeKey&compressedFlag != 0, nil
}

// RecordSize returns the on-disk payload size (post-compression, if any).
func (s *Store) RecordSize(record int64) (int32, error) {
	entry, err := s.readAlloc(record)
	if err != nil {
		return 0, err
	}
	return entry.length, nil
}
