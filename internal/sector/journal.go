package sector

import (
	"encoding/binary"
	"fmt"
	"io"
)

// writeRecord pairs a sector index with the full encoded sector image
// about to be written. A journal batch is one or more writeRecords plus a
// snapshot of the header, written before the same data is applied to the
// main file; Fix replays a batch found on Open.
type writeRecord struct {
	index int64
	image []byte
}

// commitBatch performs the write-ahead sequence for a group of sector
// writes plus a header update: journal, fsync, apply, fsync, checkpoint.
func (s *Store) commitBatch(records []writeRecord) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.writeJournal(records); err != nil {
		return err
	}
	if err := s.journal.Sync(); err != nil {
		return fmt.Errorf("sector: sync journal: %w", err)
	}
	if err := s.applyBatch(records); err != nil {
		return err
	}
	if err := s.data.Sync(); err != nil {
		return fmt.Errorf("sector: sync data: %w", err)
	}
	if err := s.journal.Truncate(0); err != nil {
		return fmt.Errorf("sector: checkpoint journal: %w", err)
	}
	if _, err := s.journal.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("sector: rewind journal: %w", err)
	}
	return nil
}

func (s *Store) writeJournal(records []writeRecord) error {
	buf := make([]byte, 0, 4+len(records)*(8+s.sectSize)+headerEncodedSize)
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(records)))
	buf = append(buf, countBuf[:]...)
	for _, r := range records {
		var idxBuf [8]byte
		binary.BigEndian.PutUint64(idxBuf[:], uint64(r.index))
		buf = append(buf, idxBuf[:]...)
		buf = append(buf, padTo(r.image, s.sectSize)...)
	}
	buf = append(buf, padTo(s.h.encode(), headerEncodedSize)...)
	if err := s.journal.Truncate(0); err != nil {
		return fmt.Errorf("sector: truncate journal: %w", err)
	}
	if _, err := s.journal.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("sector: write journal: %w", err)
	}
	return nil
}

func (s *Store) applyBatch(records []writeRecord) error {
	for _, r := range records {
		if _, err := s.data.WriteAt(padTo(r.image, s.sectSize), s.offsetOf(r.index)); err != nil {
			return fmt.Errorf("sector: apply sector %d: %w", r.index, err)
		}
	}
	return s.writeHeaderLocked()
}

// Fix replays an unfinished journal batch into the data file and
// checkpoints the journal. Must be called after Open reports
// needsRecovery before any other operation.
func (s *Store) Fix() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	fi, err := s.journal.Stat()
	if err != nil {
		return fmt.Errorf("sector: stat journal: %w", err)
	}
	if fi.Size() == 0 {
		return nil
	}
	buf := make([]byte, fi.Size())
	if _, err := s.journal.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("sector: read journal: %w", err)
	}
	if len(buf) < 4 {
		// Torn journal write (crash mid-append): nothing usable to
		// replay, discard it. The sectors it would have written are
		// still marked free in the header we loaded from the main file.
		return s.journal.Truncate(0)
	}
	count := binary.BigEndian.Uint32(buf[0:4])
	off := 4
	recSize := 8 + s.sectSize
	records := make([]writeRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+recSize > len(buf) {
			// Torn batch: stop replaying at the last complete record.
			break
		}
		idx := int64(binary.BigEndian.Uint64(buf[off : off+8]))
		img := append([]byte(nil), buf[off+8:off+recSize]...)
		records = append(records, writeRecord{index: idx, image: img})
		off += recSize
	}
	if off+headerEncodedSize <= len(buf) {
		h, err := decodeHeader(buf[off : off+headerEncodedSize])
		if err == nil {
			s.h = h
		}
	}
	if err := s.applyBatch(records); err != nil {
		return err
	}
	if err := s.data.Sync(); err != nil {
		return fmt.Errorf("sector: sync after fix: %w", err)
	}
	if err := s.journal.Truncate(0); err != nil {
		return fmt.Errorf("sector: checkpoint after fix: %w", err)
	}
	return nil
}
