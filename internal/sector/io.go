package sector

import (
	"encoding/binary"
	"fmt"
)

type sectorImage struct {
	status     byte
	next       int64
	payloadLen int16
	payload    []byte
}

func (s *Store) encodeSector(img sectorImage) []byte {
	buf := make([]byte, s.sectSize)
	buf[0] = img.status
	binary.BigEndian.PutUint32(buf[1:5], uint32(int32(img.next)))
	binary.BigEndian.PutUint16(buf[5:7], uint16(img.payloadLen))
	copy(buf[intraSectorHeader:], img.payload)
	return buf
}

func (s *Store) decodeSector(buf []byte) sectorImage {
	next := int32(binary.BigEndian.Uint32(buf[1:5]))
	plen := int16(binary.BigEndian.Uint16(buf[5:7]))
	return sectorImage{
		status:     buf[0],
		next:       int64(next),
		payloadLen: plen,
		payload:    buf[intraSectorHeader:],
	}
}

func (s *Store) readSectorRaw(index int64) (sectorImage, error) {
	buf := make([]byte, s.sectSize)
	if _, err := s.data.ReadAt(buf, s.offsetOf(index)); err != nil {
		return sectorImage{}, fmt.Errorf("sector: read sector %d: %w", index, err)
	}
	return s.decodeSector(buf), nil
}

// allocateLocked returns a sector index to write into: popped from the
// free list if one exists, otherwise a freshly grown slot. Caller holds
// writeMu and is expected to include the resulting header mutation and
// sector write in the same journal batch.
func (s *Store) allocateLocked() (int64, error) {
	if s.h.freeListHead != noSector {
		idx := s.h.freeListHead
		img, err := s.readSectorRaw(idx)
		if err != nil {
			return 0, err
		}
		s.h.freeListHead = img.next
		return idx, nil
	}
	idx := s.h.sectorCount
	s.h.sectorCount++
	return idx, nil
}

// AddSector allocates a single standalone sector holding payload (which
// must fit in PayloadCapacity) and returns its index.
func (s *Store) AddSector(payload []byte) (int64, error) {
	if len(payload) > s.PayloadCapacity() {
		return 0, fmt.Errorf("sector: payload %d exceeds capacity %d", len(payload), s.PayloadCapacity())
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return 0, ErrClosed
	}
	idx, err := s.allocateLocked()
	if err != nil {
		return 0, err
	}
	img := sectorImage{status: statusUsed, next: noSector, payloadLen: int16(len(payload)), payload: payload}
	if err := s.commitBatch([]writeRecord{{index: idx, image: s.encodeSector(img)}}); err != nil {
		return 0, err
	}
	return idx, nil
}

// OverwriteSector replaces the payload of an already-allocated standalone
// sector, preserving its next pointer.
func (s *Store) OverwriteSector(index int64, payload []byte) error {
	if len(payload) > s.PayloadCapacity() {
		return fmt.Errorf("sector: payload %d exceeds capacity %d", len(payload), s.PayloadCapacity())
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	existing, err := s.readSectorRaw(index)
	if err != nil {
		return err
	}
	img := sectorImage{status: statusUsed, next: existing.next, payloadLen: int16(len(payload)), payload: payload}
	return s.commitBatch([]writeRecord{{index: index, image: s.encodeSector(img)}})
}

// DeleteSector frees a single sector, pushing it onto the free list.
func (s *Store) DeleteSector(index int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	return s.freeLocked(index)
}

func (s *Store) freeLocked(index int64) error {
	img := sectorImage{status: statusFree, next: s.h.freeListHead, payloadLen: 0, payload: nil}
	rec := writeRecord{index: index, image: s.encodeSector(img)}
	prevHead := s.h.freeListHead
	s.h.freeListHead = index
	if err := s.commitBatch([]writeRecord{rec}); err != nil {
		s.h.freeListHead = prevHead
		return err
	}
	return nil
}

// DeleteAcross frees every sector in the chain starting at head.
func (s *Store) DeleteAcross(head int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	var records []writeRecord
	cur := head
	freeHead := s.h.freeListHead
	for cur != noSector {
		img, err := s.readSectorRaw(cur)
		if err != nil {
			return err
		}
		next := img.next
		freed := sectorImage{status: statusFree, next: freeHead, payloadLen: 0}
		records = append(records, writeRecord{index: cur, image: s.encodeSector(freed)})
		freeHead = cur
		cur = next
	}
	prevHead := s.h.freeListHead
	s.h.freeListHead = freeHead
	if err := s.commitBatch(records); err != nil {
		s.h.freeListHead = prevHead
		return err
	}
	return nil
}

// GetSector copies the payload of a single standalone sector into buf,
// returning the number of bytes copied.
func (s *Store) GetSector(index int64, buf []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return 0, ErrClosed
	}
	img, err := s.readSectorRaw(index)
	if err != nil {
		return 0, err
	}
	n := copy(buf, img.payload[:img.payloadLen])
	return n, nil
}

// ReadAcross reads and concatenates the payloads of every sector in the
// chain starting at head, in chain order.
func (s *Store) ReadAcross(head int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var out []byte
	cur := head
	for cur != noSector {
		img, err := s.readSectorRaw(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, img.payload[:img.payloadLen]...)
		cur = img.next
	}
	return out, nil
}

// WriteAcross writes buf across as many sectors as needed (reusing
// free-list entries before growing the file) and returns the chain head.
func (s *Store) WriteAcross(buf []byte) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return 0, ErrClosed
	}
	cap := s.PayloadCapacity()
	if len(buf) == 0 {
		idx, err := s.allocateLocked()
		if err != nil {
			return 0, err
		}
		img := sectorImage{status: statusUsed, next: noSector, payloadLen: 0}
		if err := s.commitBatch([]writeRecord{{index: idx, image: s.encodeSector(img)}}); err != nil {
			return 0, err
		}
		return idx, nil
	}

	var indices []int64
	for off := 0; off < len(buf); off += cap {
		idx, err := s.allocateLocked()
		if err != nil {
			return 0, err
		}
		indices = append(indices, idx)
	}

	records := make([]writeRecord, 0, len(indices))
	for i, idx := range indices {
		start := i * cap
		end := start + cap
		if end > len(buf) {
			end = len(buf)
		}
		chunk := buf[start:end]
		next := int64(noSector)
		if i+1 < len(indices) {
			next = indices[i+1]
		}
		img := sectorImage{status: statusUsed, next: next, payloadLen: int16(len(chunk)), payload: chunk}
		records = append(records, writeRecord{index: idx, image: s.encodeSector(img)})
	}
	if err := s.commitBatch(records); err != nil {
		return 0, err
	}
	return indices[0], nil
}
