package record

import (
	"bytes"
	"fmt"
)

// ErrStreamAlreadyOpen is returned when a second OutputStream or
// InputStream is requested while one is already active; only one may be
// open at a time (§4.B, §5 "per-record OutputStream").
var ErrStreamAlreadyOpen = fmt.Errorf("record: a stream is already open on this store")

// OutputStream lets a caller write a large row's bytes incrementally
// instead of buffering the whole payload in memory first. Unlike Write,
// a streamed record is never compressed: the deflate decision in §4.B
// depends on knowing the final length up front, which a stream does not
// have until Close.
type OutputStream struct {
	store  *Store
	buf    bytes.Buffer
	closed bool
}

// NewOutputStream opens a stream for writing. Fails loudly if one is
// already open, per the "attempts to open a second concurrently fail
// loudly" rule of §5.
func (s *Store) NewOutputStream() (*OutputStream, error) {
	if !s.streamOpen.CompareAndSwap(false, true) {
		return nil, ErrStreamAlreadyOpen
	}
	return &OutputStream{store: s}, nil
}

// Write buffers p; the eventual record is written on Close.
func (o *OutputStream) Write(p []byte) (int, error) {
	if o.closed {
		return 0, fmt.Errorf("record: write to closed OutputStream")
	}
	return o.buf.Write(p)
}

// Close writes the buffered bytes as a new uncompressed record and
// returns its allocation index, releasing the store's single stream
// slot.
func (o *OutputStream) Close() (int64, error) {
	if o.closed {
		return 0, fmt.Errorf("record: OutputStream already closed")
	}
	o.closed = true
	defer o.store.streamOpen.Store(false)

	head, err := o.store.dss.WriteAcross(o.buf.Bytes())
	if err != nil {
		return 0, fmt.Errorf("record: stream write data chain: %w", err)
	}
	entry := allocEntry{chainHead: head, length: int32(o.buf.Len()), typeKey: 0}
	idx, err := o.store.axi.AddSector(encodeAlloc(entry))
	if err != nil {
		return 0, fmt.Errorf("record: stream allocate entry: %w", err)
	}
	return idx, nil
}

// InputStream reads a record's bytes incrementally.
type InputStream struct {
	store  *Store
	data   []byte
	pos    int
	closed bool
}

// NewInputStream opens a stream for reading record. Fails loudly if an
// OutputStream or another InputStream is already open.
func (s *Store) NewInputStream(record int64) (*InputStream, error) {
	if !s.streamOpen.CompareAndSwap(false, true) {
		return nil, ErrStreamAlreadyOpen
	}
	data, err := s.Read(record)
	if err != nil {
		s.streamOpen.Store(false)
		return nil, err
	}
	return &InputStream{store: s, data: data}, nil
}

// Read fills p with the next bytes of the record, io.EOF-style via a
// short read (no error) at end of data.
func (in *InputStream) Read(p []byte) (int, error) {
	if in.closed {
		return 0, fmt.Errorf("record: read from closed InputStream")
	}
	n := copy(p, in.data[in.pos:])
	in.pos += n
	return n, nil
}

// Close releases the store's single stream slot.
func (in *InputStream) Close() error {
	if in.closed {
		return nil
	}
	in.closed = true
	in.store.streamOpen.Store(false)
	return nil
}
