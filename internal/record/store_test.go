package record

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Create(filepath.Join(dir, "t.axi"), filepath.Join(dir, "t.dss"), 512)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWriteReadRoundTripSmallRecord(t *testing.T) {
	s := newTestStore(t)
	payload := []byte("small row")
	idx, err := s.Write(payload)
	require.NoError(t, err)

	got, err := s.Read(idx)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	compressed, err := s.IsCompressed(idx)
	require.NoError(t, err)
	require.False(t, compressed)
}

func TestCompressionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	payload := bytes.Repeat([]byte{0x42}, 9*1024)
	idx, err := s.Write(payload)
	require.NoError(t, err)

	got, err := s.Read(idx)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	compressed, err := s.IsCompressed(idx)
	require.NoError(t, err)
	require.True(t, compressed)

	size, err := s.RecordSize(idx)
	require.NoError(t, err)
	require.Less(t, int(size), len(payload))
}

func TestWriteRecordTypePreservesCompressedBit(t *testing.T) {
	s := newTestStore(t)
	payload := bytes.Repeat([]byte{0x7A}, 9*1024)
	idx, err := s.Write(payload)
	require.NoError(t, err)

	require.NoError(t, s.WriteRecordType(idx, 0xABCDEF))
	typ, err := s.RecordType(idx)
	require.NoError(t, err)
	require.Equal(t, int32(0xABCDEF), typ)

	compressed, err := s.IsCompressed(idx)
	require.NoError(t, err)
	require.True(t, compressed)
}

func TestDeleteFreesRecordForReuse(t *testing.T) {
	s := newTestStore(t)
	idx, err := s.Write([]byte("disposable"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(idx))

	idx2, err := s.Write([]byte("replacement"))
	require.NoError(t, err)
	got, err := s.Read(idx2)
	require.NoError(t, err)
	require.Equal(t, []byte("replacement"), got)
}

func TestOutputStreamExclusiveAndRoundTrip(t *testing.T) {
	s := newTestStore(t)
	out, err := s.NewOutputStream()
	require.NoError(t, err)

	_, err = s.NewOutputStream()
	require.ErrorIs(t, err, ErrStreamAlreadyOpen)

	_, err = out.Write([]byte("streamed "))
	require.NoError(t, err)
	_, err = out.Write([]byte("payload"))
	require.NoError(t, err)

	idx, err := out.Close()
	require.NoError(t, err)

	got, err := s.Read(idx)
	require.NoError(t, err)
	require.Equal(t, []byte("streamed payload"), got)

	// Stream slot released after Close, a new stream may open.
	out2, err := s.NewOutputStream()
	require.NoError(t, err)
	require.NoError(t, out2.Write2Close(t))
}

// Write2Close is a tiny test helper avoiding an unused-stream error path.
func (o *OutputStream) Write2Close(t *testing.T) error {
	t.Helper()
	_, err := o.Close()
	return err
}
