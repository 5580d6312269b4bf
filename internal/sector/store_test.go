package sector

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.dss")
	s, err := Create(path, 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddAndGetSectorRoundTrip(t *testing.T) {
	s := newTestStore(t)
	payload := []byte("hello sector store")
	idx, err := s.AddSector(payload)
	require.NoError(t, err)

	buf := make([]byte, s.PayloadCapacity())
	n, err := s.GetSector(idx, buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])
}

func TestWriteAndReadAcrossMultipleSectors(t *testing.T) {
	s := newTestStore(t)
	cap := s.PayloadCapacity()
	payload := make([]byte, cap*3+5)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	head, err := s.WriteAcross(payload)
	require.NoError(t, err)

	got, err := s.ReadAcross(head)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDeleteAcrossFreesChainForReuse(t *testing.T) {
	s := newTestStore(t)
	cap := s.PayloadCapacity()
	payload := make([]byte, cap*2)
	head, err := s.WriteAcross(payload)
	require.NoError(t, err)

	before := s.SectorCount()
	require.NoError(t, s.DeleteAcross(head))

	head2, err := s.WriteAcross(payload)
	require.NoError(t, err)
	require.Equal(t, before, s.SectorCount(), "reused freed sectors instead of growing the file")
	_ = head2
}

func TestOpenAfterCleanCloseNeverRequiresRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clean.dss")
	s, err := Create(path, 64)
	require.NoError(t, err)
	_, err = s.AddSector([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, needsRecovery, err := Open(path)
	require.NoError(t, err)
	require.False(t, needsRecovery)
	require.NoError(t, reopened.Close())
}

func TestReservedHeaderRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetReservedHeader([]byte("table-def-ptr")))
	h := s.ReservedHeader()
	require.Contains(t, string(h[:]), "table-def-ptr")
}
