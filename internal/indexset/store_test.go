package indexset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitIndexSetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.iid")
	s, err := Create(path, 2, 512)
	require.NoError(t, err)
	defer s.Close()

	snap := s.GetSnapshotIndexSet()
	require.Equal(t, 2, snap.Len())
	require.Empty(t, snap.List(0))

	next := snap.With(0, List{3, 1, 2})
	require.NoError(t, s.CommitIndexSet(next))

	got := s.GetSnapshotIndexSet()
	require.Equal(t, List{3, 1, 2}, got.List(0))
	require.Empty(t, got.List(1))
}

func TestCommitIndexSetOnlyRewritesChangedLists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.iid")
	s, err := Create(path, 2, 512)
	require.NoError(t, err)
	defer s.Close()

	first := s.GetSnapshotIndexSet().With(0, List{1, 2, 3}).With(1, List{4, 5})
	require.NoError(t, s.CommitIndexSet(first))

	second := s.GetSnapshotIndexSet().With(0, List{1, 2, 3, 4})
	require.NoError(t, s.CommitIndexSet(second))

	got := s.GetSnapshotIndexSet()
	require.Equal(t, List{1, 2, 3, 4}, got.List(0))
	require.Equal(t, List{4, 5}, got.List(1))
}
