package scheme

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ponydb/internal/rangeset"
	"ponydb/internal/types"
)

func TestSortedInsertAndSelect(t *testing.T) {
	s := NewInsertSort()
	require.NoError(t, s.Insert(10, types.Int(2)))
	require.NoError(t, s.Insert(11, types.Int(1)))
	require.NoError(t, s.Insert(12, types.Int(3)))

	all, err := s.SelectAll()
	require.NoError(t, err)
	require.Equal(t, []int64{11, 10, 12}, all)

	gt, err := s.SelectGreater(types.Int(1))
	require.NoError(t, err)
	require.Equal(t, []int64{10, 12}, gt)
}

func TestSortedTieBreakPreservesInsertionOrder(t *testing.T) {
	s := NewInsertSort()
	require.NoError(t, s.Insert(1, types.Int(5)))
	require.NoError(t, s.Insert(2, types.Int(5)))
	require.NoError(t, s.Insert(3, types.Int(5)))

	eq, err := s.SelectEqual(types.Int(5))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, eq)
}

func TestSortedRemove(t *testing.T) {
	s := NewInsertSort()
	require.NoError(t, s.Insert(1, types.Int(5)))
	require.NoError(t, s.Insert(2, types.Int(5)))
	require.NoError(t, s.Remove(1))

	eq, err := s.SelectEqual(types.Int(5))
	require.NoError(t, err)
	require.Equal(t, []int64{2}, eq)
}

func TestSortedSelectRangeSet(t *testing.T) {
	s := NewInsertSort()
	for i, v := range []int64{3, 1, 4, 1, 5, 9} {
		require.NoError(t, s.Insert(int64(i), types.Int(v)))
	}
	rs := rangeset.NewFullSet().Intersect(rangeset.OpLess, types.Int(2))
	rows, err := s.SelectRange(rs.Ranges[0])
	require.NoError(t, err)
	require.Len(t, rows, 2) // the two rows holding value 1
}

func TestSortedSelectAllNonNull(t *testing.T) {
	s := NewInsertSort()
	require.NoError(t, s.Insert(1, types.Null))
	require.NoError(t, s.Insert(2, types.Int(1)))
	nonNull, err := s.SelectAllNonNull()
	require.NoError(t, err)
	require.Equal(t, []int64{2}, nonNull)
}

func TestSortedCopyImmutableSharesBacking(t *testing.T) {
	s := NewInsertSort()
	require.NoError(t, s.Insert(1, types.Int(1)))
	cp := s.Copy(true).(*Sorted)
	require.Same(t, &s.ordered[0], &cp.ordered[0])
	all, _ := cp.SelectAll()
	require.Equal(t, []int64{1}, all)
}

type fakeTable struct {
	rows   []int64
	values map[int64]types.TObject
}

func (f *fakeTable) Rows() ([]int64, error) { return f.rows, nil }
func (f *fakeTable) CellAt(row int64) (types.TObject, error) {
	return f.values[row], nil
}

func TestBlindScanSelectGreaterStableSorted(t *testing.T) {
	table := &fakeTable{
		rows: []int64{0, 1, 2, 3},
		values: map[int64]types.TObject{
			0: types.Int(1), 1: types.Int(2), 2: types.Int(2), 3: types.Int(3),
		},
	}
	b := NewBlindScan(table)
	rows, err := b.SelectGreater(types.Int(1))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, rows)
}
