package scheme

import (
	"fmt"
	"sort"

	"ponydb/internal/rangeset"
	"ponydb/internal/types"
)

// Variant distinguishes the two mutable sorted schemes; their select
// primitives are identical, only the name (and, in source systems, the
// on-disk block layout) differs (spec §4.E: "identical external contract").
type Variant int

const (
	VariantInsertSort Variant = iota
	VariantCollated
)

// Sorted is the insert-sort / collated-range scheme: a block integer list
// kept in collation order of the indexed column, with insertion-order ties.
// Insert-sort builds this incrementally via Insert/Remove; a collated
// scheme is typically constructed once from an already-ordered source via
// NewCollated and queried through SearchFirst/SearchLast.
type Sorted struct {
	variant Variant
	ordered []int64
	values  []types.TObject
	byRow   map[int64]types.TObject
	uidList bool // RECORD_UID: whether a reverse rid lookup is maintained
}

// NewInsertSort builds an empty insert-sort scheme.
func NewInsertSort() *Sorted {
	return &Sorted{variant: VariantInsertSort, byRow: map[int64]types.TObject{}, uidList: true}
}

// NewCollated builds a collated scheme already populated from rows sorted
// ascending by value (e.g. loaded from a persisted index-set list paired
// with cached values).
func NewCollated(rows []int64, values []types.TObject) (*Sorted, error) {
	if len(rows) != len(values) {
		return nil, fmt.Errorf("scheme: collated rows/values length mismatch: %d vs %d", len(rows), len(values))
	}
	byRow := make(map[int64]types.TObject, len(rows))
	for i, r := range rows {
		byRow[r] = values[i]
	}
	return &Sorted{
		variant: VariantCollated,
		ordered: append([]int64(nil), rows...),
		values:  append([]types.TObject(nil), values...),
		byRow:   byRow,
		uidList: true,
	}, nil
}

func (s *Sorted) lowerBound(v types.TObject) int {
	return sort.Search(len(s.values), func(i int) bool {
		c := s.values[i].Compare(v)
		return c != types.Incomparable && c >= 0
	})
}

func (s *Sorted) upperBound(v types.TObject) int {
	return sort.Search(len(s.values), func(i int) bool {
		c := s.values[i].Compare(v)
		return c != types.Incomparable && c > 0
	})
}

// Insert places row in collation order, after any existing rows with an
// equal value (so ties retain insertion order).
func (s *Sorted) Insert(row int64, value types.TObject) error {
	if _, exists := s.byRow[row]; exists {
		return fmt.Errorf("scheme: row %d already indexed", row)
	}
	idx := s.upperBound(value)
	s.ordered = append(s.ordered, 0)
	copy(s.ordered[idx+1:], s.ordered[idx:])
	s.ordered[idx] = row
	s.values = append(s.values, types.Null)
	copy(s.values[idx+1:], s.values[idx:])
	s.values[idx] = value
	s.byRow[row] = value
	return nil
}

// Remove deletes row from the scheme.
func (s *Sorted) Remove(row int64) error {
	v, ok := s.byRow[row]
	if !ok {
		return fmt.Errorf("scheme: row %d not indexed", row)
	}
	lo, hi := s.lowerBound(v), s.upperBound(v)
	for i := lo; i < hi; i++ {
		if s.ordered[i] == row {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
			s.values = append(s.values[:i], s.values[i+1:]...)
			delete(s.byRow, row)
			return nil
		}
	}
	return fmt.Errorf("scheme: row %d not found in its value bucket", row)
}

// SearchFirst returns the index of the first row equal to v, or -1.
func (s *Sorted) SearchFirst(v types.TObject) int {
	i := s.lowerBound(v)
	if i < len(s.values) && s.values[i].Compare(v) == 0 {
		return i
	}
	return -1
}

// SearchLast returns the index of the last row equal to v, or -1.
func (s *Sorted) SearchLast(v types.TObject) int {
	i := s.upperBound(v) - 1
	if i >= 0 && s.values[i].Compare(v) == 0 {
		return i
	}
	return -1
}

func (s *Sorted) slice(lo, hi int) []int64 {
	if lo < 0 {
		lo = 0
	}
	if hi > len(s.ordered) {
		hi = len(s.ordered)
	}
	if lo >= hi {
		return []int64{}
	}
	out := make([]int64, hi-lo)
	copy(out, s.ordered[lo:hi])
	return out
}

func (s *Sorted) SelectAll() ([]int64, error) { return s.slice(0, len(s.ordered)), nil }

func (s *Sorted) SelectAllNonNull() ([]int64, error) {
	return s.slice(s.upperBound(types.Null), len(s.ordered)), nil
}

func (s *Sorted) SelectFirst() ([]int64, error) {
	if len(s.values) == 0 {
		return []int64{}, nil
	}
	return s.SelectEqual(s.values[0])
}

func (s *Sorted) SelectNotFirst() ([]int64, error) {
	if len(s.values) == 0 {
		return []int64{}, nil
	}
	return s.slice(s.upperBound(s.values[0]), len(s.ordered)), nil
}

func (s *Sorted) SelectLast() ([]int64, error) {
	if len(s.values) == 0 {
		return []int64{}, nil
	}
	return s.SelectEqual(s.values[len(s.values)-1])
}

func (s *Sorted) SelectNotLast() ([]int64, error) {
	if len(s.values) == 0 {
		return []int64{}, nil
	}
	return s.slice(0, s.lowerBound(s.values[len(s.values)-1])), nil
}

func (s *Sorted) SelectEqual(v types.TObject) ([]int64, error) {
	return s.slice(s.lowerBound(v), s.upperBound(v)), nil
}

func (s *Sorted) SelectNotEqual(v types.TObject) ([]int64, error) {
	out := s.slice(0, s.lowerBound(v))
	out = append(out, s.slice(s.upperBound(v), len(s.ordered))...)
	return out, nil
}

func (s *Sorted) SelectGreater(v types.TObject) ([]int64, error) {
	return s.slice(s.upperBound(v), len(s.ordered)), nil
}

func (s *Sorted) SelectLess(v types.TObject) ([]int64, error) {
	return s.slice(0, s.lowerBound(v)), nil
}

func (s *Sorted) SelectGreaterOrEqual(v types.TObject) ([]int64, error) {
	return s.slice(s.lowerBound(v), len(s.ordered)), nil
}

func (s *Sorted) SelectLessOrEqual(v types.TObject) ([]int64, error) {
	return s.slice(0, s.upperBound(v)), nil
}

// SelectBetween is inclusive of v1, exclusive of v2.
func (s *Sorted) SelectBetween(v1, v2 types.TObject) ([]int64, error) {
	return s.slice(s.lowerBound(v1), s.lowerBound(v2)), nil
}

func (s *Sorted) boundsFor(r rangeset.SelectableRange) (int, int) {
	lo := 0
	if r.StartValue != nil {
		if r.StartFlag == rangeset.StartAtValue {
			lo = s.lowerBound(*r.StartValue)
		} else {
			lo = s.upperBound(*r.StartValue)
		}
	}
	hi := len(s.ordered)
	if r.EndValue != nil {
		if r.EndFlag == rangeset.EndAtValue {
			hi = s.upperBound(*r.EndValue)
		} else {
			hi = s.lowerBound(*r.EndValue)
		}
	}
	return lo, hi
}

func (s *Sorted) SelectRange(r rangeset.SelectableRange) ([]int64, error) {
	lo, hi := s.boundsFor(r)
	return s.slice(lo, hi), nil
}

// SelectRanges concatenates each (disjoint, ascending) range's rows; the
// ranges are assumed sorted and non-overlapping, as SelectableRangeSet
// guarantees, so the concatenation is itself ascending.
func (s *Sorted) SelectRanges(rs []rangeset.SelectableRange) ([]int64, error) {
	var out []int64
	for _, r := range rs {
		lo, hi := s.boundsFor(r)
		out = append(out, s.slice(lo, hi)...)
	}
	if out == nil {
		out = []int64{}
	}
	return out, nil
}

// Copy produces a new scheme over the same rows; when immutable the
// backing slices are shared by reference with the source (spec §4.E).
func (s *Sorted) Copy(immutable bool) Scheme {
	if immutable {
		byRow := make(map[int64]types.TObject, len(s.byRow))
		for k, v := range s.byRow {
			byRow[k] = v
		}
		return &Sorted{variant: s.variant, ordered: s.ordered, values: s.values, byRow: byRow, uidList: s.uidList}
	}
	return &Sorted{
		variant: s.variant,
		ordered: append([]int64(nil), s.ordered...),
		values:  append([]types.TObject(nil), s.values...),
		byRow:   copyByRow(s.byRow),
		uidList: s.uidList,
	}
}

func copyByRow(m map[int64]types.TObject) map[int64]types.TObject {
	out := make(map[int64]types.TObject, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// InternalOrderIndexSet reorders rowSet by this scheme's collation. Below
// materializeThreshold entries the cached values are used directly;
// above it the cache is still consulted per comparison rather than
// snapshotted up front, matching the spec's "compare via callback" path
// for large row sets (§4.E).
func (s *Sorted) InternalOrderIndexSet(rowSet []int64) ([]int64, error) {
	out := append([]int64(nil), rowSet...)
	if len(out) <= materializeThreshold {
		type pair struct {
			row int64
			v   types.TObject
		}
		pairs := make([]pair, len(out))
		for i, r := range out {
			v, ok := s.byRow[r]
			if !ok {
				return nil, fmt.Errorf("scheme: row %d not indexed", r)
			}
			pairs[i] = pair{row: r, v: v}
		}
		sort.SliceStable(pairs, func(i, j int) bool {
			c := pairs[i].v.Compare(pairs[j].v)
			return c != types.Incomparable && c < 0
		})
		for i, p := range pairs {
			out[i] = p.row
		}
		return out, nil
	}
	var lookupErr error
	sort.SliceStable(out, func(i, j int) bool {
		vi, ok := s.byRow[out[i]]
		if !ok {
			lookupErr = fmt.Errorf("scheme: row %d not indexed", out[i])
			return false
		}
		vj, ok := s.byRow[out[j]]
		if !ok {
			lookupErr = fmt.Errorf("scheme: row %d not indexed", out[j])
			return false
		}
		c := vi.Compare(vj)
		return c != types.Incomparable && c < 0
	})
	return out, lookupErr
}
