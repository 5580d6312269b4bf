package scheme

import (
	"sort"

	"ponydb/internal/rangeset"
	"ponydb/internal/types"
)

// BlindScan is the stateless, no-memory scheme variant: every select
// streams the table and keeps rows whose cell satisfies the predicate
// (the first/last selects stream it twice: once for the extreme value,
// once to collect the matching rows). Intended for small tables or unindexed columns (spec §4.E).
type BlindScan struct {
	source TableSource
}

// NewBlindScan builds a BlindScan over source.
func NewBlindScan(source TableSource) *BlindScan {
	return &BlindScan{source: source}
}

type rowValue struct {
	row   int64
	value types.TObject
}

func (b *BlindScan) collect(keep func(types.TObject) bool) ([]rowValue, error) {
	rows, err := b.source.Rows()
	if err != nil {
		return nil, err
	}
	out := make([]rowValue, 0, len(rows))
	for _, r := range rows {
		v, err := b.source.CellAt(r)
		if err != nil {
			return nil, err
		}
		if keep(v) {
			out = append(out, rowValue{row: r, value: v})
		}
	}
	return out, nil
}

// sortedRows stable-sorts the collected pairs ascending by value in one
// sort.SliceStable call (rather than binary-inserting each match) and
// projects out the row indices.
func sortedRows(pairs []rowValue) []int64 {
	sort.SliceStable(pairs, func(i, j int) bool {
		c := pairs[i].value.Compare(pairs[j].value)
		return c != types.Incomparable && c < 0
	})
	out := make([]int64, len(pairs))
	for i, p := range pairs {
		out[i] = p.row
	}
	return out
}

func (b *BlindScan) selectPredicate(keep func(types.TObject) bool) ([]int64, error) {
	pairs, err := b.collect(keep)
	if err != nil {
		return nil, err
	}
	return sortedRows(pairs), nil
}

func (b *BlindScan) SelectAll() ([]int64, error) {
	return b.selectPredicate(func(types.TObject) bool { return true })
}

func (b *BlindScan) SelectAllNonNull() ([]int64, error) {
	return b.selectPredicate(func(v types.TObject) bool { return !v.IsNull() })
}

func (b *BlindScan) minMax() (min, max types.TObject, ok bool, err error) {
	rows, err := b.source.Rows()
	if err != nil {
		return types.Null, types.Null, false, err
	}
	first := true
	for _, r := range rows {
		v, err := b.source.CellAt(r)
		if err != nil {
			return types.Null, types.Null, false, err
		}
		if first {
			min, max, first = v, v, false
			ok = true
			continue
		}
		if c := v.Compare(min); c != types.Incomparable && c < 0 {
			min = v
		}
		if c := v.Compare(max); c != types.Incomparable && c > 0 {
			max = v
		}
	}
	return min, max, ok, nil
}

func (b *BlindScan) SelectFirst() ([]int64, error) {
	min, _, ok, err := b.minMax()
	if err != nil || !ok {
		return nil, err
	}
	return b.SelectEqual(min)
}

func (b *BlindScan) SelectNotFirst() ([]int64, error) {
	min, _, ok, err := b.minMax()
	if err != nil || !ok {
		return nil, nil
	}
	return b.selectPredicate(func(v types.TObject) bool { return v.Compare(min) != 0 })
}

func (b *BlindScan) SelectLast() ([]int64, error) {
	_, max, ok, err := b.minMax()
	if err != nil || !ok {
		return nil, err
	}
	return b.SelectEqual(max)
}

func (b *BlindScan) SelectNotLast() ([]int64, error) {
	_, max, ok, err := b.minMax()
	if err != nil || !ok {
		return nil, nil
	}
	return b.selectPredicate(func(v types.TObject) bool { return v.Compare(max) != 0 })
}

func (b *BlindScan) SelectEqual(v types.TObject) ([]int64, error) {
	return b.selectPredicate(func(c types.TObject) bool { return c.Compare(v) == 0 })
}

func (b *BlindScan) SelectNotEqual(v types.TObject) ([]int64, error) {
	return b.selectPredicate(func(c types.TObject) bool { return c.Compare(v) != 0 })
}

func (b *BlindScan) SelectGreater(v types.TObject) ([]int64, error) {
	return b.selectPredicate(func(c types.TObject) bool { r := c.Compare(v); return r != types.Incomparable && r > 0 })
}

func (b *BlindScan) SelectLess(v types.TObject) ([]int64, error) {
	return b.selectPredicate(func(c types.TObject) bool { r := c.Compare(v); return r != types.Incomparable && r < 0 })
}

func (b *BlindScan) SelectGreaterOrEqual(v types.TObject) ([]int64, error) {
	return b.selectPredicate(func(c types.TObject) bool { r := c.Compare(v); return r != types.Incomparable && r >= 0 })
}

func (b *BlindScan) SelectLessOrEqual(v types.TObject) ([]int64, error) {
	return b.selectPredicate(func(c types.TObject) bool { r := c.Compare(v); return r != types.Incomparable && r <= 0 })
}

// SelectBetween is inclusive of v1, exclusive of v2 (spec §4.E: "not the
// SQL BETWEEN semantics — callers must translate").
func (b *BlindScan) SelectBetween(v1, v2 types.TObject) ([]int64, error) {
	return b.selectPredicate(func(c types.TObject) bool {
		lo, hi := c.Compare(v1), c.Compare(v2)
		return lo != types.Incomparable && hi != types.Incomparable && lo >= 0 && hi < 0
	})
}

func (b *BlindScan) SelectRange(r rangeset.SelectableRange) ([]int64, error) {
	return b.selectPredicate(r.Contains)
}

func (b *BlindScan) SelectRanges(rs []rangeset.SelectableRange) ([]int64, error) {
	return b.selectPredicate(func(v types.TObject) bool {
		for _, r := range rs {
			if r.Contains(v) {
				return true
			}
		}
		return false
	})
}

func (b *BlindScan) Copy(immutable bool) Scheme {
	return NewBlindScan(b.source)
}

// InternalOrderIndexSet always compares via the source callback: BlindScan
// has no cached value order to materialize from (spec §4.E).
func (b *BlindScan) InternalOrderIndexSet(rowSet []int64) ([]int64, error) {
	out := append([]int64(nil), rowSet...)
	var outerErr error
	sort.SliceStable(out, func(i, j int) bool {
		if outerErr != nil {
			return false
		}
		vi, err := b.source.CellAt(out[i])
		if err != nil {
			outerErr = err
			return false
		}
		vj, err := b.source.CellAt(out[j])
		if err != nil {
			outerErr = err
			return false
		}
		c := vi.Compare(vj)
		return c != types.Incomparable && c < 0
	})
	if outerErr != nil {
		return nil, outerErr
	}
	return out, nil
}
