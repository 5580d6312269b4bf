package scheme

import (
	"ponydb/internal/rangeset"
	"ponydb/internal/types"
)

// Scheme is the shared external contract of every selectable-scheme
// variant (spec §4.E). All Select* methods return a stably sorted
// ascending list of row indices; nulls sort before any non-null value.
type Scheme interface {
	SelectAll() ([]int64, error)
	SelectAllNonNull() ([]int64, error)
	SelectFirst() ([]int64, error)
	SelectNotFirst() ([]int64, error)
	SelectLast() ([]int64, error)
	SelectNotLast() ([]int64, error)
	SelectEqual(v types.TObject) ([]int64, error)
	SelectNotEqual(v types.TObject) ([]int64, error)
	SelectGreater(v types.TObject) ([]int64, error)
	SelectLess(v types.TObject) ([]int64, error)
	SelectGreaterOrEqual(v types.TObject) ([]int64, error)
	SelectLessOrEqual(v types.TObject) ([]int64, error)
	SelectBetween(v1, v2 types.TObject) ([]int64, error)
	SelectRange(r rangeset.SelectableRange) ([]int64, error)
	SelectRanges(rs []rangeset.SelectableRange) ([]int64, error)

	// Copy produces a new scheme over the same rows; when immutable the
	// underlying storage may be shared by reference with the source.
	Copy(immutable bool) Scheme

	// InternalOrderIndexSet returns rowSet reordered by this scheme's
	// collation.
	InternalOrderIndexSet(rowSet []int64) ([]int64, error)
}

// Scheme name constants: the value a column's types.ColumnDef.SchemeName
// carries to select which variant backs it (spec §4.E's closed tagged
// sum). An empty SchemeName means NameInsertSort.
const (
	NameInsertSort = "INSERT_SORT"
	NameCollated   = "COLLATED"
	NameBlindScan  = "BLIND_SCAN"
)

// TableSource is the minimal table callback BlindScan needs: the current
// row set in a stable iteration (insertion) order, and the indexed
// column's value for a given row.
type TableSource interface {
	Rows() ([]int64, error)
	CellAt(row int64) (types.TObject, error)
}

// materializeThreshold is the row-set size spec §4.E.internalOrderIndexSet
// names as the point past which materializing values stops being a
// worthwhile optimization; BlindScan always compares via the callback
// (it has no cache to materialize from) regardless of size.
const materializeThreshold = 250_000
