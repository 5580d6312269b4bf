package table

import (
	"fmt"

	"ponydb/internal/scheme"
	"ponydb/internal/types"
)

// Outer wraps an inner expression and a count of additional null-padded
// rows prepended ahead of it (spec §4.G): rows below padCount return
// the shared types.Null (not a null tagged with the column's kind) for
// every column; rows at or above it dispatch to the
// inner expression at row-padCount. This models the unmatched side of an
// outer join as a fixed block of null rows rather than per-row flags.
type Outer struct {
	inner    Expression
	padCount int64
}

// NewOuter builds an Outer view over inner with padCount leading null rows.
func NewOuter(inner Expression, padCount int64) *Outer {
	return &Outer{inner: inner, padCount: padCount}
}

func (o *Outer) ColumnCount() int { return o.inner.ColumnCount() }

func (o *Outer) RowCount() (int64, error) {
	n, err := o.inner.RowCount()
	if err != nil {
		return 0, err
	}
	return o.padCount + n, nil
}

func (o *Outer) FindFieldName(v Variable) (int, bool) { return o.inner.FindFieldName(v) }

func (o *Outer) ResolvedVariable(col int) Variable { return o.inner.ResolvedVariable(col) }

func (o *Outer) DataTableDef() *types.TableDef { return o.inner.DataTableDef() }

func (o *Outer) CellContents(col int, row int64) (types.TObject, error) {
	if row < o.padCount {
		return types.Null, nil
	}
	return o.inner.CellContents(col, row-o.padCount)
}

func (o *Outer) RowEnumeration() ([]int64, error) {
	n, err := o.RowCount()
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out, nil
}

func (o *Outer) SelectableSchemeFor(_, _ int, _ Expression) (scheme.Scheme, error) {
	return nil, fmt.Errorf("table: outer expressions have no pushdown-capable scheme (null-padded rows break collation order)")
}

func (o *Outer) ToRowTableDomain(col int, rowSet []int64, ancestor Expression) ([]int64, error) {
	var innerRows []int64
	for _, r := range rowSet {
		if r >= o.padCount {
			innerRows = append(innerRows, r-o.padCount)
		}
	}
	if len(innerRows) == 0 {
		return nil, nil
	}
	return o.inner.ToRowTableDomain(col, innerRows, ancestor)
}

func (o *Outer) ResolveToRawTable(info *RawTableInformation) error {
	return o.inner.ResolveToRawTable(info)
}

func (o *Outer) LockRoot(key string) error   { return o.inner.LockRoot(key) }
func (o *Outer) UnlockRoot(key string) error { return o.inner.UnlockRoot(key) }
func (o *Outer) HasRootsLocked() bool        { return o.inner.HasRootsLocked() }
