package table

import (
	"fmt"

	"ponydb/internal/scheme"
	"ponydb/internal/types"
)

// Temporary is an in-memory row vector (spec §4.G) — a scratch result set
// with no backing store and no root table to lock, used for intermediate
// planner results (e.g. materialized sort or grouping output).
type Temporary struct {
	shape *types.TableDef
	rows  [][]types.TObject
}

// NewTemporary builds an empty Temporary with the given column shape.
func NewTemporary(shape *types.TableDef) *Temporary {
	return &Temporary{shape: shape}
}

// Append adds one row, returning its row index.
func (t *Temporary) Append(values []types.TObject) (int64, error) {
	if len(values) != len(t.shape.Columns) {
		return 0, fmt.Errorf("table: temporary row has %d values, want %d", len(values), len(t.shape.Columns))
	}
	t.rows = append(t.rows, append([]types.TObject(nil), values...))
	return int64(len(t.rows) - 1), nil
}

func (t *Temporary) ColumnCount() int { return len(t.shape.Columns) }

func (t *Temporary) RowCount() (int64, error) { return int64(len(t.rows)), nil }

func (t *Temporary) FindFieldName(v Variable) (int, bool) {
	if v.Table != "" && v.Table != t.shape.Name {
		return 0, false
	}
	idx := t.shape.ColumnIndex(v.Column)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

func (t *Temporary) ResolvedVariable(col int) Variable {
	return Variable{Table: t.shape.Name, Column: t.shape.Columns[col].Name}
}

func (t *Temporary) DataTableDef() *types.TableDef { return t.shape }

func (t *Temporary) CellContents(col int, row int64) (types.TObject, error) {
	if row < 0 || int(row) >= len(t.rows) {
		return types.TObject{}, fmt.Errorf("table: temporary row %d out of range", row)
	}
	if col < 0 || col >= len(t.rows[row]) {
		return types.TObject{}, fmt.Errorf("table: temporary column %d out of range", col)
	}
	return t.rows[row][col], nil
}

func (t *Temporary) RowEnumeration() ([]int64, error) {
	out := make([]int64, len(t.rows))
	for i := range out {
		out[i] = int64(i)
	}
	return out, nil
}

func (t *Temporary) SelectableSchemeFor(_, _ int, _ Expression) (scheme.Scheme, error) {
	return nil, fmt.Errorf("table: temporary expressions carry no persistent selectable scheme")
}

func (t *Temporary) ToRowTableDomain(_ int, rowSet []int64, _ Expression) ([]int64, error) {
	return rowSet, nil
}

func (t *Temporary) ResolveToRawTable(_ *RawTableInformation) error { return nil }

func (t *Temporary) LockRoot(string) error   { return nil }
func (t *Temporary) UnlockRoot(string) error { return nil }
func (t *Temporary) HasRootsLocked() bool    { return false }
