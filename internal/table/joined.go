package table

import (
	"fmt"

	"ponydb/internal/scheme"
	"ponydb/internal/types"
)

// Joined composes N parent expressions column-wise (spec §4.G). Column i
// of the joined row maps to parents[columnTable[i]].columnFilter[i]; the
// joined row index translates to each parent's row index via rowMaps,
// which the caller computes and passes to NewJoined; they are not
// recomputed lazily.
type Joined struct {
	parents      []Expression
	columnTable  []int
	columnFilter []int
	rowMaps      [][]int64 // rowMaps[p][joinedRow] -> parents[p]'s row index
}

// NewJoined builds a Joined expression. len(columnTable) == len(columnFilter)
// is the exposed column count; every entry in rowMaps must have the same
// length (the joined row count) and len(rowMaps) == len(parents).
func NewJoined(parents []Expression, columnTable, columnFilter []int, rowMaps [][]int64) (*Joined, error) {
	if len(columnTable) != len(columnFilter) {
		return nil, fmt.Errorf("table: joined column_table/column_filter length mismatch")
	}
	if len(rowMaps) != len(parents) {
		return nil, fmt.Errorf("table: joined row map count %d != parent count %d", len(rowMaps), len(parents))
	}
	var n int
	if len(rowMaps) > 0 {
		n = len(rowMaps[0])
	}
	for i, m := range rowMaps {
		if len(m) != n {
			return nil, fmt.Errorf("table: joined row map %d length %d != %d", i, len(m), n)
		}
	}
	return &Joined{parents: parents, columnTable: columnTable, columnFilter: columnFilter, rowMaps: rowMaps}, nil
}

func (j *Joined) ColumnCount() int { return len(j.columnTable) }

func (j *Joined) RowCount() (int64, error) {
	if len(j.rowMaps) == 0 {
		return 0, nil
	}
	return int64(len(j.rowMaps[0])), nil
}

func (j *Joined) parentColumn(col int) (Expression, int) {
	p := j.columnTable[col]
	return j.parents[p], j.columnFilter[col]
}

func (j *Joined) FindFieldName(v Variable) (int, bool) {
	for i := range j.columnTable {
		parent, pc := j.parentColumn(i)
		if cv := parent.ResolvedVariable(pc); cv.Column == v.Column && (v.Table == "" || v.Table == cv.Table) {
			return i, true
		}
	}
	return 0, false
}

func (j *Joined) ResolvedVariable(col int) Variable {
	parent, pc := j.parentColumn(col)
	return parent.ResolvedVariable(pc)
}

func (j *Joined) DataTableDef() *types.TableDef {
	out := &types.TableDef{Name: "joined"}
	for i := range j.columnTable {
		parent, pc := j.parentColumn(i)
		_ = out.AddColumn(parent.DataTableDef().Columns[pc])
	}
	return out
}

func (j *Joined) CellContents(col int, row int64) (types.TObject, error) {
	p := j.columnTable[col]
	if row < 0 || int(row) >= len(j.rowMaps[p]) {
		return types.TObject{}, fmt.Errorf("table: joined row %d out of range", row)
	}
	parentRow := j.rowMaps[p][row]
	parent, pc := j.parentColumn(col)
	return parent.CellContents(pc, parentRow)
}

func (j *Joined) RowEnumeration() ([]int64, error) {
	n, _ := j.RowCount()
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out, nil
}

func (j *Joined) SelectableSchemeFor(col, originalCol int, ancestor Expression) (scheme.Scheme, error) {
	parent, pc := j.parentColumn(col)
	return parent.SelectableSchemeFor(pc, originalCol, ancestor)
}

// ToRowTableDomain translates joined row indices into the owning parent's
// row domain, then lets that parent continue the translation toward
// ancestor.
func (j *Joined) ToRowTableDomain(col int, rowSet []int64, ancestor Expression) ([]int64, error) {
	p := j.columnTable[col]
	parentRows := make([]int64, len(rowSet))
	for i, r := range rowSet {
		if r < 0 || int(r) >= len(j.rowMaps[p]) {
			return nil, fmt.Errorf("table: joined row %d out of range", r)
		}
		parentRows[i] = j.rowMaps[p][r]
	}
	parent, pc := j.parentColumn(col)
	return parent.ToRowTableDomain(pc, parentRows, ancestor)
}

// ResolveToRawTable recurses into every parent. This over-approximates a
// parent's contribution to every row it has (via its own ResolveToRawTable)
// rather than just the subset reachable through rowMaps, which is
// conservative but simpler than computing the precise reachable-row
// projection for every exotic parent shape; it is exact for the common
// case where every parent already carries exactly the row set this join
// was built over.
func (j *Joined) ResolveToRawTable(info *RawTableInformation) error {
	for _, parent := range j.parents {
		if err := parent.ResolveToRawTable(info); err != nil {
			return err
		}
	}
	return nil
}

func (j *Joined) LockRoot(key string) error {
	for _, parent := range j.parents {
		if err := parent.LockRoot(key); err != nil {
			return err
		}
	}
	return nil
}

func (j *Joined) UnlockRoot(key string) error {
	for _, parent := range j.parents {
		if err := parent.UnlockRoot(key); err != nil {
			return err
		}
	}
	return nil
}

func (j *Joined) HasRootsLocked() bool {
	for _, parent := range j.parents {
		if parent.HasRootsLocked() {
			return true
		}
	}
	return false
}
