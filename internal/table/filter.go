package table

import (
	"fmt"

	"ponydb/internal/scheme"
	"ponydb/internal/types"
)

// Filter is a 1:1 passthrough over a child expression, optionally masking
// columns and/or renaming the exposed table (spec §4.G). Reference is the
// same shape with a distinct exposed name so the same underlying table can
// appear twice in one query (self-join).
type Filter struct {
	child        Expression
	tableName    string
	columnMap    []int // exposed column i -> child column columnMap[i]
	selfDistinct bool  // true for a self-join alias: unqualified refs must not resolve here
}

// NewFilter exposes a subset (or all, if cols is nil) of child's columns,
// optionally under a new table name.
func NewFilter(child Expression, tableName string, cols []int) *Filter {
	if cols == nil {
		cols = make([]int, child.ColumnCount())
		for i := range cols {
			cols[i] = i
		}
	}
	if tableName == "" {
		tableName = child.DataTableDef().Name
	}
	return &Filter{child: child, tableName: tableName, columnMap: cols}
}

// NewReference is a Filter whose exposed name is always distinct from the
// child's, so FindFieldName can disambiguate a self-join (spec §4.G:
// "like filter but with a distinct table name").
func NewReference(child Expression, tableName string, cols []int) *Filter {
	f := NewFilter(child, tableName, cols)
	f.selfDistinct = true
	return f
}

// resolvesUnqualified reports whether an unqualified column reference
// (v.Table == "") may resolve through this filter. A self-join alias
// refuses unqualified references since the same column name is also
// reachable through the other side of the join; callers must qualify
// with the alias's table name.
func (f *Filter) resolvesUnqualified() bool { return !f.selfDistinct }

func (f *Filter) ColumnCount() int { return len(f.columnMap) }

func (f *Filter) RowCount() (int64, error) { return f.child.RowCount() }

func (f *Filter) FindFieldName(v Variable) (int, bool) {
	if v.Table != "" {
		if v.Table != f.tableName {
			return 0, false
		}
	} else if !f.resolvesUnqualified() {
		return 0, false
	}
	for i, c := range f.columnMap {
		cv := f.child.ResolvedVariable(c)
		if cv.Column == v.Column {
			return i, true
		}
	}
	return 0, false
}

func (f *Filter) ResolvedVariable(col int) Variable {
	cv := f.child.ResolvedVariable(f.columnMap[col])
	return Variable{Table: f.tableName, Column: cv.Column}
}

func (f *Filter) DataTableDef() *types.TableDef {
	src := f.child.DataTableDef()
	out := &types.TableDef{Schema: src.Schema, Name: f.tableName}
	for _, c := range f.columnMap {
		_ = out.AddColumn(src.Columns[c])
	}
	return out
}

func (f *Filter) CellContents(col int, row int64) (types.TObject, error) {
	if col < 0 || col >= len(f.columnMap) {
		return types.TObject{}, fmt.Errorf("table: filter column %d out of range", col)
	}
	return f.child.CellContents(f.columnMap[col], row)
}

func (f *Filter) RowEnumeration() ([]int64, error) { return f.child.RowEnumeration() }

func (f *Filter) SelectableSchemeFor(col, originalCol int, ancestor Expression) (scheme.Scheme, error) {
	return f.child.SelectableSchemeFor(f.columnMap[col], originalCol, ancestor)
}

func (f *Filter) ToRowTableDomain(col int, rowSet []int64, ancestor Expression) ([]int64, error) {
	return f.child.ToRowTableDomain(f.columnMap[col], rowSet, ancestor)
}

func (f *Filter) ResolveToRawTable(info *RawTableInformation) error {
	return f.child.ResolveToRawTable(info)
}

func (f *Filter) LockRoot(key string) error   { return f.child.LockRoot(key) }
func (f *Filter) UnlockRoot(key string) error { return f.child.UnlockRoot(key) }
func (f *Filter) HasRootsLocked() bool        { return f.child.HasRootsLocked() }
