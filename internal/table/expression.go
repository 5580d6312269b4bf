package table

import (
	"ponydb/internal/master"
	"ponydb/internal/scheme"
	"ponydb/internal/types"
)

// Variable names one column of a table expression by its exposed table and
// column name (spec §4.G: findFieldName(Variable)).
type Variable struct {
	Table  string
	Column string
}

// Expression is the shared contract every table expression variant
// implements (spec §4.G). Composition is by owning a reference to a child
// Expression; there is no polymorphic mutation (spec §9: "no polymorphic
// mutation").
type Expression interface {
	ColumnCount() int
	RowCount() (int64, error)
	FindFieldName(v Variable) (col int, ok bool)
	ResolvedVariable(col int) Variable
	DataTableDef() *types.TableDef
	CellContents(col int, row int64) (types.TObject, error)
	RowEnumeration() ([]int64, error)

	// SelectableSchemeFor returns the selectable scheme for col as seen
	// through this expression; ancestor is the expression the resulting
	// scheme's row indices must be expressed in terms of (spec §4.G).
	SelectableSchemeFor(col int, originalCol int, ancestor Expression) (scheme.Scheme, error)

	// ToRowTableDomain translates rowSet (expressed in this expression's
	// row numbering) into ancestor's row numbering.
	ToRowTableDomain(col int, rowSet []int64, ancestor Expression) ([]int64, error)

	// ResolveToRawTable appends this expression's (root, row-set) pairs to
	// info, recursing into children.
	ResolveToRawTable(info *RawTableInformation) error

	LockRoot(key string) error
	UnlockRoot(key string) error
	HasRootsLocked() bool
}

// RawTableEntry is one base table and the row indices of it visible
// through some expression tree (spec §4.G: "a list of (RootTable,
// row-set) pairs").
type RawTableEntry struct {
	Root *Base
	Rows []int64
}

// RawTableInformation is the flattened view resolveToRawTable builds, used
// by Composite for UNION/INTERSECT/EXCEPT.
type RawTableInformation struct {
	Entries []RawTableEntry
}

func (info *RawTableInformation) add(root *Base, rows []int64) {
	for i, e := range info.Entries {
		if e.Root == root {
			info.Entries[i].Rows = append(info.Entries[i].Rows, rows...)
			return
		}
	}
	info.Entries = append(info.Entries, RawTableEntry{Root: root, Rows: append([]int64(nil), rows...)})
}

// Base wraps one master.Table as a leaf Expression — spec §4.G's "RootTable".
type Base struct {
	tbl       *master.Table
	lockCount int
}

// NewBase wraps tbl as a root table expression.
func NewBase(tbl *master.Table) *Base { return &Base{tbl: tbl} }

// Unwrap returns the underlying master table.
func (b *Base) Unwrap() *master.Table { return b.tbl }

func (b *Base) ColumnCount() int { return len(b.tbl.Def.Columns) }

func (b *Base) RowCount() (int64, error) { return int64(len(b.tbl.MasterIndex())), nil }

func (b *Base) FindFieldName(v Variable) (int, bool) {
	if v.Table != "" && v.Table != b.tbl.Def.Name {
		return 0, false
	}
	idx := b.tbl.Def.ColumnIndex(v.Column)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

func (b *Base) ResolvedVariable(col int) Variable {
	return Variable{Table: b.tbl.Def.Name, Column: b.tbl.Def.Columns[col].Name}
}

func (b *Base) DataTableDef() *types.TableDef { return b.tbl.Def }

func (b *Base) CellContents(col int, row int64) (types.TObject, error) {
	return b.tbl.GetCellContents(col, row)
}

func (b *Base) RowEnumeration() ([]int64, error) { return b.tbl.MasterIndex(), nil }

func (b *Base) SelectableSchemeFor(col, _ int, ancestor Expression) (scheme.Scheme, error) {
	if ancestor != nil && ancestor != Expression(b) {
		// A base table's scheme is already expressed in its own row
		// numbering; translating into some ancestor's numbering is only
		// meaningful above a Base, never at a Base itself.
		return b.tbl.SchemeFor(col), nil
	}
	return b.tbl.SchemeFor(col), nil
}

func (b *Base) ToRowTableDomain(_ int, rowSet []int64, _ Expression) ([]int64, error) {
	return rowSet, nil
}

func (b *Base) ResolveToRawTable(info *RawTableInformation) error {
	rows, err := b.RowEnumeration()
	if err != nil {
		return err
	}
	info.add(b, rows)
	return nil
}

// LockRoot increments this base table's root-lock counter; cells remain
// readable through any expression resolving to this root while the
// counter is positive, even after the producing transaction commits
// (spec §4.G).
func (b *Base) LockRoot(_ string) error {
	b.lockCount++
	return nil
}

func (b *Base) UnlockRoot(_ string) error {
	if b.lockCount > 0 {
		b.lockCount--
	}
	return nil
}

func (b *Base) HasRootsLocked() bool { return b.lockCount > 0 }
