package types

import "fmt"

// ColumnDef is (name, type, not-null flag, default-expression text,
// index-scheme name, ordinal position) per §3. Adapted from the teacher's
// schema.Column, stripped of every dialect-specific option group (engine,
// charset, collation storage clauses, …) since this core has no DDL
// generator; only the shape needed to serialize and index a cell remains.
type ColumnDef struct {
	Name        string
	Kind        Kind
	NotNull     bool
	DefaultExpr string
	SchemeName  string
	Ordinal     int

	// Declared distinguishes a KindNumeric column's declared SQL type
	// (NUMERIC/DECIMAL, BIT, REAL) for Numeric.Widen (§4.K); meaningless
	// for any other Kind.
	Declared Declared
}

// TableDef is (schema, name, ordered column definitions, immutable flag)
// per §3. Once Immutable is true no further mutation is permitted;
// MarkImmutable enforces that one-way transition.
type TableDef struct {
	Schema    string
	Name      string
	Columns   []ColumnDef
	immutable bool
}

// MarkImmutable flips the table definition to immutable. Idempotent.
func (t *TableDef) MarkImmutable() { t.immutable = true }

// Immutable reports whether further mutation is forbidden.
func (t *TableDef) Immutable() bool { return t.immutable }

// mutationErr is returned by every mutating method once Immutable is true;
// per the teacher's error-handling idiom (§7 "Programmer misuse" is fatal,
// not a handled error) the caller is expected to treat this as a bug.
func (t *TableDef) mutationErr(verb string) error {
	return fmt.Errorf("types: cannot %s on immutable table %q", verb, t.Name)
}

// AddColumn appends a column definition, assigning it the next ordinal.
func (t *TableDef) AddColumn(c ColumnDef) error {
	if t.immutable {
		return t.mutationErr("add column")
	}
	c.Ordinal = len(t.Columns)
	t.Columns = append(t.Columns, c)
	return nil
}

// ColumnIndex returns the ordinal of the named column, or -1.
func (t *TableDef) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// QualifiedName returns "schema.name", or just "name" when Schema is empty.
func (t *TableDef) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// RowData is a column-indexed array of values bound to a TableDef (§3).
type RowData struct {
	Def    *TableDef
	Values []TObject
}

// NewRowData allocates a RowData with all cells set to Null.
func NewRowData(def *TableDef) *RowData {
	vals := make([]TObject, len(def.Columns))
	for i := range vals {
		vals[i] = Null
	}
	return &RowData{Def: def, Values: vals}
}

// SetValue sets the cell for the named column.
func (r *RowData) SetValue(column string, v TObject) error {
	idx := r.Def.ColumnIndex(column)
	if idx < 0 {
		return fmt.Errorf("types: no such column %q in table %q", column, r.Def.Name)
	}
	r.Values[idx] = v
	return nil
}

// CheckNotNull validates the not-null column constraints declared on Def.
func (r *RowData) CheckNotNull() error {
	for i, c := range r.Def.Columns {
		if c.NotNull && r.Values[i].IsNull() {
			return fmt.Errorf("types: column %q of table %q may not be null", c.Name, r.Def.Name)
		}
	}
	return nil
}
