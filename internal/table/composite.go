package table

import (
	"fmt"
	"sort"

	"ponydb/internal/scheme"
	"ponydb/internal/types"
)

// SetOp is one of the three set operations a Composite expression
// implements (spec §4.G).
type SetOp int

const (
	Union SetOp = iota
	Intersect
	Except
)

type rowOwner struct {
	source int
	row    int64
}

// Composite holds the output column shape and, per composite row, which
// source expression and row it is drawn from — the "master table (column
// shape) and per-source row-index lists" of spec §4.G. getCellContents
// walks owners to find the source.
type Composite struct {
	shape   *types.TableDef
	sources []Expression
	owners  []rowOwner
}

// BuildSetOperation evaluates op over sources' full row sets by comparing
// row tuples lexicographically (spec §4.G: "Duplicate elimination via
// sort-and-unique"), then returns the resulting Composite.
func BuildSetOperation(op SetOp, shape *types.TableDef, sources []Expression) (*Composite, error) {
	if len(sources) == 0 {
		return &Composite{shape: shape}, nil
	}
	perSource := make([][]rowOwner, len(sources))
	perTuple := make([][][]types.TObject, len(sources))
	for s, src := range sources {
		rows, err := src.RowEnumeration()
		if err != nil {
			return nil, fmt.Errorf("table: composite enumerate source %d: %w", s, err)
		}
		owners := make([]rowOwner, len(rows))
		tuples := make([][]types.TObject, len(rows))
		for i, r := range rows {
			tuple, err := readTuple(src, shape, r)
			if err != nil {
				return nil, err
			}
			owners[i] = rowOwner{source: s, row: r}
			tuples[i] = tuple
		}
		perSource[s] = owners
		perTuple[s] = tuples
	}

	var owners []rowOwner
	switch op {
	case Union:
		var tuples [][]types.TObject
		for s := range sources {
			owners = append(owners, perSource[s]...)
			tuples = append(tuples, perTuple[s]...)
		}
		owners, _ = removeDuplicates(owners, tuples)
	case Intersect:
		owners, _ = intersectTuples(perSource, perTuple)
	case Except:
		owners, _ = exceptTuples(perSource, perTuple)
	default:
		return nil, fmt.Errorf("table: unknown set operation %d", op)
	}
	return &Composite{shape: shape, sources: sources, owners: owners}, nil
}

func readTuple(src Expression, shape *types.TableDef, row int64) ([]types.TObject, error) {
	tuple := make([]types.TObject, len(shape.Columns))
	for c := range tuple {
		v, err := src.CellContents(c, row)
		if err != nil {
			return nil, fmt.Errorf("table: read composite tuple col %d row %d: %w", c, row, err)
		}
		tuple[c] = v
	}
	return tuple, nil
}

func compareTuples(a, b []types.TObject) int {
	for i := range a {
		c := a[i].Compare(b[i])
		if c == types.Incomparable {
			c = 0 // incomparable cells are treated as equal for ordering purposes only
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// removeDuplicates sorts row-tuples lexicographically and eliminates
// adjacent duplicates (spec §4.G), keeping the first owner seen for each
// distinct tuple.
func removeDuplicates(owners []rowOwner, tuples [][]types.TObject) ([]rowOwner, [][]types.TObject) {
	idx := make([]int, len(tuples))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return compareTuples(tuples[idx[i]], tuples[idx[j]]) < 0 })

	var outOwners []rowOwner
	var outTuples [][]types.TObject
	for k, i := range idx {
		if k > 0 && compareTuples(tuples[idx[k-1]], tuples[i]) == 0 {
			continue
		}
		outOwners = append(outOwners, owners[i])
		outTuples = append(outTuples, tuples[i])
	}
	return outOwners, outTuples
}

func tupleSet(tuples [][]types.TObject) []int {
	idx := make([]int, len(tuples))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return compareTuples(tuples[idx[i]], tuples[idx[j]]) < 0 })
	return idx
}

func containsTuple(sortedIdx []int, tuples [][]types.TObject, target []types.TObject) bool {
	i := sort.Search(len(sortedIdx), func(i int) bool {
		return compareTuples(tuples[sortedIdx[i]], target) >= 0
	})
	return i < len(sortedIdx) && compareTuples(tuples[sortedIdx[i]], target) == 0
}

func intersectTuples(perSource [][]rowOwner, perTuple [][][]types.TObject) ([]rowOwner, [][]types.TObject) {
	if len(perTuple) == 0 {
		return nil, nil
	}
	others := make([][]int, len(perTuple)-1)
	for s := 1; s < len(perTuple); s++ {
		others[s-1] = tupleSet(perTuple[s])
	}
	var owners []rowOwner
	var tuples [][]types.TObject
	for i, t := range perTuple[0] {
		inAll := true
		for s, idx := range others {
			if !containsTuple(idx, perTuple[s+1], t) {
				inAll = false
				break
			}
		}
		if inAll {
			owners = append(owners, perSource[0][i])
			tuples = append(tuples, t)
		}
	}
	return removeDuplicates(owners, tuples)
}

func exceptTuples(perSource [][]rowOwner, perTuple [][][]types.TObject) ([]rowOwner, [][]types.TObject) {
	if len(perTuple) == 0 {
		return nil, nil
	}
	excluded := make([][]int, len(perTuple)-1)
	for s := 1; s < len(perTuple); s++ {
		excluded[s-1] = tupleSet(perTuple[s])
	}
	var owners []rowOwner
	var tuples [][]types.TObject
	for i, t := range perTuple[0] {
		anyMatch := false
		for s, idx := range excluded {
			if containsTuple(idx, perTuple[s+1], t) {
				anyMatch = true
				break
			}
		}
		if !anyMatch {
			owners = append(owners, perSource[0][i])
			tuples = append(tuples, t)
		}
	}
	return removeDuplicates(owners, tuples)
}

func (c *Composite) ColumnCount() int { return len(c.shape.Columns) }

func (c *Composite) RowCount() (int64, error) { return int64(len(c.owners)), nil }

func (c *Composite) FindFieldName(v Variable) (int, bool) {
	if v.Table != "" && v.Table != c.shape.Name {
		return 0, false
	}
	idx := c.shape.ColumnIndex(v.Column)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

func (c *Composite) ResolvedVariable(col int) Variable {
	return Variable{Table: c.shape.Name, Column: c.shape.Columns[col].Name}
}

func (c *Composite) DataTableDef() *types.TableDef { return c.shape }

func (c *Composite) CellContents(col int, row int64) (types.TObject, error) {
	if row < 0 || int(row) >= len(c.owners) {
		return types.TObject{}, fmt.Errorf("table: composite row %d out of range", row)
	}
	o := c.owners[row]
	return c.sources[o.source].CellContents(col, o.row)
}

func (c *Composite) RowEnumeration() ([]int64, error) {
	out := make([]int64, len(c.owners))
	for i := range out {
		out[i] = int64(i)
	}
	return out, nil
}

func (c *Composite) SelectableSchemeFor(_, _ int, _ Expression) (scheme.Scheme, error) {
	return nil, fmt.Errorf("table: composite expressions have no pushdown-capable scheme; sort at the planner level")
}

func (c *Composite) ToRowTableDomain(col int, rowSet []int64, ancestor Expression) ([]int64, error) {
	bySource := map[int][]int64{}
	for _, r := range rowSet {
		if int(r) >= len(c.owners) {
			return nil, fmt.Errorf("table: composite row %d out of range", r)
		}
		o := c.owners[r]
		bySource[o.source] = append(bySource[o.source], o.row)
	}
	var out []int64
	for s, rows := range bySource {
		mapped, err := c.sources[s].ToRowTableDomain(col, rows, ancestor)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped...)
	}
	return out, nil
}

func (c *Composite) ResolveToRawTable(info *RawTableInformation) error {
	for _, src := range c.sources {
		if err := src.ResolveToRawTable(info); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composite) LockRoot(key string) error {
	for _, src := range c.sources {
		if err := src.LockRoot(key); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composite) UnlockRoot(key string) error {
	for _, src := range c.sources {
		if err := src.UnlockRoot(key); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composite) HasRootsLocked() bool {
	for _, src := range c.sources {
		if src.HasRootsLocked() {
			return true
		}
	}
	return false
}
