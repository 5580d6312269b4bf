package table

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ponydb/internal/master"
	"ponydb/internal/types"
)

func peopleDef(name string) *types.TableDef {
	def := &types.TableDef{Schema: "public", Name: name}
	_ = def.AddColumn(types.ColumnDef{Name: "id", Kind: types.KindNumeric, NotNull: true})
	_ = def.AddColumn(types.ColumnDef{Name: "name", Kind: types.KindString})
	def.MarkImmutable()
	return def
}

func newPeopleBase(t *testing.T, dir string, id int64, rows [][2]interface{}) *Base {
	t.Helper()
	def := peopleDef("people")
	tbl, err := master.Create(dir, id, def, 512, 256)
	require.NoError(t, err)
	var inserted []int64
	for _, r := range rows {
		row, err := tbl.AddRow([]types.TObject{types.Int(int64(r[0].(int))), types.PlainString(r[1].(string))})
		require.NoError(t, err)
		inserted = append(inserted, row)
	}
	require.NoError(t, tbl.MergeJournalChanges(master.ChangeSet{Inserted: inserted}))
	return NewBase(tbl)
}

func TestBaseColumnAndRowContract(t *testing.T) {
	dir := t.TempDir()
	base := newPeopleBase(t, dir, 1, [][2]interface{}{{1, "alice"}, {2, "bob"}})

	require.Equal(t, 2, base.ColumnCount())
	rc, err := base.RowCount()
	require.NoError(t, err)
	require.Equal(t, int64(2), rc)

	col, ok := base.FindFieldName(Variable{Table: "people", Column: "name"})
	require.True(t, ok)
	require.Equal(t, 1, col)

	v, err := base.CellContents(1, 0)
	require.NoError(t, err)
	require.Equal(t, "alice", v.Text().Value)

	require.False(t, base.HasRootsLocked())
	require.NoError(t, base.LockRoot("k"))
	require.True(t, base.HasRootsLocked())
	require.NoError(t, base.UnlockRoot("k"))
	require.False(t, base.HasRootsLocked())
}

func TestFilterMasksAndRenamesColumns(t *testing.T) {
	dir := t.TempDir()
	base := newPeopleBase(t, dir, 1, [][2]interface{}{{1, "alice"}})

	f := NewFilter(base, "p", []int{1})
	require.Equal(t, 1, f.ColumnCount())

	col, ok := f.FindFieldName(Variable{Table: "p", Column: "name"})
	require.True(t, ok)
	require.Equal(t, 0, col)

	_, ok = f.FindFieldName(Variable{Table: "wrong", Column: "name"})
	require.False(t, ok)

	v, err := f.CellContents(0, 0)
	require.NoError(t, err)
	require.Equal(t, "alice", v.Text().Value)
}

func TestReferenceExposesDistinctTableName(t *testing.T) {
	dir := t.TempDir()
	base := newPeopleBase(t, dir, 1, [][2]interface{}{{1, "alice"}})

	left := NewReference(base, "p1", nil)
	right := NewReference(base, "p2", nil)

	_, ok := left.FindFieldName(Variable{Table: "p2", Column: "id"})
	require.False(t, ok)
	_, ok = right.FindFieldName(Variable{Table: "p2", Column: "id"})
	require.True(t, ok)
}

func TestReferenceRejectsUnqualifiedFieldName(t *testing.T) {
	dir := t.TempDir()
	base := newPeopleBase(t, dir, 1, [][2]interface{}{{1, "alice"}})

	ref := NewReference(base, "p1", nil)
	_, ok := ref.FindFieldName(Variable{Column: "id"})
	require.False(t, ok, "a self-join alias must not resolve an unqualified reference")

	plain := NewFilter(base, "", nil)
	_, ok = plain.FindFieldName(Variable{Column: "id"})
	require.True(t, ok, "a non-alias filter still resolves unqualified references")
}

func TestJoinedTranslatesRowsThroughRowMaps(t *testing.T) {
	dir := t.TempDir()
	left := newPeopleBase(t, dir, 1, [][2]interface{}{{1, "alice"}, {2, "bob"}})
	right := newPeopleBase(t, dir, 2, [][2]interface{}{{10, "x"}, {20, "y"}})

	// Join row 0 -> (left row 1, right row 0); join row 1 -> (left row 0, right row 1).
	j, err := NewJoined(
		[]Expression{left, right},
		[]int{0, 1},
		[]int{1, 1},
		[][]int64{{1, 0}, {0, 1}},
	)
	require.NoError(t, err)

	require.Equal(t, 2, j.ColumnCount())
	rc, err := j.RowCount()
	require.NoError(t, err)
	require.Equal(t, int64(2), rc)

	v, err := j.CellContents(0, 0)
	require.NoError(t, err)
	require.Equal(t, "bob", v.Text().Value)

	v, err = j.CellContents(1, 0)
	require.NoError(t, err)
	require.Equal(t, "x", v.Text().Value)
}

func TestNewJoinedRejectsMismatchedRowMapLengths(t *testing.T) {
	dir := t.TempDir()
	left := newPeopleBase(t, dir, 1, [][2]interface{}{{1, "alice"}})
	right := newPeopleBase(t, dir, 2, [][2]interface{}{{10, "x"}})

	_, err := NewJoined([]Expression{left, right}, []int{0}, []int{1}, [][]int64{{0}})
	require.Error(t, err)
}

func TestCompositeUnionDeduplicates(t *testing.T) {
	dir := t.TempDir()
	left := newPeopleBase(t, dir, 1, [][2]interface{}{{1, "alice"}, {2, "bob"}})
	right := newPeopleBase(t, dir, 2, [][2]interface{}{{2, "bob"}, {3, "carl"}})

	shape := peopleDef("union")
	c, err := BuildSetOperation(Union, shape, []Expression{left, right})
	require.NoError(t, err)

	rc, err := c.RowCount()
	require.NoError(t, err)
	require.Equal(t, int64(3), rc)
}

func TestCompositeIntersectKeepsOnlyCommonRows(t *testing.T) {
	dir := t.TempDir()
	left := newPeopleBase(t, dir, 1, [][2]interface{}{{1, "alice"}, {2, "bob"}})
	right := newPeopleBase(t, dir, 2, [][2]interface{}{{2, "bob"}, {3, "carl"}})

	shape := peopleDef("intersect")
	c, err := BuildSetOperation(Intersect, shape, []Expression{left, right})
	require.NoError(t, err)

	rc, err := c.RowCount()
	require.NoError(t, err)
	require.Equal(t, int64(1), rc)
	v, err := c.CellContents(1, 0)
	require.NoError(t, err)
	require.Equal(t, "bob", v.Text().Value)
}

func TestCompositeExceptRemovesMatchingRows(t *testing.T) {
	dir := t.TempDir()
	left := newPeopleBase(t, dir, 1, [][2]interface{}{{1, "alice"}, {2, "bob"}})
	right := newPeopleBase(t, dir, 2, [][2]interface{}{{2, "bob"}})

	shape := peopleDef("except")
	c, err := BuildSetOperation(Except, shape, []Expression{left, right})
	require.NoError(t, err)

	rc, err := c.RowCount()
	require.NoError(t, err)
	require.Equal(t, int64(1), rc)
	v, err := c.CellContents(1, 0)
	require.NoError(t, err)
	require.Equal(t, "alice", v.Text().Value)
}

func TestOuterPadsNullRowsAhead(t *testing.T) {
	dir := t.TempDir()
	base := newPeopleBase(t, dir, 1, [][2]interface{}{{1, "alice"}})

	o := NewOuter(base, 2)
	rc, err := o.RowCount()
	require.NoError(t, err)
	require.Equal(t, int64(3), rc)

	v, err := o.CellContents(0, 0)
	require.NoError(t, err)
	require.True(t, v.IsNull())

	v, err = o.CellContents(1, 2)
	require.NoError(t, err)
	require.Equal(t, "alice", v.Text().Value)
}

func TestTemporaryAppendAndRead(t *testing.T) {
	shape := peopleDef("scratch")
	tmp := NewTemporary(shape)

	row, err := tmp.Append([]types.TObject{types.Int(9), types.PlainString("z")})
	require.NoError(t, err)
	require.Equal(t, int64(0), row)

	_, err = tmp.Append([]types.TObject{types.Int(9)})
	require.Error(t, err)

	v, err := tmp.CellContents(1, row)
	require.NoError(t, err)
	require.Equal(t, "z", v.Text().Value)

	require.False(t, tmp.HasRootsLocked())
	require.NoError(t, tmp.LockRoot("x"))
	require.False(t, tmp.HasRootsLocked())
}
