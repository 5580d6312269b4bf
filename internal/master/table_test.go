package master

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ponydb/internal/types"
)

func testDef() *types.TableDef {
	def := &types.TableDef{Schema: "public", Name: "accounts"}
	_ = def.AddColumn(types.ColumnDef{Name: "id", Kind: types.KindNumeric, NotNull: true})
	_ = def.AddColumn(types.ColumnDef{Name: "name", Kind: types.KindString})
	def.MarkImmutable()
	return def
}

func TestCreateAddRowMergeAndRead(t *testing.T) {
	dir := t.TempDir()
	def := testDef()
	tbl, err := Create(dir, 1, def, 512, 256)
	require.NoError(t, err)

	row, err := tbl.AddRow([]types.TObject{types.Int(7), types.PlainString("alice")})
	require.NoError(t, err)
	require.Equal(t, int64(0), row)

	require.NoError(t, tbl.MergeJournalChanges(ChangeSet{Inserted: []int64{row}}))

	v, err := tbl.GetCellContents(1, row)
	require.NoError(t, err)
	require.Equal(t, "alice", v.Text().Value)

	require.Equal(t, []int64{row}, tbl.MasterIndex())
	require.NoError(t, tbl.Close())
}

func TestNotNullConstraintRejected(t *testing.T) {
	dir := t.TempDir()
	def := testDef()
	tbl, err := Create(dir, 1, def, 512, 256)
	require.NoError(t, err)
	defer tbl.Close()

	_, err = tbl.AddRow([]types.TObject{types.Null, types.PlainString("bob")})
	require.Error(t, err)
}

func TestRemoveRowRequiresCommittedVisible(t *testing.T) {
	dir := t.TempDir()
	def := testDef()
	tbl, err := Create(dir, 1, def, 512, 256)
	require.NoError(t, err)
	defer tbl.Close()

	row, err := tbl.AddRow([]types.TObject{types.Int(1), types.PlainString("x")})
	require.NoError(t, err)

	// Row is still uncommitted; removing it before merge must fail.
	err = tbl.RemoveRow(row)
	require.Error(t, err)

	require.NoError(t, tbl.MergeJournalChanges(ChangeSet{Inserted: []int64{row}}))
	require.NoError(t, tbl.RemoveRow(row))

	require.NoError(t, tbl.MergeJournalChanges(ChangeSet{Removed: []int64{row}}))
	require.Empty(t, tbl.MasterIndex())
}

func TestReplayReclassifiesUncommittedAndRestoresCommitted(t *testing.T) {
	dir := t.TempDir()
	def := testDef()
	tbl, err := Create(dir, 1, def, 512, 256)
	require.NoError(t, err)

	committed, err := tbl.AddRow([]types.TObject{types.Int(1), types.PlainString("keep")})
	require.NoError(t, err)
	require.NoError(t, tbl.MergeJournalChanges(ChangeSet{Inserted: []int64{committed}}))

	lost, err := tbl.AddRow([]types.TObject{types.Int(2), types.PlainString("lost")})
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	reopened, needsRecovery, err := Open(dir, 1, def)
	require.NoError(t, err)
	require.False(t, needsRecovery)

	require.Equal(t, []int64{committed}, reopened.MasterIndex())
	v, err := reopened.GetCellContents(1, committed)
	require.NoError(t, err)
	require.Equal(t, "keep", v.Text().Value)

	st, err := reopened.store.RecordType(lost + 1)
	require.NoError(t, err)
	require.Equal(t, int32(StateMarkedDeleted), st)
	require.NoError(t, reopened.Close())
}

func TestOpenWithoutCallerSuppliedDefLoadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	def := testDef()
	tbl, err := Create(dir, 2, def, 512, 256)
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	reopened, needsRecovery, err := Open(dir, 2, nil)
	require.NoError(t, err)
	require.False(t, needsRecovery)
	require.Equal(t, "accounts", reopened.Def.Name)
	require.Len(t, reopened.Def.Columns, 2)
	require.NoError(t, reopened.Close())
}
