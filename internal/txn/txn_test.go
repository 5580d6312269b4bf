package txn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ponydb/internal/master"
	"ponydb/internal/types"
)

func openTestTable(t *testing.T, dir string, id int64) *master.Table {
	t.Helper()
	def := &types.TableDef{Schema: "public", Name: "t"}
	require.NoError(t, def.AddColumn(types.ColumnDef{Name: "a", Kind: types.KindNumeric}))
	def.MarkImmutable()
	tbl, err := master.Create(dir, id, def, 512, 256)
	require.NoError(t, err)
	return tbl
}

func TestInsertCommitMakesRowVisible(t *testing.T) {
	dir := t.TempDir()
	tbl := openTestTable(t, dir, 1)
	defer tbl.Close()

	cg, err := Open(dir)
	require.NoError(t, err)
	cg.RegisterTable(tbl)

	tx := cg.Begin()
	row, err := tx.InsertRow(tbl, []types.TObject{types.Int(1)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Equal(t, []int64{row}, tbl.MasterIndex())
}

func TestRollbackDiscardsUncommittedRow(t *testing.T) {
	dir := t.TempDir()
	tbl := openTestTable(t, dir, 1)
	defer tbl.Close()

	cg, err := Open(dir)
	require.NoError(t, err)
	cg.RegisterTable(tbl)

	tx := cg.Begin()
	_, err = tx.InsertRow(tbl, []types.TObject{types.Int(5)})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	require.Empty(t, tbl.MasterIndex())
}

func TestConcurrentRemoveOfSameRowRaisesClash(t *testing.T) {
	dir := t.TempDir()
	tbl := openTestTable(t, dir, 1)
	defer tbl.Close()

	cg, err := Open(dir)
	require.NoError(t, err)
	cg.RegisterTable(tbl)

	setup := cg.Begin()
	row, err := setup.InsertRow(tbl, []types.TObject{types.Int(9)})
	require.NoError(t, err)
	require.NoError(t, setup.Commit())

	t1 := cg.Begin()
	t2 := cg.Begin()

	require.NoError(t, t1.DeleteRow(tbl, row))
	require.NoError(t, t1.Commit())

	require.NoError(t, t2.DeleteRow(tbl, row))
	err = t2.Commit()
	require.Error(t, err)
	var clash *RowRemoveClashError
	require.True(t, errors.As(err, &clash))
	require.Equal(t, row, clash.Row)
	require.True(t, errors.Is(err, ErrRowRemoveClash))
}

func TestJournalNormalizedRowsAndChangeInformation(t *testing.T) {
	j := &MasterTableJournal{}
	j.addEntry(TableAdd, 1)
	j.addEntry(TableAdd, 2)
	j.addEntry(TableRemove, 1) // self-cancels within this journal
	j.addEntry(TableUpdateRemove, 5)
	j.addEntry(TableUpdateAdd, 6)

	require.Equal(t, []int64{2}, j.normalizedAddedRows())
	require.Equal(t, []int64{5}, j.normalizedRemovedRows())

	inserted, deleted, updated := j.allChangeInformation()
	require.Equal(t, []int64{1, 2}, inserted)
	require.Equal(t, []int64{1}, deleted)
	require.Equal(t, [][2]int64{{5, 6}}, updated)
}

func TestRollbackEntriesDiscardsSuffix(t *testing.T) {
	j := &MasterTableJournal{}
	j.addEntry(TableAdd, 1)
	j.addEntry(TableUpdateRemove, 2)
	j.addEntry(TableUpdateAdd, 3)

	discarded := j.rollbackEntries(2)
	require.Len(t, discarded, 2)
	require.Equal(t, []Entry{{Command: TableAdd, Row: 1}}, j.Entries())
}
