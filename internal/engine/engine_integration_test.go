package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ponydb/internal/types"
)

// TestFullOpenWriteCommitCrashRecoverReopenCycle exercises the closest
// local analogue to spinning up a real backend for an integration test:
// open a database, write and commit one row, simulate a crash by leaving
// an uncommitted row and an unflushed table without closing cleanly, then
// reopen and verify recovery restores exactly the committed state.
func TestFullOpenWriteCommitCrashRecoverReopenCycle(t *testing.T) {
	cfg := testConfig(t)

	e, err := Open(cfg)
	require.NoError(t, err)

	tbl, err := e.CreateTable(accountsDef())
	require.NoError(t, err)

	tx := e.Begin()
	committedRow, err := tx.InsertRow(tbl, []types.TObject{types.Int(100)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	// Simulate a crash: an uncommitted insert with no matching commit, and
	// no clean Close (so the database.lock file is left behind too).
	crashTx := e.Begin()
	_, err = crashTx.InsertRow(tbl, []types.TObject{types.Int(200)})
	require.NoError(t, err)
	// crashTx is deliberately never committed or rolled back.

	require.NoError(t, tbl.Close())

	// A stale lock file is exactly what an unclean shutdown leaves behind;
	// Open must recover from its presence per spec §6.
	e2, err := Open(cfg)
	require.NoError(t, err)
	defer e2.Close()

	require.NoError(t, e2.CheckAndRepair())

	reopened := e2.Table("accounts")
	require.NotNil(t, reopened)

	require.Equal(t, []int64{committedRow}, reopened.MasterIndex())
	v, err := reopened.GetCellContents(0, committedRow)
	require.NoError(t, err)
	require.Equal(t, int64(100), v.Num().Unscaled().Int64())
}
