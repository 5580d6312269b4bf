package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ponydb/internal/config"
	"ponydb/internal/types"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.SectorSize = 512
	cfg.IndexBlockSize = 256
	return cfg
}

func accountsDef() *types.TableDef {
	def := &types.TableDef{Schema: "public", Name: "accounts"}
	_ = def.AddColumn(types.ColumnDef{Name: "id", Kind: types.KindNumeric, NotNull: true})
	def.MarkImmutable()
	return def
}

func TestOpenCreatesLockFileAndCloseRemovesIt(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(cfg)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(cfg.DataDir, lockFileName))
	require.NoError(t, err)

	require.NoError(t, e.Close())
	_, err = os.Stat(filepath.Join(cfg.DataDir, lockFileName))
	require.True(t, os.IsNotExist(err))
}

func TestOpenRecoversFromStaleLockFile(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))
	stale := filepath.Join(cfg.DataDir, lockFileName)
	require.NoError(t, os.WriteFile(stale, nil, 0o644))

	e, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, e.Close())
}

func TestCreateTableInsertCommitAndReopen(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(cfg)
	require.NoError(t, err)

	tbl, err := e.CreateTable(accountsDef())
	require.NoError(t, err)

	tx := e.Begin()
	row, err := tx.InsertRow(tbl, []types.TObject{types.Int(1)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.NoError(t, e.Close())

	e2, err := Open(cfg)
	require.NoError(t, err)
	defer e2.Close()

	reopened := e2.Table("accounts")
	require.NotNil(t, reopened)
	require.Equal(t, []int64{row}, reopened.MasterIndex())
}

func TestDropTableRemovesFiles(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(cfg)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.CreateTable(accountsDef())
	require.NoError(t, err)

	require.NoError(t, e.DropTable("accounts"))
	require.Nil(t, e.Table("accounts"))

	_, err = os.Stat(filepath.Join(cfg.DataDir, "table-0.axi"))
	require.True(t, os.IsNotExist(err))
}
