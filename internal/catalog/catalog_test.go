package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ponydb/internal/master"
	"ponydb/internal/planshim"
	"ponydb/internal/txn"
	"ponydb/internal/types"
)

func openSysTable(t *testing.T, dir string, id int64) *master.Table {
	t.Helper()
	def := &types.TableDef{Schema: "sys", Name: "t"}
	require.NoError(t, def.AddColumn(types.ColumnDef{Name: "v", Kind: types.KindNumeric}))
	def.MarkImmutable()
	tbl, err := master.Create(dir, id, def, 512, 256)
	require.NoError(t, err)
	return tbl
}

func TestTableBackedCacheFlushesOnForeignCommit(t *testing.T) {
	dir := t.TempDir()
	tbl := openSysTable(t, dir, 1)
	defer tbl.Close()

	cg, err := txn.Open(dir)
	require.NoError(t, err)
	cg.RegisterTable(tbl)

	loads := 0
	cache := NewTableBackedCache(cg, tbl.ID, func() ([]int, error) {
		loads++
		return []int{loads}, nil
	})

	first, err := cache.Items()
	require.NoError(t, err)
	require.Equal(t, []int{1}, first)

	// Same cache read again without any commit: no reload.
	second, err := cache.Items()
	require.NoError(t, err)
	require.Equal(t, []int{1}, second)

	tx := cg.Begin()
	_, err = tx.InsertRow(tbl, []types.TObject{types.Int(1)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	third, err := cache.Items()
	require.NoError(t, err)
	require.Equal(t, []int{2}, third)
}

func TestTableBackedCacheOwnWriteOnlyInvalidates(t *testing.T) {
	dir := t.TempDir()
	tbl := openSysTable(t, dir, 1)
	defer tbl.Close()

	cg, err := txn.Open(dir)
	require.NoError(t, err)
	cg.RegisterTable(tbl)

	loads := 0
	cache := NewTableBackedCache(cg, tbl.ID, func() ([]int, error) {
		loads++
		return []int{loads}, nil
	})
	_, err = cache.Items()
	require.NoError(t, err)

	cache.NoteOwnWrite()
	tx := cg.Begin()
	_, err = tx.InsertRow(tbl, []types.TObject{types.Int(1)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	// Invalidated, but Items() reload happens lazily on next call either way.
	items, err := cache.Items()
	require.NoError(t, err)
	require.Equal(t, []int{2}, items)
}

func TestTriggerManagerFiresMatchingTriggerAndRestoresState(t *testing.T) {
	dir := t.TempDir()
	sysTbl := openSysTable(t, dir, 1)
	defer sysTbl.Close()

	cg, err := txn.Open(dir)
	require.NoError(t, err)
	cg.RegisterTable(sysTbl)

	rowDef := &types.TableDef{Schema: "public", Name: "accounts"}
	require.NoError(t, rowDef.AddColumn(types.ColumnDef{Name: "balance", Kind: types.KindNumeric}))
	rowDef.MarkImmutable()

	tm := NewTriggerManager(cg, sysTbl.ID, func() ([]TriggerRow, error) {
		return []TriggerRow{
			{Schema: "public", Name: "trg1", Mask: NewEventMask([2]int{int(After), int(EventInsert)}), Target: "T:accounts", Procedure: "audit"},
		}, nil
	})

	var sawBalance types.TObject
	tm.RegisterProcedure("audit", func(old, new *types.RowData, params []string) error {
		sawBalance = new.Values[0]
		new.Values[0] = types.Int(999) // mutation must not leak out
		return nil
	})

	newRow := &types.RowData{Def: rowDef, Values: []types.TObject{types.Int(42)}}
	err = tm.Fire(After, EventInsert, "accounts", nil, newRow)
	require.NoError(t, err)
	require.Equal(t, int64(42), sawBalance.Num().Unscaled().Int64())
	require.Equal(t, int64(42), newRow.Values[0].Num().Unscaled().Int64())
}

func TestTriggerManagerSkipsNonMatchingMaskOrTarget(t *testing.T) {
	dir := t.TempDir()
	sysTbl := openSysTable(t, dir, 1)
	defer sysTbl.Close()

	cg, err := txn.Open(dir)
	require.NoError(t, err)
	cg.RegisterTable(sysTbl)

	tm := NewTriggerManager(cg, sysTbl.ID, func() ([]TriggerRow, error) {
		return []TriggerRow{
			{Schema: "public", Name: "trg1", Mask: NewEventMask([2]int{int(Before), int(EventDelete)}), Target: "T:accounts", Procedure: "audit"},
			{Schema: "public", Name: "trg2", Mask: NewEventMask([2]int{int(After), int(EventInsert)}), Target: "T:other", Procedure: "audit"},
		}, nil
	})
	fired := false
	tm.RegisterProcedure("audit", func(old, new *types.RowData, params []string) error {
		fired = true
		return nil
	})

	err = tm.Fire(After, EventInsert, "accounts", nil, nil)
	require.NoError(t, err)
	require.False(t, fired)
}

func TestGrantManagerMergesUserAndPublicGrants(t *testing.T) {
	dir := t.TempDir()
	sysTbl := openSysTable(t, dir, 1)
	defer sysTbl.Close()

	cg, err := txn.Open(dir)
	require.NoError(t, err)
	cg.RegisterTable(sysTbl)

	const selectBit, insertBit uint32 = 1 << 0, 1 << 1

	gm := NewGrantManager(cg, sysTbl.ID, func() ([]GrantRow, error) {
		return []GrantRow{
			{PrivilegeBits: selectBit, ObjectType: "TABLE", Param: "accounts", Grantee: "alice"},
			{PrivilegeBits: insertBit, ObjectType: "TABLE", Param: "accounts", Grantee: PublicGrantee, GrantOption: true},
		}, nil
	})

	ok, err := gm.HasPrivilege("TABLE", "accounts", "alice", selectBit|insertBit)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = gm.HasPrivilege("TABLE", "accounts", "bob", selectBit)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = gm.CanGrant("TABLE", "accounts", "alice", insertBit)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = gm.CanGrant("TABLE", "accounts", "alice", selectBit)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGrantManagerResultCacheClearsOnCommit(t *testing.T) {
	dir := t.TempDir()
	sysTbl := openSysTable(t, dir, 1)
	defer sysTbl.Close()

	cg, err := txn.Open(dir)
	require.NoError(t, err)
	cg.RegisterTable(sysTbl)

	const bit uint32 = 1
	grants := []GrantRow{}
	gm := NewGrantManager(cg, sysTbl.ID, func() ([]GrantRow, error) {
		return append([]GrantRow(nil), grants...), nil
	})

	ok, err := gm.HasPrivilege("TABLE", "accounts", "alice", bit)
	require.NoError(t, err)
	require.False(t, ok)

	grants = append(grants, GrantRow{PrivilegeBits: bit, ObjectType: "TABLE", Param: "accounts", Grantee: "alice"})
	tx := cg.Begin()
	_, err = tx.InsertRow(sysTbl, []types.TObject{types.Int(1)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	ok, err = gm.HasPrivilege("TABLE", "accounts", "alice", bit)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestViewManagerCreatesFreshPlanNodeEachCall(t *testing.T) {
	dir := t.TempDir()
	sysTbl := openSysTable(t, dir, 1)
	defer sysTbl.Close()

	cg, err := txn.Open(dir)
	require.NoError(t, err)
	cg.RegisterTable(sysTbl)

	vm := NewViewManager(cg, sysTbl.ID, func() ([]ViewRow, error) {
		return []ViewRow{{Schema: "public", Name: "v1", PlanBlob: []byte("accounts")}}, nil
	}, func(blob []byte) (*planshim.QueryPlanNode, error) {
		return &planshim.QueryPlanNode{Kind: planshim.NodeBase, Table: string(blob)}, nil
	})

	n1, err := vm.CreateViewQueryPlanNode("public", "v1")
	require.NoError(t, err)
	n2, err := vm.CreateViewQueryPlanNode("public", "v1")
	require.NoError(t, err)

	require.Equal(t, "accounts", n1.Table)
	require.NotSame(t, n1, n2)

	_, err = vm.CreateViewQueryPlanNode("public", "missing")
	require.Error(t, err)
}
