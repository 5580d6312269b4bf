package catalog

import (
	"fmt"
	"sync"

	"ponydb/internal/planshim"
	"ponydb/internal/txn"
	"ponydb/internal/types"
)

// ViewRow is one row of SYS_VIEW: schema, name, a serialized query blob, a
// serialized view definition (column schema + query plan), and the owner
// (spec §4.J).
type ViewRow struct {
	Schema         string
	Name           string
	QueryBlob      []byte
	Columns        []types.ColumnDef
	PlanBlob       []byte
	Owner          string
}

// ViewManager resolves view names to query plan trees, backed by
// SYS_VIEW with the same cache-invalidation contract as triggers/grants.
type ViewManager struct {
	cache *TableBackedCache[ViewRow]

	decodeMu sync.Mutex
	decode   func([]byte) (*planshim.QueryPlanNode, error)
}

// NewViewManager attaches to cg's commit stream for the SYS_VIEW table.
// decode deserializes a view's stored PlanBlob into a plan tree; callers
// that have no planner wired in yet may pass a decode func that always
// errors, since CreateViewQueryPlanNode is the only caller.
func NewViewManager(cg *txn.Conglomerate, sysViewTableID int64, load func() ([]ViewRow, error), decode func([]byte) (*planshim.QueryPlanNode, error)) *ViewManager {
	return &ViewManager{
		cache:  NewTableBackedCache(cg, sysViewTableID, load),
		decode: decode,
	}
}

// NoteOwnWrite should be called by whoever writes SYS_VIEW through this
// manager's own connection, before commit.
func (vm *ViewManager) NoteOwnWrite() { vm.cache.NoteOwnWrite() }

func (vm *ViewManager) find(schema, name string) (*ViewRow, error) {
	rows, err := vm.cache.Items()
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Schema == schema && rows[i].Name == name {
			return &rows[i], nil
		}
	}
	return nil, fmt.Errorf("catalog: no view %s.%s", schema, name)
}

// CreateViewQueryPlanNode returns a fresh, deserialized plan tree for the
// named view (spec §4.J): every call decodes the stored blob anew, so
// callers may freely mutate the tree they receive without affecting other
// callers or the cached row.
func (vm *ViewManager) CreateViewQueryPlanNode(schema, name string) (*planshim.QueryPlanNode, error) {
	row, err := vm.find(schema, name)
	if err != nil {
		return nil, err
	}
	vm.decodeMu.Lock()
	decode := vm.decode
	vm.decodeMu.Unlock()
	node, err := decode(row.PlanBlob)
	if err != nil {
		return nil, fmt.Errorf("catalog: decode plan for view %s.%s: %w", schema, name, err)
	}
	return node, nil
}

// Columns returns the stored column shape of the named view.
func (vm *ViewManager) Columns(schema, name string) ([]types.ColumnDef, error) {
	row, err := vm.find(schema, name)
	if err != nil {
		return nil, err
	}
	return append([]types.ColumnDef(nil), row.Columns...), nil
}
