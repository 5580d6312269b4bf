package master

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"ponydb/internal/indexset"
	"ponydb/internal/record"
	"ponydb/internal/scheme"
	"ponydb/internal/types"
)

// State is the persisted state of one physical row's type-key, per the
// state machine in spec §4.D.
type State int32

const (
	StateUncommitted State = iota
	StateCommittedAdded
	StateCommittedRemoved
	StateMarkedDeleted
)

const tableDefMagic = int32(0x0BEBB)

// ChangeSet is what a merge applies to a table: inserted rows become
// visible, removed rows are physically reclaimed (spec §4.D
// mergeJournalChanges).
type ChangeSet struct {
	Inserted []int64
	Removed  []int64
}

// Table is the per-table coordinator of spec §4.D.
type Table struct {
	ID  int64
	Def *types.TableDef

	store   *record.Store
	idx     *indexset.Store
	schemes []scheme.Scheme // one per column, kept in sync at merge time

	mu         sync.RWMutex
	masterList []int64 // sorted ascending committed-visible row indices

	cacheMu     sync.Mutex
	cacheRow    int64
	cacheValues []types.TObject
	cacheValid  bool
}

func paths(dir string, id int64) (axi, dss, iid string) {
	base := filepath.Join(dir, fmt.Sprintf("table-%d", id))
	return base + ".axi", base + ".dss", base + ".iid"
}

// Create initializes the backing stores for a brand-new table and writes
// its serialized TableDef into record 0 (spec §6: "record 0 reservation").
func Create(dir string, id int64, def *types.TableDef, dataSectorSize, indexBlockSize int) (*Table, error) {
	axiPath, dssPath, iidPath := paths(dir, id)
	st, err := record.Create(axiPath, dssPath, dataSectorSize)
	if err != nil {
		return nil, fmt.Errorf("master: create record store for table %d: %w", id, err)
	}
	defBlob := encodeTableDef(def)
	zeroIdx, err := st.Write(defBlob)
	if err != nil {
		return nil, fmt.Errorf("master: write table-def record: %w", err)
	}
	if zeroIdx != 0 {
		return nil, fmt.Errorf("master: table-def record landed at %d, want 0", zeroIdx)
	}

	idxStore, err := indexset.Create(iidPath, 1, indexBlockSize)
	if err != nil {
		return nil, fmt.Errorf("master: create index-set store: %w", err)
	}

	t := &Table{ID: id, Def: def, store: st, idx: idxStore}
	t.schemes = newColumnSchemes(t, def.Columns)
	return t, nil
}

// columnSource adapts one column of a Table into the scheme.TableSource a
// BlindScan needs to stream rows and cell values (spec §4.E).
type columnSource struct {
	t   *Table
	col int
}

func (s *columnSource) Rows() ([]int64, error) { return s.t.MasterIndex(), nil }

func (s *columnSource) CellAt(row int64) (types.TObject, error) {
	return s.t.GetCellContents(s.col, row)
}

// newColumnSchemes builds one empty scheme per column, dispatching on
// ColumnDef.SchemeName to the variant spec §4.E's closed tagged sum
// requires (BlindScan, InsertSort, Collated); an unrecognized or empty
// name defaults to InsertSort.
func newColumnSchemes(t *Table, cols []types.ColumnDef) []scheme.Scheme {
	out := make([]scheme.Scheme, len(cols))
	for i, c := range cols {
		switch c.SchemeName {
		case scheme.NameBlindScan:
			out[i] = scheme.NewBlindScan(&columnSource{t: t, col: i})
		case scheme.NameCollated:
			cs, _ := scheme.NewCollated(nil, nil) // empty; repopulated via Replay
			out[i] = cs
		default:
			out[i] = scheme.NewInsertSort()
		}
	}
	return out
}

// Open opens an existing table's stores and replays every committed row
// into fresh in-memory schemes; any row still in StateUncommitted is
// reclassified StateMarkedDeleted before any transaction starts (spec
// §4.D failure scenario). def may be nil, in which case the definition
// persisted in record 0 is used instead of a caller-supplied one.
func Open(dir string, id int64, def *types.TableDef) (t *Table, needsRecovery bool, err error) {
	axiPath, dssPath, iidPath := paths(dir, id)
	st, axiRec, dssRec, err := record.Open(axiPath, dssPath)
	if err != nil && st == nil {
		return nil, false, fmt.Errorf("master: open record store for table %d: %w", id, err)
	}
	idxStore, idxRec, err := indexset.Open(iidPath)
	if err != nil && idxStore == nil {
		return nil, false, fmt.Errorf("master: open index-set store for table %d: %w", id, err)
	}
	needsRecovery = axiRec || dssRec || idxRec
	if needsRecovery {
		t = &Table{ID: id, Def: def, store: st, idx: idxStore}
		return t, true, nil
	}
	if def == nil {
		blob, rerr := st.Read(0)
		if rerr != nil {
			return nil, false, fmt.Errorf("master: read table-def record for table %d: %w", id, rerr)
		}
		def, err = decodeTableDef(blob)
		if err != nil {
			return nil, false, fmt.Errorf("master: decode table-def for table %d: %w", id, err)
		}
	}
	t = &Table{ID: id, Def: def, store: st, idx: idxStore}
	if err := t.replay(); err != nil {
		return t, false, err
	}
	return t, false, nil
}

// Fix repairs the underlying stores; callers must call Replay afterward.
func (t *Table) Fix() error {
	if err := t.store.Fix(); err != nil {
		return fmt.Errorf("master: fix record store: %w", err)
	}
	if err := t.idx.Fix(); err != nil {
		return fmt.Errorf("master: fix index-set store: %w", err)
	}
	if t.Def == nil {
		blob, err := t.store.Read(0)
		if err != nil {
			return fmt.Errorf("master: read table-def record after fix: %w", err)
		}
		def, err := decodeTableDef(blob)
		if err != nil {
			return fmt.Errorf("master: decode table-def after fix: %w", err)
		}
		t.Def = def
	}
	if t.schemes == nil {
		t.schemes = newColumnSchemes(t, t.Def.Columns)
	}
	return nil
}

// Replay rebuilds masterList and every column scheme by scanning the
// record store, classifying every row by its persisted type-key state.
// Safe to call more than once (e.g. a maintenance repair run against an
// already-consistent table): schemes are rebuilt from scratch each time
// rather than accumulating duplicate entries.
func (t *Table) Replay() error { return t.replay() }

func (t *Table) replay() error {
	t.schemes = newColumnSchemes(t, t.Def.Columns)
	count := t.store.Count()
	var visible []int64
	var committed []int64 // rows in committed-added order
	var committedVals [][]types.TObject
	for rec := int64(1); rec < count; rec++ {
		st, err := t.store.RecordType(rec)
		if err != nil {
			continue // allocation slot never used or already freed
		}
		row := rec - 1
		switch State(st) {
		case StateCommittedAdded:
			values, err := t.readRow(rec)
			if err != nil {
				return err
			}
			committed = append(committed, row)
			committedVals = append(committedVals, values)
			visible = append(visible, row)
		case StateUncommitted:
			if err := t.store.WriteRecordType(rec, int32(StateMarkedDeleted)); err != nil {
				return fmt.Errorf("master: reclassify uncommitted row %d: %w", row, err)
			}
		}
	}

	for c, col := range t.Def.Columns {
		if col.SchemeName == scheme.NameCollated {
			rows := append([]int64(nil), committed...)
			values := make([]types.TObject, len(committed))
			for i, vals := range committedVals {
				values[i] = vals[c]
			}
			sortRowsByValue(rows, values)
			cs, err := scheme.NewCollated(rows, values)
			if err != nil {
				return fmt.Errorf("master: replay build collated scheme col %d: %w", c, err)
			}
			t.schemes[c] = cs
			continue
		}
		ins, ok := t.schemes[c].(interface {
			Insert(int64, types.TObject) error
		})
		if !ok {
			continue // BlindScan maintains no index; it reads the table directly
		}
		for i, row := range committed {
			if err := ins.Insert(row, committedVals[i][c]); err != nil {
				return fmt.Errorf("master: replay insert row %d col %d: %w", row, c, err)
			}
		}
	}

	sort.Slice(visible, func(i, j int) bool { return visible[i] < visible[j] })
	t.mu.Lock()
	t.masterList = visible
	t.mu.Unlock()
	return nil
}

// rowValuePairs sorts rows and values in lockstep, the shape sort.Interface
// needs to keep the two slices paired through swaps.
type rowValuePairs struct {
	rows   []int64
	values []types.TObject
}

func (p rowValuePairs) Len() int { return len(p.rows) }
func (p rowValuePairs) Less(i, j int) bool {
	c := p.values[i].Compare(p.values[j])
	return c != types.Incomparable && c < 0
}
func (p rowValuePairs) Swap(i, j int) {
	p.rows[i], p.rows[j] = p.rows[j], p.rows[i]
	p.values[i], p.values[j] = p.values[j], p.values[i]
}

// sortRowsByValue stable-sorts rows/values ascending by value, the order
// NewCollated requires its input already be in.
func sortRowsByValue(rows []int64, values []types.TObject) {
	sort.Stable(rowValuePairs{rows: rows, values: values})
}

func (t *Table) readRow(rec int64) ([]types.TObject, error) {
	buf, err := t.store.Read(rec)
	if err != nil {
		return nil, fmt.Errorf("master: read record %d: %w", rec, err)
	}
	return decodeRow(buf, len(t.Def.Columns))
}

// Close closes the underlying stores.
func (t *Table) Close() error {
	if err := t.store.Close(); err != nil {
		return err
	}
	return t.idx.Close()
}

// AddRow serializes values into the record store and marks the new
// physical row StateUncommitted; it does not touch any scheme or the
// master list — those only change on MergeJournalChanges (committed
// visibility is deferred to commit, per spec §4.D / the invariant that
// only committed-added rows are scheme/master-list members).
func (t *Table) AddRow(values []types.TObject) (int64, error) {
	if err := (&types.RowData{Def: t.Def, Values: values}).CheckNotNull(); err != nil {
		return 0, err
	}
	buf := encodeRow(values)
	rec, err := t.store.Write(buf)
	if err != nil {
		return 0, fmt.Errorf("master: write row: %w", err)
	}
	if err := t.store.WriteRecordType(rec, int32(StateUncommitted)); err != nil {
		return 0, fmt.Errorf("master: mark row %d uncommitted: %w", rec, err)
	}
	return rec - 1, nil
}

// RemoveRow validates row exists and is currently committed-visible;
// physical removal is deferred to MergeJournalChanges.
func (t *Table) RemoveRow(row int64) error {
	st, err := t.store.RecordType(row + 1)
	if err != nil {
		return fmt.Errorf("master: row %d not found: %w", row, err)
	}
	if State(st) != StateCommittedAdded {
		return fmt.Errorf("master: row %d is not committed-visible (state %d)", row, st)
	}
	return nil
}

// UpdateRow adds newValues as a new row; the caller's transaction journal
// is responsible for pairing this with a TABLE_UPDATE_REMOVE of old so the
// two entries are rolled back or committed atomically together.
func (t *Table) UpdateRow(old int64, newValues []types.TObject) (int64, error) {
	if err := t.RemoveRow(old); err != nil {
		return 0, err
	}
	return t.AddRow(newValues)
}

// RollbackRow undoes an uncommitted AddRow: physically deletes the record
// so it never becomes visible.
func (t *Table) RollbackRow(row int64) error {
	return t.store.Delete(row + 1)
}

// GetCellContents returns column col of row, using a single-row decode
// cache so sequential column access on the same row avoids re-decoding.
func (t *Table) GetCellContents(col int, row int64) (types.TObject, error) {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()
	if !t.cacheValid || t.cacheRow != row {
		values, err := t.readRow(row + 1)
		if err != nil {
			return types.TObject{}, err
		}
		t.cacheRow, t.cacheValues, t.cacheValid = row, values, true
	}
	if col < 0 || col >= len(t.cacheValues) {
		return types.TObject{}, fmt.Errorf("master: column %d out of range", col)
	}
	return t.cacheValues[col], nil
}

// SchemeFor returns the selectable scheme for column col.
func (t *Table) SchemeFor(col int) scheme.Scheme { return t.schemes[col] }

// RowValues returns every column of row, bypassing the single-row cache;
// used by callers (deferred constraint checks) that need the full tuple
// rather than one cell.
func (t *Table) RowValues(row int64) ([]types.TObject, error) {
	return t.readRow(row + 1)
}

// MasterIndex returns a copy of the currently committed-visible row list.
func (t *Table) MasterIndex() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]int64(nil), t.masterList...)
}

// MergeJournalChanges applies a committed journal's net changes: inserted
// rows become StateCommittedAdded and join the master list and every
// column scheme; removed rows are physically deleted (spec §4.D).
func (t *Table) MergeJournalChanges(cs ChangeSet) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, row := range cs.Inserted {
		values, err := t.readRow(row + 1)
		if err != nil {
			return err
		}
		if err := t.store.WriteRecordType(row+1, int32(StateCommittedAdded)); err != nil {
			return fmt.Errorf("master: commit row %d: %w", row, err)
		}
		for c, v := range values {
			s, ok := t.schemes[c].(interface {
				Insert(int64, types.TObject) error
			})
			if !ok {
				continue
			}
			if err := s.Insert(row, v); err != nil {
				return fmt.Errorf("master: index committed row %d col %d: %w", row, c, err)
			}
		}
		t.insertMasterLocked(row)
	}
	for _, row := range cs.Removed {
		if err := t.store.WriteRecordType(row+1, int32(StateCommittedRemoved)); err != nil {
			return fmt.Errorf("master: mark row %d removed: %w", row, err)
		}
		for _, s := range t.schemes {
			if rs, ok := s.(interface{ Remove(int64) error }); ok {
				_ = rs.Remove(row) // best-effort: row may not have been indexed if never committed-added
			}
		}
		t.removeMasterLocked(row)
		if err := t.store.Delete(row + 1); err != nil {
			return fmt.Errorf("master: physically delete row %d: %w", row, err)
		}
		t.cacheMu.Lock()
		if t.cacheValid && t.cacheRow == row {
			t.cacheValid = false
		}
		t.cacheMu.Unlock()
	}
	return t.persistMasterLocked()
}

func (t *Table) insertMasterLocked(row int64) {
	i := sort.Search(len(t.masterList), func(i int) bool { return t.masterList[i] >= row })
	t.masterList = append(t.masterList, 0)
	copy(t.masterList[i+1:], t.masterList[i:])
	t.masterList[i] = row
}

func (t *Table) removeMasterLocked(row int64) {
	i := sort.Search(len(t.masterList), func(i int) bool { return t.masterList[i] >= row })
	if i < len(t.masterList) && t.masterList[i] == row {
		t.masterList = append(t.masterList[:i], t.masterList[i+1:]...)
	}
}

func (t *Table) persistMasterLocked() error {
	snap := t.idx.GetSnapshotIndexSet().With(0, indexset.List(append([]int64(nil), t.masterList...)))
	return t.idx.CommitIndexSet(snap)
}

// ConstraintIntegrityCheck validates the not-null constraints of values;
// foreign-key/unique/check constraints belong to the catalog layer (J) and
// are out of scope for the storage core.
func (t *Table) ConstraintIntegrityCheck(values []types.TObject) error {
	return (&types.RowData{Def: t.Def, Values: values}).CheckNotNull()
}
