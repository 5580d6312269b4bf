package txn

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/atomic"

	"ponydb/internal/lock"
	"ponydb/internal/master"
)

// ErrRowRemoveClash is the sentinel spec §6/§8 names as ROW_REMOVE_CLASH;
// match it with errors.Is, and type-assert to *RowRemoveClashError for the
// row/table detail.
var ErrRowRemoveClash = errors.New("txn: row remove clash")

// RowRemoveClashError carries the row index and table id of the commit
// clash (spec §6: "including the row index and table name").
type RowRemoveClashError struct {
	TableID int64
	Row     int64
}

func (e *RowRemoveClashError) Error() string {
	return fmt.Sprintf("txn: row %d removed concurrently on table %d", e.Row, e.TableID)
}

func (e *RowRemoveClashError) Is(target error) bool { return target == ErrRowRemoveClash }

// ChangeEvent is what a committed journal reports to cache listeners
// (spec §4.F step 6 / §4.J).
type ChangeEvent struct {
	TableID int64
	Added   []int64
	Removed []int64
}

// Listener is notified once per table touched by a commit.
type Listener func(ChangeEvent)

type commitRecord struct {
	commitID      int64
	removedByTble map[int64]map[int64]bool
}

// Conglomerate is the top-level coordinator of spec §4.F: it owns every
// master table, the per-table lock controller, the state store, and the
// commit-id sequence, and runs the seven-step commit protocol.
type Conglomerate struct {
	dir        string
	lockCtl    *lock.Controller
	modeCtl    *lock.ModeController
	stateStore *StateStore

	tablesMu sync.RWMutex
	tables   map[int64]*master.Table

	commitID atomic.Int64

	historyMu sync.Mutex
	history   []commitRecord

	listenersMu sync.Mutex
	listeners   []Listener
}

// Open creates (if new) or loads (if existing) a conglomerate rooted at
// dir; stateStorePath is opened fresh if absent.
func Open(dir string) (*Conglomerate, error) {
	path := filepath.Join(dir, "conglomerate.state")
	ss, err := OpenStateStore(path)
	if err != nil {
		ss, err = CreateStateStore(path)
		if err != nil {
			return nil, fmt.Errorf("txn: open conglomerate: %w", err)
		}
	}
	return &Conglomerate{
		dir:        dir,
		lockCtl:    lock.NewController(),
		modeCtl:    lock.NewModeController(),
		stateStore: ss,
		tables:     map[int64]*master.Table{},
	}, nil
}

// RegisterTable makes tbl visible to transactions begun against this
// conglomerate.
func (cg *Conglomerate) RegisterTable(tbl *master.Table) {
	cg.tablesMu.Lock()
	defer cg.tablesMu.Unlock()
	cg.tables[tbl.ID] = tbl
}

// Table returns a previously registered table, or nil.
func (cg *Conglomerate) Table(id int64) *master.Table {
	cg.tablesMu.RLock()
	defer cg.tablesMu.RUnlock()
	return cg.tables[id]
}

// Subscribe registers fn to be called once per table touched by every
// future commit (spec §4.F step 6 / §4.J cache invalidation).
func (cg *Conglomerate) Subscribe(fn Listener) {
	cg.listenersMu.Lock()
	defer cg.listenersMu.Unlock()
	cg.listeners = append(cg.listeners, fn)
}

func (cg *Conglomerate) notify(ev ChangeEvent) {
	cg.listenersMu.Lock()
	ls := append([]Listener(nil), cg.listeners...)
	cg.listenersMu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

// Begin opens a new transaction observing the commit id visible right now
// as its snapshot.
func (cg *Conglomerate) Begin() *Transaction {
	return &Transaction{
		cg:         cg,
		snapshotID: cg.commitID.Load(),
		journals:   map[int64]*MasterTableJournal{},
		tables:     map[int64]*master.Table{},
	}
}

// commit runs the seven-step protocol of spec §4.F.
func (cg *Conglomerate) commit(tx *Transaction) error {
	if tx.done {
		return fmt.Errorf("txn: transaction already committed or rolled back")
	}
	if len(tx.journals) == 0 {
		tx.done = true
		return nil
	}

	tableIDs := make([]int64, 0, len(tx.journals))
	for id := range tx.journals {
		tableIDs = append(tableIDs, id)
	}
	sort.Slice(tableIDs, func(i, j int) bool { return tableIDs[i] < tableIDs[j] })

	writeSet := make([]lock.TableID, len(tableIDs))
	for i, id := range tableIDs {
		writeSet[i] = lock.TableID(id)
	}
	handle, err := cg.lockCtl.LockTables(writeSet, nil)
	if err != nil {
		return fmt.Errorf("txn: acquire commit write lock: %w", err)
	}
	defer handle.UnlockAll()

	commitID := cg.commitID.Inc()

	if err := cg.testCommitClash(tx, commitID); err != nil {
		return err
	}
	if err := cg.integrityCheck(tx, tableIDs); err != nil {
		return err
	}

	removedByTable := map[int64]map[int64]bool{}
	var events []ChangeEvent
	for _, id := range tableIDs {
		j := tx.journals[id]
		tbl := tx.tables[id]
		added := j.normalizedAddedRows()
		removed := j.normalizedRemovedRows()

		if err := tbl.MergeJournalChanges(master.ChangeSet{Inserted: added, Removed: removed}); err != nil {
			return fmt.Errorf("txn: merge journal for table %d: %w", id, err)
		}
		if err := cg.stateStore.RecordCommit(id, commitID, commitID); err != nil {
			return fmt.Errorf("txn: persist commit id for table %d: %w", id, err)
		}
		set := make(map[int64]bool, len(removed))
		for _, r := range removed {
			set[r] = true
		}
		removedByTable[id] = set
		events = append(events, ChangeEvent{TableID: id, Added: added, Removed: removed})
	}

	cg.historyMu.Lock()
	cg.history = append(cg.history, commitRecord{commitID: commitID, removedByTble: removedByTable})
	cg.historyMu.Unlock()

	tx.id = commitID
	tx.done = true

	for _, ev := range events {
		cg.notify(ev)
	}
	return nil
}

// testCommitClash implements spec §4.F step 3: a clash is any pair of
// TABLE_REMOVE commands (normalized) sharing a row index on the same
// table, checked against every journal already committed with a commit id
// larger than this transaction's snapshot id.
func (cg *Conglomerate) testCommitClash(tx *Transaction, commitID int64) error {
	cg.historyMu.Lock()
	history := append([]commitRecord(nil), cg.history...)
	cg.historyMu.Unlock()

	for id, j := range tx.journals {
		removed := j.normalizedRemovedRows()
		if len(removed) == 0 {
			continue
		}
		for _, rec := range history {
			if rec.commitID <= tx.snapshotID || rec.commitID >= commitID {
				continue
			}
			rowSet, ok := rec.removedByTble[id]
			if !ok {
				continue
			}
			for _, row := range removed {
				if rowSet[row] {
					return &RowRemoveClashError{TableID: id, Row: row}
				}
			}
		}
	}
	return nil
}

// integrityCheck runs deferred not-null/constraint validation over every
// row this transaction is about to commit as added (spec §4.F step 4).
func (cg *Conglomerate) integrityCheck(tx *Transaction, tableIDs []int64) error {
	for _, id := range tableIDs {
		tbl := tx.tables[id]
		for _, row := range tx.journals[id].normalizedAddedRows() {
			values, err := tbl.RowValues(row)
			if err != nil {
				return fmt.Errorf("txn: integrity check read row %d: %w", row, err)
			}
			if err := tbl.ConstraintIntegrityCheck(values); err != nil {
				return fmt.Errorf("txn: integrity check failed: %w", err)
			}
		}
	}
	return nil
}

// rollback discards tx's journals and physically deletes every row it
// added that never committed (spec §4.F: "Rollback: discard journals,
// physically delete TABLE_ADD rows that never committed").
func (cg *Conglomerate) rollback(tx *Transaction) error {
	if tx.done {
		return nil
	}
	for id, j := range tx.journals {
		tbl := tx.tables[id]
		for _, e := range j.entries {
			if e.Command != TableAdd && e.Command != TableUpdateAdd {
				continue
			}
			if err := tbl.RollbackRow(e.Row); err != nil {
				return fmt.Errorf("txn: rollback row %d on table %d: %w", e.Row, id, err)
			}
		}
	}
	tx.journals = map[int64]*MasterTableJournal{}
	tx.done = true
	return nil
}
