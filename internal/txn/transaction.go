package txn

import (
	"fmt"

	"ponydb/internal/master"
	"ponydb/internal/types"
)

// Transaction is one open unit of work against a Conglomerate: it owns a
// MasterTableJournal per table it touches and a weak reference (by id) to
// every master table it has written through (spec §4.F: "A transaction
// holds weak references to master tables and owns its journal until
// commit or rollback").
type Transaction struct {
	id         int64 // assigned at commit; zero until then
	snapshotID int64

	cg       *Conglomerate
	journals map[int64]*MasterTableJournal
	tables   map[int64]*master.Table
	done     bool
}

// ID returns the commit id assigned to this transaction, or 0 if it has
// not yet committed.
func (tx *Transaction) ID() int64 { return tx.id }

func (tx *Transaction) journalFor(tbl *master.Table) *MasterTableJournal {
	j, ok := tx.journals[tbl.ID]
	if !ok {
		j = &MasterTableJournal{}
		tx.journals[tbl.ID] = j
		tx.tables[tbl.ID] = tbl
	}
	return j
}

// InsertRow serializes values into tbl and records a TABLE_ADD entry.
// Visibility is deferred to Commit (spec §4.D/§4.F).
func (tx *Transaction) InsertRow(tbl *master.Table, values []types.TObject) (int64, error) {
	if tx.done {
		return 0, fmt.Errorf("txn: transaction already finished")
	}
	row, err := tbl.AddRow(values)
	if err != nil {
		return 0, err
	}
	tx.journalFor(tbl).addEntry(TableAdd, row)
	return row, nil
}

// DeleteRow validates row is currently committed-visible and records a
// TABLE_REMOVE entry. Physical deletion happens at merge time.
func (tx *Transaction) DeleteRow(tbl *master.Table, row int64) error {
	if tx.done {
		return fmt.Errorf("txn: transaction already finished")
	}
	if err := tbl.RemoveRow(row); err != nil {
		return err
	}
	tx.journalFor(tbl).addEntry(TableRemove, row)
	return nil
}

// UpdateRow removes old and inserts newValues as one paired operation,
// recording TABLE_UPDATE_REMOVE followed by TABLE_UPDATE_ADD so the two
// entries commit or roll back together.
func (tx *Transaction) UpdateRow(tbl *master.Table, old int64, newValues []types.TObject) (int64, error) {
	if tx.done {
		return 0, fmt.Errorf("txn: transaction already finished")
	}
	newRow, err := tbl.UpdateRow(old, newValues)
	if err != nil {
		return 0, err
	}
	j := tx.journalFor(tbl)
	j.addEntry(TableUpdateRemove, old)
	j.addEntry(TableUpdateAdd, newRow)
	return newRow, nil
}

// UndoLastRowOperation discards the most recently recorded journal entries
// for tbl and physically rolls back any row they added; used when a
// constraint check downstream of a row operation fails (spec §7).
func (tx *Transaction) UndoLastRowOperation(tbl *master.Table, entryCount int) error {
	j, ok := tx.journals[tbl.ID]
	if !ok {
		return nil
	}
	for _, e := range j.rollbackEntries(entryCount) {
		if e.Command == TableAdd || e.Command == TableUpdateAdd {
			if err := tbl.RollbackRow(e.Row); err != nil {
				return fmt.Errorf("txn: undo row %d: %w", e.Row, err)
			}
		}
	}
	return nil
}

// Commit runs the conglomerate's seven-step commit protocol for every
// table this transaction touched.
func (tx *Transaction) Commit() error {
	return tx.cg.commit(tx)
}

// Rollback discards every journal this transaction accumulated and
// physically deletes any rows it added.
func (tx *Transaction) Rollback() error {
	return tx.cg.rollback(tx)
}
