package catalog

import (
	"fmt"
	"sync"

	"ponydb/internal/txn"
	"ponydb/internal/types"
)

// Event is the DML operation a trigger may fire on.
type Event int

const (
	EventInsert Event = iota
	EventUpdate
	EventDelete
)

// Timing is before- or after-the-operation trigger firing.
type Timing int

const (
	Before Timing = iota
	After
)

// EventMask is a (timing, event) bitset; a trigger row matches an actual
// modification when its mask has the corresponding bit set (spec §4.J).
type EventMask uint8

func maskBit(timing Timing, event Event) EventMask {
	return 1 << uint(int(timing)*3+int(event))
}

// Matches reports whether the mask includes (timing, event).
func (m EventMask) Matches(timing Timing, event Event) bool {
	return m&maskBit(timing, event) != 0
}

// NewEventMask ORs together the (timing, event) pairs a trigger reacts to.
func NewEventMask(pairs ...[2]int) EventMask {
	var m EventMask
	for _, p := range pairs {
		m |= maskBit(Timing(p[0]), Event(p[1]))
	}
	return m
}

// TriggerRow is one row of SYS_DATA_TRIGGER: (schema, name, event-mask,
// target-object-key, procedure-name, params, owner) per spec §4.J.
type TriggerRow struct {
	Schema    string
	Name      string
	Mask      EventMask
	Target    string // "T:<table-name>"
	Procedure string
	Params    []string
	Owner     string
}

// Procedure is a registered trigger body. It may mutate old/new in place;
// TriggerManager.Fire restores the pre-call contents after every
// invocation regardless of outcome (spec §4.J: "the original OLD/NEW
// state is restored on any exit path").
type Procedure func(old, new *types.RowData, params []string) error

// TriggerManager selects and fires triggers targeting a modified table.
type TriggerManager struct {
	cache *TableBackedCache[TriggerRow]

	mu    sync.Mutex
	procs map[string]Procedure
}

// NewTriggerManager attaches to cg's commit stream for the SYS_DATA_TRIGGER
// table (sysTriggerTableID) and loads rows via load.
func NewTriggerManager(cg *txn.Conglomerate, sysTriggerTableID int64, load func() ([]TriggerRow, error)) *TriggerManager {
	return &TriggerManager{
		cache: NewTableBackedCache(cg, sysTriggerTableID, load),
		procs: map[string]Procedure{},
	}
}

// RegisterProcedure binds a procedure name to its implementation.
func (tm *TriggerManager) RegisterProcedure(name string, proc Procedure) {
	tm.mu.Lock()
	tm.procs[name] = proc
	tm.mu.Unlock()
}

// NoteOwnWrite should be called by whoever writes SYS_DATA_TRIGGER through
// this manager's own connection, before commit.
func (tm *TriggerManager) NoteOwnWrite() { tm.cache.NoteOwnWrite() }

func cloneRowData(r *types.RowData) *types.RowData {
	if r == nil {
		return nil
	}
	return &types.RowData{Def: r.Def, Values: append([]types.TObject(nil), r.Values...)}
}

func restoreRowData(dst, saved *types.RowData) {
	if dst == nil || saved == nil {
		return
	}
	copy(dst.Values, saved.Values)
}

// Fire runs every trigger targeting "T:<table>" whose mask matches
// (timing, event), in list order, restoring old/new after each call.
func (tm *TriggerManager) Fire(timing Timing, event Event, table string, old, new *types.RowData) error {
	triggers, err := tm.cache.Items()
	if err != nil {
		return fmt.Errorf("catalog: load triggers: %w", err)
	}
	target := "T:" + table
	for _, tr := range triggers {
		if tr.Target != target || !tr.Mask.Matches(timing, event) {
			continue
		}
		tm.mu.Lock()
		proc, ok := tm.procs[tr.Procedure]
		tm.mu.Unlock()
		if !ok {
			return fmt.Errorf("catalog: trigger %s.%s references unknown procedure %q", tr.Schema, tr.Name, tr.Procedure)
		}
		savedOld, savedNew := cloneRowData(old), cloneRowData(new)
		err := proc(old, new, tr.Params)
		restoreRowData(old, savedOld)
		restoreRowData(new, savedNew)
		if err != nil {
			return fmt.Errorf("catalog: trigger %s.%s: %w", tr.Schema, tr.Name, err)
		}
	}
	return nil
}
