package catalog

import (
	"sync"

	"ponydb/internal/txn"
)

// TableBackedCache holds an in-memory list loaded from one system catalog
// table, invalidated by that table's commit events (spec §4.J). On commit:
// if the writing connection was this cache's own owner, the list is only
// marked invalid (lazy reload on next read); if any other committer added
// or removed rows, the list is flushed the same way (dropped as invalid and
// reloaded by the next Items call), matching the spec's
// "(added_rows.size() > 0)" trigger example.
type TableBackedCache[T any] struct {
	tableID int64
	load    func() ([]T, error)

	mu           sync.Mutex
	items        []T
	valid        bool
	ownDirty     bool
	onInvalidate func()
}

// NewTableBackedCache builds a cache for tableID, loaded on demand via
// load, and subscribes it to cg's commit notifications.
func NewTableBackedCache[T any](cg *txn.Conglomerate, tableID int64, load func() ([]T, error)) *TableBackedCache[T] {
	c := &TableBackedCache[T]{tableID: tableID, load: load}
	cg.Subscribe(c.onChange)
	return c
}

// OnInvalidate registers fn to run whenever this cache's list is marked
// invalid or flushed, so a dependent cache (e.g. the grant manager's
// privilege-check result cache) can clear itself in step.
func (c *TableBackedCache[T]) OnInvalidate(fn func()) {
	c.mu.Lock()
	c.onInvalidate = fn
	c.mu.Unlock()
}

func (c *TableBackedCache[T]) onChange(ev txn.ChangeEvent) {
	if ev.TableID != c.tableID {
		return
	}
	c.mu.Lock()
	invalidated := false
	if c.ownDirty {
		c.valid = false
		c.ownDirty = false
		invalidated = true
	} else if len(ev.Added) > 0 || len(ev.Removed) > 0 {
		c.valid = false
		invalidated = true
	}
	fn := c.onInvalidate
	c.mu.Unlock()
	if invalidated && fn != nil {
		fn()
	}
}

// NoteOwnWrite records that this cache's own connection just wrote to the
// backing table, so the next commit event for it invalidates the list even
// when that event reports no added or removed rows.
func (c *TableBackedCache[T]) NoteOwnWrite() {
	c.mu.Lock()
	c.ownDirty = true
	c.mu.Unlock()
}

// Items returns the cached list, reloading it first if invalid.
func (c *TableBackedCache[T]) Items() ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid {
		return c.items, nil
	}
	items, err := c.load()
	if err != nil {
		return nil, err
	}
	c.items, c.valid = items, true
	return c.items, nil
}

// Invalidate forces the next Items call to reload.
func (c *TableBackedCache[T]) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
