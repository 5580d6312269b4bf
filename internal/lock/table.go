package lock

import (
	"sync"

	"github.com/google/uuid"
)

// TableID identifies a lockable table (the master table's table id).
type TableID int64

type lockRecord struct {
	table TableID
	write bool
	queue *tableQueue
}

type tableQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	records []*lockRecord
}

func newTableQueue() *tableQueue {
	q := &tableQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// canProceedLocked reports whether rec has reached a position where it may
// proceed: a write lock must be at the head of the queue; a read lock may
// proceed so long as no write lock precedes it (spec §4.I).
func (q *tableQueue) canProceedLocked(rec *lockRecord) bool {
	if rec.write {
		return len(q.records) > 0 && q.records[0] == rec
	}
	for _, r := range q.records {
		if r == rec {
			return true
		}
		if r.write {
			return false
		}
	}
	return false
}

func (q *tableQueue) waitUntilGranted(rec *lockRecord) {
	q.mu.Lock()
	for !q.canProceedLocked(rec) {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

func (q *tableQueue) release(rec *lockRecord) {
	q.mu.Lock()
	for i, r := range q.records {
		if r == rec {
			q.records = append(q.records[:i], q.records[i+1:]...)
			break
		}
	}
	q.cond.Broadcast()
	q.mu.Unlock()
}

// LockHandle aggregates every table lock granted by one LockTables call.
// A single LockHandle must never be used from more than one goroutine, and
// every handle obtained must be released via UnlockAll on every control
// path (spec §4.I).
type LockHandle struct {
	ID      uuid.UUID
	records []*lockRecord // in acquisition order
}

// UnlockAll releases every lock this handle holds, in LIFO order.
func (h *LockHandle) UnlockAll() {
	for i := len(h.records) - 1; i >= 0; i-- {
		rec := h.records[i]
		rec.queue.release(rec)
	}
	h.records = nil
}

// Controller owns one queue per table and hands out LockHandles.
type Controller struct {
	mu     sync.Mutex
	tables map[TableID]*tableQueue
}

// NewController returns an empty table-lock controller.
func NewController() *Controller {
	return &Controller{tables: map[TableID]*tableQueue{}}
}

// queueFor returns (creating if absent) the queue for t. Callers must hold
// c.mu.
func (c *Controller) queueFor(t TableID) *tableQueue {
	q, ok := c.tables[t]
	if !ok {
		q = newTableQueue()
		c.tables[t] = q
	}
	return q
}

// LockTables atomically registers a lock record for every table in
// writeSet and readSet in a single critical section (spec §5: "lock
// acquisition order within a single lockTables call is atomic"), then
// blocks until every record has reached a grantable queue position.
func (c *Controller) LockTables(writeSet, readSet []TableID) (*LockHandle, error) {
	h := &LockHandle{ID: uuid.New()}

	c.mu.Lock()
	for _, t := range writeSet {
		q := c.queueFor(t)
		rec := &lockRecord{table: t, write: true, queue: q}
		q.mu.Lock()
		q.records = append(q.records, rec)
		q.mu.Unlock()
		h.records = append(h.records, rec)
	}
	for _, t := range readSet {
		q := c.queueFor(t)
		rec := &lockRecord{table: t, write: false, queue: q}
		q.mu.Lock()
		q.records = append(q.records, rec)
		q.mu.Unlock()
		h.records = append(h.records, rec)
	}
	c.mu.Unlock()

	for _, rec := range h.records {
		rec.queue.waitUntilGranted(rec)
	}
	return h, nil
}
