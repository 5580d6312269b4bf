// Package lock implements the two-level locking scheme of spec §4.I/§5:
// an engine-wide shared/exclusive Mode, per-table read/write lock queues
// aggregated into a LockHandle, and a small worker pool that serves
// connection commands on long-lived goroutines.
package lock
