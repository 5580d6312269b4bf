// Package txn implements spec §4.F: per-transaction MasterTableJournals,
// the conglomerate commit protocol (write lock, commit-id assignment,
// clash detection, integrity check, persist, cache invalidation), and
// rollback.
package txn
