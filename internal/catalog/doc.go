// Package catalog implements the trigger, grant, and view managers of
// spec §4.J: three system-catalog-backed caches, each invalidated by the
// commit events of the underlying conglomerate (internal/txn).
package catalog
