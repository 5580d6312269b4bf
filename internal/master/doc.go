// Package master implements the per-table coordinator of spec §4.D: it
// serializes rows into a record.Store, tracks each physical row's
// committed/uncommitted/removed state in the record's type-key, and keeps
// one selectable scheme per column in sync as journals are merged in.
package master
