// Package indexset persists ordered lists of row indices — one per table
// column plus the master list at index 0 — as described in spec §4.C. Lists
// are grouped into an IndexSet; commits replace the whole set but rewrite
// only the lists whose content actually changed, and snapshot reads never
// block a concurrent commit.
package indexset
