// Package scheme implements the three selectable-scheme variants of spec
// §4.E behind one shared contract: BlindScan (stateless full-table scan),
// and a sorted scheme shared by the insert-sort and collated-range
// variants (they differ only in how they are built and mutated, not in
// their select primitives). All Select* operations return a stably sorted
// ascending (by column collation) list of row indices; equal-valued rows
// retain insertion order.
package scheme
