// Package sector implements the fixed-size sector store described in
// spec §4.A: a paged file of equally sized sectors with a reserved
// header area, a free-list for sector reuse, and crash recovery driven
// by a write-ahead journal. Higher layers (record, indexset) compose two
// or more Stores rather than reimplementing paging.
package sector
