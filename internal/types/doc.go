// Package types implements the tagged SQL value model shared by every
// layer of the storage and execution core: TObject, the column/table
// definitions that describe how values are laid out, and the comparison
// and operator semantics the indexing and range-set layers depend on.
package types
