// Package record implements the variable-size record store of spec
// §4.B: an allocation-index sector.Store (fixed 12-byte entries) paired
// with a data sector.Store, with optional deflate compression of
// oversized payloads and a streaming Output/Input API for large rows.
package record
