// Package table implements spec §4.G: table expressions composing over
// master tables (D) — Filter, Reference, Joined, Composite, Outer, and
// Temporary — behind one shared contract, plus root-table lock counting
// and the RawTableInformation walk set operations use.
package table
