// Package rangeset implements the normalized value ranges used for
// predicate pushdown into a selectable scheme (spec §4.H): SelectableRange,
// SelectableRangeSet, LIKE prefix extraction with a recursive wildcard
// matcher, and a small bridge to an externally supplied regex evaluator.
package rangeset
