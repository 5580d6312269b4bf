package rangeset

import (
	"sort"

	"ponydb/internal/types"
)

// StartFlag says whether a range's start boundary sits at StartValue
// (inclusive) or strictly after it.
type StartFlag int

const (
	StartAtValue StartFlag = iota
	StartAfterValue
)

// EndFlag says whether a range's end boundary sits at EndValue (inclusive)
// or strictly before it.
type EndFlag int

const (
	EndAtValue EndFlag = iota
	EndBeforeValue
)

// SelectableRange is one contiguous span of column values. A nil
// StartValue means FIRST_IN_SET (the range is unbounded below); a nil
// EndValue means LAST_IN_SET (unbounded above).
type SelectableRange struct {
	StartFlag  StartFlag
	StartValue *types.TObject
	EndFlag    EndFlag
	EndValue   *types.TObject
}

// FullRange spans every value.
func FullRange() SelectableRange {
	return SelectableRange{StartFlag: StartAtValue, EndFlag: EndAtValue}
}

// Contains reports whether v falls inside r.
func (r SelectableRange) Contains(v types.TObject) bool {
	if r.StartValue != nil {
		c := v.Compare(*r.StartValue)
		if c == types.Incomparable {
			return false
		}
		if r.StartFlag == StartAtValue && c < 0 {
			return false
		}
		if r.StartFlag == StartAfterValue && c <= 0 {
			return false
		}
	}
	if r.EndValue != nil {
		c := v.Compare(*r.EndValue)
		if c == types.Incomparable {
			return false
		}
		if r.EndFlag == EndAtValue && c > 0 {
			return false
		}
		if r.EndFlag == EndBeforeValue && c >= 0 {
			return false
		}
	}
	return true
}

func (r SelectableRange) empty() bool {
	if r.StartValue == nil || r.EndValue == nil {
		return false
	}
	c := r.StartValue.Compare(*r.EndValue)
	if c == types.Incomparable {
		return true
	}
	if c > 0 {
		return true
	}
	if c == 0 && (r.StartFlag == StartAfterValue || r.EndFlag == EndBeforeValue) {
		return true
	}
	return false
}

// Operator is one of the eight predicate operators SelectableRangeSet can
// intersect against.
type Operator int

const (
	OpIs Operator = iota
	OpIsNot
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterOrEqual
	OpLess
	OpLessOrEqual
)

// SelectableRangeSet is a sorted list of non-overlapping ranges,
// initialized as the full range (spec §4.H).
type SelectableRangeSet struct {
	Ranges []SelectableRange
}

// NewFullSet returns a set spanning every value.
func NewFullSet() SelectableRangeSet {
	return SelectableRangeSet{Ranges: []SelectableRange{FullRange()}}
}

func ptr(v types.TObject) *types.TObject { return &v }

// Intersect narrows every range in the set by operator op against value,
// producing zero, one, or two sub-ranges per input range (only <>/IS NOT
// ever splits a range).
func (s SelectableRangeSet) Intersect(op Operator, value types.TObject) SelectableRangeSet {
	var out []SelectableRange
	for _, r := range s.Ranges {
		out = append(out, intersectOne(r, op, value)...)
	}
	return SelectableRangeSet{Ranges: out}
}

func intersectOne(r SelectableRange, op Operator, value types.TObject) []SelectableRange {
	switch op {
	case OpIs, OpEqual:
		nr := SelectableRange{StartFlag: StartAtValue, StartValue: ptr(value), EndFlag: EndAtValue, EndValue: ptr(value)}
		if n := clamp(r, nr); !n.empty() {
			return []SelectableRange{n}
		}
		return nil
	case OpIsNot, OpNotEqual:
		left := clamp(r, SelectableRange{StartFlag: r.StartFlag, StartValue: r.StartValue, EndFlag: EndBeforeValue, EndValue: ptr(value)})
		right := clamp(r, SelectableRange{StartFlag: StartAfterValue, StartValue: ptr(value), EndFlag: r.EndFlag, EndValue: r.EndValue})
		var out []SelectableRange
		if !left.empty() {
			out = append(out, left)
		}
		if !right.empty() {
			out = append(out, right)
		}
		return out
	case OpGreater:
		n := clamp(r, SelectableRange{StartFlag: StartAfterValue, StartValue: ptr(value), EndFlag: r.EndFlag, EndValue: r.EndValue})
		if n.empty() {
			return nil
		}
		return []SelectableRange{n}
	case OpGreaterOrEqual:
		n := clamp(r, SelectableRange{StartFlag: StartAtValue, StartValue: ptr(value), EndFlag: r.EndFlag, EndValue: r.EndValue})
		if n.empty() {
			return nil
		}
		return []SelectableRange{n}
	case OpLess:
		n := clamp(r, SelectableRange{StartFlag: r.StartFlag, StartValue: r.StartValue, EndFlag: EndBeforeValue, EndValue: ptr(value)})
		if n.empty() {
			return nil
		}
		return []SelectableRange{n}
	case OpLessOrEqual:
		n := clamp(r, SelectableRange{StartFlag: r.StartFlag, StartValue: r.StartValue, EndFlag: EndAtValue, EndValue: ptr(value)})
		if n.empty() {
			return nil
		}
		return []SelectableRange{n}
	default:
		return []SelectableRange{r}
	}
}

// clamp intersects candidate against the bounding range r, tightening
// whichever of candidate's bounds is looser than r's.
func clamp(r, candidate SelectableRange) SelectableRange {
	out := candidate
	if r.StartValue != nil {
		if out.StartValue == nil || r.StartValue.Compare(*out.StartValue) > 0 ||
			(r.StartValue.Compare(*out.StartValue) == 0 && r.StartFlag == StartAfterValue) {
			out.StartValue = r.StartValue
			out.StartFlag = r.StartFlag
		}
	}
	if r.EndValue != nil {
		if out.EndValue == nil || r.EndValue.Compare(*out.EndValue) < 0 ||
			(r.EndValue.Compare(*out.EndValue) == 0 && r.EndFlag == EndBeforeValue) {
			out.EndValue = r.EndValue
			out.EndFlag = r.EndFlag
		}
	}
	return out
}

// Union merges a single-point or half-open constraint back into the set,
// re-sorting and coalescing any ranges that now overlap or touch.
func (s SelectableRangeSet) Union(op Operator, value types.TObject) SelectableRangeSet {
	var extra SelectableRange
	switch op {
	case OpIs, OpEqual:
		extra = SelectableRange{StartFlag: StartAtValue, StartValue: ptr(value), EndFlag: EndAtValue, EndValue: ptr(value)}
	case OpGreater:
		extra = SelectableRange{StartFlag: StartAfterValue, StartValue: ptr(value)}
	case OpGreaterOrEqual:
		extra = SelectableRange{StartFlag: StartAtValue, StartValue: ptr(value)}
	case OpLess:
		extra = SelectableRange{EndFlag: EndBeforeValue, EndValue: ptr(value)}
	case OpLessOrEqual:
		extra = SelectableRange{EndFlag: EndAtValue, EndValue: ptr(value)}
	default:
		extra = FullRange()
	}
	return s.UnionSet(SelectableRangeSet{Ranges: []SelectableRange{extra}})
}

// UnionSet merges other's ranges into s, sorting and coalescing overlapping
// or adjacent ranges so the result stays sorted and non-overlapping.
func (s SelectableRangeSet) UnionSet(other SelectableRangeSet) SelectableRangeSet {
	all := append(append([]SelectableRange{}, s.Ranges...), other.Ranges...)
	if len(all) == 0 {
		return SelectableRangeSet{}
	}
	sort.Slice(all, func(i, j int) bool { return startLess(all[i], all[j]) })
	merged := []SelectableRange{all[0]}
	for _, r := range all[1:] {
		last := &merged[len(merged)-1]
		if overlapsOrTouches(*last, r) {
			*last = coalesce(*last, r)
			continue
		}
		merged = append(merged, r)
	}
	return SelectableRangeSet{Ranges: merged}
}

func startLess(a, b SelectableRange) bool {
	if a.StartValue == nil {
		return b.StartValue != nil
	}
	if b.StartValue == nil {
		return false
	}
	c := a.StartValue.Compare(*b.StartValue)
	if c != 0 {
		return c < 0
	}
	return a.StartFlag == StartAtValue && b.StartFlag == StartAfterValue
}

func overlapsOrTouches(a, b SelectableRange) bool {
	if a.EndValue == nil || b.StartValue == nil {
		return true
	}
	c := a.EndValue.Compare(*b.StartValue)
	if c == types.Incomparable {
		return false
	}
	if c > 0 {
		return true
	}
	if c == 0 && (a.EndFlag == EndAtValue || b.StartFlag == StartAtValue) {
		return true
	}
	return false
}

func coalesce(a, b SelectableRange) SelectableRange {
	out := a
	if b.EndValue == nil {
		out.EndValue = nil
	} else if out.EndValue != nil {
		c := b.EndValue.Compare(*out.EndValue)
		if c > 0 || (c == 0 && b.EndFlag == EndAtValue) {
			out.EndValue = b.EndValue
			out.EndFlag = b.EndFlag
		}
	}
	return out
}
