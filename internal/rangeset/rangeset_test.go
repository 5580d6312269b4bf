package rangeset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ponydb/internal/types"
)

func TestIntersectEqualThenNotEqualPartitionsFullSet(t *testing.T) {
	full := NewFullSet()
	five := types.Int(5)

	eq := full.Intersect(OpEqual, five)
	require.Len(t, eq.Ranges, 1)
	require.True(t, eq.Ranges[0].Contains(five))
	require.False(t, eq.Ranges[0].Contains(types.Int(6)))

	neq := full.Intersect(OpNotEqual, five)
	require.Len(t, neq.Ranges, 2)
	require.False(t, neq.Ranges[0].Contains(five))
	require.True(t, neq.Ranges[0].Contains(types.Int(4)))
	require.True(t, neq.Ranges[1].Contains(types.Int(6)))
}

func TestIntersectGreaterThenLessOrEqualBetween(t *testing.T) {
	full := NewFullSet()
	between := full.Intersect(OpGreaterOrEqual, types.Int(1)).Intersect(OpLess, types.Int(10))
	require.Len(t, between.Ranges, 1)
	require.True(t, between.Ranges[0].Contains(types.Int(1)))
	require.True(t, between.Ranges[0].Contains(types.Int(9)))
	require.False(t, between.Ranges[0].Contains(types.Int(10)))
}

func TestUnionSetMergesOverlapping(t *testing.T) {
	a := NewFullSet().Intersect(OpLess, types.Int(5))
	b := NewFullSet().Intersect(OpGreaterOrEqual, types.Int(3))
	merged := a.UnionSet(b)
	require.Len(t, merged.Ranges, 1)
	require.True(t, merged.Ranges[0].Contains(types.Int(0)))
	require.True(t, merged.Ranges[0].Contains(types.Int(100)))
}

func TestMatchLikeEdgeCases(t *testing.T) {
	cases := []struct {
		pattern, value string
		want           bool
	}{
		{"abc%", "abc", true},
		{"abc_", "abc", false},
		{"a\\__", "a_b", true},
		{"cab\\%", "cab", false},
		{"\\%ab", "%ab", true},
	}
	for _, c := range cases {
		got := MatchLike(c.pattern, c.value, DefaultEscape)
		require.Equalf(t, c.want, got, "MatchLike(%q, %q)", c.pattern, c.value)
	}
}

func TestExtractPrefixAndRange(t *testing.T) {
	prefix, hasTail := ExtractPrefix("Tob%er", DefaultEscape)
	require.Equal(t, "Tob", prefix)
	require.True(t, hasTail)

	start, end, ok := PrefixRange(prefix)
	require.True(t, ok)
	require.Equal(t, "Tob", start)
	require.Equal(t, "Toc", end)
}

func TestExtractFlags(t *testing.T) {
	pattern, flags := ExtractFlags("/^a.*z$/i")
	require.Equal(t, "^a.*z$", pattern)
	require.Equal(t, "i", flags)

	pattern, flags = ExtractFlags("plain")
	require.Equal(t, "plain", pattern)
	require.Empty(t, flags)
}
