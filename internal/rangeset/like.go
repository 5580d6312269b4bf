package rangeset

// DefaultEscape is used when a LIKE expression does not override it (§4.H).
const DefaultEscape = '\\'

// ExtractPrefix returns the literal run of characters before the first
// unescaped wildcard (% or _); hasTail reports whether a wildcard follows,
// i.e. whether the pre-search range alone does NOT decide the match.
func ExtractPrefix(pattern string, escape rune) (prefix string, hasTail bool) {
	r := []rune(pattern)
	var out []rune
	for i := 0; i < len(r); i++ {
		c := r[i]
		if c == escape && i+1 < len(r) {
			out = append(out, r[i+1])
			i++
			continue
		}
		if c == '%' || c == '_' {
			return string(out), true
		}
		out = append(out, c)
	}
	return string(out), false
}

// PrefixRange builds the pre-search range [prefix, prefix+1) that narrows a
// lexicographically collated scan before the LIKE engine evaluates the
// wildcard tail character-by-character (spec §4.H / scenario 3).
func PrefixRange(prefix string) (start, end string, ok bool) {
	if prefix == "" {
		return "", "", false
	}
	return prefix, incrementString(prefix), true
}

func incrementString(s string) string {
	r := []rune(s)
	r[len(r)-1]++
	return string(r)
}

// MatchLike reports whether value matches the LIKE pattern, honoring
// escape for literal %, _ and the escape character itself. `_` consumes
// exactly one character; `%` tries every possible length via recursion.
func MatchLike(pattern, value string, escape rune) bool {
	return matchLike([]rune(pattern), []rune(value), escape, 0, 0)
}

func matchLike(p, v []rune, escape rune, pi, vi int) bool {
	if pi == len(p) {
		return vi == len(v)
	}
	c := p[pi]
	if c == escape && pi+1 < len(p) {
		lit := p[pi+1]
		if vi < len(v) && v[vi] == lit {
			return matchLike(p, v, escape, pi+2, vi+1)
		}
		return false
	}
	if c == '_' {
		if vi < len(v) {
			return matchLike(p, v, escape, pi+1, vi+1)
		}
		return false
	}
	if c == '%' {
		for k := vi; k <= len(v); k++ {
			if matchLike(p, v, escape, pi+1, k) {
				return true
			}
		}
		return false
	}
	if vi < len(v) && v[vi] == c {
		return matchLike(p, v, escape, pi+1, vi+1)
	}
	return false
}
