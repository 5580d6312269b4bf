package rangeset

import "strings"

// RegexMatcher is the external collaborator regex evaluation is delegated
// to (§1: regex evaluation is out of scope for the core).
type RegexMatcher interface {
	Match(pattern, flags, value string) (bool, error)
}

// ExtractFlags splits a `/pattern/flags` Perl-style prefix into its pattern
// and flag parts; a bare pattern (no leading/trailing slash) is returned
// unchanged with empty flags.
func ExtractFlags(expr string) (pattern, flags string) {
	if len(expr) < 2 || expr[0] != '/' {
		return expr, ""
	}
	end := strings.LastIndexByte(expr, '/')
	if end <= 0 {
		return expr, ""
	}
	return expr[1:end], expr[end+1:]
}
