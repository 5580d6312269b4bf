package types

import (
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collators caches one *collate.Collator per (locale, strength) pair;
// building a collator is not free, and the same locale is compared
// thousands of times during an index scan.
var (
	collatorsMu sync.Mutex
	collators   = map[string]*collate.Collator{}
)

func collatorFor(s String) *collate.Collator {
	key := s.Locale
	switch s.Strength {
	case StrengthPrimary:
		key += "#p"
	case StrengthSecondary:
		key += "#s"
	case StrengthTertiary:
		key += "#t"
	default:
		key += "#i"
	}
	if s.Decompose {
		key += "#d"
	}
	collatorsMu.Lock()
	defer collatorsMu.Unlock()
	if c, ok := collators[key]; ok {
		return c
	}
	tag, err := language.Parse(s.Locale)
	if err != nil {
		tag = language.Und
	}
	opts := []collate.Option{}
	switch s.Strength {
	case StrengthPrimary:
		opts = append(opts, collate.Strength(collate.Primary))
	case StrengthSecondary:
		opts = append(opts, collate.Strength(collate.Secondary))
	case StrengthTertiary:
		opts = append(opts, collate.Strength(collate.Tertiary))
	default:
		opts = append(opts, collate.Strength(collate.Identical))
	}
	if s.Decompose {
		// Decompose requests canonically-equivalent composed and
		// decomposed forms compare equal, the same relaxation
		// IgnoreDiacritics gives at the comparison's strength level.
		opts = append(opts, collate.IgnoreDiacritics(true))
	}
	c := collate.New(tag, opts...)
	collators[key] = c
	return c
}

// compareStrings implements the lexicographic-by-default, locale-collated
// when a Locale is set, comparison contract of a String TObject.
func compareStrings(a, b String) int {
	if a.Locale == "" && b.Locale == "" {
		return strings.Compare(a.Value, b.Value)
	}
	c := collatorFor(a)
	return c.CompareString(a.Value, b.Value)
}
