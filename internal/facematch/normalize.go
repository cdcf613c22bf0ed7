package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// latinMarks is the Combining Diacritical Marks block. Marks of other scripts
// (Devanagari and Tamil vowel signs) are part of the letter and are kept.
var latinMarks = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036f, Stride: 1}},
}

// RemoveDiacritics removes Latin diacritical marks from a string (e.g., "Zoë" -> "Zoe").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(latinMarks)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes an employee name for search: lowercase, no
// Latin diacritics, dashes and initials' dots as spaces, single spaces.
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", ".", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
