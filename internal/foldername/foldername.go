// Package foldername derives filesystem-safe Person folder names from
// operator-entered identities, grounded on the corpus's person-name
// normalization (used there for duplicate-name comparison, here for the
// on-disk People/<name> folder itself).
package foldername

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength caps a derived folder name so it never exceeds common
// filesystem component limits even for a long freeform user_name.
const MaxLength = 80

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// DeriveFolderSafe converts a user-entered name into a folder-safe form:
// diacritics stripped, only alphanumerics/space/hyphen retained, spaces
// collapsed to single underscores, and length capped at MaxLength.
func DeriveFolderSafe(userName string) string {
	s := RemoveDiacritics(userName)

	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
			lastWasSpace = false
		case r == ' ' || r == '_':
			if !lastWasSpace && b.Len() > 0 {
				b.WriteRune('_')
				lastWasSpace = true
			}
		default:
			// drop punctuation outside the allowed set
		}
	}

	out := strings.Trim(b.String(), "_")
	if len(out) > MaxLength {
		out = strings.TrimRight(out[:MaxLength], "_")
	}
	if out == "" {
		out = "Person"
	}
	return out
}

// NormalizePersonName normalizes a name for equality comparison (lowercase,
// no diacritics, hyphens folded to spaces).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return name
}
