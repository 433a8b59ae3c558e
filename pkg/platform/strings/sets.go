// Package strings holds the canonical form for the small string sets stored
// on consent records (category allow-lists) and a field-name helper.
package strings

import (
	"slices"
	"strings"
	"unicode"
)

// Canonical is the stored form of one set member: trimmed and lowercased.
func Canonical(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizeSet returns values in canonical form, sorted, without blanks or
// duplicates. Two records holding the same set compare equal.
//
//	NormalizeSet([]string{"  Puzzles ", "art", "puzzles", ""}) // [art puzzles]
func NormalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if c := Canonical(v); c != "" {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// SetContains reports whether set holds v, comparing canonical forms.
func SetContains(set []string, v string) bool {
	want := Canonical(v)
	return slices.ContainsFunc(set, func(m string) bool { return Canonical(m) == want })
}

// ToSnakeCase converts a Go field name to snake_case ("SpendingLimit" ->
// "spending_limit", "PackID" -> "pack_id").
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
