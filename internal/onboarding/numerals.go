// Package onboarding implements the fixed intake flow gating normal
// conversation: gender, location, and age, collected one question at a time.
// All decisions are pure functions of (current step, raw input).
package onboarding

import "strings"

// FoldNumerals maps Arabic-Indic (U+0660..U+0669) and Eastern Arabic-Indic
// (U+06F0..U+06F9) digits to their Latin equivalents, so "٣" and "3" validate
// identically.
func FoldNumerals(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, s)
}

// normalize lowercases, trims, and folds numerals for matching.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(FoldNumerals(s)))
}
