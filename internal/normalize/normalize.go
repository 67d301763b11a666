// Package normalize canonicalizes payee text into comparison keys.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Payee lower-cases raw, drops every rune that is not an ASCII letter or
// digit, a Latin accented letter, a CJK ideograph or whitespace, and
// collapses runs of whitespace to single spaces. Payee is idempotent.
func Payee(raw string) string {
	if raw == "" {
		return ""
	}

	// Casers carry state, so each call gets its own.
	lowered := cases.Lower(language.Und).String(norm.NFC.String(raw))

	var b strings.Builder
	b.Grow(len(lowered))
	pendingSpace := false
	for _, r := range lowered {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case keep(r):
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Len returns the length of a normalized string in runes.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

func keep(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 0x00C0 && r <= 0x024F:
		return true
	case r >= 0x4E00 && r <= 0x9FFF:
		return true
	}
	return false
}

// IsExtended reports whether r survived normalization but is not ASCII.
func IsExtended(r rune) bool {
	return r > unicode.MaxASCII && keep(r)
}
