// Package textsearch normalizes names and phone numbers so staff can search
// Arabic and Latin records the same way.
package textsearch

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold strips diacritics (including Arabic harakat) and case-folds s.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(strings.TrimSpace(out))
}

// Digits keeps only digits, mapping Arabic-Indic and Persian digits to ASCII.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		}
	}
	return b.String()
}

// Match reports whether query is contained in any of the text fields or,
// when it carries at least three digits, in the phone.
func Match(query, phone string, fields ...string) bool {
	q := Fold(query)
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(Fold(f), q) {
			return true
		}
	}
	if d := Digits(query); len(d) >= 3 && strings.Contains(Digits(phone), d) {
		return true
	}
	return false
}

var (
	collMu sync.Mutex
	coll   = collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
)

// Compare orders names with the root collation; it is safe for concurrent use.
func Compare(a, b string) int {
	collMu.Lock()
	defer collMu.Unlock()
	return coll.CompareString(a, b)
}
