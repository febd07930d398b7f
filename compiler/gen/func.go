package gen

import (
	"go/token"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	acronymsMu sync.RWMutex
	acronyms   = map[string]bool{
		"ID": true, "URL": true, "UUID": true, "API": true, "SQL": true,
		"HTML": true, "HTTP": true, "JSON": true, "IP": true, "VAT": true,
	}
)

// AddAcronym registers a word that pascal writes in upper case.
func AddAcronym(word string) {
	acronymsMu.Lock()
	defer acronymsMu.Unlock()
	acronyms[strings.ToUpper(word)] = true
}

// words splits s on every rune that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// pascal converts a snake_case name to PascalCase: partner_id becomes
// PartnerID.
func pascal(s string) string {
	caser := cases.Title(language.Und, cases.NoLower)
	acronymsMu.RLock()
	defer acronymsMu.RUnlock()
	var b strings.Builder
	for _, w := range words(s) {
		if up := strings.ToUpper(w); acronyms[up] {
			b.WriteString(up)
			continue
		}
		b.WriteString(caser.String(w))
	}
	out := b.String()
	if out == "" || unicode.IsDigit(rune(out[0])) {
		out = "X" + out
	}
	return out
}

// packageName returns the Go package name of a model: sale_order
// becomes saleorder.
func packageName(model string) string {
	var b strings.Builder
	for _, w := range words(model) {
		b.WriteString(cases.Fold().String(w))
	}
	name := b.String()
	switch {
	case name == "":
		return "model"
	case unicode.IsDigit(rune(name[0])):
		return "m" + name
	case token.IsKeyword(name):
		return name + "model"
	}
	return name
}
