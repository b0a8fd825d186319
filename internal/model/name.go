package model

import (
	"strings"
	"unicode"
)

var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "ltd": true, "limited": true,
	"corp": true, "corporation": true, "co": true, "pvt": true, "private": true,
	"gmbh": true, "plc": true,
}

// NormalizeCompanyName reduces a company name to a comparable form:
// lower-cased, punctuation dropped, legal suffixes removed. Two names refer
// to the same company only if their normalized forms are equal.
func NormalizeCompanyName(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	})
	for len(fields) > 1 && legalSuffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// PlaceholderCompanyName reports whether name carries no identity.
func PlaceholderCompanyName(name string) bool {
	switch NormalizeCompanyName(name) {
	case "", "unknown", "n a", "na", "confidential", "stealth", "undisclosed":
		return true
	}
	return false
}
