package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeIdent normalizes an identifier for fuzzy matching.
// The pipeline:
//  1. Tokenize CamelCase and separator-delimited words.
//  2. Strip diacritics (NFD decompose, drop combining marks).
//  3. Case-fold to lower and join without separators.
func NormalizeIdent(s string) string {
	return strings.Join(NormalizeTokens(s), "")
}

// NormalizeTokens returns the lowercased, diacritic-free tokens of an
// identifier. "personal.LastName" -> ["personal", "last", "name"].
func NormalizeTokens(s string) []string {
	tokens := tokenize(s)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = stripDiacritics(strings.ToLower(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// tokenize splits on separators (_, -, ., /, spaces) and CamelCase
// boundaries. "netIncomeMonthly" -> ["net", "Income", "Monthly"].
func tokenize(s string) []string {
	if s == "" {
		return nil
	}

	var tokens []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if isSeparator(r) {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			continue
		}

		if i > 0 && startsNewToken(runes, i) && current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// startsNewToken reports whether runes[i] begins a CamelCase token.
// Handles "customerName" -> customer|Name and "XMLParser" -> XML|Parser.
func startsNewToken(runes []rune, i int) bool {
	if !unicode.IsUpper(runes[i]) {
		return false
	}
	if !unicode.IsUpper(runes[i-1]) {
		return true
	}
	// Acronym followed by a lowercase letter: the last upper starts the
	// next token ("HTTPResponse" -> HTTP|Response).
	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}

func isSeparator(r rune) bool {
	switch r {
	case '_', '-', '.', '/', ' ', '\t':
		return true
	}
	return false
}

// stripDiacritics removes diacritical marks so that German umlauts and
// similar accents do not defeat matching ("Straße" vs "strasse" stays
// close, "Adresse" vs "Adreße" identical).
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var result strings.Builder
	result.Grow(len(decomposed))

	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r == 'ß' {
			result.WriteString("ss")
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}
