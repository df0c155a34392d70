package parser

import (
	"strings"
	"unicode"

	"gitlab.com/kabirsadiq/buildtrack/internal/models"
)

// Entities is the result of classifying a message against the rule tables.
type Entities struct {
	Project  string
	Vendor   string
	Category string
}

// Extract derives project, vendor and category from raw message text.
// The same text and ruleset always produce the same result: every table is
// walked in declaration order.
func Extract(text string, rules Ruleset) Entities {
	lower := strings.ToLower(text)

	return Entities{
		Project:  extractProject(lower, rules),
		Vendor:   extractVendor(text, lower, rules),
		Category: extractCategory(lower, rules),
	}
}

func extractProject(lower string, rules Ruleset) string {
	for _, pa := range rules.ProjectAliases {
		if strings.Contains(lower, pa.Alias) {
			return pa.Project
		}
	}
	return models.ProjectUnassigned
}

func extractCategory(lower string, rules Ruleset) string {
	for _, cr := range rules.CategoryRules {
		if strings.Contains(lower, cr.Keyword) {
			return cr.Category
		}
	}
	return models.CategoryOther
}

// extractVendor first checks the known-vendor directory, then falls back to
// scanning words right to left for the first one that is not an amount, a
// unit suffix or a classification keyword.
func extractVendor(text, lower string, rules Ruleset) string {
	for _, vendor := range rules.KnownVendors {
		if strings.Contains(lower, strings.ToLower(vendor)) {
			return vendor
		}
	}

	skip := rules.skipSet()
	words := strings.Fields(text)
	for i := len(words) - 1; i >= 0; i-- {
		word := strings.TrimFunc(words[i], func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" || startsWithDigit(word) {
			continue
		}
		lowerWord := strings.ToLower(word)
		if _, ok := skip[lowerWord]; ok {
			continue
		}
		if matchesCategoryKeyword(lowerWord, rules) {
			continue
		}
		return titleCase(word)
	}

	return models.VendorUnknown
}

// skipSet collects every token the vendor fallback must ignore: unit
// suffixes, filler words, category keywords and the individual words of
// each project alias.
func (r Ruleset) skipSet() map[string]struct{} {
	skip := map[string]struct{}{
		"k": {}, "m": {}, "mil": {}, "million": {}, "thousand": {},
	}
	for _, w := range r.SkipWords {
		skip[w] = struct{}{}
	}
	for _, cr := range r.CategoryRules {
		skip[cr.Keyword] = struct{}{}
	}
	for _, pa := range r.ProjectAliases {
		for _, w := range strings.Fields(pa.Alias) {
			skip[w] = struct{}{}
		}
	}
	return skip
}

// matchesCategoryKeyword reports whether a word carries a category keyword,
// so "blocks" is skipped by the "block" rule.
func matchesCategoryKeyword(lowerWord string, rules Ruleset) bool {
	for _, cr := range rules.CategoryRules {
		if strings.Contains(lowerWord, cr.Keyword) {
			return true
		}
	}
	return false
}

func startsWithDigit(word string) bool {
	for _, r := range word {
		return unicode.IsDigit(r)
	}
	return false
}

// TitleCase capitalizes each word of a phrase, for chat input that names a
// vendor directly.
func TitleCase(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = titleCase(w)
	}
	return strings.Join(words, " ")
}

func titleCase(word string) string {
	runes := []rune(strings.ToLower(word))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
