package detection

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// builtinAcronyms are kept in upper case by CaseNormalizer.
var builtinAcronyms = []string{
	"ARCOTEL", "SAI", "GFC", "CTDG", "CCON", "DEDA", "CTRP", "CADF",
	"RUC", "LOT", "COA", "USD", "ROTH", "TH", "PAS", "NER", "IA", "AI",
	"PDF", "HTML", "API", "HTTP", "HTTPS", "URL", "XML", "JSON",
	"CAFI", "SGD", "CZ2", "QUITO", "GUAYAQUIL", "CUENCA",
}

const normalizeTrim = ".,;:()[]{}"

// CaseNormalizer rewrites all-uppercase words to Title case without moving any byte offset.
type CaseNormalizer struct {
	acronyms map[string]struct{}
}

// NewCaseNormalizer creates a normalizer preserving the built-in acronyms plus extra.
func NewCaseNormalizer(extra []string) *CaseNormalizer {
	acronyms := toSet(builtinAcronyms...)
	for _, acronym := range extra {
		acronyms[strings.ToUpper(strings.TrimSpace(acronym))] = struct{}{}
	}
	return &CaseNormalizer{acronyms: acronyms}
}

// Normalize returns text with every upper-case word longer than two letters in Title case.
// Acronyms and words whose Title form has a different byte length are left untouched, so
// offsets into the result are valid offsets into text.
func (n *CaseNormalizer) Normalize(text string) string {
	caser := cases.Title(language.Spanish)
	buf := []byte(text)

	for _, word := range wordRanges(text) {
		raw := text[word[0]:word[1]]
		core := strings.Trim(raw, normalizeTrim)
		if core == "" || inSet(n.acronyms, core) || !isUpperWord(core) {
			continue
		}
		titled := caser.String(core)
		if len(titled) != len(core) {
			continue
		}
		offset := word[0] + strings.Index(raw, core)
		copy(buf[offset:], titled)
	}

	return string(buf)
}

func isUpperWord(s string) bool {
	if utf8.RuneCountInString(s) <= 2 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) || unicode.IsLower(r) {
			return false
		}
	}
	return true
}

// wordRanges returns the [start, end) byte ranges of whitespace-separated words.
func wordRanges(text string) [][2]int {
	ranges := make([][2]int, 0)
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				ranges = append(ranges, [2]int{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		ranges = append(ranges, [2]int{start, len(text)})
	}
	return ranges
}
