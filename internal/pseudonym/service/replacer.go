package service

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/allisson/pseudonymizer/internal/detection"
)

// minVariantLength is the shortest name-order variant worth replacing.
const minVariantLength = 5

// Replacement substitutes every occurrence of a value with Token.
type Replacement struct {
	Token string
	// Spans are the detected occurrences; they are replaced even when no variant pattern
	// matches them.
	Spans []detection.Span
	// Variants are the surface forms searched case-insensitively and with flexible whitespace.
	Variants []string
}

// Occurrence is one accepted substitution: text[Start:End] becomes the token of the
// replacement at Index.
type Occurrence struct {
	Start, End int
	Index      int
}

// Locate resolves where each replacement applies without substituting anything. Overlapping
// candidates are resolved longest first; equal-length ties at the same place go to the earlier
// replacement. The result is ordered by Start.
func Locate(text string, replacements []Replacement) []Occurrence {
	candidates := make([]Occurrence, 0)
	for i, replacement := range replacements {
		for _, span := range replacement.Spans {
			candidates = append(candidates, Occurrence{Start: span.Start, End: span.End, Index: i})
		}
		for _, variant := range replacement.Variants {
			pattern := variantPattern(variant)
			if pattern == nil {
				continue
			}
			for _, loc := range pattern.FindAllStringIndex(text, -1) {
				if wordBounded(text, loc[0], loc[1]) {
					candidates = append(candidates, Occurrence{Start: loc[0], End: loc[1], Index: i})
				}
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		li, lj := candidates[i].End-candidates[i].Start, candidates[j].End-candidates[j].Start
		if li != lj {
			return li > lj
		}
		return candidates[i].Start < candidates[j].Start
	})

	accepted := make([]Occurrence, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Start < 0 || candidate.End > len(text) || candidate.Start >= candidate.End {
			continue
		}
		overlapping := false
		for _, other := range accepted {
			if candidate.Start < other.End && other.Start < candidate.End {
				overlapping = true
				break
			}
		}
		if !overlapping {
			accepted = append(accepted, candidate)
		}
	}

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].Start < accepted[j].Start
	})
	return accepted
}

// Substitute writes tokens[o.Index] over every occurrence. occurrences must come from Locate.
func Substitute(text string, occurrences []Occurrence, tokens []string) string {
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, o := range occurrences {
		b.WriteString(text[last:o.Start])
		b.WriteString(tokens[o.Index])
		last = o.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// Replace substitutes all replacements into text in a single pass and returns the new text and
// the number of occurrences replaced. Inserted tokens are never matched again.
func Replace(text string, replacements []Replacement) (string, int) {
	occurrences := Locate(text, replacements)
	tokens := make([]string, len(replacements))
	for i, replacement := range replacements {
		tokens[i] = replacement.Token
	}
	return Substitute(text, occurrences, tokens), len(occurrences)
}

// variantPattern matches variant case-insensitively with any whitespace between its words.
func variantPattern(variant string) *regexp.Regexp {
	words := strings.Fields(variant)
	if len(words) == 0 {
		return nil
	}
	quoted := make([]string, len(words))
	for i, word := range words {
		quoted[i] = regexp.QuoteMeta(word)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, `\s+`))
}

// wordBounded reports whether text[start:end] is not glued to a letter or digit on either side.
func wordBounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// NameVariants returns the multi-word order variants of a person name: surnames and given
// names swapped. Single words are never returned, so partial names are left untouched.
func NameVariants(name string) []string {
	words := strings.Fields(name)
	variants := make([]string, 0, 2)

	switch {
	case len(words) >= 4:
		variants = append(variants, strings.Join(append(append([]string{}, words[2:]...), words[:2]...), " "))
	case len(words) == 3:
		variants = append(variants,
			strings.Join([]string{words[2], words[0], words[1]}, " "),
			strings.Join([]string{words[1], words[2], words[0]}, " "),
		)
	case len(words) == 2:
		variants = append(variants, words[1]+" "+words[0])
	}

	result := make([]string, 0, len(variants))
	for _, variant := range variants {
		if utf8.RuneCountInString(variant) >= minVariantLength && variant != strings.Join(words, " ") {
			result = append(result, variant)
		}
	}
	return result
}
