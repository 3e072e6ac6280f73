package detection

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PersonRecognizer finds person-name candidates in case-normalized text. Returned spans
// only need Start and End.
type PersonRecognizer interface {
	RecognizePersons(ctx context.Context, text string) []Span
}

const (
	minPersonWords   = 2
	maxPersonWords   = 5
	minPersonLength  = 10
	maxPersonLength  = 60
	invalidNameRunes = "→←•○●\n\t"
)

// NERLayer tags person names found by a PersonRecognizer on case-normalized text.
type NERLayer struct {
	normalizer *CaseNormalizer
	recognizer PersonRecognizer
}

// NewNERLayer creates the person-name layer.
func NewNERLayer(normalizer *CaseNormalizer, recognizer PersonRecognizer) *NERLayer {
	return &NERLayer{normalizer: normalizer, recognizer: recognizer}
}

func (l *NERLayer) Name() string {
	return "ner"
}

func (l *NERLayer) DetectSpans(ctx context.Context, text string, claimed []Span) []Span {
	normalized := l.normalizer.Normalize(text)
	if len(normalized) != len(text) {
		normalized = text
	}

	spans := make([]Span, 0)
	for _, candidate := range l.recognizer.RecognizePersons(ctx, normalized) {
		start, end := candidate.Start, candidate.End
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		value := text[start:end]
		if !IsPersonName(value) || isException(value) || overlapsAny(claimed, start, end) {
			continue
		}
		span := Span{Start: start, End: end, Type: ValueTypePerson}
		claimed = append(claimed, span)
		spans = append(spans, span)
	}
	return spans
}

// IsPersonName applies the false-positive filter for person-name candidates.
func IsPersonName(value string) bool {
	value = strings.TrimSpace(value)
	if strings.ContainsAny(value, invalidNameRunes) {
		return false
	}

	length := utf8.RuneCountInString(value)
	if length < minPersonLength || length > maxPersonLength {
		return false
	}

	words := strings.Fields(value)
	if len(words) < minPersonWords || len(words) > maxPersonWords {
		return false
	}

	for _, word := range words {
		folded := fold(strings.Trim(word, ".,;:"))
		if inSet(institutionalVocabulary, folded) || inSet(boilerplateVerbs, folded) {
			return false
		}
		if !inSet(nameConnectors, folded) && utf8.RuneCountInString(folded) < 3 {
			return false
		}
	}
	return true
}

// TitleCaseRecognizer is a deterministic PersonRecognizer over runs of Title-case words.
//
// A run of at least two capitalized words qualifies on its own. A single word qualifies only
// right after a professional title or a cue word such as "contacto"; the layer's post-filter
// decides the rest.
type TitleCaseRecognizer struct {
	titles map[string]struct{}
}

// NewTitleCaseRecognizer creates a recognizer treating titles as name cues.
func NewTitleCaseRecognizer(titles []string) *TitleCaseRecognizer {
	set := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		set[fold(strings.TrimSuffix(strings.TrimSpace(title), "."))] = struct{}{}
	}
	return &TitleCaseRecognizer{titles: set}
}

type wordToken struct {
	start, end int
	core       string
	folded     string
	// newlineBefore is set when the gap before the token contains a line break.
	newlineBefore bool
	trailing      bool
	leading       bool
}

func tokenize(text string) []wordToken {
	ranges := wordRanges(text)
	tokens := make([]wordToken, 0, len(ranges))
	prevEnd := 0
	for _, r := range ranges {
		raw := text[r[0]:r[1]]
		core := strings.Trim(raw, wordPunctuation)
		lead := strings.Index(raw, core)
		if core == "" {
			lead = 0
		}
		tokens = append(tokens, wordToken{
			start:         r[0] + lead,
			end:           r[0] + lead + len(core),
			core:          core,
			folded:        fold(core),
			newlineBefore: strings.ContainsRune(text[prevEnd:r[0]], '\n'),
			trailing:      lead+len(core) < len(raw),
			leading:       lead > 0,
		})
		prevEnd = r[1]
	}
	return tokens
}

func isNameWord(s string) bool {
	if utf8.RuneCountInString(s) < 2 {
		return false
	}
	for i, r := range s {
		switch {
		case i == 0:
			if !unicode.IsUpper(r) {
				return false
			}
		case r == '-' || r == '\'':
		case !unicode.IsLetter(r) || unicode.IsUpper(r):
			return false
		}
	}
	return true
}

func (r *TitleCaseRecognizer) RecognizePersons(ctx context.Context, text string) []Span {
	tokens := tokenize(text)
	spans := make([]Span, 0)
	run := make([]int, 0, maxPersonWords)

	flush := func() {
		for len(run) > 0 && inSet(runConnectors, tokens[run[len(run)-1]].folded) {
			run = run[:len(run)-1]
		}
		for len(run) > 0 && (inSet(runConnectors, tokens[run[0]].folded) ||
			inSet(sentenceStarters, tokens[run[0]].folded)) {
			run = run[1:]
		}
		if len(run) > 0 && r.qualifies(tokens, run) {
			spans = append(spans, Span{
				Start: tokens[run[0]].start,
				End:   tokens[run[len(run)-1]].end,
				Type:  ValueTypePerson,
			})
		}
		run = run[:0]
	}

	for i, token := range tokens {
		if token.newlineBefore || token.leading {
			flush()
		}

		switch {
		case inSet(r.titles, token.folded) || inSet(personCues, token.folded):
			flush()
			continue
		case len(run) > 0 && inSet(runConnectors, token.folded) && !token.trailing:
			run = append(run, i)
			continue
		case isNameWord(token.core) &&
			!inSet(institutionalVocabulary, token.folded) &&
			!inSet(boilerplateVerbs, token.folded):
			run = append(run, i)
		default:
			flush()
			continue
		}

		if token.trailing {
			flush()
		}
	}
	flush()

	return spans
}

// qualifies reports whether the run holds enough capitalized words to be a full name, or
// follows a title or cue on the same line.
func (r *TitleCaseRecognizer) qualifies(tokens []wordToken, run []int) bool {
	words := 0
	for _, index := range run {
		if !inSet(runConnectors, tokens[index].folded) {
			words++
		}
	}
	if words >= minPersonWords {
		return true
	}

	first := run[0]
	for back := 1; back <= 2 && first-back >= 0; back++ {
		if tokens[first-back+1].newlineBefore {
			break
		}
		folded := tokens[first-back].folded
		if inSet(r.titles, folded) || inSet(personCues, folded) {
			return true
		}
	}
	return false
}
