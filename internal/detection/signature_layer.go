package detection

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minSignerLength = 5

var signerLabelPattern = regexp.MustCompile(
	`(?i)\b(?:elaborado|revisado|aprobado|prepared|reviewed|approved)\s+(?:por|by)\s*:[ \t]*`,
)

// SignatureLayer extracts signer names from the closing block of a document.
//
// Signer lines are "Elaborado por:", "Revisado por:" or "Aprobado por:" (or their English
// forms) followed by an optional title and a name, plus lines that open with a listed title.
// A signer line whose name cannot be parsed, typically because of an unlisted title, is
// logged with its offset and skipped.
type SignatureLayer struct {
	window int
	titles map[string]struct{}
	logger *slog.Logger
}

// NewSignatureLayer creates a layer scanning the last window characters of the text.
func NewSignatureLayer(window int, titles []string, logger *slog.Logger) *SignatureLayer {
	set := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		set[fold(strings.TrimSuffix(strings.TrimSpace(title), "."))] = struct{}{}
	}
	return &SignatureLayer{window: window, titles: set, logger: logger}
}

func (l *SignatureLayer) Name() string {
	return "signature"
}

func (l *SignatureLayer) DetectSpans(ctx context.Context, text string, claimed []Span) []Span {
	base := suffixStart(text, l.window)
	block := text[base:]
	spans := make([]Span, 0)
	consumed := make(map[int]struct{})

	emit := func(start, end int) {
		start, end = base+start, base+end
		if overlapsAny(claimed, start, end) || isException(text[start:end]) {
			return
		}
		span := Span{Start: start, End: end, Type: ValueTypePerson}
		claimed = append(claimed, span)
		spans = append(spans, span)
	}

	labels := signerLabelPattern.FindAllStringIndex(block, -1)
	for i, loc := range labels {
		from := loc[1]
		to := lineEnd(block, from)
		if i+1 < len(labels) && labels[i+1][0] < to {
			to = labels[i+1][0]
		}
		consumed[lineStart(block, loc[0])] = struct{}{}

		if strings.TrimSpace(block[from:to]) == "" {
			next, ok := nextNonBlankLine(block, to)
			if to != lineEnd(block, from) || !ok {
				l.warnUnparsed(base + loc[0])
				continue
			}
			consumed[next] = struct{}{}
			from, to = next, lineEnd(block, next)
			if i+1 < len(labels) && labels[i+1][0] < to {
				to = labels[i+1][0]
			}
		}

		start, end, ok := l.parseSigner(block, from, to)
		if !ok {
			l.warnUnparsed(base + loc[0])
			continue
		}
		emit(start, end)
	}

	for offset := 0; offset < len(block); offset = lineEnd(block, offset) + 1 {
		if _, done := consumed[offset]; done {
			continue
		}
		line := block[offset:lineEnd(block, offset)]
		fields := strings.Fields(line)
		if len(fields) == 0 || !l.isTitle(fields[0]) {
			continue
		}
		start, end, ok := l.parseSigner(block, offset, offset+len(line))
		if !ok {
			l.warnUnparsed(base + offset)
			continue
		}
		emit(start, end)
	}

	return spans
}

func (l *SignatureLayer) isTitle(word string) bool {
	return inSet(l.titles, fold(strings.TrimSuffix(word, ".")))
}

// parseSigner finds the name in s[from:to] after an optional title. The name ends at the
// first run of two or more spaces, the first non-name word or the end of the range.
func (l *SignatureLayer) parseSigner(s string, from, to int) (int, int, bool) {
	segment := s[from:to]
	ranges := wordRanges(segment)
	if len(ranges) > 0 && l.isTitle(segment[ranges[0][0]:ranges[0][1]]) {
		ranges = ranges[1:]
	}

	start, end, words := -1, -1, 0
	for i, r := range ranges {
		if i > 0 && r[0]-ranges[i-1][1] >= 2 {
			break
		}
		word := segment[r[0]:r[1]]
		core := strings.TrimRight(word, ".,;")
		if !isSignerWord(core) {
			break
		}
		// An abbreviation in first position is a title missing from the allow-list.
		if words == 0 && core != word && strings.HasSuffix(word, ".") {
			return 0, 0, false
		}
		if start < 0 {
			start = r[0]
		}
		end = r[0] + len(core)
		words++
		if core != word {
			break
		}
	}

	if words < 2 || utf8.RuneCountInString(segment[start:end]) < minSignerLength {
		return 0, 0, false
	}
	return from + start, from + end, true
}

func isSignerWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && r != '-' && r != '\'' {
			return false
		}
	}
	return true
}

func (l *SignatureLayer) warnUnparsed(offset int) {
	l.logger.Warn("signature line not parsed", slog.Int("offset", offset))
}

func lineStart(s string, at int) int {
	return strings.LastIndexByte(s[:at], '\n') + 1
}

func nextNonBlankLine(s string, from int) (int, bool) {
	for offset := from + 1; offset < len(s); offset = lineEnd(s, offset) + 1 {
		if strings.TrimSpace(s[offset:lineEnd(s, offset)]) != "" {
			return offset, true
		}
	}
	return 0, false
}
