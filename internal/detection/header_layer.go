package detection

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minHeaderNameLength    = 10
	minHeaderAddressLength = 8
	headerValueTrim        = " \t.,;:-"
)

// headerLabels maps a recognized label (upper case, single spaces) to the type of its value.
// Labels mapped to the empty type only terminate the value of a preceding label.
var headerLabels = map[string]ValueType{
	"PRESTADOR O CONCESIONARIO": ValueTypePerson,
	"REPRESENTANTE LEGAL":       ValueTypePerson,
	"LEGAL REPRESENTATIVE":      ValueTypePerson,
	"NOMBRE":                    ValueTypePerson,
	"NOMBRES":                   ValueTypePerson,
	"DIRECCIÓN":                 ValueTypeAddress,
	"DIRECCION":                 ValueTypeAddress,
	"DOMICILIO":                 ValueTypeAddress,
	"ADDRESS":                   ValueTypeAddress,
	"RUC":                       "",
	"CÉDULA":                    "",
	"CEDULA":                    "",
	"TELÉFONO":                  "",
	"TELEFONO":                  "",
	"CORREO":                    "",
	"EMAIL":                     "",
}

var headerLabelPattern = regexp.MustCompile(
	`(?i)\b(PRESTADOR\s+O\s+CONCESIONARIO|REPRESENTANTE\s+LEGAL|LEGAL\s+REPRESENTATIVE|NOMBRES?|DIRECCI[ÓO]N|DOMICILIO|ADDRESS|RUC|C[ÉE]DULA|TEL[ÉE]FONO|CORREO|EMAIL)\s*:`,
)

// HeaderLayer extracts values that follow a recognized label in the document header.
type HeaderLayer struct {
	window int
}

// NewHeaderLayer creates a layer scanning the first window characters of the text.
func NewHeaderLayer(window int) *HeaderLayer {
	return &HeaderLayer{window: window}
}

func (l *HeaderLayer) Name() string {
	return "header"
}

func (l *HeaderLayer) DetectSpans(ctx context.Context, text string, claimed []Span) []Span {
	header := text[:prefixBytes(text, l.window)]
	labels := headerLabelPattern.FindAllStringSubmatchIndex(header, -1)
	spans := make([]Span, 0)

	for i, loc := range labels {
		label := strings.ToUpper(strings.Join(strings.Fields(header[loc[2]:loc[3]]), " "))
		valueType := headerLabels[label]
		if valueType == "" {
			continue
		}

		start := loc[1]
		end := lineEnd(header, start)
		if i+1 < len(labels) && labels[i+1][0] < end {
			end = labels[i+1][0]
		}
		end = firstClaimedStart(claimed, start, end)
		if end <= start {
			continue
		}
		if valueType == ValueTypePerson {
			end = nameEnd(header, start, end)
		}

		start, end = trimRange(header, start, end, headerValueTrim)
		if start >= end || overlapsAny(claimed, start, end) {
			continue
		}

		value := header[start:end]
		length := utf8.RuneCountInString(value)
		if valueType == ValueTypePerson && length < minHeaderNameLength {
			continue
		}
		if valueType == ValueTypeAddress && length < minHeaderAddressLength {
			continue
		}
		if isException(value) {
			continue
		}

		span := Span{Start: start, End: end, Type: valueType}
		claimed = append(claimed, span)
		spans = append(spans, span)
	}

	return spans
}

// prefixBytes returns the byte length of the first n runes of s.
func prefixBytes(s string, n int) int {
	if n <= 0 {
		return len(s)
	}
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}

// suffixStart returns the byte offset where the last n runes of s begin.
func suffixStart(s string, n int) int {
	if n <= 0 {
		return 0
	}
	total := utf8.RuneCountInString(s)
	if total <= n {
		return 0
	}
	return prefixBytes(s, total-n)
}

func lineEnd(s string, from int) int {
	if i := strings.IndexByte(s[from:], '\n'); i >= 0 {
		return from + i
	}
	return len(s)
}

// nameEnd cuts [start, end) at the first rune that cannot belong to a person name.
func nameEnd(s string, start, end int) int {
	for i, r := range s[start:end] {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) && !strings.ContainsRune(".-'", r) {
			return start + i
		}
	}
	return end
}

func trimRange(s string, start, end int, cutset string) (int, int) {
	value := s[start:end]
	trimmed := strings.TrimLeft(value, cutset)
	start += len(value) - len(trimmed)
	trimmed = strings.TrimRight(trimmed, cutset)
	return start, start + len(trimmed)
}
