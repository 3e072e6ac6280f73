package detection

import (
	"context"
	"regexp"
)

type patternRule struct {
	valueType ValueType
	re        *regexp.Regexp
	// group selects the submatch holding the value; 0 is the whole match.
	group int
}

// Rules run in order, so a 13-digit tax ID is claimed before the 10-digit rule can see it.
var patternRules = []patternRule{
	{valueType: ValueTypeTaxID, re: regexp.MustCompile(`\b\d{13}\b`)},
	{valueType: ValueTypeNationalID, re: regexp.MustCompile(`\b\d{10}\b`)},
	{valueType: ValueTypeEmail, re: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{
		valueType: ValueTypePhone,
		re:        regexp.MustCompile(`(?:\+593\s?)?\b0[2-9]\d{6,8}\b(?:\s?/\s?\d{7,10}\b)?`),
	},
	{
		valueType: ValueTypeAddress,
		re: regexp.MustCompile(
			`(?:^|[^\p{L}\p{N}])([\p{Lu}0-9]+\s+Y\s+[\p{Lu}0-9]+,\s+(?:CASA|EDIFICIO|PISO|DEPARTAMENTO|LOCAL)\s+[\p{Lu}0-9-]+)`,
		),
		group: 1,
	},
}

// PatternLayer tags fixed-format identifiers with deterministic rules.
type PatternLayer struct {
	rules []patternRule
}

// NewPatternLayer creates the structured-pattern layer.
func NewPatternLayer() *PatternLayer {
	return &PatternLayer{rules: patternRules}
}

func (l *PatternLayer) Name() string {
	return "pattern"
}

func (l *PatternLayer) DetectSpans(ctx context.Context, text string, claimed []Span) []Span {
	spans := make([]Span, 0)

	for _, rule := range l.rules {
		for _, loc := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2*rule.group], loc[2*rule.group+1]
			if start < 0 || overlapsAny(claimed, start, end) {
				continue
			}
			if isException(text[start:end]) {
				continue
			}
			span := Span{Start: start, End: end, Type: rule.valueType}
			claimed = append(claimed, span)
			spans = append(spans, span)
		}
	}

	return spans
}
