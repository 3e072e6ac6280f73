// Package detection locates personal data in raw document text.
//
// A Pipeline runs an ordered list of Layers. Each layer sees the spans claimed by the layers
// before it and never proposes an overlapping one, so earlier layers always take precedence.
// Offsets are byte offsets into the text handed to Pipeline.Detect.
package detection

import (
	"context"
	"sort"
)

// ValueType is the declared kind of a detected value.
type ValueType string

const (
	ValueTypePerson     ValueType = "person"
	ValueTypeTaxID      ValueType = "tax_id"
	ValueTypeNationalID ValueType = "national_id"
	ValueTypeEmail      ValueType = "email"
	ValueTypePhone      ValueType = "phone"
	ValueTypeAddress    ValueType = "address"
	ValueTypeOther      ValueType = "other"
)

// ValueTypes lists every value type in declaration order.
var ValueTypes = []ValueType{
	ValueTypePerson,
	ValueTypeTaxID,
	ValueTypeNationalID,
	ValueTypeEmail,
	ValueTypePhone,
	ValueTypeAddress,
	ValueTypeOther,
}

// Valid reports whether v is a known value type.
func (v ValueType) Valid() bool {
	for _, known := range ValueTypes {
		if v == known {
			return true
		}
	}
	return false
}

// Span is one detected value.
type Span struct {
	Start int
	End   int
	Type  ValueType
	Text  string
	// Layer is the name of the layer that proposed the span.
	Layer string
	// LayerIndex is the position of that layer in the pipeline.
	LayerIndex int
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether s and other share at least one byte.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Layer is one detection strategy.
type Layer interface {
	Name() string
	// DetectSpans returns spans in text that do not overlap any span in claimed.
	DetectSpans(ctx context.Context, text string, claimed []Span) []Span
}

// overlapsAny reports whether [start, end) overlaps any claimed span.
func overlapsAny(claimed []Span, start, end int) bool {
	probe := Span{Start: start, End: end}
	for _, span := range claimed {
		if span.Overlaps(probe) {
			return true
		}
	}
	return false
}

// firstClaimedStart returns the smallest claimed start inside [start, end), or end.
func firstClaimedStart(claimed []Span, start, end int) int {
	cut := end
	for _, span := range claimed {
		if span.End > start && span.Start < cut {
			cut = span.Start
		}
	}
	return cut
}

func sortByOffset(spans []Span) {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].Len() > spans[j].Len()
	})
}
