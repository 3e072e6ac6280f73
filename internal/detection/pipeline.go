package detection

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// EntityRecorder receives per-layer detection counts.
type EntityRecorder interface {
	RecordEntities(ctx context.Context, layer, valueType string, count int)
}

// Pipeline runs detection layers in a fixed order.
type Pipeline struct {
	layers   []Layer
	logger   *slog.Logger
	recorder EntityRecorder
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEntityRecorder reports the spans accepted from each layer to recorder.
func WithEntityRecorder(recorder EntityRecorder) Option {
	return func(p *Pipeline) {
		p.recorder = recorder
	}
}

// NewPipeline creates a pipeline running layers in the given order.
func NewPipeline(logger *slog.Logger, layers []Layer, opts ...Option) *Pipeline {
	p := &Pipeline{layers: layers, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Layers returns the layer names in execution order.
func (p *Pipeline) Layers() []string {
	names := make([]string, len(p.layers))
	for i, layer := range p.layers {
		names[i] = layer.Name()
	}
	return names
}

// Detect returns the non-overlapping spans found in text, ordered by offset. A layer that
// panics contributes no spans; Detect itself never fails.
func (p *Pipeline) Detect(ctx context.Context, text string) []Span {
	claimed := make([]Span, 0)

	for index, layer := range p.layers {
		if ctx.Err() != nil {
			break
		}

		proposed := p.runLayer(ctx, layer, text, slices.Clone(claimed))

		sortByOffset(proposed)
		counts := make(map[ValueType]int)
		accepted := 0
		for _, span := range proposed {
			if span.Start < 0 || span.End > len(text) || span.Start >= span.End {
				continue
			}
			if overlapsAny(claimed, span.Start, span.End) {
				continue
			}
			span.Text = text[span.Start:span.End]
			span.Layer = layer.Name()
			span.LayerIndex = index
			claimed = append(claimed, span)
			counts[span.Type]++
			accepted++
		}

		if p.recorder != nil {
			for valueType, count := range counts {
				p.recorder.RecordEntities(ctx, layer.Name(), string(valueType), count)
			}
		}
		p.logger.Debug("detection layer finished", slog.String("layer", layer.Name()), slog.Int("spans", accepted))
	}

	sortByOffset(claimed)
	return claimed
}

func (p *Pipeline) runLayer(ctx context.Context, layer Layer, text string, claimed []Span) (spans []Span) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(
				"detection layer failed",
				slog.String("layer", layer.Name()),
				slog.String("panic", fmt.Sprint(r)),
			)
			spans = nil
		}
	}()
	return layer.DetectSpans(ctx, text, claimed)
}

// Config holds the tunables of the default layer set.
type Config struct {
	// HeaderWindow is the number of leading characters scanned for labeled values.
	HeaderWindow int
	// SignatureWindow is the number of trailing characters scanned for signer lines.
	SignatureWindow int
	// SignatureTitles are the professional title abbreviations accepted before a signer name.
	SignatureTitles []string
	// Acronyms are preserved verbatim during case normalization, in addition to the built-ins.
	Acronyms []string
}

// NewDefaultPipeline wires the structured-pattern, labeled-header, person-name and
// signature-block layers in that order.
func NewDefaultPipeline(cfg Config, logger *slog.Logger, opts ...Option) *Pipeline {
	layers := []Layer{
		NewPatternLayer(),
		NewHeaderLayer(cfg.HeaderWindow),
		NewNERLayer(NewCaseNormalizer(cfg.Acronyms), NewTitleCaseRecognizer(cfg.SignatureTitles)),
		NewSignatureLayer(cfg.SignatureWindow, cfg.SignatureTitles, logger),
	}
	return NewPipeline(logger, layers, opts...)
}
