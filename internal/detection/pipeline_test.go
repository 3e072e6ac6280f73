package detection

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultConfig() Config {
	return Config{
		HeaderWindow:    1500,
		SignatureWindow: 2000,
		SignatureTitles: []string{
			"Ing.", "Ingeniero", "Ingeniera", "Econ.", "Dr.", "Dra.", "Abg.", "Ab.", "Lic.",
			"Msc.", "Mgtr.", "Mgs.", "PhD.", "Arq.", "Tlgo.", "Sr.", "Sra.",
		},
	}
}

type stubLayer struct {
	name    string
	spans   []Span
	panics  bool
	claimed []Span
}

func (s *stubLayer) Name() string {
	return s.name
}

func (s *stubLayer) DetectSpans(ctx context.Context, text string, claimed []Span) []Span {
	s.claimed = claimed
	if s.panics {
		panic("malformed input")
	}
	return s.spans
}

type recordedEntities struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *recordedEntities) RecordEntities(ctx context.Context, layer, valueType string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[layer+"/"+valueType] += count
}

type typedText struct {
	Type ValueType
	Text string
}

func typedTexts(spans []Span) []typedText {
	result := make([]typedText, len(spans))
	for i, span := range spans {
		result[i] = typedText{Type: span.Type, Text: span.Text}
	}
	return result
}

func TestPipeline_Detect(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_EarlierLayerWins", func(t *testing.T) {
		first := &stubLayer{name: "first", spans: []Span{{Start: 0, End: 4, Type: ValueTypeTaxID}}}
		second := &stubLayer{name: "second", spans: []Span{
			{Start: 2, End: 8, Type: ValueTypePerson},
			{Start: 9, End: 12, Type: ValueTypePerson},
		}}
		pipeline := NewPipeline(discardLogger(), []Layer{first, second})

		spans := pipeline.Detect(ctx, "abcdefgh ijk")

		require.Len(t, spans, 2)
		assert.Equal(t, Span{Start: 0, End: 4, Type: ValueTypeTaxID, Text: "abcd", Layer: "first"}, spans[0])
		assert.Equal(t, "ijk", spans[1].Text)
		assert.Equal(t, "second", spans[1].Layer)
		assert.Equal(t, 1, spans[1].LayerIndex)
		assert.Len(t, second.claimed, 1)
	})

	t.Run("Success_PanickingLayerContributesNothing", func(t *testing.T) {
		broken := &stubLayer{name: "broken", panics: true}
		healthy := &stubLayer{name: "healthy", spans: []Span{{Start: 0, End: 3, Type: ValueTypeEmail}}}
		pipeline := NewPipeline(discardLogger(), []Layer{broken, healthy})

		spans := pipeline.Detect(ctx, "abc def")

		require.Len(t, spans, 1)
		assert.Equal(t, "healthy", spans[0].Layer)
	})

	t.Run("Success_DropsInvalidAndSelfOverlappingSpans", func(t *testing.T) {
		layer := &stubLayer{name: "sloppy", spans: []Span{
			{Start: 5, End: 3, Type: ValueTypeOther},
			{Start: 0, End: 99, Type: ValueTypeOther},
			{Start: 0, End: 2, Type: ValueTypeOther},
			{Start: 0, End: 4, Type: ValueTypeOther},
		}}
		pipeline := NewPipeline(discardLogger(), []Layer{layer})

		spans := pipeline.Detect(ctx, "abcdef")

		require.Len(t, spans, 1)
		assert.Equal(t, "abcd", spans[0].Text)
	})

	t.Run("Success_RecordsEntitiesPerLayer", func(t *testing.T) {
		recorder := &recordedEntities{counts: make(map[string]int)}
		pipeline := NewDefaultPipeline(defaultConfig(), discardLogger(), WithEntityRecorder(recorder))

		pipeline.Detect(ctx, "RUC 1792554136001, contacto JUAN PEREZ, juan@empresa.com")

		assert.Equal(t, map[string]int{
			"pattern/tax_id": 1,
			"pattern/email":  1,
			"ner/person":     1,
		}, recorder.counts)
	})

	t.Run("Success_CancelledContextStopsEarly", func(t *testing.T) {
		layer := &stubLayer{name: "never", spans: []Span{{Start: 0, End: 1}}}
		pipeline := NewPipeline(discardLogger(), []Layer{layer})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		assert.Empty(t, pipeline.Detect(cancelled, "abc"))
	})
}

func TestDefaultPipeline(t *testing.T) {
	ctx := context.Background()
	pipeline := NewDefaultPipeline(defaultConfig(), discardLogger())

	t.Run("Success_LayerOrder", func(t *testing.T) {
		assert.Equal(t, []string{"pattern", "header", "ner", "signature"}, pipeline.Layers())
	})

	t.Run("Success_ContactLine", func(t *testing.T) {
		spans := pipeline.Detect(ctx, "RUC 1792554136001, contacto JUAN PEREZ, juan@empresa.com")

		assert.Equal(t, []typedText{
			{Type: ValueTypeTaxID, Text: "1792554136001"},
			{Type: ValueTypePerson, Text: "JUAN PEREZ"},
			{Type: ValueTypeEmail, Text: "juan@empresa.com"},
		}, typedTexts(spans))
	})

	t.Run("Success_AdministrativeForm", func(t *testing.T) {
		text := "PRESTADOR O CONCESIONARIO: RADIO LA VOZ DEL VALLE\n" +
			"REPRESENTANTE LEGAL: CHARCO IÑIGUEZ KLEVER LUIS\n" +
			"RUC: 1792554136001\n\n" +
			"Se notifica a CHARCO IÑIGUEZ KLEVER LUIS al correo klever@radio.ec o al 022345678.\n\n" +
			"Elaborado por: Ing. Juan Carlos Perez\n"

		spans := pipeline.Detect(ctx, text)

		assert.Equal(t, []typedText{
			{Type: ValueTypePerson, Text: "RADIO LA VOZ DEL VALLE"},
			{Type: ValueTypePerson, Text: "CHARCO IÑIGUEZ KLEVER LUIS"},
			{Type: ValueTypeTaxID, Text: "1792554136001"},
			{Type: ValueTypePerson, Text: "CHARCO IÑIGUEZ KLEVER LUIS"},
			{Type: ValueTypeEmail, Text: "klever@radio.ec"},
			{Type: ValueTypePhone, Text: "022345678"},
			{Type: ValueTypePerson, Text: "Juan Carlos Perez"},
		}, typedTexts(spans))
		for i := 1; i < len(spans); i++ {
			assert.LessOrEqual(t, spans[i-1].End, spans[i].Start)
		}
	})

	t.Run("Success_NothingToDetect", func(t *testing.T) {
		assert.Empty(t, pipeline.Detect(ctx, "El informe técnico fue remitido a la ARCOTEL."))
	})
}
