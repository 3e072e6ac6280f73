package detection

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Values that are never personal data even when a rule matches them.
var exceptionValues = toSet(
	"ARCOTEL", "CAFI", "CTDG", "CCON", "DEDA", "CTRP", "CADF",
	"QUITO", "GUAYAQUIL", "CUENCA", "AMBATO", "RIOBAMBA", "LOJA",
	"MACHALA", "PORTOVIEJO", "MANTA", "SANTO DOMINGO", "ESMERALDAS", "IBARRA",
	"PICHINCHA", "GUAYAS", "AZUAY", "TUNGURAHUA", "CHIMBORAZO",
	"MANABI", "EL ORO", "IMBABURA",
)

var excludedPhrases = []string{
	"ley organica de telecomunicaciones",
	"codigo organico administrativo",
	"registro oficial",
	"agencia de regulacion y control",
	"sistema de gestion documental",
}

// Terms that mark a candidate as institutional rather than a person.
var institutionalVocabulary = toSet(
	"direccion", "coordinacion", "unidad", "tecnica", "administrativa",
	"financiera", "gestion", "control", "registro", "agencia",
	"ministerio", "secretaria", "departamento", "division",
	"ley", "reglamento", "codigo", "estatuto", "manual",
	"servicio", "sistema", "procedimiento", "proceso",
	"arcotel", "telecomunicaciones", "titulos", "habilitantes",
	"organica", "administrativo", "sancionador", "certificacion",
	"remision", "quinta", "documental", "quipux", "equinoccial", "provincia",
	"empresa", "compania", "corporacion", "fundacion", "universidad", "banco",
	"consejo", "comision", "instituto", "oficina", "nacional", "general",
	"republica", "sociedad", "asociacion", "municipio", "gobierno", "tribunal",
)

// Imperative and boilerplate verbs that open form sections.
var boilerplateVerbs = toSet(
	"elaborar", "certificar", "certifico", "remitir", "enviar",
	"solicitar", "aprobar", "rechazar", "validar", "verificar",
	"revisar", "adjuntar", "notificar", "disponer",
)

// Short words allowed inside a person name.
var nameConnectors = toSet("ing", "dr", "sr", "sra", "ab", "de", "la", "y")

// Lowercase words that may appear between the capitalized words of a name.
var runConnectors = toSet("de", "del", "la", "las", "los", "y")

// Words that announce a person name right after them.
var personCues = toSet(
	"contacto", "contact", "senor", "senora", "senorita", "sr", "sra", "srta",
	"don", "dona", "ciudadano", "ciudadana", "legal", "representante",
	"suscrito", "suscrita", "atentamente", "attn", "mr", "mrs", "ms",
	"servidor", "servidora", "funcionario", "funcionaria",
)

// Capitalized sentence openers that never begin a name.
var sentenceStarters = toSet(
	"el", "los", "un", "una", "en", "se", "por", "para", "con", "al", "que",
	"este", "esta", "estos", "estas", "segun", "sobre", "cuando", "si", "no",
	"the", "a", "an", "to", "for", "dear", "please",
)

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}

func inSet(set map[string]struct{}, value string) bool {
	_, ok := set[value]
	return ok
}

// fold lowercases s and strips combining marks, so "DIRECCIÓN" and "direccion" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// foldedWords splits s into folded words stripped of surrounding punctuation.
func foldedWords(s string) []string {
	fields := strings.Fields(s)
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		if word := strings.Trim(fold(field), wordPunctuation); word != "" {
			words = append(words, word)
		}
	}
	return words
}

const wordPunctuation = `.,;:()[]{}"'`

// isException reports whether value is a known institution, place or legal phrase.
func isException(value string) bool {
	folded := fold(strings.Join(strings.Fields(value), " "))
	if inSet(exceptionValues, strings.ToUpper(folded)) {
		return true
	}
	for _, phrase := range excludedPhrases {
		if strings.Contains(folded, phrase) {
			return true
		}
	}
	for _, word := range foldedWords(value) {
		if inSet(institutionalVocabulary, word) {
			return true
		}
	}
	return false
}
