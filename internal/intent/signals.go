package intent

import (
	"regexp"

	"incidentbot/internal/textnorm"
)

// Folio pattern used across body and quoted text. Case and surrounding
// punctuation are forgiven; the canonical form is INC-YYYY-NNNN.
var folioPattern = regexp.MustCompile(`(?i)\b(INC-\d{4}-\d{4})\b`)

// Greetings only count as smalltalk when the message is essentially just the
// greeting; "hola, se rompio la regadera" must not short-circuit.
const maxGreetingWords = 3

var greetings = []string{
	"hola", "buenas", "buenos dias", "buenas tardes", "buenas noches",
	"que tal", "hey", "saludos", "gracias", "ok", "vale", "listo",
}

var helpPhrases = []string{
	"ayuda", "help", "que puedes hacer", "como funciona", "como te uso",
	"que haces", "instrucciones",
}

var statusPhrases = []string{
	"como va", "como van", "que paso con", "ya quedo", "ya esta listo",
	"estado de", "avance", "status", "seguimiento", "pendiente de",
}

// Question phrasing about an existing ticket. Completion assertions like
// "ya quedo" are deliberately absent: next to a folio those are updates from
// the resolving team, not lookups.
var ticketQueryPhrases = []string{
	"como va", "como van", "que paso con", "estado de", "avance",
	"status", "seguimiento", "pendiente de",
}

// Generic breakage vocabulary that flags incident-like content even without a
// department-specific hint. Department hints from the lexicon are merged in
// by the classifier.
var incidentWords = []string{
	"fuga", "roto", "rota", "descompuesto", "descompuesta", "averiado",
	"goteando", "gotea", "tirando agua", "apagado", "apagada", "quebrado",
	"quebrada", "atascado", "atascada", "tapado", "tapada", "huele",
	"ruido", "chispa", "urgente", "reportar", "reporte", "arreglar",
	"revisar", "no sirve", "no funciona", "no enciende", "no prende",
	"no hay", "se fue", "dejo de",
}

// ExtractFolio pulls a ticket folio out of message or quoted text. The body
// wins when both carry one.
func ExtractFolio(text, quoted string) string {
	if m := folioPattern.FindString(text); m != "" {
		return canonicalFolio(m)
	}
	if m := folioPattern.FindString(quoted); m != "" {
		return canonicalFolio(m)
	}
	return ""
}

func canonicalFolio(s string) string {
	up := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		up = append(up, r)
	}
	return string(up)
}

func matchesAny(normalized string, phrases []string) bool {
	for _, p := range phrases {
		if textnorm.ContainsWord(normalized, p) {
			return true
		}
	}
	return false
}

func isGreeting(normalized string, wordCount int) bool {
	if wordCount == 0 || wordCount > maxGreetingWords {
		return false
	}
	for _, g := range greetings {
		if normalized == textnorm.Normalize(g) {
			return true
		}
	}
	// "hola hola" and "hola buenas" style repeats.
	all := true
	for _, tok := range textnorm.Tokenize(normalized) {
		if !matchesAny(tok, greetings) {
			all = false
			break
		}
	}
	return all
}
