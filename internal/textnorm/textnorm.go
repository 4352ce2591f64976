// Package textnorm holds the pure text helpers every classifier tier leans
// on: normalization, tokenization, and the two similarity measures used for
// noisy hint matching (trigrams) and short canonical names (Jaro-Winkler).
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Spanish articles and connectives that carry no signal for place or
// department matching.
var stopwords = map[string]bool{
	"el": true, "la": true, "los": true, "las": true,
	"un": true, "una": true, "unos": true, "unas": true,
	"de": true, "del": true, "al": true, "en": true,
	"y": true, "o": true, "que": true, "por": true,
}

// StripDiacritics removes combining marks: "baño" -> "bano".
func StripDiacritics(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize lower-cases, strips diacritics, drops punctuation, and collapses
// whitespace. It never fails; empty input yields "".
func Normalize(s string) string {
	s = StripDiacritics(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeBare additionally removes stopword articles, for phrase-index
// matching where "la cocina del lobby" should equal "cocina lobby".
func NormalizeBare(s string) string {
	var kept []string
	for _, tok := range Tokenize(s) {
		if !stopwords[tok] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// Tokenize splits normalized text into letter/digit runs.
func Tokenize(s string) []string {
	s = Normalize(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// ContainsWord reports whether word occurs delimited (not as a substring of a
// longer token) inside text. Both sides are normalized first.
func ContainsWord(text, word string) bool {
	word = Normalize(word)
	if word == "" {
		return false
	}
	for _, tok := range Tokenize(text) {
		if tok == word {
			return true
		}
	}
	// Multi-word phrases match on the normalized joined form.
	if strings.Contains(word, " ") {
		padded := " " + Normalize(text) + " "
		return strings.Contains(padded, " "+word+" ")
	}
	return false
}

// TrigramSimilarity returns the Dice coefficient of the rune-trigram sets of
// a and b, in [0,1]. Inputs shorter than three runes fall back to exact
// comparison. Empty input scores 0.
func TrigramSimilarity(a, b string) float64 {
	a = Normalize(a)
	b = Normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if tb[g] {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

func trigrams(s string) map[string]bool {
	rs := []rune("  " + s + " ")
	out := make(map[string]bool)
	for i := 0; i+3 <= len(rs); i++ {
		out[string(rs[i:i+3])] = true
	}
	return out
}

// JaroWinkler returns the Jaro-Winkler similarity of a and b in [0,1], with
// the standard 0.1 prefix boost over up to four shared leading runes. Good
// for short canonical names where a typo should still score high.
func JaroWinkler(a, b string) float64 {
	a = Normalize(a)
	b = Normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	j := jaro([]rune(a), []rune(b))
	if j == 0 {
		return 0
	}
	prefix := 0
	ra, rb := []rune(a), []rune(b)
	for prefix < len(ra) && prefix < len(rb) && prefix < 4 && ra[prefix] == rb[prefix] {
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

func jaro(a, b []rune) float64 {
	window := len(a)
	if len(b) > window {
		window = len(b)
	}
	window = window/2 - 1
	if window < 0 {
		window = 0
	}

	matchA := make([]bool, len(a))
	matchB := make([]bool, len(b))
	matches := 0
	for i := range a {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(b) {
			hi = len(b)
		}
		for j := lo; j < hi; j++ {
			if matchB[j] || a[i] != b[j] {
				continue
			}
			matchA[i] = true
			matchB[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range a {
		if !matchA[i] {
			continue
		}
		for !matchB[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}
	m := float64(matches)
	return (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions)/2)/m) / 3
}
