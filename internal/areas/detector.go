// Package areas classifies report text into one of the fixed operational
// departments. Local lexicon scoring is always tried first; the semantic
// service only sees the ambiguous leftovers.
package areas

import (
	"context"
	"errors"
	"log"
	"sort"

	"incidentbot/internal/config"
	"incidentbot/internal/domain"
	"incidentbot/internal/llm"
	"incidentbot/internal/textnorm"
)

const (
	weightAliasExact = 1.0
	weightAliasFuzzy = 0.6
	weightHintExact  = 0.35
	weightHintFuzzy  = 0.2
	weightSynergy    = 0.6

	maxAlternatives = 3
)

type Detector struct {
	cfg config.Config
	lex *Lexicon
	sem llm.Client
}

func NewDetector(cfg config.Config, lex *Lexicon, sem llm.Client) *Detector {
	return &Detector{cfg: cfg, lex: lex, sem: sem}
}

// Detect runs the tier chain over report text. A nil department with
// alternatives is the well-formed "undecided" outcome, not an error.
func (d *Detector) Detect(ctx context.Context, text string) domain.DeptResult {
	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return domain.DeptResult{Source: "none"}
	}

	// Tier 1: the text directly names a department.
	if res, ok := d.detectDirect(normalized); ok {
		return res
	}

	// Tier 2: weighted lexicon scoring.
	scores := d.scoreDepartments(normalized)
	if len(scores) > 0 {
		top := scores[0]
		lead := top.Score
		if len(scores) > 1 {
			lead = top.Score - scores[1].Score
		}
		if top.Score >= d.cfg.DetectorScoreFloor && lead >= d.cfg.DetectorMargin {
			return domain.DeptResult{
				Department:   top.Department,
				Confidence:   boundedConfidence(top.Score),
				Source:       "lexicon",
				Alternatives: alternativesAfter(scores),
			}
		}
	}

	// Tier 3: constrained semantic fallback.
	if res, ok := d.detectSemantic(ctx, text); ok {
		res.Alternatives = alternativesAfter(scores)
		return res
	}

	// Tier 4: undecided, with the best local candidates attached.
	alts := scores
	if len(alts) > maxAlternatives {
		alts = alts[:maxAlternatives]
	}
	return domain.DeptResult{Source: "none", Alternatives: alts}
}

// detectDirect matches the whole input against department names and aliases:
// exact, or very high edit similarity for typos of short canonical names.
func (d *Detector) detectDirect(normalized string) (domain.DeptResult, bool) {
	bare := textnorm.NormalizeBare(normalized)
	for _, dept := range d.lex.Departments {
		names := append([]string{dept.Label, dept.Code}, dept.Aliases...)
		for _, name := range names {
			n := textnorm.Normalize(name)
			if n == "" {
				continue
			}
			if normalized == n || bare == n {
				return domain.DeptResult{
					Department: domain.Department(dept.Code),
					Confidence: 1.0,
					Source:     "alias",
				}, true
			}
		}
		if textnorm.JaroWinkler(normalized, dept.Label) >= d.cfg.DirectNameCutoff ||
			textnorm.JaroWinkler(bare, dept.Label) >= d.cfg.DirectNameCutoff {
			return domain.DeptResult{
				Department: domain.Department(dept.Code),
				Confidence: 0.95,
				Source:     "alias",
			}, true
		}
	}
	return domain.DeptResult{}, false
}

func (d *Detector) scoreDepartments(normalized string) []domain.DeptScore {
	tokens := textnorm.Tokenize(normalized)

	failing := false
	for _, phrase := range d.lex.FailurePhrases {
		if textnorm.ContainsWord(normalized, phrase) {
			failing = true
			break
		}
	}

	var scores []domain.DeptScore
	for _, dept := range d.lex.Departments {
		score := 0.0
		for _, alias := range dept.Aliases {
			switch {
			case textnorm.ContainsWord(normalized, alias):
				score += weightAliasExact
			case fuzzyTokenMatch(tokens, alias, d.cfg.FuzzyAliasCutoff):
				score += weightAliasFuzzy
			}
		}
		for _, hint := range dept.Hints {
			switch {
			case textnorm.ContainsWord(normalized, hint):
				score += weightHintExact
			case fuzzyTokenMatch(tokens, hint, d.cfg.FuzzyAliasCutoff):
				score += weightHintFuzzy
			}
		}
		if failing {
			for _, device := range dept.Devices {
				if textnorm.ContainsWord(normalized, device) {
					score += weightSynergy
					break
				}
			}
		}
		if score > 0 {
			scores = append(scores, domain.DeptScore{Department: domain.Department(dept.Code), Score: score})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Department < scores[j].Department
	})
	return scores
}

func (d *Detector) detectSemantic(ctx context.Context, text string) (domain.DeptResult, bool) {
	options := make([]llm.DeptOption, 0, len(d.lex.Departments))
	for _, dept := range d.lex.Departments {
		hints := ""
		if len(dept.Hints) > 0 {
			limit := len(dept.Hints)
			if limit > 5 {
				limit = 5
			}
			for i := 0; i < limit; i++ {
				if i > 0 {
					hints += ", "
				}
				hints += dept.Hints[i]
			}
		}
		options = append(options, llm.DeptOption{Code: dept.Code, Label: dept.Label, Hints: hints})
	}

	judgment, err := d.sem.ClassifyDepartment(ctx, text, options)
	if err != nil {
		if !errors.Is(err, llm.ErrUnavailable) {
			log.Printf("detector semantic error: %v", err)
		}
		return domain.DeptResult{}, false
	}
	if judgment.Code == "" {
		return domain.DeptResult{}, false
	}
	confidence := judgment.Confidence
	if confidence < d.cfg.SemanticFloor {
		confidence = d.cfg.SemanticFloor
	}
	return domain.DeptResult{
		Department: domain.Department(judgment.Code),
		Confidence: confidence,
		Source:     "semantic",
	}, true
}

func fuzzyTokenMatch(tokens []string, phrase string, cutoff float64) bool {
	phrase = textnorm.Normalize(phrase)
	if phrase == "" {
		return false
	}
	for _, tok := range tokens {
		if textnorm.TrigramSimilarity(tok, phrase) >= cutoff {
			return true
		}
	}
	return false
}

func alternativesAfter(scores []domain.DeptScore) []domain.DeptScore {
	if len(scores) <= 1 {
		return nil
	}
	alts := scores[1:]
	if len(alts) > maxAlternatives {
		alts = alts[:maxAlternatives]
	}
	return alts
}

// boundedConfidence maps an open-ended lexicon score into a confidence that
// never reaches the certainty reserved for direct alias answers.
func boundedConfidence(score float64) float64 {
	c := 0.60 + score*0.08
	if c > 0.93 {
		c = 0.93
	}
	return c
}
