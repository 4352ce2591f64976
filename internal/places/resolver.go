// Package places maps free-form location phrasing onto the canonical catalog.
// Resolution runs an ordered chain of tiers; every tier has a well-formed miss
// so the next one runs without exception-driven control flow.
package places

import (
	"context"
	"errors"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"incidentbot/internal/catalog"
	"incidentbot/internal/config"
	"incidentbot/internal/domain"
	"incidentbot/internal/llm"
	"incidentbot/internal/textnorm"
)

var roomNumberRegex = regexp.MustCompile(`\b(\d{4})\b`)

const maxAmbiguousCandidates = 5

type Resolver struct {
	cfg     config.Config
	catalog *catalog.Store
	zones   []domain.AmbiguousZone
	sem     llm.Client
}

func NewResolver(cfg config.Config, cat *catalog.Store, zones []domain.AmbiguousZone, sem llm.Client) *Resolver {
	return &Resolver{cfg: cfg, catalog: cat, zones: zones, sem: sem}
}

// Resolve runs the tier chain over one location phrase. It never returns an
// error: failures of collaborators degrade into miss statuses.
func (r *Resolver) Resolve(ctx context.Context, input string) domain.PlaceResolution {
	normalized := textnorm.Normalize(input)
	if normalized == "" {
		return domain.PlaceResolution{Status: domain.PlaceEmptyInput}
	}

	// Tier 1: a registered 4-digit room/villa id is the least ambiguous
	// signal there is; it outranks any phrase elsewhere in the text.
	if res, ok := r.resolveNumeric(normalized); ok {
		return res
	}

	// Tier 2: phrase index.
	res, candidates := r.resolvePhrase(normalized)
	if res.Status == domain.PlaceResolved || res.Status == domain.PlaceAmbiguous {
		return res
	}

	// Tier 3: generic zone named without a specific option.
	if zone := r.matchZone(normalized); zone != nil {
		return domain.PlaceResolution{
			Status:      domain.PlaceNeedsZone,
			Tier:        "zone",
			ZoneKey:     zone.Key,
			ZonePrompt:  zone.Prompt,
			ZoneOptions: zone.Options,
		}
	}

	// Tier 4: free-form validation through the semantic service.
	if !r.cfg.AllowFreeformPlaces {
		return domain.PlaceResolution{Status: domain.PlaceUnresolved, Candidates: candidates}
	}
	return r.resolveFreeform(ctx, input, candidates)
}

func (r *Resolver) resolveNumeric(normalized string) (domain.PlaceResolution, bool) {
	for _, match := range roomNumberRegex.FindAllString(normalized, -1) {
		n, err := strconv.Atoi(match)
		if err != nil {
			continue
		}
		if entry, ok := r.catalog.ByNumber(n); ok {
			e := entry
			return domain.PlaceResolution{
				Status:     domain.PlaceResolved,
				Entry:      &e,
				Confidence: 1.0,
				Tier:       "numeric",
			}, true
		}
	}
	return domain.PlaceResolution{}, false
}

func (r *Resolver) resolvePhrase(normalized string) (domain.PlaceResolution, []domain.PlaceCandidate) {
	phrases := r.catalog.Phrases()
	if len(phrases) == 0 {
		// Catalog gone missing mid-flight: best-effort reload, then a plain
		// miss. Never fatal per-request.
		if err := r.catalog.Reload(); err != nil {
			log.Printf("resolver catalog reload failed: %v", err)
			return domain.PlaceResolution{Status: domain.PlaceUnresolved}, nil
		}
		phrases = r.catalog.Phrases()
	}

	bare := textnorm.NormalizeBare(normalized)
	padded := " " + normalized + " "
	paddedBare := " " + bare + " "

	best := make(map[string]domain.PlaceCandidate)
	for _, p := range phrases {
		// Exact normalized match wins immediately; the index is
		// longest-first so the most specific alias gets there first.
		if p.Text == normalized || p.Text == bare {
			e := p.Entry
			return domain.PlaceResolution{
				Status:     domain.PlaceResolved,
				Entry:      &e,
				Confidence: 1.0,
				Tier:       "phrase",
			}, nil
		}
		needle := " " + p.Text + " "
		if !strings.Contains(padded, needle) && !strings.Contains(paddedBare, needle) {
			continue
		}
		score := float64(len(p.Text)) / float64(len(normalized))
		if score > 1 {
			score = 1
		}
		if cur, ok := best[p.Entry.ID]; !ok || score > cur.Score {
			best[p.Entry.ID] = domain.PlaceCandidate{Entry: p.Entry, Score: score}
		}
	}
	if len(best) == 0 {
		return domain.PlaceResolution{Status: domain.PlaceUnresolved}, nil
	}

	ranked := make([]domain.PlaceCandidate, 0, len(best))
	for _, c := range best {
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Entry.ID < ranked[j].Entry.ID
	})
	if len(ranked) > maxAmbiguousCandidates {
		ranked = ranked[:maxAmbiguousCandidates]
	}

	top := ranked[0]
	if top.Score >= r.cfg.PhraseDecisiveScore {
		if len(ranked) == 1 || top.Score-ranked[1].Score >= r.cfg.PhraseClusterMargin {
			e := top.Entry
			return domain.PlaceResolution{
				Status:     domain.PlaceResolved,
				Entry:      &e,
				Confidence: top.Score,
				Tier:       "phrase",
			}, ranked
		}
		// A cluster of close scores: report, don't guess.
		return domain.PlaceResolution{
			Status:     domain.PlaceAmbiguous,
			Tier:       "phrase",
			Candidates: ranked,
		}, ranked
	}
	return domain.PlaceResolution{Status: domain.PlaceUnresolved, Candidates: ranked}, ranked
}

// matchZone returns the ambiguous zone the input names generically: the input
// equals a trigger, or contains one while naming none of the zone's specific
// option labels.
func (r *Resolver) matchZone(normalized string) *domain.AmbiguousZone {
	for i := range r.zones {
		zone := &r.zones[i]
		for _, trigger := range zone.Triggers {
			trig := textnorm.Normalize(trigger)
			if trig == "" {
				continue
			}
			if normalized == trig {
				return zone
			}
			if !textnorm.ContainsWord(normalized, trig) {
				continue
			}
			specific := false
			for _, opt := range zone.Options {
				if textnorm.ContainsWord(normalized, opt.Label) {
					specific = true
					break
				}
			}
			if !specific {
				return zone
			}
		}
	}
	return nil
}

func (r *Resolver) resolveFreeform(ctx context.Context, input string, candidates []domain.PlaceCandidate) domain.PlaceResolution {
	judgment, err := r.sem.ValidatePlace(ctx, input, r.cfg.HotelName)
	if err != nil {
		if !errors.Is(err, llm.ErrUnavailable) {
			log.Printf("resolver semantic error input=%q: %v", input, err)
		}
		return domain.PlaceResolution{Status: domain.PlaceAIError, Candidates: candidates}
	}
	if !judgment.IsPlace {
		return domain.PlaceResolution{Status: domain.PlaceNotAPlace, Candidates: candidates}
	}
	if judgment.Confidence < r.cfg.SemanticFloor {
		return domain.PlaceResolution{Status: domain.PlaceUnresolved, Candidates: candidates}
	}

	label := strings.TrimSpace(judgment.Canonical)
	if label == "" {
		label = strings.TrimSpace(input)
	}
	return domain.PlaceResolution{
		Status:     domain.PlaceResolved,
		Entry:      &domain.PlaceEntry{ID: "freeform", Label: label, Active: true},
		Confidence: judgment.Confidence,
		Tier:       "semantic",
	}
}

// ResolveZoneReply maps a user's answer to an outstanding disambiguation
// prompt back to a canonical place, by option code or fuzzy label.
func (r *Resolver) ResolveZoneReply(zoneKey, reply string) domain.PlaceResolution {
	var zone *domain.AmbiguousZone
	for i := range r.zones {
		if r.zones[i].Key == zoneKey {
			zone = &r.zones[i]
			break
		}
	}
	if zone == nil {
		return domain.PlaceResolution{Status: domain.PlaceUnresolved}
	}

	normalized := textnorm.Normalize(reply)
	if normalized == "" {
		return domain.PlaceResolution{Status: domain.PlaceEmptyInput}
	}

	pick := func(opt domain.ZoneOption, confidence float64) domain.PlaceResolution {
		if entry, ok := r.catalog.ByID(opt.Canonical); ok {
			e := entry
			return domain.PlaceResolution{Status: domain.PlaceResolved, Entry: &e, Confidence: confidence, Tier: "zone"}
		}
		// Option points at a label the catalog does not carry; still usable.
		return domain.PlaceResolution{
			Status:     domain.PlaceResolved,
			Entry:      &domain.PlaceEntry{ID: opt.Canonical, Label: opt.Label, Active: true},
			Confidence: confidence,
			Tier:       "zone",
		}
	}

	for _, opt := range zone.Options {
		if normalized == textnorm.Normalize(opt.Code) {
			return pick(opt, 1.0)
		}
	}

	bestScore := 0.0
	var bestOpt *domain.ZoneOption
	for i := range zone.Options {
		opt := &zone.Options[i]
		label := textnorm.Normalize(opt.Label)
		if normalized == label || textnorm.ContainsWord(normalized, opt.Label) {
			return pick(*opt, 1.0)
		}
		if score := textnorm.JaroWinkler(normalized, label); score > bestScore {
			bestScore = score
			bestOpt = opt
		}
	}
	if bestOpt != nil && bestScore >= r.cfg.FuzzyAliasCutoff {
		return pick(*bestOpt, bestScore)
	}

	return domain.PlaceResolution{
		Status:      domain.PlaceUnresolved,
		ZoneKey:     zone.Key,
		ZonePrompt:  zone.Prompt,
		ZoneOptions: zone.Options,
	}
}
