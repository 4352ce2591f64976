package domain

// PlaceEntry is one canonical location from the catalog.
type PlaceEntry struct {
	ID         string   `yaml:"id"`
	Label      string   `yaml:"label"`
	Aliases    []string `yaml:"aliases"`
	RoomNumber int      `yaml:"room_number"` // 0 when the place has no numeric id
	Building   string   `yaml:"building"`
	Floor      string   `yaml:"floor"`
	Zone       string   `yaml:"zone"`
	Active     bool     `yaml:"active"`
}

// ZoneOption is one selectable answer inside an ambiguous-zone prompt.
type ZoneOption struct {
	Code        string `yaml:"code"`
	Label       string `yaml:"label"`
	Canonical   string `yaml:"canonical"` // catalog entry id
	Description string `yaml:"description"`
}

// AmbiguousZone is a generic place name ("cocina") covering several catalog
// entries. When a message names the zone without one of the option labels the
// resolver asks instead of guessing.
type AmbiguousZone struct {
	Key      string       `yaml:"key"`
	Triggers []string     `yaml:"triggers"`
	Prompt   string       `yaml:"prompt"`
	Options  []ZoneOption `yaml:"options"`
}

// PlaceStatus classifies the outcome of a resolution attempt. Every tier has a
// well-formed miss value so callers fall through without exceptions.
type PlaceStatus string

const (
	PlaceResolved   PlaceStatus = "resolved"
	PlaceAmbiguous  PlaceStatus = "ambiguous_candidates"
	PlaceNeedsZone  PlaceStatus = "needs_disambiguation"
	PlaceNotAPlace  PlaceStatus = "not_a_place"
	PlaceUnresolved PlaceStatus = "unresolved"
	PlaceEmptyInput PlaceStatus = "empty_input"
	PlaceAIError    PlaceStatus = "ai_error"
)

// PlaceCandidate is a scored near-match from the phrase tier.
type PlaceCandidate struct {
	Entry PlaceEntry
	Score float64
}

// PlaceResolution is the ephemeral outcome of resolving a location phrase.
type PlaceResolution struct {
	Status     PlaceStatus
	Entry      *PlaceEntry
	Confidence float64
	Tier       string // "numeric", "phrase", "zone", "semantic"
	Candidates []PlaceCandidate

	// Populated when Status is PlaceNeedsZone.
	ZoneKey     string
	ZonePrompt  string
	ZoneOptions []ZoneOption
}

// Resolved reports whether a canonical place was chosen.
func (r PlaceResolution) Resolved() bool {
	return r.Status == PlaceResolved && r.Entry != nil
}
